package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds occurs when the source account cannot cover a posting
	// within its overdraft allowance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound indicates a posting referenced an account that was never opened.
	ErrAccountNotFound = errors.New("account not found")
)

const (
	// FundingAccountCode is the external source opening balances are drawn from.
	// It is allowed to go arbitrarily negative.
	FundingAccountCode = "funding:external"

	KindRedeem  = "redeem"
	KindDeposit = "deposit"

	StatusCompleted = "completed"
)

// AccountCode returns the ledger code for a broker account number.
func AccountCode(number int64) string {
	return fmt.Sprintf("account:%d", number)
}

// TransferInput describes a balanced posting between two accounts.
type TransferInput struct {
	From       string
	To         string
	Kind       string
	ClientTxID string
	Amount     int64
	// Overdraft is how far below zero the source balance may fall.
	Overdraft int64

	unbounded bool
}

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// A transfer debits and credits atomically; no reader observes one side alone.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, in TransferInput) (TransactionResult, error)
	Deposit(ctx context.Context, code, clientTxID string, amount int64) (TransactionResult, error)
}

func depositInput(code, clientTxID string, amount int64) TransferInput {
	return TransferInput{
		From:       FundingAccountCode,
		To:         code,
		Kind:       KindDeposit,
		ClientTxID: clientTxID,
		Amount:     amount,
		unbounded:  true,
	}
}

func (in TransferInput) validate() error {
	if in.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", in.Amount)
	}
	if in.Overdraft < 0 {
		return fmt.Errorf("overdraft must not be negative, got %d", in.Overdraft)
	}
	if in.From == in.To {
		return fmt.Errorf("transfer from %s to itself", in.From)
	}
	if in.Kind == "" || in.ClientTxID == "" {
		return fmt.Errorf("transfer kind and client transaction id are required")
	}
	return nil
}

// covers reports whether a source balance may fund the posting.
func (in TransferInput) covers(balance int64) bool {
	return in.unbounded || balance-in.Amount >= -in.Overdraft
}

func txKey(kind, clientTxID string) string {
	return kind + ":" + clientTxID
}

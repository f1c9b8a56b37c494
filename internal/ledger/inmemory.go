package ledger

import (
	"context"
	"fmt"
	"sync"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]TransactionResult
}

// NewInMemory creates a concurrency-safe in-memory ledger used in development and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     map[string]int64{FundingAccountCode: 0},
		transactions: make(map[string]TransactionResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, in TransferInput) (TransactionResult, error) {
	if err := in.validate(); err != nil {
		return TransactionResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := txKey(in.Kind, in.ClientTxID)
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[in.From]
	if !ok {
		return TransactionResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, in.From)
	}
	toBalance, ok := l.balances[in.To]
	if !ok {
		return TransactionResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, in.To)
	}
	if !in.covers(fromBalance) {
		return TransactionResult{}, ErrInsufficientFunds
	}

	fromBalance -= in.Amount
	toBalance += in.Amount
	l.balances[in.From] = fromBalance
	l.balances[in.To] = toBalance

	res := TransactionResult{
		TransactionID: key,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}
	l.transactions[key] = res
	return res, nil
}

func (l *inMemoryLedger) Deposit(ctx context.Context, code, clientTxID string, amount int64) (TransactionResult, error) {
	return l.Transfer(ctx, depositInput(code, clientTxID, amount))
}

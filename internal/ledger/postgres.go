package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)::BIGINT
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var balance int64
	if err := l.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}

// Transfer records a balanced posting between two accounts. Both account rows
// are locked in code order so concurrent opposite transfers cannot deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, in TransferInput) (TransactionResult, error) {
	if err := in.validate(); err != nil {
		return TransactionResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	first, second := in.From, in.To
	if second < first {
		first, second = second, first
	}
	ids := make(map[string]uuid.UUID, 2)
	for _, code := range []string{first, second} {
		id, err := accountIDForCode(ctx, tx, code)
		if err != nil {
			return TransactionResult{}, err
		}
		ids[code] = id
	}
	fromAccountID, toAccountID := ids[in.From], ids[in.To]

	const existingTxQuery = `SELECT id FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	if err := tx.QueryRow(ctx, existingTxQuery, in.ClientTxID, in.Kind).Scan(&existingTxID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return TransactionResult{}, err
		}
	} else {
		fromBal, err := balanceForAccount(ctx, tx, fromAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		toBal, err := balanceForAccount(ctx, tx, toAccountID)
		if err != nil {
			return TransactionResult{}, err
		}
		return TransactionResult{TransactionID: existingTxID.String(), FromBalance: fromBal, ToBalance: toBal}, ErrDuplicateTransaction
	}

	fromBalance, err := balanceForAccount(ctx, tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	if !in.covers(fromBalance) {
		return TransactionResult{}, ErrInsufficientFunds
	}
	toBalance, err := balanceForAccount(ctx, tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`, txID, in.ClientTxID, in.Kind, StatusCompleted); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return TransactionResult{}, ErrDuplicateTransaction
		}
		return TransactionResult{}, err
	}

	batch := &pgx.Batch{}
	const entryInsert = `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`
	batch.Queue(entryInsert, uuid.New(), txID, fromAccountID, -in.Amount)
	batch.Queue(entryInsert, uuid.New(), txID, toAccountID, in.Amount)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}

	return TransactionResult{
		TransactionID: txID.String(),
		FromBalance:   fromBalance - in.Amount,
		ToBalance:     toBalance + in.Amount,
	}, nil
}

// Deposit credits code from the external funding account.
func (l *PostgresLedger) Deposit(ctx context.Context, code, clientTxID string, amount int64) (TransactionResult, error) {
	if err := l.EnsureAccount(ctx, FundingAccountCode); err != nil {
		return TransactionResult{}, err
	}
	return l.Transfer(ctx, depositInput(code, clientTxID, amount))
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/payword/internal/protocol"
)

// Repository persists registered parties. Upsert inserts a new identity or,
// for an existing one, replaces only its public key; it reports whether the
// record was created. Find fails with protocol.ErrUnknownIdentity.
type Repository interface {
	Upsert(ctx context.Context, rec Record) (Record, bool, error)
	Find(ctx context.Context, id protocol.Identity) (Record, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed registry repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert relies on ON CONFLICT so concurrent registrations of one identity
// serialize on its row; xmax is zero only for a freshly inserted tuple.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	const query = `
        INSERT INTO parties (identity, kind, public_key, account_number, credit_limit, registered_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (identity) DO UPDATE
            SET public_key = EXCLUDED.public_key, updated_at = EXCLUDED.updated_at
        RETURNING kind, public_key, account_number, credit_limit, registered_at, updated_at, (xmax = 0)`
	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	out := Record{Identity: rec.Identity.Clone()}
	var (
		kind    string
		created bool
	)
	err := r.db.QueryRow(ctx, query, []byte(rec.Identity), string(rec.Kind), rec.PublicKey, rec.AccountNumber, rec.CreditLimit, now.UTC()).
		Scan(&kind, &out.PublicKey, &out.AccountNumber, &out.CreditLimit, &out.RegisteredAt, &out.UpdatedAt, &created)
	if err != nil {
		return Record{}, false, fmt.Errorf("upsert party: %w", err)
	}
	out.Kind = Kind(kind)
	out.RegisteredAt = out.RegisteredAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, created, nil
}

// Find fetches a party by identity.
func (r *PostgresRepository) Find(ctx context.Context, id protocol.Identity) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT kind, public_key, account_number, credit_limit, registered_at, updated_at
        FROM parties WHERE identity = $1`, []byte(id))
	out := Record{Identity: id.Clone()}
	var kind string
	if err := row.Scan(&kind, &out.PublicKey, &out.AccountNumber, &out.CreditLimit, &out.RegisteredAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", protocol.ErrUnknownIdentity, id)
		}
		return Record{}, err
	}
	out.Kind = Kind(kind)
	out.RegisteredAt = out.RegisteredAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

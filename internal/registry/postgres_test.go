package registry

import (
	"context"
	"os"
	"testing"

	"github.com/congo-pay/payword/internal/infra"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/migrations"
)

func TestPostgresRepositoryUpsert(t *testing.T) {
	url := os.Getenv("PAYWORD_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PAYWORD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := migrations.Up(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewPostgresRepository(pool)
	f := newFixture(t, repo)
	reg := f.registration(t, KindUser, "pg-alice", 41, 10)
	if _, err := pool.Exec(ctx, `DELETE FROM parties WHERE identity = $1`, []byte(reg.Identity)); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	rec, created, err := repo.Upsert(ctx, Record{Identity: reg.Identity, Kind: KindUser, PublicKey: reg.PublicKey, AccountNumber: 41, CreditLimit: 10})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	again := f.registration(t, KindUser, "x", 77, 77)
	rec, created, err = repo.Upsert(ctx, Record{Identity: reg.Identity, Kind: KindUser, PublicKey: again.PublicKey, AccountNumber: 77, CreditLimit: 77})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if rec.AccountNumber != 41 || rec.CreditLimit != 10 || !keys.SamePublic(rec.PublicKey, again.PublicKey) {
		t.Fatalf("unexpected record after re-registration: %+v", rec)
	}
}

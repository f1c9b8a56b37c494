package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func openAccounts(t *testing.T, l Ledger, codes ...string) {
	t.Helper()
	for _, code := range codes {
		if err := l.EnsureAccount(context.Background(), code); err != nil {
			t.Fatalf("ensure account %s: %v", code, err)
		}
	}
}

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	user, vendor := AccountCode(1), AccountCode(2)
	openAccounts(t, l, user, vendor)

	if _, err := l.Deposit(ctx, user, "open-1", 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	res, err := l.Transfer(ctx, TransferInput{From: user, To: vendor, Kind: KindRedeem, ClientTxID: "root-1", Amount: 1_500})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.FromBalance != 8_500 {
		t.Fatalf("expected from balance 8500, got %d", res.FromBalance)
	}
	if res.ToBalance != 1_500 {
		t.Fatalf("expected to balance 1500, got %d", res.ToBalance)
	}
	if total := Total(l); total != 0 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1", "account:2")
	SeedBalance(l, "account:1", 5_000)

	in := TransferInput{From: "account:1", To: "account:2", Kind: KindRedeem, ClientTxID: "dup", Amount: 500}
	if _, err := l.Transfer(ctx, in); err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	res, err := l.Transfer(ctx, in)
	if err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if res.FromBalance != 4_500 {
		t.Fatalf("duplicate must report the first result, got %+v", res)
	}
	if bal, _ := l.Balance(ctx, "account:1"); bal != 4_500 {
		t.Fatalf("duplicate moved funds, balance=%d", bal)
	}
}

func TestInMemoryLedger_Overdraft(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1", "account:2")

	in := TransferInput{From: "account:1", To: "account:2", Kind: KindRedeem, Amount: 60, Overdraft: 100}
	in.ClientTxID = "a"
	if _, err := l.Transfer(ctx, in); err != nil {
		t.Fatalf("first transfer within credit: %v", err)
	}
	in.ClientTxID = "b"
	if _, err := l.Transfer(ctx, in); err != ErrInsufficientFunds {
		t.Fatalf("expected insufficient funds beyond credit, got %v", err)
	}
	in.ClientTxID = "c"
	in.Amount = 40
	res, err := l.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("transfer up to the limit: %v", err)
	}
	if res.FromBalance != -100 {
		t.Fatalf("expected balance -100, got %d", res.FromBalance)
	}
}

func TestInMemoryLedger_UnknownAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1")

	_, err := l.Transfer(ctx, TransferInput{From: "account:1", To: "account:9", Kind: KindRedeem, ClientTxID: "x", Amount: 1, Overdraft: 10})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := l.Balance(ctx, "account:9"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestInMemoryLedger_RejectsInvalidInput(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1", "account:2")

	cases := map[string]TransferInput{
		"zero amount": {From: "account:1", To: "account:2", Kind: KindRedeem, ClientTxID: "z"},
		"self":        {From: "account:1", To: "account:1", Kind: KindRedeem, ClientTxID: "s", Amount: 1},
		"missing tx":  {From: "account:1", To: "account:2", Kind: KindRedeem, Amount: 1},
		"negative od": {From: "account:1", To: "account:2", Kind: KindRedeem, ClientTxID: "n", Amount: 1, Overdraft: -1},
	}
	for name, in := range cases {
		if _, err := l.Transfer(ctx, in); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestInMemoryLedger_ConcurrentTransfers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1", "account:2")
	if _, err := l.Deposit(ctx, "account:1", "open", 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txID := fmt.Sprintf("tx-%d", i)
			in := TransferInput{From: "account:1", To: "account:2", Kind: KindRedeem, ClientTxID: txID, Amount: amount}
			if _, err := l.Transfer(ctx, in); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if total := Total(l); total != 0 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", total)
	}
	if bal, _ := l.Balance(ctx, "account:2"); bal != workers*amount {
		t.Fatalf("expected vendor balance %d, got %d", workers*amount, bal)
	}
}

func TestInMemoryLedger_Deposit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	openAccounts(t, l, "account:1")

	res, err := l.Deposit(ctx, "account:1", "opening", 2_000)
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if res.ToBalance != 2_000 || res.FromBalance != -2_000 {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if _, err := l.Deposit(ctx, "account:1", "opening", 2_000); err != ErrDuplicateTransaction {
		t.Fatalf("expected duplicate deposit error, got %v", err)
	}
}

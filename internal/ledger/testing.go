package ledger

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory ledger.
func SeedBalance(l Ledger, code string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}

// Total sums every in-memory balance, including the funding account. A
// balanced ledger always totals zero.
func Total(l Ledger) int64 {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return 0
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var total int64
	for _, b := range mem.balances {
		total += b
	}
	return total
}

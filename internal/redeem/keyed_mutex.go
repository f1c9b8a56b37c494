package redeem

import (
	"sync"

	"github.com/congo-pay/payword/internal/hashchain"
)

// keyedMutex serializes callers per chain root. Unrelated roots never contend
// beyond the short critical section that finds the entry.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[hashchain.Payword]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[hashchain.Payword]*keyedEntry)}
}

// Lock blocks until root is free and returns its unlock function.
func (k *keyedMutex) Lock(root hashchain.Payword) func() {
	k.mu.Lock()
	e, ok := k.entries[root]
	if !ok {
		e = &keyedEntry{}
		k.entries[root] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, root)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

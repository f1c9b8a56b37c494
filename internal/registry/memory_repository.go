package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/congo-pay/payword/internal/protocol"
)

type memoryRepository struct {
	mu      sync.RWMutex
	parties map[string]Record
}

// NewMemoryRepository builds an in-memory registry used in development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{parties: make(map[string]Record)}
}

func (r *memoryRepository) Upsert(_ context.Context, rec Record) (Record, bool, error) {
	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.Identity.Key()
	if existing, ok := r.parties[key]; ok {
		existing.PublicKey = append([]byte(nil), rec.PublicKey...)
		existing.UpdatedAt = now
		r.parties[key] = existing
		return existing, false, nil
	}
	rec.Identity = rec.Identity.Clone()
	rec.PublicKey = append([]byte(nil), rec.PublicKey...)
	rec.RegisteredAt = now
	rec.UpdatedAt = now
	r.parties[key] = rec
	return rec, true, nil
}

func (r *memoryRepository) Find(_ context.Context, id protocol.Identity) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.parties[id.Key()]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", protocol.ErrUnknownIdentity, id)
	}
	return rec, nil
}

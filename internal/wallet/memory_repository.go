package wallet

import "sync"

// Store keeps the wallet's certificate between runs. The leveldb-backed
// keys.Keystore implements it.
type Store interface {
	PutBlob(name string, value []byte) error
	Blob(name string) ([]byte, bool, error)
}

type memoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore constructs an in-memory store for tests.
func NewMemoryStore() Store {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (s *memoryStore) PutBlob(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Blob(name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.blobs[name]
	return v, ok, nil
}

package keys

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Keystore persists key pairs in LevelDB, keyed by scheme and owner name.
type Keystore struct {
	db *leveldb.DB
}

// OpenKeystore opens (or creates) a keystore directory. An empty path gives a
// throwaway in-memory keystore.
func OpenKeystore(path string) (*Keystore, error) {
	if path == "" {
		db, err := leveldb.Open(storage.NewMemStorage(), nil)
		if err != nil {
			return nil, fmt.Errorf("open in-memory keystore: %w", err)
		}
		return &Keystore{db: db}, nil
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", path, err)
	}
	return &Keystore{db: db}, nil
}

// NewKeystore wraps an already opened database.
func NewKeystore(db *leveldb.DB) *Keystore {
	return &Keystore{db: db}
}

func keyName(s sign.Scheme, owner string) []byte {
	return []byte("keys/" + s.Name() + "/" + owner)
}

// LoadOrGenerate returns the stored key pair for owner, generating and storing
// one on first use.
func (ks *Keystore) LoadOrGenerate(s sign.Scheme, owner string) (*KeyPair, bool, error) {
	raw, err := ks.db.Get(keyName(s, owner), nil)
	switch {
	case err == nil:
		kp, err := FromPrivate(s, raw)
		return kp, false, err
	case !errors.Is(err, leveldb.ErrNotFound):
		return nil, false, fmt.Errorf("load key %s: %w", owner, err)
	}

	kp, err := Generate(s)
	if err != nil {
		return nil, false, err
	}
	encoded, err := kp.marshalPrivate()
	if err != nil {
		return nil, false, fmt.Errorf("marshal private key: %w", err)
	}
	if err := ks.db.Put(keyName(s, owner), encoded, nil); err != nil {
		return nil, false, fmt.Errorf("store key %s: %w", owner, err)
	}
	return kp, true, nil
}

// PutBlob stores an opaque value, used for certificates and similar artifacts.
func (ks *Keystore) PutBlob(name string, value []byte) error {
	return ks.db.Put([]byte("blob/"+name), value, nil)
}

// Blob loads a value stored by PutBlob. ok is false when absent.
func (ks *Keystore) Blob(name string) ([]byte, bool, error) {
	v, err := ks.db.Get([]byte("blob/"+name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Close releases the database.
func (ks *Keystore) Close() error {
	return ks.db.Close()
}

package redeem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/payword/internal/hashchain"
)

// Store records which chain roots were redeemed. Claim reserves a root before
// settlement and reports false if it is already claimed or redeemed; Confirm
// makes the claim permanent; Release drops a claim whose settlement failed.
type Store interface {
	Claim(ctx context.Context, root hashchain.Payword) (bool, error)
	Confirm(ctx context.Context, root hashchain.Payword, txID string) error
	Release(ctx context.Context, root hashchain.Payword) error
}

type memoryStore struct {
	mu    sync.Mutex
	roots map[hashchain.Payword]string
}

// NewMemoryStore returns a process-local store.
func NewMemoryStore() Store {
	return &memoryStore{roots: make(map[hashchain.Payword]string)}
}

const claimPending = "pending"

func (s *memoryStore) Claim(_ context.Context, root hashchain.Payword) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[root]; ok {
		return false, nil
	}
	s.roots[root] = claimPending
	return true, nil
}

func (s *memoryStore) Confirm(_ context.Context, root hashchain.Payword, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[root] = txID
	return nil
}

func (s *memoryStore) Release(_ context.Context, root hashchain.Payword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roots[root] == claimPending {
		delete(s.roots, root)
	}
	return nil
}

const redisPrefix = "payword:redeemed:v1:"

// RedisStore shares redeemed roots across broker instances. Pending claims
// expire after claimTTL so a crashed settlement does not pin a root forever.
type RedisStore struct {
	client   *redis.Client
	claimTTL time.Duration
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client, claimTTL time.Duration) *RedisStore {
	if claimTTL <= 0 {
		claimTTL = time.Minute
	}
	return &RedisStore{client: client, claimTTL: claimTTL}
}

func redisKey(root hashchain.Payword) string {
	return redisPrefix + root.String()
}

func (s *RedisStore) Claim(ctx context.Context, root hashchain.Payword) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKey(root), claimPending, s.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim root %s: %w", root, err)
	}
	return ok, nil
}

func (s *RedisStore) Confirm(ctx context.Context, root hashchain.Payword, txID string) error {
	if err := s.client.Set(ctx, redisKey(root), txID, 0).Err(); err != nil {
		return fmt.Errorf("confirm root %s: %w", root, err)
	}
	return nil
}

// Release deletes the key only while it still holds the pending marker.
func (s *RedisStore) Release(ctx context.Context, root hashchain.Payword) error {
	key := redisKey(root)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) || (err == nil && v != claimPending) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("release root %s: %w", root, err)
	}
	return nil
}

// Package infra opens the Postgres and Redis backends shared by the services.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const applicationName = "payword"

// Stores holds the optional shared backends of a process. Nil fields mean the
// in-memory implementations are used instead.
type Stores struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// OpenStores connects to whichever of Postgres and Redis is configured. When
// required is set both must be configured.
func OpenStores(ctx context.Context, databaseURL, redisURL string, required bool) (*Stores, error) {
	if required {
		if databaseURL == "" {
			return nil, errors.New("DATABASE_URL must be set")
		}
		if redisURL == "" {
			return nil, errors.New("REDIS_URL must be set")
		}
	}

	s := &Stores{}
	if databaseURL != "" {
		db, err := NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		s.DB = db
	}
	if redisURL != "" {
		cache, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Cache = cache
	}
	return s, nil
}

// Close releases every open backend.
func (s *Stores) Close() error {
	var errs []error
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}


// NewPostgresPool connects to Postgres and verifies connectivity. Sessions are
// tagged with the application name so ledger locks are attributable in
// pg_stat_activity.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// NewRedisClient connects to Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

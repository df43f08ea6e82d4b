// Package store is the PostgreSQL persistence layer. Identity for an
// automation is (org_id, platform, external_id); everything else is
// overwritten on re-discovery.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() { s.Pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }

// discoveryLockKey scopes the advisory lock that keeps concurrent discovery
// runs from interleaving upserts for the same org.
const discoveryLockKey int64 = 0x5ca0d15c

// AcquireDiscoveryLock takes the org-wide discovery advisory lock. It
// returns false without error when another run holds it.
func (s *Store) AcquireDiscoveryLock(ctx context.Context) (bool, func(), error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return false, nil, err
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, discoveryLockKey).Scan(&locked); err != nil {
		conn.Release()
		return false, nil, err
	}
	if !locked {
		conn.Release()
		return false, nil, nil
	}

	release := func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, discoveryLockKey)
		conn.Release()
	}
	return true, release, nil
}

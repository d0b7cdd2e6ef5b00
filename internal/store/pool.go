// Package store is the concrete Postgres adapter for the substrate
// pipeline: schema management, bulk writes for the seven record kinds, and
// the streaming reads the atom lookup and substrate caches pre-populate
// from.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool. One Store is shared across the flusher's
// workers; each worker reserves a connection from the pool for the
// lifetime of one transaction, giving each worker its own connection
// without the package hand-rolling a pool itself.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, applies this lineage's conservative pool defaults, and
// pings the resulting pool before returning.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgxpool.Pool for callers that need direct
// access to it (e.g. tests querying a table after WriteBatch).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Package store implements the durable, transactional record store:
// the system of record for languages, sessions, and executions.
// Nothing here mutates a row it does not own
// — the worker writes executions, admission writes executions and
// reads sessions, and nothing but `codeexec migrate` ever writes
// languages.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a pgx connection pool. All methods take a context and
// return wrapped errors; callers decide retry policy.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies connectivity with a ping,
// following the fail-fast init convention used by the other process
// clients in this service.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema. It is idempotent: every
// statement uses IF NOT EXISTS / OR REPLACE / a guarded DO block, and
// each trigger is dropped if present before it is created.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

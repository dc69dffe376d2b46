// Package store persists sessions and feedback in Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agenda_sessions (
		id         TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS agenda_sessions_updated_at_idx ON agenda_sessions (updated_at)`,
	`CREATE TABLE IF NOT EXISTS agenda_feedback (
		id                  UUID PRIMARY KEY,
		session_id          TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		last_user_prompt    TEXT NOT NULL,
		chat_history        JSONB NOT NULL,
		incorrect_response  JSONB,
		user_correction     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS agenda_feedback_created_at_idx ON agenda_feedback (created_at DESC)`,
}

// EnsureSchema creates the tables if they are missing. It is safe to run on
// every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/agenda/internal/conversation"
)

// SessionStore keeps conversation sessions as JSONB rows. Sessions idle longer
// than the TTL load as fresh ones and are removed by Sweep.
type SessionStore struct {
	db     *Store
	ttl    time.Duration
	logger *slog.Logger
}

func (s *Store) Sessions(ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{db: s, ttl: ttl, logger: logger}
}

func (ss *SessionStore) Load(ctx context.Context, id string) (*conversation.Session, error) {
	var (
		data      []byte
		updatedAt time.Time
	)
	err := ss.db.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM agenda_sessions WHERE id = $1`, id,
	).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.NewSession(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session %s: %w", id, err)
	}
	if ss.ttl > 0 && time.Since(updatedAt) > ss.ttl {
		return conversation.NewSession(id), nil
	}

	var s conversation.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (ss *SessionStore) Save(ctx context.Context, s *conversation.Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	_, err = ss.db.pool.Exec(ctx, `
		INSERT INTO agenda_sessions (id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET data = $2, updated_at = $3`,
		s.ID, data, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.ID, err)
	}
	return nil
}

func (ss *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := ss.db.pool.Exec(ctx, `DELETE FROM agenda_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Sweep deletes sessions idle longer than the TTL.
func (ss *SessionStore) Sweep(ctx context.Context) (int64, error) {
	if ss.ttl <= 0 {
		return 0, nil
	}
	tag, err := ss.db.pool.Exec(ctx,
		`DELETE FROM agenda_sessions WHERE updated_at < $1`, time.Now().Add(-ss.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Run sweeps every interval until ctx is done.
func (ss *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ss.Sweep(ctx)
			if err != nil {
				ss.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				ss.logger.Debug("idle sessions dropped", "count", n)
			}
		}
	}
}

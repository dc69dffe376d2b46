package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/agenda/internal/feedback"
)

// SaveFeedback inserts one correction record.
func (s *Store) SaveFeedback(ctx context.Context, r feedback.Record) error {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.New()
	}
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	var payload []byte
	if r.Payload != nil {
		if payload, err = json.Marshal(r.Payload); err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO agenda_feedback (id, session_id, created_at, last_user_prompt, chat_history, incorrect_response, user_correction)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, r.SessionID, r.Timestamp, r.LastUserPrompt, history, payload, r.Correction,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// RecentFeedback returns up to n most recent records, oldest first.
func (s *Store) RecentFeedback(ctx context.Context, n int) ([]feedback.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, created_at, last_user_prompt, chat_history, incorrect_response, user_correction
		FROM agenda_feedback
		ORDER BY created_at DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []feedback.Record
	for rows.Next() {
		var (
			r       feedback.Record
			id      uuid.UUID
			history []byte
			payload []byte
		)
		if err := rows.Scan(&id, &r.SessionID, &r.Timestamp, &r.LastUserPrompt, &history, &payload, &r.Correction); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		r.ID = id.String()
		if err := json.Unmarshal(history, &r.History); err != nil {
			return nil, fmt.Errorf("decode chat history %s: %w", r.ID, err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &r.Payload); err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Package feedback records user corrections of translator answers. Recent
// corrections are fed back into the translator prompt as worked examples.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/hermes"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

// Record is one correction together with the context that produced it.
type Record struct {
	ID             string              `json:"id"`
	Timestamp      time.Time           `json:"timestamp"`
	SessionID      string              `json:"session_id"`
	LastUserPrompt string              `json:"last_user_prompt"`
	History        []conversation.Turn `json:"chat_history"`
	Payload        *intent.Payload     `json:"incorrect_assistant_response_json,omitempty"`
	Correction     string              `json:"user_correction"`
}

// NewRecord captures the session's current context for a correction.
func NewRecord(s *conversation.Session, correction string) Record {
	return Record{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		SessionID:      s.ID,
		LastUserPrompt: s.LastUserText(),
		History:        append([]conversation.Turn(nil), s.History...),
		Payload:        s.LastPayload,
		Correction:     correction,
	}
}

type Sink interface {
	SaveFeedback(ctx context.Context, r Record) error
}

// Source returns up to n most recent records, oldest first.
type Source interface {
	RecentFeedback(ctx context.Context, n int) ([]Record, error)
}

// Fanout writes to a primary sink and mirrors to secondaries. Only a primary
// failure fails the write; secondary failures are logged.
type Fanout struct {
	primary     Sink
	secondaries []Sink
	logger      *slog.Logger
}

func NewFanout(logger *slog.Logger, primary Sink, secondaries ...Sink) *Fanout {
	return &Fanout{primary: primary, secondaries: secondaries, logger: logger}
}

func (f *Fanout) SaveFeedback(ctx context.Context, r Record) error {
	if err := f.primary.SaveFeedback(ctx, r); err != nil {
		return err
	}
	var errs []error
	for _, s := range f.secondaries {
		if err := s.SaveFeedback(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		f.logger.Warn("feedback mirror failed", "record_id", r.ID, "error", err)
	}
	return nil
}

// BusSink publishes corrections on the event bus.
type BusSink struct {
	pub hermes.Publisher
}

func NewBusSink(pub hermes.Publisher) *BusSink {
	return &BusSink{pub: pub}
}

func (b *BusSink) SaveFeedback(_ context.Context, r Record) error {
	ev := hermes.FeedbackCorrection{
		RecordID:   r.ID,
		SessionID:  r.SessionID,
		Prompt:     r.LastUserPrompt,
		Correction: r.Correction,
		Timestamp:  r.Timestamp,
	}
	if r.Payload != nil {
		ev.Intent = string(r.Payload.Intent)
	}
	return b.pub.Publish(hermes.SubjectFeedbackCorrection, ev)
}

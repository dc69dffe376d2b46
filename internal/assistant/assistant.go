// Package assistant runs one conversational turn: it resolves a pending
// confirmation or asks the translator for an intent, dispatches it to the
// matching calendar operation and answers in Portuguese.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/hermes"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

const emptyMessage = "Recebi uma mensagem vazia."

// ErrFeedbackDisabled is returned by SaveFeedback when no sink is configured.
var ErrFeedbackDisabled = errors.New("feedback capture disabled")

// Translator turns the bounded history into an intent payload. It never fails.
type Translator interface {
	Translate(ctx context.Context, history []conversation.Turn) intent.Payload
}

type Options struct {
	HistoryLimit         int
	ClearHistoryOnAction bool
	ConflictCheck        bool
	PendingTTL           time.Duration
}

type Deps struct {
	Translator Translator
	Backend    calendar.Backend
	Normalizer *timerange.Normalizer
	Sessions   conversation.Store
	Bus        hermes.Publisher
	Feedback   feedback.Sink
	Logger     *slog.Logger
}

type Assistant struct {
	translator Translator
	backend    calendar.Backend
	norm       *timerange.Normalizer
	sessions   conversation.Store
	bus        hermes.Publisher
	feedback   feedback.Sink
	opts       Options
	logger     *slog.Logger
	locks      *keyedMutex
	handlers   map[intent.Intent]handlerFunc
}

// Reply is what the caller shows the user.
type Reply struct {
	Text      string
	SessionID string
	EventLink string
	Payload   *intent.Payload
}

func New(d Deps, opts Options) *Assistant {
	if d.Bus == nil {
		d.Bus = hermes.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	a := &Assistant{
		translator: d.Translator,
		backend:    d.Backend,
		norm:       d.Normalizer,
		sessions:   d.Sessions,
		bus:        d.Bus,
		feedback:   d.Feedback,
		opts:       opts,
		logger:     d.Logger,
		locks:      newKeyedMutex(),
	}
	a.handlers = a.handlerTable()
	return a
}

// result is a handler's outcome before it is recorded in the session.
type result struct {
	text    string
	link    string
	mutated bool
}

// HandleMessage processes one utterance for sessionID. Errors are returned
// only when the session itself cannot be loaded or saved; every calendar or
// translator failure becomes a Portuguese apology in the reply.
func (a *Assistant) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: emptyMessage, SessionID: sessionID}, nil
	}

	unlock := a.locks.Lock(sessionID)
	defer unlock()

	start := time.Now()
	s, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	s.Append(conversation.User, text, a.opts.HistoryLimit)

	if s.Pending != nil && s.Pending.Expired(a.norm.Now(), a.opts.PendingTTL) {
		a.logger.Info("pending action expired", "session_id", s.ID, "kind", s.Pending.Kind)
		s.Pending = nil
	}

	var (
		out     result
		handled intent.Intent
		payload *intent.Payload
	)
	if s.Pending != nil {
		handled = intent.Confirm
		out = a.resolvePending(ctx, s, text)
	} else {
		p := a.translator.Translate(ctx, s.History)
		payload = &p
		s.LastPayload = payload
		handled = p.Intent
		out = a.dispatch(ctx, s, p)
	}

	s.Append(conversation.Assistant, out.text, a.opts.HistoryLimit)
	if out.mutated && a.opts.ClearHistoryOnAction {
		s.History = nil
	}

	if err := a.sessions.Save(ctx, s); err != nil {
		return Reply{}, fmt.Errorf("save session %s: %w", s.ID, err)
	}

	ev := hermes.TurnCompleted{
		SessionID:  s.ID,
		Intent:     string(handled),
		DurationMS: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if s.Pending != nil {
		ev.Pending = string(s.Pending.Kind)
	}
	a.publish(hermes.SubjectTurnCompleted, ev)

	a.logger.Info("turn handled",
		"session_id", s.ID,
		"intent", handled,
		"pending", s.Pending != nil,
		"elapsed", time.Since(start),
	)
	return Reply{Text: out.text, SessionID: s.ID, EventLink: out.link, Payload: payload}, nil
}

// Reset forgets everything about sessionID.
func (a *Assistant) Reset(ctx context.Context, sessionID string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	a.logger.Info("session reset", "session_id", sessionID)
	return nil
}

// SaveFeedback records a correction of the session's last translator answer.
func (a *Assistant) SaveFeedback(ctx context.Context, sessionID, correction string) (feedback.Record, error) {
	if a.feedback == nil {
		return feedback.Record{}, ErrFeedbackDisabled
	}

	unlock := a.locks.Lock(sessionID)
	defer unlock()

	s, err := a.sessions.Load(ctx, sessionID)
	if err != nil {
		return feedback.Record{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	r := feedback.NewRecord(s, strings.TrimSpace(correction))
	if err := a.feedback.SaveFeedback(ctx, r); err != nil {
		return feedback.Record{}, fmt.Errorf("save feedback: %w", err)
	}
	a.logger.Info("feedback saved", "session_id", sessionID, "record_id", r.ID)
	return r, nil
}

func (a *Assistant) publish(subject string, data any) {
	if err := a.bus.Publish(subject, data); err != nil {
		a.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func (a *Assistant) publishAction(s *conversation.Session, action string, ev calendar.Event) {
	a.publish(hermes.SubjectActionExecuted, hermes.ActionExecuted{
		SessionID: s.ID,
		Action:    action,
		EventID:   ev.ID,
		Summary:   ev.Title(),
		Start:     ev.Start.UTC(),
		End:       ev.End.UTC(),
		Timestamp: time.Now().UTC(),
	})
}

func (a *Assistant) local(t time.Time) time.Time {
	return t.In(a.norm.Location())
}

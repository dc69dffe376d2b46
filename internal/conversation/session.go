// Package conversation holds per-session state: the bounded turn history, the
// single pending action awaiting confirmation and the last translator payload.
package conversation

import (
	"context"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// PendingKind names what a confirmation will execute.
type PendingKind string

const (
	PendingDelete     PendingKind = "delete"
	PendingReschedule PendingKind = "reschedule"
	PendingConflict   PendingKind = "conflicting_creation"
)

// Candidate is an event a pending action may apply to, captured when the
// action was proposed.
type Candidate struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day,omitempty"`
}

// CandidateOf captures ev for a pending action.
func CandidateOf(ev calendar.Event) Candidate {
	return Candidate{ID: ev.ID, Summary: ev.Title(), Start: ev.Start, End: ev.End, AllDay: ev.AllDay}
}

// PendingAction is a proposed side effect waiting for the user's answer.
// Reschedules keep the friendly field map so the patch can be computed per
// candidate; conflicting creations keep the full request.
type PendingAction struct {
	Kind       PendingKind            `json:"kind"`
	CreatedAt  time.Time              `json:"created_at"`
	Candidates []Candidate            `json:"candidates,omitempty"`
	Fields     map[string]any         `json:"fields,omitempty"`
	Request    *calendar.EventRequest `json:"request,omitempty"`
	Conflicts  []Candidate            `json:"conflicts,omitempty"`
}

// Expired reports whether the action is older than ttl. A zero ttl never expires.
func (p *PendingAction) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(p.CreatedAt) > ttl
}

// Session is everything the assistant remembers about one conversation.
type Session struct {
	ID          string          `json:"id"`
	History     []Turn          `json:"history"`
	Pending     *PendingAction  `json:"pending,omitempty"`
	LastPayload *intent.Payload `json:"last_payload,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Append adds a turn and drops the oldest ones beyond limit. A limit below 1
// keeps everything.
func (s *Session) Append(role Role, text string, limit int) {
	s.History = append(s.History, Turn{Role: role, Text: text})
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}

// Reset forgets history, pending state and the last payload.
func (s *Session) Reset() {
	s.History = nil
	s.Pending = nil
	s.LastPayload = nil
}

// LastUserText returns the most recent user utterance, or "".
func (s *Session) LastUserText() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == User {
			return s.History[i].Text
		}
	}
	return ""
}

// Store persists sessions by id. Load returns a fresh session for unknown ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

package hermes

import "time"

const (
	SubjectTurnCompleted      = "agenda.turn.completed"
	SubjectActionExecuted     = "agenda.action.executed"
	SubjectFeedbackCorrection = "agenda.feedback.correction"
	SubjectAgentRegistered    = "agenda.agent.registered"

	// SubjectAll matches every agenda event.
	SubjectAll = "agenda.>"
)

// TurnCompleted is emitted once per handled utterance.
type TurnCompleted struct {
	SessionID  string    `json:"session_id"`
	Intent     string    `json:"intent"`
	Pending    string    `json:"pending,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ActionExecuted is emitted after each successful calendar mutation.
type ActionExecuted struct {
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"` // create | update | delete
	EventID   string    `json:"event_id"`
	Summary   string    `json:"summary"`
	Start     time.Time `json:"start,omitempty"`
	End       time.Time `json:"end,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackCorrection carries a user's correction of a translator answer so
// prompt tuning jobs can pick it up.
type FeedbackCorrection struct {
	RecordID   string    `json:"record_id"`
	SessionID  string    `json:"session_id"`
	Intent     string    `json:"intent,omitempty"`
	Prompt     string    `json:"prompt"`
	Correction string    `json:"correction"`
	Timestamp  time.Time `json:"timestamp"`
}

// AgentRegistered announces a starting instance.
type AgentRegistered struct {
	Agent      string    `json:"agent"`
	Port       int       `json:"port"`
	Backend    string    `json:"backend"`
	Translator string    `json:"translator"`
	Timestamp  time.Time `json:"timestamp"`
}

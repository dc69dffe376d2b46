// Package intent models the translator's output: an intent name, a loose
// entity object and an explanation, plus the typed entity variant each intent
// decodes into.
package intent

import (
	"strings"
)

// Intent names one action the assistant can take.
type Intent string

const (
	Create       Intent = "create_event"
	List         Intent = "list_events"
	Find         Intent = "find_event"
	Modify       Intent = "reschedule_or_modify_event"
	Cancel       Intent = "cancel_event"
	Availability Intent = "ask_availability"
	Confirm      Intent = "confirm_action"
	Abort        Intent = "cancel_action"
	Clarify      Intent = "clarify_details"
	Unknown      Intent = "unknown"
)

// DefaultExplanation is used when the translator omits one.
const DefaultExplanation = "Ok, entendi."

var known = map[Intent]struct{}{
	Create: {}, List: {}, Find: {}, Modify: {}, Cancel: {},
	Availability: {}, Confirm: {}, Abort: {}, Clarify: {}, Unknown: {},
}

var aliases = map[string]Intent{
	"clarification_needed": Clarify,
	"reschedule_event":     Modify,
	"modify_event":         Modify,
	"update_event":         Modify,
	"delete_event":         Cancel,
	"search_event":         Find,
	"search_events":        Find,
	"check_availability":   Availability,
	"confirm":              Confirm,
	"cancel":               Abort,
}

// Parse normalizes a raw intent string. Unrecognized names become Unknown.
func Parse(s string) Intent {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	if alias, ok := aliases[norm]; ok {
		return alias
	}
	if _, ok := known[Intent(norm)]; ok {
		return Intent(norm)
	}
	return Unknown
}

// KeepsPending reports whether the intent leaves a stored pending action alone.
func (i Intent) KeepsPending() bool {
	return i == Confirm || i == Abort || i == Clarify
}

// Payload is one translator answer.
type Payload struct {
	Intent      Intent         `json:"intent"`
	Entities    map[string]any `json:"entities"`
	Explanation string         `json:"explanation"`
}

// Fallback is the payload substituted for unusable translator output.
func Fallback() Payload {
	return Payload{
		Intent:      Unknown,
		Entities:    map[string]any{},
		Explanation: "Desculpe, não consegui entender o seu pedido. Pode reformular?",
	}
}

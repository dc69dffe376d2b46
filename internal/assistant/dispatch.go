package assistant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

const (
	apology        = "Desculpe, tive um problema ao acessar sua agenda. Tente novamente em instantes."
	nothingPending = "Não há nenhuma ação pendente para confirmar."
	notUnderstood  = "Não consegui entender os detalhes do pedido. Pode reformular?"
	askDetails     = "Pode me dar mais detalhes?"
)

type handlerFunc func(ctx context.Context, s *conversation.Session, p intent.Payload, e intent.Entities) (result, error)

func (a *Assistant) handlerTable() map[intent.Intent]handlerFunc {
	return map[intent.Intent]handlerFunc{
		intent.Create:       a.handleCreate,
		intent.List:         a.handleList,
		intent.Find:         a.handleFind,
		intent.Modify:       a.handleModify,
		intent.Cancel:       a.handleCancel,
		intent.Availability: a.handleAvailability,
		intent.Confirm:      a.handleNothingPending,
		intent.Abort:        a.handleNothingPending,
		intent.Clarify:      a.handleClarify,
		intent.Unknown:      a.handleUnknown,
	}
}

// fieldNames are the Portuguese names used when asking for missing entities.
var fieldNames = map[string]string{
	"summary":       "o título",
	"start_time":    "a data e hora de início",
	"end_time":      "o horário de término",
	"keywords":      "o nome do evento",
	"update_fields": "o que deve ser alterado",
}

func (a *Assistant) dispatch(ctx context.Context, s *conversation.Session, p intent.Payload) result {
	// HandleMessage resolves any live pending action before translating, so
	// this only clears one left behind by a caller that dispatches directly.
	if s.Pending != nil && !p.Intent.KeepsPending() {
		a.logger.Info("discarding stale pending action", "session_id", s.ID, "kind", s.Pending.Kind, "intent", p.Intent)
		s.Pending = nil
	}

	ents, err := intent.Decode(p)
	if err != nil {
		var missing *intent.MissingEntitiesError
		if errors.As(err, &missing) {
			a.logger.Info("missing entities", "session_id", s.ID, "intent", p.Intent, "missing", missing.Missing)
			return result{text: missingText(missing.Missing)}
		}
		a.logger.Warn("entity decode failed", "session_id", s.ID, "intent", p.Intent, "error", err)
		return result{text: notUnderstood}
	}

	h, ok := a.handlers[p.Intent]
	if !ok {
		h = a.handleUnknown
	}
	return a.guard(s, string(p.Intent), func() (result, error) {
		return h(ctx, s, p, ents)
	})
}

// guard runs fn as one failure boundary. Errors and panics become a reply and
// restore the pending action to what it was before fn ran.
func (a *Assistant) guard(s *conversation.Session, op string, fn func() (result, error)) (out result) {
	before := s.Pending
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("handler panic", "session_id", s.ID, "op", op, "panic", r, "stack", string(debug.Stack()))
			s.Pending = before
			out = result{text: apology}
		}
	}()

	out, err := fn()
	if err == nil {
		return out
	}
	s.Pending = before

	var dateErr *timerange.DateParseError
	if errors.As(err, &dateErr) {
		a.logger.Info("unparseable date", "session_id", s.ID, "op", op, "value", dateErr.Value)
		return result{text: fmt.Sprintf("Não consegui entender a data %q. Pode informar no formato dd/mm/aaaa e hh:mm?", dateErr.Value)}
	}
	a.logger.Error("calendar operation failed", "session_id", s.ID, "op", op, "error", err)
	return result{text: apology}
}

func missingText(keys []string) string {
	return fmt.Sprintf("Para continuar, preciso saber %s.", joinPT(fieldList(keys)))
}

func (a *Assistant) handleNothingPending(_ context.Context, _ *conversation.Session, _ intent.Payload, _ intent.Entities) (result, error) {
	return result{text: nothingPending}, nil
}

func (a *Assistant) handleClarify(_ context.Context, _ *conversation.Session, p intent.Payload, _ intent.Entities) (result, error) {
	if p.Explanation == "" || p.Explanation == intent.DefaultExplanation {
		return result{text: askDetails}, nil
	}
	return result{text: p.Explanation}, nil
}

func (a *Assistant) handleUnknown(_ context.Context, _ *conversation.Session, p intent.Payload, _ intent.Entities) (result, error) {
	if p.Explanation == "" || p.Explanation == intent.DefaultExplanation {
		return result{text: intent.Fallback().Explanation}, nil
	}
	return result{text: p.Explanation}, nil
}

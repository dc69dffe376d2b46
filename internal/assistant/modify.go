package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/textmatch"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

const nothingToChange = "Não entendi o que mudar no evento."

var errNothingToChange = errors.New("no recognized field to change")

func (a *Assistant) handleModify(ctx context.Context, s *conversation.Session, _ intent.Payload, e intent.Entities) (result, error) {
	m := e.(intent.ModifyEvent)
	r, err := a.searchWindow(m.SearchStart, m.SearchEnd)
	if err != nil {
		return result{}, err
	}
	found, err := a.search(ctx, m.Keywords, r)
	if err != nil {
		return result{}, err
	}
	if len(found) == 0 {
		return result{text: notFoundText(m.Keywords)}, nil
	}
	if m.Action == intent.ActionCancel {
		// An explicit cancel action on a single match needs no second question.
		if len(found) == 1 && !m.ConfirmationNeeded {
			return a.executeDelete(ctx, s, candidates(found))
		}
		return a.proposeDelete(s, found), nil
	}

	cands := candidates(found)
	// Validate the change against the first match before anything is stored.
	patch, err := a.buildPatch(cands[0], m.Fields)
	if errors.Is(err, errNothingToChange) {
		return result{text: nothingToChange}, nil
	}
	if err != nil {
		return result{}, err
	}

	if len(cands) > 1 {
		s.Pending = &conversation.PendingAction{
			Kind:       conversation.PendingReschedule,
			CreatedAt:  a.norm.Now(),
			Candidates: cands,
			Fields:     m.Fields,
		}
		return result{text: fmt.Sprintf(
			"Encontrei %d eventos com esses termos. Qual deles devo alterar?\n%s\nResponda com o número da opção, 'sim' para alterar todos ou 'não' para desistir.",
			len(cands), a.options(cands),
		)}, nil
	}

	if m.ConfirmationNeeded {
		s.Pending = &conversation.PendingAction{
			Kind:       conversation.PendingReschedule,
			CreatedAt:  a.norm.Now(),
			Candidates: cands,
			Fields:     m.Fields,
		}
		return result{text: fmt.Sprintf("Confirma a alteração de '%s' (%s)? %s (sim/não)",
			cands[0].Summary, a.when(cands[0].Start, cands[0].AllDay), a.describePatch(patch))}, nil
	}

	ev, err := a.applyPatch(ctx, s, cands[0], patch)
	if err != nil {
		return result{}, err
	}
	return a.updatedResult([]calendar.Event{*ev}), nil
}

func (a *Assistant) handleCancel(ctx context.Context, s *conversation.Session, _ intent.Payload, e intent.Entities) (result, error) {
	c := e.(intent.CancelEvent)
	r, err := a.searchWindow(c.SearchStart, c.SearchEnd)
	if err != nil {
		return result{}, err
	}
	found, err := a.search(ctx, c.Keywords, r)
	if err != nil {
		return result{}, err
	}
	if len(found) == 0 {
		return result{text: notFoundText(c.Keywords)}, nil
	}
	return a.proposeDelete(s, found), nil
}

// proposeDelete never deletes; it stores the matches and asks.
func (a *Assistant) proposeDelete(s *conversation.Session, found []calendar.Event) result {
	cands := candidates(found)
	s.Pending = &conversation.PendingAction{
		Kind:       conversation.PendingDelete,
		CreatedAt:  a.norm.Now(),
		Candidates: cands,
	}
	if len(cands) == 1 {
		return result{text: fmt.Sprintf("Encontrei o evento '%s' em %s. Deseja realmente cancelá-lo? (sim/não)",
			cands[0].Summary, a.when(cands[0].Start, cands[0].AllDay))}
	}
	return result{text: fmt.Sprintf(
		"Encontrei %d eventos com esses termos. Qual deles devo cancelar?\n%s\nResponda com o número da opção, 'sim' para cancelar todos ou 'não' para desistir.",
		len(cands), a.options(cands),
	)}
}

// buildPatch maps friendly field names onto a patch for c. A new start without
// a new end keeps the original duration; a date-only start keeps the original
// time of day.
func (a *Assistant) buildPatch(c conversation.Candidate, fields map[string]any) (calendar.Patch, error) {
	var patch calendar.Patch
	var newStart, newEnd *time.Time

	for key, v := range fields {
		switch textmatch.Fold(key) {
		case "summary", "title", "new_summary", "titulo":
			if s := stringField(v); s != "" {
				patch.Summary = &s
			}
		case "description", "descricao":
			s := stringField(v)
			patch.Description = &s
		case "location", "local":
			s := stringField(v)
			patch.Location = &s
		case "start_time", "start", "new_start_time":
			ref := stringField(v)
			if ref == "" {
				continue
			}
			t, err := a.norm.ParseInstant(ref)
			if err != nil {
				return calendar.Patch{}, err
			}
			if !a.norm.HasClock(ref) && !c.AllDay {
				orig := a.local(c.Start)
				t = time.Date(t.Year(), t.Month(), t.Day(), orig.Hour(), orig.Minute(), orig.Second(), 0, t.Location())
			}
			newStart = &t
		case "end_time", "end", "new_end_time":
			ref := stringField(v)
			if ref == "" {
				continue
			}
			t, err := a.norm.ParseInstant(ref)
			if err != nil {
				return calendar.Patch{}, err
			}
			newEnd = &t
		case "attendees", "participantes":
			emails, dropped := validEmails(listField(v))
			if len(dropped) > 0 {
				a.logger.Info("dropping invalid attendees", "dropped", dropped)
			}
			patch.Attendees = emails
		default:
			a.logger.Debug("ignoring unknown update field", "field", key)
		}
	}

	switch {
	case newStart != nil && newEnd == nil:
		start, end := timerange.Shift(c.Start, c.End, *newStart)
		newEnd = &end
		newStart = &start
	case newStart != nil && !newEnd.After(*newStart):
		end := newStart.Add(c.End.Sub(c.Start))
		newEnd = &end
	}
	if newStart != nil {
		u := newStart.UTC()
		patch.Start = &u
	}
	if newEnd != nil {
		u := newEnd.UTC()
		patch.End = &u
	}

	if patch.Empty() {
		return calendar.Patch{}, errNothingToChange
	}
	return patch, nil
}

func (a *Assistant) applyPatch(ctx context.Context, s *conversation.Session, c conversation.Candidate, patch calendar.Patch) (*calendar.Event, error) {
	ev, err := a.backend.Update(ctx, c.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", c.ID, err)
	}
	a.logger.Info("event updated", "session_id", s.ID, "event_id", ev.ID, "summary", ev.Title())
	a.publishAction(s, "update", *ev)
	return ev, nil
}

func (a *Assistant) updatedResult(events []calendar.Event) result {
	if len(events) == 1 {
		ev := events[0]
		return result{
			text:    fmt.Sprintf("O evento '%s' foi atualizado com sucesso. Agora: %s.", ev.Title(), a.when(ev.Start, ev.AllDay)),
			link:    ev.HTMLLink,
			mutated: true,
		}
	}
	return result{
		text:    fmt.Sprintf("%d eventos foram atualizados:\n%s", len(events), a.listLines(events)),
		mutated: true,
	}
}

func (a *Assistant) describePatch(p calendar.Patch) string {
	var parts []string
	if p.Summary != nil {
		parts = append(parts, fmt.Sprintf("novo título '%s'", *p.Summary))
	}
	if p.Start != nil {
		parts = append(parts, "novo horário "+a.when(*p.Start, false))
	}
	if p.End != nil && p.Start == nil {
		parts = append(parts, "novo término às "+timerange.Clock(a.local(*p.End)))
	}
	if p.Location != nil {
		parts = append(parts, fmt.Sprintf("local '%s'", *p.Location))
	}
	if p.Description != nil {
		parts = append(parts, "nova descrição")
	}
	if len(p.Attendees) > 0 {
		parts = append(parts, "convidar "+strings.Join(p.Attendees, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return capitalize(joinPT(parts)) + "."
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func listField(v any) []string {
	switch x := v.(type) {
	case string:
		return strings.FieldsFunc(x, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			switch it := item.(type) {
			case map[string]any:
				out = append(out, stringField(it["email"]))
			default:
				out = append(out, stringField(it))
			}
		}
		return out
	}
	return nil
}

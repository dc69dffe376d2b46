package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/textmatch"
)

const aborted = "Ok, ação cancelada."

// affirmatives are the folded replies that confirm a pending action. Anything
// else aborts it.
var affirmatives = map[string]struct{}{
	"sim": {}, "s": {}, "claro": {}, "pode": {}, "ok": {}, "okay": {},
	"confirmo": {}, "confirma": {}, "confirmar": {}, "isso": {}, "yes": {},
	"y": {}, "pode sim": {}, "sim pode": {}, "com certeza": {}, "isso mesmo": {},
	"pode ser": {}, "manda ver": {}, "positivo": {}, "certo": {}, "beleza": {},
	"sim por favor": {}, "pode confirmar": {}, "confirmado": {}, "fechado": {},
}

// ordinalWords leaves out "segunda", "quarta" and "quinta": options are listed
// with their weekday, so those replies name a day, not a position.
var ordinalWords = map[string]int{
	"primeiro": 1, "primeira": 1, "segundo": 2, "terceiro": 3, "terceira": 3,
	"quarto": 4, "quinto": 5,
}

var weekdayWords = map[string]time.Weekday{
	"domingo": time.Sunday, "dom": time.Sunday,
	"segunda": time.Monday, "seg": time.Monday,
	"terca": time.Tuesday, "ter": time.Tuesday,
	"quarta": time.Wednesday, "qua": time.Wednesday,
	"quinta": time.Thursday, "qui": time.Thursday,
	"sexta": time.Friday, "sex": time.Friday,
	"sabado": time.Saturday, "sab": time.Saturday,
}

// choicePrefixes are stripped, longest first, before a choice word is looked up.
var choicePrefixes = []string{
	"a de ", "o de ", "a da ", "o da ", "a do ", "o do ",
	"na ", "no ", "de ", "da ", "do ", "a ", "o ",
}

var ordinalPattern = regexp.MustCompile(`^(?:(?:o|a|opcao|numero|n[o°º]?)\s*)?#?\s*(\d{1,2})$`)

func normalizeReply(text string) string {
	s := textmatch.Fold(text)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '!', '?', ',', ';', ':':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// IsAffirmative reports whether text confirms a pending action.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[normalizeReply(text)]
	return ok
}

func choiceWord(s string) string {
	for _, p := range choicePrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	s = strings.TrimSuffix(s, "-feira")
	return strings.TrimSuffix(s, " feira")
}

// parseOrdinal reads a choice such as "2", "o 2", "#2" or "o segundo".
func parseOrdinal(text string) (int, bool) {
	s := normalizeReply(text)
	if m := ordinalPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	n, ok := ordinalWords[choiceWord(s)]
	return n, ok
}

// parseWeekday reads a reply naming a day, such as "a segunda" or "na terça-feira".
func parseWeekday(text string) (time.Weekday, bool) {
	wd, ok := weekdayWords[choiceWord(normalizeReply(text))]
	return wd, ok
}

// onWeekday returns the indexes of the candidates starting on wd.
func (a *Assistant) onWeekday(cands []conversation.Candidate, wd time.Weekday) []int {
	var idx []int
	for i, c := range cands {
		if a.local(c.Start).Weekday() == wd {
			idx = append(idx, i)
		}
	}
	return idx
}

// resolvePending consumes the session's pending action. The stored action is
// cleared whatever the outcome.
func (a *Assistant) resolvePending(ctx context.Context, s *conversation.Session, text string) result {
	p := s.Pending
	s.Pending = nil

	if len(p.Candidates) > 1 {
		if n, ok := parseOrdinal(text); ok {
			if n < 1 || n > len(p.Candidates) {
				a.logger.Info("pending choice out of range", "session_id", s.ID, "choice", n, "options", len(p.Candidates))
				return result{text: fmt.Sprintf("A opção %d não existe. %s", n, aborted)}
			}
			p.Candidates = []conversation.Candidate{p.Candidates[n-1]}
			return a.guard(s, string(p.Kind), func() (result, error) { return a.execute(ctx, s, p) })
		}
		if wd, ok := parseWeekday(text); ok {
			idx := a.onWeekday(p.Candidates, wd)
			switch len(idx) {
			case 0:
				a.logger.Info("pending choice matches no weekday", "session_id", s.ID, "weekday", wd)
				return result{text: "Nenhuma das opções cai nesse dia. " + aborted}
			case 1:
				p.Candidates = []conversation.Candidate{p.Candidates[idx[0]]}
				return a.guard(s, string(p.Kind), func() (result, error) { return a.execute(ctx, s, p) })
			default:
				a.logger.Info("pending choice matches several options", "session_id", s.ID, "weekday", wd, "matches", len(idx))
				return result{text: "Mais de uma opção cai nesse dia. " + aborted}
			}
		}
	}

	if !IsAffirmative(text) {
		a.logger.Info("pending action aborted", "session_id", s.ID, "kind", p.Kind)
		return result{text: aborted}
	}
	return a.guard(s, string(p.Kind), func() (result, error) { return a.execute(ctx, s, p) })
}

func (a *Assistant) execute(ctx context.Context, s *conversation.Session, p *conversation.PendingAction) (result, error) {
	switch p.Kind {
	case conversation.PendingDelete:
		return a.executeDelete(ctx, s, p.Candidates)
	case conversation.PendingReschedule:
		return a.executeReschedule(ctx, s, p.Candidates, p.Fields)
	case conversation.PendingConflict:
		if p.Request == nil {
			return result{}, errors.New("conflicting creation without a request")
		}
		return a.create(ctx, s, *p.Request)
	default:
		return result{}, fmt.Errorf("unknown pending kind %q", p.Kind)
	}
}

func (a *Assistant) executeDelete(ctx context.Context, s *conversation.Session, cands []conversation.Candidate) (result, error) {
	titles := make([]string, 0, len(cands))
	for _, c := range cands {
		err := a.backend.Delete(ctx, c.ID)
		switch {
		case errors.Is(err, calendar.ErrNotFound):
			a.logger.Info("event already gone", "session_id", s.ID, "event_id", c.ID)
		case err != nil && len(titles) == 0:
			return result{}, fmt.Errorf("delete event %s: %w", c.ID, err)
		case err != nil:
			a.logger.Error("delete failed after partial success", "session_id", s.ID, "event_id", c.ID, "done", len(titles), "error", err)
			return result{
				text: fmt.Sprintf("Cancelei %s, mas não consegui cancelar '%s'. Tente novamente em instantes.",
					joinPT(quoted(titles)), c.Summary),
				mutated: true,
			}, nil
		default:
			a.logger.Info("event deleted", "session_id", s.ID, "event_id", c.ID, "summary", c.Summary)
			a.publishAction(s, "delete", calendar.Event{ID: c.ID, Summary: c.Summary, Start: c.Start, End: c.End})
		}
		titles = append(titles, c.Summary)
	}

	if len(titles) == 1 {
		return result{text: fmt.Sprintf("O evento '%s' foi cancelado.", titles[0]), mutated: true}, nil
	}
	return result{text: fmt.Sprintf("Cancelei %d eventos: %s.", len(titles), joinPT(quoted(titles))), mutated: true}, nil
}

func (a *Assistant) executeReschedule(ctx context.Context, s *conversation.Session, cands []conversation.Candidate, fields map[string]any) (result, error) {
	updated := make([]calendar.Event, 0, len(cands))
	for _, c := range cands {
		patch, err := a.buildPatch(c, fields)
		if errors.Is(err, errNothingToChange) {
			return result{text: nothingToChange}, nil
		}
		if err != nil {
			return result{}, err
		}
		ev, err := a.applyPatch(ctx, s, c, patch)
		if err != nil {
			return result{}, err
		}
		updated = append(updated, *ev)
	}
	return a.updatedResult(updated), nil
}

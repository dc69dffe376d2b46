package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// validEmails keeps well-formed addresses and drops everything else.
func validEmails(in []string) (valid, dropped []string) {
	for _, s := range in {
		s = strings.TrimSpace(strings.TrimPrefix(s, "mailto:"))
		if s == "" {
			continue
		}
		if emailPattern.MatchString(s) {
			valid = append(valid, s)
		} else {
			dropped = append(dropped, s)
		}
	}
	return valid, dropped
}

func (a *Assistant) buildRequest(c intent.CreateEvent) (calendar.EventRequest, error) {
	start, err := a.norm.ParseInstant(c.StartTime)
	if err != nil {
		return calendar.EventRequest{}, err
	}
	end, err := a.norm.ParseInstant(c.EndTime)
	if err != nil {
		return calendar.EventRequest{}, err
	}
	if !end.After(start) {
		a.logger.Info("end not after start, assuming one hour", "start", start, "end", end)
		end = start.Add(time.Hour)
	}

	attendees, dropped := validEmails(c.Attendees)
	if len(dropped) > 0 {
		a.logger.Info("dropping invalid attendees", "dropped", dropped)
	}
	return calendar.EventRequest{
		Summary:     strings.TrimSpace(c.Summary),
		Description: c.Description,
		Location:    c.Location,
		Start:       start.UTC(),
		End:         end.UTC(),
		Attendees:   attendees,
		Conference:  bool(c.CreateConference),
	}, nil
}

// conflicts returns the events overlapping [start, end).
func (a *Assistant) conflicts(ctx context.Context, start, end time.Time) ([]calendar.Event, error) {
	events, err := a.backend.List(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list events for conflict check: %w", err)
	}
	var out []calendar.Event
	for _, ev := range events {
		evStart, evEnd := eventSpan(ev)
		if timerange.Overlaps(start, end, evStart, evEnd) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (a *Assistant) handleCreate(ctx context.Context, s *conversation.Session, _ intent.Payload, e intent.Entities) (result, error) {
	switch c := e.(type) {
	case intent.CreateEvents:
		return a.createBatch(ctx, s, c)
	case intent.CreateEvent:
		return a.createOne(ctx, s, c)
	default:
		return result{}, fmt.Errorf("unexpected create entities %T", e)
	}
}

func (a *Assistant) createOne(ctx context.Context, s *conversation.Session, c intent.CreateEvent) (result, error) {
	req, err := a.buildRequest(c)
	if err != nil {
		return result{}, err
	}

	if a.opts.ConflictCheck {
		clash, err := a.conflicts(ctx, req.Start, req.End)
		if err != nil {
			return result{}, err
		}
		if len(clash) > 0 {
			s.Pending = &conversation.PendingAction{
				Kind:      conversation.PendingConflict,
				CreatedAt: a.norm.Now(),
				Request:   &req,
				Conflicts: candidates(clash),
			}
			a.logger.Info("creation conflicts", "session_id", s.ID, "summary", req.Summary, "conflicts", len(clash))
			return result{text: fmt.Sprintf(
				"Atenção: '%s' em %s conflita com:\n%s\nDeseja agendar mesmo assim? (sim/não)",
				req.Summary, a.when(req.Start, false), a.candidateLines(s.Pending.Conflicts),
			)}, nil
		}
	}

	return a.create(ctx, s, req)
}

// create runs the backend call. It is reached exactly once per confirmed
// request, directly or from a resolved conflict.
func (a *Assistant) create(ctx context.Context, s *conversation.Session, req calendar.EventRequest) (result, error) {
	ev, err := a.backend.Create(ctx, req)
	if err != nil {
		return result{}, fmt.Errorf("create event %q: %w", req.Summary, err)
	}
	a.logger.Info("event created", "session_id", s.ID, "event_id", ev.ID, "summary", ev.Title())
	a.publishAction(s, "create", *ev)

	text := fmt.Sprintf("Evento '%s' criado com sucesso para %s!", ev.Title(), a.when(ev.Start, ev.AllDay))
	if ev.ConferenceLink != "" {
		text += "\nLink da videochamada: " + ev.ConferenceLink
	}
	return result{text: text, link: ev.HTMLLink, mutated: true}, nil
}

// createBatch creates each event independently. Conflicts are reported but
// do not block, and one failure never stops the rest.
func (a *Assistant) createBatch(ctx context.Context, s *conversation.Session, batch intent.CreateEvents) (result, error) {
	var created, failed []string
	var link string

	for i, c := range batch.Events {
		label := strings.TrimSpace(c.Summary)
		if label == "" {
			label = fmt.Sprintf("evento %d", i+1)
		}
		if missing := c.Missing(); len(missing) > 0 {
			failed = append(failed, fmt.Sprintf("• '%s': falta %s", label, joinPT(fieldList(missing))))
			continue
		}
		req, err := a.buildRequest(c)
		if err != nil {
			failed = append(failed, fmt.Sprintf("• '%s': data inválida", label))
			continue
		}

		var note string
		if a.opts.ConflictCheck {
			clash, err := a.conflicts(ctx, req.Start, req.End)
			if err != nil {
				a.logger.Warn("batch conflict check failed", "summary", req.Summary, "error", err)
			} else if len(clash) > 0 {
				titles := make([]string, len(clash))
				for j, ev := range clash {
					titles[j] = ev.Title()
				}
				note = fmt.Sprintf(" (conflita com %s)", joinPT(quoted(titles)))
			}
		}

		ev, err := a.backend.Create(ctx, req)
		if err != nil {
			a.logger.Error("batch create failed", "session_id", s.ID, "summary", req.Summary, "error", err)
			failed = append(failed, fmt.Sprintf("• '%s': erro ao criar na agenda", label))
			continue
		}
		a.publishAction(s, "create", *ev)
		if link == "" {
			link = ev.HTMLLink
		}
		created = append(created, fmt.Sprintf("• %s - %s%s", a.when(ev.Start, ev.AllDay), ev.Title(), note))
	}

	a.logger.Info("batch create", "session_id", s.ID, "requested", len(batch.Events), "created", len(created), "failed", len(failed))

	var sb strings.Builder
	switch {
	case len(failed) == 0:
		fmt.Fprintf(&sb, "Todos os %d eventos foram agendados:\n%s", len(created), strings.Join(created, "\n"))
	case len(created) == 0:
		fmt.Fprintf(&sb, "Nenhum evento foi agendado.\n%s", strings.Join(failed, "\n"))
	default:
		fmt.Fprintf(&sb, "Agendei %d de %d eventos:\n%s\nNão foi possível agendar:\n%s",
			len(created), len(batch.Events), strings.Join(created, "\n"), strings.Join(failed, "\n"))
	}
	return result{text: sb.String(), link: link, mutated: len(created) > 0}, nil
}

func fieldList(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		if n, ok := fieldNames[k]; ok {
			out[i] = n
		} else {
			out[i] = k
		}
	}
	return out
}

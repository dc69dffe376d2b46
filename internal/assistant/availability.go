package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

// minGap is the shortest free interval worth reporting.
const minGap = 15 * time.Minute

type interval struct {
	start, end time.Time
}

func (a *Assistant) handleAvailability(ctx context.Context, _ *conversation.Session, _ intent.Payload, e intent.Entities) (result, error) {
	av := e.(intent.AskAvailability)
	r, err := a.norm.ResolveWindow(av.StartTime, av.EndTime)
	if err != nil {
		return result{}, err
	}
	from, to := r.UTC()
	events, err := a.backend.List(ctx, from, to)
	if err != nil {
		return result{}, fmt.Errorf("list events for availability: %w", err)
	}
	calendar.SortByStart(events)

	var busy []calendar.Event
	for _, ev := range events {
		s, e := eventSpan(ev)
		if timerange.Overlaps(r.Start, r.End, s, e) {
			busy = append(busy, ev)
		}
	}
	if len(busy) == 0 {
		return result{text: fmt.Sprintf("Você está livre %s.", em(r.Label))}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, você tem compromissos:\n", capitalize(em(r.Label)))
	for _, ev := range busy {
		if ev.AllDay {
			start := a.local(ev.Start)
			fmt.Fprintf(&sb, "• %s (%s) %s - %s\n", timerange.DayMonth(start), timerange.Weekday(start), allDay, ev.Title())
			continue
		}
		fmt.Fprintf(&sb, "• %s - %s\n", a.span(ev.Start, ev.End), ev.Title())
	}

	gaps := freeGaps(r.Start, r.End, busy)
	if len(gaps) == 0 {
		sb.WriteString("Não há horários livres nesse período.")
		return result{text: sb.String()}, nil
	}
	sb.WriteString("Horários livres:")
	for _, g := range gaps {
		fmt.Fprintf(&sb, "\n• %s", a.span(g.start, g.end))
	}
	return result{text: sb.String()}, nil
}

// freeGaps returns the parts of [from, to] not covered by busy, dropping
// slivers shorter than minGap.
func freeGaps(from, to time.Time, busy []calendar.Event) []interval {
	spans := make([]interval, 0, len(busy))
	for _, ev := range busy {
		s, e := eventSpan(ev)
		if s.Before(from) {
			s = from
		}
		if e.After(to) {
			e = to
		}
		if e.After(s) {
			spans = append(spans, interval{s, e})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var gaps []interval
	cursor := from
	for _, sp := range spans {
		if sp.start.Sub(cursor) >= minGap {
			gaps = append(gaps, interval{cursor, sp.start})
		}
		if sp.end.After(cursor) {
			cursor = sp.end
		}
	}
	if to.Sub(cursor) >= minGap {
		gaps = append(gaps, interval{cursor, to})
	}
	return gaps
}

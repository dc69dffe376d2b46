package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/textmatch"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

// searchWindow resolves optional search bounds. Without either bound the
// rolling default window applies.
func (a *Assistant) searchWindow(startRef, endRef string) (timerange.Range, error) {
	if strings.TrimSpace(startRef) == "" && strings.TrimSpace(endRef) == "" {
		return a.norm.SearchWindow(), nil
	}
	return a.norm.ResolveWindow(startRef, endRef)
}

// search lists the window once and matches keywords against title,
// description and location. When nothing matches all keywords it retries
// with filler verbs and connectives removed.
func (a *Assistant) search(ctx context.Context, keywords []string, r timerange.Range) ([]calendar.Event, error) {
	kws := textmatch.Keywords(keywords)
	if len(kws) == 0 {
		return nil, nil
	}
	from, to := r.UTC()
	events, err := a.backend.List(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events for search: %w", err)
	}
	calendar.SortByStart(events)

	found := matchAll(events, kws)
	if len(found) == 0 {
		if relaxed := textmatch.StripStopwords(kws); len(relaxed) > 0 && len(relaxed) < len(kws) {
			a.logger.Debug("relaxing search keywords", "keywords", kws, "relaxed", relaxed)
			found = matchAll(events, relaxed)
		}
	}
	return found, nil
}

func matchAll(events []calendar.Event, kws []string) []calendar.Event {
	var out []calendar.Event
	for _, ev := range events {
		if textmatch.ContainsAll(kws, ev.Summary, ev.Description, ev.Location) {
			out = append(out, ev)
		}
	}
	return out
}

func notFoundText(keywords []string) string {
	return fmt.Sprintf("Não encontrei eventos com os termos '%s'.", strings.Join(keywords, " "))
}

func (a *Assistant) handleFind(ctx context.Context, _ *conversation.Session, _ intent.Payload, e intent.Entities) (result, error) {
	f := e.(intent.FindEvent)
	r, err := a.searchWindow(f.StartDate, f.EndDate)
	if err != nil {
		return result{}, err
	}
	found, err := a.search(ctx, f.Keywords, r)
	if err != nil {
		return result{}, err
	}

	switch len(found) {
	case 0:
		return result{text: notFoundText(f.Keywords)}, nil
	case 1:
		ev := found[0]
		var sb strings.Builder
		fmt.Fprintf(&sb, "Encontrei: %s - %s", a.when(ev.Start, ev.AllDay), ev.Title())
		if ev.Location != "" {
			fmt.Fprintf(&sb, "\nLocal: %s", ev.Location)
		}
		if ev.ConferenceLink != "" {
			fmt.Fprintf(&sb, "\nVideochamada: %s", ev.ConferenceLink)
		}
		return result{text: sb.String(), link: ev.HTMLLink}, nil
	default:
		return result{text: fmt.Sprintf("Encontrei %d eventos:\n%s", len(found), a.listLines(found))}, nil
	}
}

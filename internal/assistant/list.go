package assistant

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

func (a *Assistant) handleList(ctx context.Context, s *conversation.Session, p intent.Payload, e intent.Entities) (result, error) {
	l := e.(intent.ListEvents)
	if len(l.QueryKeywords) > 0 {
		return a.handleFind(ctx, s, p, intent.FindEvent{Keywords: l.QueryKeywords, StartDate: l.StartDate, EndDate: l.EndDate})
	}

	r, err := a.norm.ResolveRange(l.StartDate, l.EndDate)
	if err != nil {
		return result{}, err
	}
	from, to := r.UTC()
	events, err := a.backend.List(ctx, from, to)
	if err != nil {
		return result{}, fmt.Errorf("list events: %w", err)
	}
	calendar.SortByStart(events)
	if len(events) == 0 {
		return result{text: fmt.Sprintf("Nenhum compromisso encontrado para %s.", r.Label)}, nil
	}

	header := p.Explanation
	if header == "" || header == intent.DefaultExplanation {
		header = fmt.Sprintf("Seus compromissos para %s:", r.Label)
	}
	return result{text: header + "\n" + a.listLines(events)}, nil
}

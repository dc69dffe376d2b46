package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

const allDay = "Dia todo"

// listLine renders "• 10/06 (ter): 14:00 - Título".
func (a *Assistant) listLine(ev calendar.Event) string {
	start := a.local(ev.Start)
	clock := allDay
	if !ev.AllDay {
		clock = timerange.Clock(start)
	}
	return fmt.Sprintf("• %s (%s): %s - %s", timerange.DayMonth(start), timerange.Weekday(start), clock, ev.Title())
}

func (a *Assistant) listLines(events []calendar.Event) string {
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = a.listLine(ev)
	}
	return strings.Join(lines, "\n")
}

// when renders "12/06 (qui) às 14:00", or "12/06 (qui), dia todo".
func (a *Assistant) when(start time.Time, isAllDay bool) string {
	start = a.local(start)
	if isAllDay {
		return fmt.Sprintf("%s (%s), dia todo", timerange.DayMonth(start), timerange.Weekday(start))
	}
	return timerange.DateTime(start)
}

// options renders a numbered candidate list for disambiguation.
func (a *Assistant) options(cands []conversation.Candidate) string {
	lines := make([]string, len(cands))
	for i, c := range cands {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, a.when(c.Start, c.AllDay), c.Summary)
	}
	return strings.Join(lines, "\n")
}

func (a *Assistant) candidateLines(cands []conversation.Candidate) string {
	lines := make([]string, len(cands))
	for i, c := range cands {
		lines[i] = fmt.Sprintf("• %s - %s", a.when(c.Start, c.AllDay), c.Summary)
	}
	return strings.Join(lines, "\n")
}

// span renders "14:00 às 15:00", with dates when the interval crosses days.
func (a *Assistant) span(start, end time.Time) string {
	start, end = a.local(start), a.local(end)
	if timerange.SameDay(start, end) {
		return fmt.Sprintf("%s (%s) %s às %s", timerange.DayMonth(start), timerange.Weekday(start), timerange.Clock(start), timerange.Clock(end))
	}
	return fmt.Sprintf("%s %s às %s %s", timerange.DayMonth(start), timerange.Clock(start), timerange.DayMonth(end), timerange.Clock(end))
}

func quoted(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "'" + s + "'"
	}
	return out
}

// em contracts "em" with the label's article: "o dia 10" becomes "no dia 10".
func em(label string) string {
	for _, art := range []struct{ from, to string }{{"os ", "nos "}, {"as ", "nas "}, {"o ", "no "}, {"a ", "na "}} {
		if strings.HasPrefix(label, art.from) {
			return art.to + label[len(art.from):]
		}
	}
	return "em " + label
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// joinPT joins with commas and a final "e".
func joinPT(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " e " + items[len(items)-1]
}

func candidates(events []calendar.Event) []conversation.Candidate {
	out := make([]conversation.Candidate, len(events))
	for i, ev := range events {
		out[i] = conversation.CandidateOf(ev)
	}
	return out
}

// eventSpan is the occupied interval of ev; all-day events cover their day.
func eventSpan(ev calendar.Event) (time.Time, time.Time) {
	end := ev.End
	if ev.AllDay && !end.After(ev.Start) {
		end = ev.Start.AddDate(0, 0, 1)
	}
	return ev.Start, end
}

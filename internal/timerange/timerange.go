// Package timerange turns the loosely formatted dates the translator emits into
// concrete, timezone-qualified windows.
//
// Every naive timestamp is interpreted in the assistant's operating timezone.
// Callers hand instants to calendar backends through UTC, never as local
// wall-clock values.
package timerange

import (
	"fmt"
	"strings"
	"time"
)

// SearchHorizon is the rolling window used when a search names no dates.
const SearchHorizon = 365 * 24 * time.Hour

// DateParseError reports a date or time reference that matches no known layout.
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("unrecognized date %q", e.Value)
}

// Range is a resolved [Start, End] window plus its Portuguese rendering.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
}

// UTC returns the window with both bounds converted to UTC.
func (r Range) UTC() (time.Time, time.Time) {
	return r.Start.UTC(), r.End.UTC()
}

// Contains reports whether t falls inside the window, bounds included.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Normalizer resolves date references relative to a clock and a timezone.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location) *Normalizer {
	return NewWithClock(loc, time.Now)
}

func NewWithClock(loc *time.Location, now func() time.Time) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc, now: now}
}

// Location returns the operating timezone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Now returns the current instant in the operating timezone.
func (n *Normalizer) Now() time.Time {
	return n.now().In(n.loc)
}

// Today returns local midnight of the current day.
func (n *Normalizer) Today() time.Time {
	return StartOfDay(n.Now())
}

// ResolveRange resolves an optional pair of date references into whole days.
// A missing start means today; a missing end means the start day. Reversed
// references are swapped rather than producing an empty window.
func (n *Normalizer) ResolveRange(startRef, endRef string) (Range, error) {
	start := n.Today()
	if strings.TrimSpace(startRef) != "" {
		t, _, err := n.parse(startRef)
		if err != nil {
			return Range{}, err
		}
		start = StartOfDay(t)
	}

	endDay := start
	if strings.TrimSpace(endRef) != "" {
		t, _, err := n.parse(endRef)
		if err != nil {
			return Range{}, err
		}
		endDay = StartOfDay(t)
	}

	if endDay.Before(start) {
		start, endDay = endDay, start
	}

	r := Range{Start: start, End: EndOfDay(endDay)}
	r.Label = dayLabel(r.Start, r.End)
	return r, nil
}

// ResolveWindow is ResolveRange for references that may carry clock times
// ("estou livre sexta de manhã?"). When both references have a time of day the
// window keeps them exactly; otherwise it falls back to whole days.
func (n *Normalizer) ResolveWindow(startRef, endRef string) (Range, error) {
	if strings.TrimSpace(startRef) == "" || strings.TrimSpace(endRef) == "" {
		return n.ResolveRange(startRef, endRef)
	}
	start, startDateOnly, err := n.parse(startRef)
	if err != nil {
		return Range{}, err
	}
	end, endDateOnly, err := n.parse(endRef)
	if err != nil {
		return Range{}, err
	}
	if startDateOnly || endDateOnly {
		return n.ResolveRange(startRef, endRef)
	}
	if end.Before(start) {
		start, end = end, start
	}

	r := Range{Start: start, End: end}
	if SameDay(start, end) {
		r.Label = fmt.Sprintf("o dia %s, das %s às %s", longDate(start), Clock(start), Clock(end))
	} else {
		r.Label = fmt.Sprintf("o período de %s %s a %s %s", DayMonth(start), Clock(start), DayMonth(end), Clock(end))
	}
	return r, nil
}

// ParseInstant parses a precise point in time. Date-only references resolve to
// local midnight.
func (n *Normalizer) ParseInstant(ref string) (time.Time, error) {
	t, _, err := n.parse(ref)
	return t, err
}

// HasClock reports whether ref carries a time of day.
func (n *Normalizer) HasClock(ref string) bool {
	_, dateOnly, err := n.parse(ref)
	return err == nil && !dateOnly
}

// SearchWindow is the default window for keyword searches: now until SearchHorizon.
func (n *Normalizer) SearchWindow() Range {
	now := n.Now()
	return Range{Start: now, End: now.Add(SearchHorizon), Label: "os próximos 12 meses"}
}

// Shift moves an event to newStart keeping its original duration.
func Shift(origStart, origEnd, newStart time.Time) (time.Time, time.Time) {
	return newStart, newStart.Add(origEnd.Sub(origStart))
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04Z07:00"}
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"02/01/2006 15:04",
	}
	dateLayouts = []string{"2006-01-02", "02/01/2006"}
)

// parse returns the instant in the operating timezone and whether the
// reference was date-only.
func (n *Normalizer) parse(ref string) (time.Time, bool, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return time.Time{}, false, &DateParseError{Value: ref}
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(n.loc), false, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, true, nil
		}
	}
	// "10/06" without a year means the current year.
	if t, err := time.ParseInLocation("02/01", s, n.loc); err == nil {
		return time.Date(n.Now().Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.loc), true, nil
	}
	return time.Time{}, false, &DateParseError{Value: ref}
}

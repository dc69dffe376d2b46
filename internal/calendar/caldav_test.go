package calendar

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalDAVFromICal_TimedEvent(t *testing.T) {
	b := &CalDAVBackend{loc: brt, logger: discardLogger()}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "uid-1")
	ve.Props.SetText(ical.PropSummary, "Reunião marketing")
	ve.Props.SetText(ical.PropLocation, "Sala 3")
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2025, 6, 12, 17, 0, 0, 0, time.UTC))
	ve.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2025, 6, 12, 18, 30, 0, 0, time.UTC))
	addAttendee(ve, "ana@example.com")
	addAttendee(ve, "bia@example.com")

	ev := b.fromICal("/cal/uid-1.ics", ical.Event{Component: ve})

	assert.Equal(t, "/cal/uid-1.ics", ev.ID)
	assert.Equal(t, "Reunião marketing", ev.Summary)
	assert.Equal(t, "Sala 3", ev.Location)
	assert.False(t, ev.AllDay)
	assert.Equal(t, 14, ev.Start.Hour())
	assert.Equal(t, 90*time.Minute, ev.End.Sub(ev.Start))
	assert.Equal(t, []string{"ana@example.com", "bia@example.com"}, ev.Attendees)
}

func TestCalDAVFromICal_AllDayWithoutEnd(t *testing.T) {
	b := &CalDAVBackend{loc: brt, logger: discardLogger()}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "uid-2")
	ve.Props.SetDate(ical.PropDateTimeStart, time.Date(2025, 6, 19, 0, 0, 0, 0, brt))

	ev := b.fromICal("/cal/uid-2.ics", ical.Event{Component: ve})

	assert.True(t, ev.AllDay)
	assert.Equal(t, 19, ev.Start.Day())
	assert.Equal(t, "Sem título", ev.Title())
	assert.False(t, ev.End.Before(ev.Start))
}

func TestWrap_SetsCalendarProperties(t *testing.T) {
	ve := ical.NewComponent(ical.CompEvent)
	cal := wrap(ve)

	version, err := cal.Props.Text(ical.PropVersion)
	require.NoError(t, err)
	assert.Equal(t, "2.0", version)
	require.Len(t, cal.Children, 1)
	assert.Equal(t, ical.CompEvent, cal.Children[0].Name)
}

func TestMergeAttendees_CaseInsensitiveDedup(t *testing.T) {
	got := mergeAttendees(
		[]string{"ana@example.com", "Ana@Example.com"},
		[]string{"bia@example.com", "ANA@example.com"},
	)
	assert.Equal(t, []string{"ana@example.com", "bia@example.com"}, got)
}

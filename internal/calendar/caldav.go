package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
)

const productID = "-//agenda//PT-BR"

// basicAuthTransport adds Basic Auth and the user agent to every request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "agenda/1.0")
	return t.transport.RoundTrip(req)
}

// CalDAVBackend stores events as VCALENDAR objects in one CalDAV collection.
// Event ids are object paths.
type CalDAVBackend struct {
	client       *caldav.Client
	calendarPath string
	loc          *time.Location
	logger       *slog.Logger
}

// NewCalDAV discovers the calendar named calendarName under the user's home set.
// An empty name selects the first calendar that supports VEVENT.
func NewCalDAV(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*CalDAVBackend, error) {
	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: username, password: password, transport: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}
	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	b := &CalDAVBackend{client: client, loc: loc, logger: logger}
	logger.Info("finding caldav calendar", "calendar", calendarName)
	b.calendarPath, err = b.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("find calendar %q: %w", calendarName, err)
	}
	logger.Info("caldav calendar found", "path", b.calendarPath)
	return b, nil
}

func (b *CalDAVBackend) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := b.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := b.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	calendars, err := b.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}

	for _, cal := range calendars {
		if name == "" && supportsEvents(cal) {
			return cal.Path, nil
		}
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar named %q among %d", name, len(calendars))
}

func supportsEvents(cal caldav.Calendar) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return true
	}
	for _, c := range cal.SupportedComponentSet {
		if c == ical.CompEvent {
			return true
		}
	}
	return false
}

func (b *CalDAVBackend) Create(ctx context.Context, req EventRequest) (*Event, error) {
	uid := uuid.NewString()
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetText(ical.PropSummary, req.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStart, req.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, req.End.UTC())
	if req.Description != "" {
		ve.Props.SetText(ical.PropDescription, req.Description)
	}
	if req.Location != "" {
		ve.Props.SetText(ical.PropLocation, req.Location)
	}
	for _, a := range req.Attendees {
		addAttendee(ve, a)
	}
	if req.Conference {
		b.logger.Debug("conference links are not supported over caldav", "uid", uid)
	}

	objPath := path.Join(b.calendarPath, uid+".ics")
	obj, err := b.client.PutCalendarObject(ctx, objPath, wrap(ve))
	if err != nil {
		return nil, fmt.Errorf("put calendar object: %w", err)
	}
	if obj != nil && obj.Path != "" {
		objPath = obj.Path
	}
	b.logger.Info("event created", "event_id", objPath, "summary", req.Summary)

	ev := b.fromICal(objPath, ical.Event{Component: ve})
	return &ev, nil
}

func (b *CalDAVBackend) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}
	objects, err := b.client.QueryCalendar(ctx, b.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ve := range obj.Data.Events() {
			ev := b.fromICal(obj.Path, ve)
			// Servers may return recurring masters whose first instance is
			// outside the window.
			if ev.End.Before(from) || ev.Start.After(to) {
				continue
			}
			events = append(events, ev)
		}
	}
	SortByStart(events)
	b.logger.Debug("events listed", "count", len(events), "from", from, "to", to)
	return events, nil
}

func (b *CalDAVBackend) Get(ctx context.Context, id string) (*Event, error) {
	obj, err := b.client.GetCalendarObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get calendar object %s: %w", id, davNotFound(err))
	}
	events := obj.Data.Events()
	if len(events) == 0 {
		return nil, fmt.Errorf("get calendar object %s: %w", id, ErrNotFound)
	}
	ev := b.fromICal(id, events[0])
	return &ev, nil
}

func (b *CalDAVBackend) Update(ctx context.Context, id string, patch Patch) (*Event, error) {
	obj, err := b.client.GetCalendarObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get calendar object %s: %w", id, davNotFound(err))
	}
	events := obj.Data.Events()
	if len(events) == 0 {
		return nil, fmt.Errorf("get calendar object %s: %w", id, ErrNotFound)
	}
	ve := events[0].Component

	if patch.Summary != nil {
		ve.Props.SetText(ical.PropSummary, *patch.Summary)
	}
	if patch.Description != nil {
		ve.Props.SetText(ical.PropDescription, *patch.Description)
	}
	if patch.Location != nil {
		ve.Props.SetText(ical.PropLocation, *patch.Location)
	}
	if patch.Start != nil {
		ve.Props.SetDateTime(ical.PropDateTimeStart, patch.Start.UTC())
	}
	if patch.End != nil {
		ve.Props.Del(ical.PropDuration)
		ve.Props.SetDateTime(ical.PropDateTimeEnd, patch.End.UTC())
	}
	if len(patch.Attendees) > 0 {
		current := attendees(ve)
		ve.Props.Del(ical.PropAttendee)
		for _, a := range mergeAttendees(current, patch.Attendees) {
			addAttendee(ve, a)
		}
	}
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if _, err := b.client.PutCalendarObject(ctx, id, obj.Data); err != nil {
		return nil, fmt.Errorf("put calendar object %s: %w", id, err)
	}
	b.logger.Info("event updated", "event_id", id)

	ev := b.fromICal(id, ical.Event{Component: ve})
	return &ev, nil
}

func (b *CalDAVBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.RemoveAll(ctx, id); err != nil {
		return fmt.Errorf("remove calendar object %s: %w", id, davNotFound(err))
	}
	b.logger.Info("event deleted", "event_id", id)
	return nil
}

func (b *CalDAVBackend) fromICal(objPath string, ve ical.Event) Event {
	ev := Event{ID: objPath}
	ev.Summary, _ = ve.Props.Text(ical.PropSummary)
	ev.Description, _ = ve.Props.Text(ical.PropDescription)
	ev.Location, _ = ve.Props.Text(ical.PropLocation)
	ev.Attendees = attendees(ve.Component)

	if start, err := ve.DateTimeStart(b.loc); err == nil {
		ev.Start = start.In(b.loc)
	}
	if prop := ve.Props.Get(ical.PropDateTimeStart); prop != nil && prop.ValueType() == ical.ValueDate {
		ev.AllDay = true
	}
	if end, err := ve.DateTimeEnd(b.loc); err == nil && !end.IsZero() {
		ev.End = end.In(b.loc)
	}
	if ev.End.IsZero() || ev.End.Before(ev.Start) {
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		} else {
			ev.End = ev.Start
		}
	}
	if u, err := ve.Props.Text(ical.PropURL); err == nil {
		ev.HTMLLink = u
	}
	return ev
}

func wrap(ve *ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, ve)
	return cal
}

func addAttendee(ve *ical.Component, email string) {
	p := ical.NewProp(ical.PropAttendee)
	p.Value = "mailto:" + email
	ve.Props.Add(p)
}

func attendees(ve *ical.Component) []string {
	var out []string
	for _, p := range ve.Props.Values(ical.PropAttendee) {
		email := strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
		if email != "" {
			out = append(out, email)
		}
	}
	return out
}

func davNotFound(err error) error {
	if err != nil && (strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "410")) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

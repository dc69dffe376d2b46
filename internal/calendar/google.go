package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleBackend talks to one Google calendar through the Calendar v3 API.
type GoogleBackend struct {
	service    *gcal.Service
	calendarID string
	loc        *time.Location
	logger     *slog.Logger
}

// NewGoogle builds a backend authenticated with the stored OAuth token.
// Run the auth command first to create tokenFile.
func NewGoogle(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenFile, calendarID string, loc *time.Location) (*GoogleBackend, error) {
	config, err := OAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("get oauth config: %w", err)
	}
	token, err := TokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("load token %s (run the auth command first): %w", tokenFile, err)
	}
	return NewGoogleWithClient(ctx, logger, config.Client(ctx, token), "", calendarID, loc)
}

// NewGoogleWithClient builds a backend over an already authenticated HTTP
// client. A non-empty endpoint overrides the API base URL.
func NewGoogleWithClient(ctx context.Context, logger *slog.Logger, client *http.Client, endpoint, calendarID string, loc *time.Location) (*GoogleBackend, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleBackend{service: service, calendarID: calendarID, loc: loc, logger: logger}, nil
}

func (g *GoogleBackend) Create(ctx context.Context, req EventRequest) (*Event, error) {
	ev := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       g.dateTime(req.Start),
		End:         g.dateTime(req.End),
	}
	for _, a := range req.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a})
	}
	if req.Conference {
		ev.ConferenceData = &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	created, err := g.service.Events.Insert(g.calendarID, ev).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	g.logger.Info("event created", "event_id", created.Id, "summary", created.Summary)
	out := g.fromGoogle(created)
	return &out, nil
}

func (g *GoogleBackend) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	var events []Event
	err := g.service.Events.List(g.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.UTC().Format(time.RFC3339)).
		TimeMax(to.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				if item.Start == nil || item.Status == "cancelled" {
					continue
				}
				events = append(events, g.fromGoogle(item))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	g.logger.Debug("events listed", "count", len(events), "from", from, "to", to)
	SortByStart(events)
	return events, nil
}

func (g *GoogleBackend) Get(ctx context.Context, id string) (*Event, error) {
	item, err := g.service.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, notFound(err))
	}
	out := g.fromGoogle(item)
	return &out, nil
}

func (g *GoogleBackend) Update(ctx context.Context, id string, patch Patch) (*Event, error) {
	ev := &gcal.Event{}
	if patch.Summary != nil {
		ev.Summary = *patch.Summary
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
	}
	if patch.Start != nil {
		ev.Start = g.dateTime(*patch.Start)
	}
	if patch.End != nil {
		ev.End = g.dateTime(*patch.End)
	}
	if len(patch.Attendees) > 0 {
		current, err := g.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, a := range mergeAttendees(current.Attendees, patch.Attendees) {
			ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a})
		}
	}

	updated, err := g.service.Events.Patch(g.calendarID, id, ev).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("patch event %s: %w", id, notFound(err))
	}
	g.logger.Info("event updated", "event_id", id)
	out := g.fromGoogle(updated)
	return &out, nil
}

func (g *GoogleBackend) Delete(ctx context.Context, id string) error {
	err := g.service.Events.Delete(g.calendarID, id).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, notFound(err))
	}
	g.logger.Info("event deleted", "event_id", id)
	return nil
}

// dateTime renders an absolute instant plus the operating timezone name, so
// the API never has to guess how to read a wall-clock value.
func (g *GoogleBackend) dateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.UTC().Format(time.RFC3339),
		TimeZone: g.loc.String(),
	}
}

func (g *GoogleBackend) fromGoogle(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
	}
	ev.Start, ev.AllDay = g.parseDateTime(item.Start)
	ev.End, _ = g.parseDateTime(item.End)

	for _, a := range item.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}

	ev.ConferenceLink = item.HangoutLink
	if ev.ConferenceLink == "" && item.ConferenceData != nil {
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == "video" {
				ev.ConferenceLink = ep.Uri
				break
			}
		}
	}
	return ev
}

// parseDateTime reads either a timed value or an all-day date. All-day dates
// land on local midnight.
func (g *GoogleBackend) parseDateTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			g.logger.Warn("unparseable event time", "value", dt.DateTime, "error", err)
			return time.Time{}, false
		}
		return t.In(g.loc), false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, g.loc)
		if err != nil {
			g.logger.Warn("unparseable event date", "value", dt.Date, "error", err)
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func notFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
	}
	return err
}

// Package calendar is the boundary to the external calendar backend. The
// assistant only asks for create/list/get/update/delete over time-ranged
// events; storage and recurrence expansion belong to the backend.
package calendar

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by Get, Update and Delete for unknown event ids.
var ErrNotFound = errors.New("event not found")

// Backend is a single authenticated calendar.
type Backend interface {
	Create(ctx context.Context, req EventRequest) (*Event, error)
	// List returns events intersecting [from, to], ordered by start.
	List(ctx context.Context, from, to time.Time) ([]Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, id string, patch Patch) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// Event is the provider-independent view of a calendar entry. All-day events
// carry local midnight in Start and AllDay set.
type Event struct {
	ID             string    `json:"id"`
	Summary        string    `json:"summary"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"all_day,omitempty"`
	Attendees      []string  `json:"attendees,omitempty"`
	ConferenceLink string    `json:"conference_link,omitempty"`
	HTMLLink       string    `json:"html_link,omitempty"`
}

// Title returns the summary or the placeholder used for untitled events.
func (e Event) Title() string {
	if s := strings.TrimSpace(e.Summary); s != "" {
		return s
	}
	return "Sem título"
}

// EventRequest describes an event to create.
type EventRequest struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Conference  bool      `json:"conference,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched; Attendees are
// added to the existing guest list.
type Patch struct {
	Summary     *string    `json:"summary,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && len(p.Attendees) == 0
}

// SortByStart orders events by start ascending; equal starts keep backend order.
func SortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}

func mergeAttendees(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(added))
	for _, e := range existing {
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	for _, a := range added {
		key := strings.ToLower(a)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

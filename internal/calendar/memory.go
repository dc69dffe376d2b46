package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend keeps events in process memory. It backs local runs
// (CALENDAR_BACKEND=memory) and tests.
type MemoryBackend struct {
	mu     sync.Mutex
	events map[string]Event
	order  []string
}

func NewMemory(seed ...Event) *MemoryBackend {
	m := &MemoryBackend{events: make(map[string]Event)}
	for _, ev := range seed {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		m.events[ev.ID] = ev
		m.order = append(m.order, ev.ID)
	}
	return m
}

func (m *MemoryBackend) Create(_ context.Context, req EventRequest) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Event{
		ID:          uuid.NewString(),
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
		Attendees:   append([]string(nil), req.Attendees...),
	}
	ev.HTMLLink = "memory://events/" + ev.ID
	if req.Conference {
		ev.ConferenceLink = "memory://meet/" + ev.ID
	}
	m.events[ev.ID] = ev
	m.order = append(m.order, ev.ID)
	return &ev, nil
}

// List returns events intersecting [from, to]. All-day events cover their
// whole day.
func (m *MemoryBackend) List(_ context.Context, from, to time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, id := range m.order {
		ev, ok := m.events[id]
		if !ok {
			continue
		}
		end := ev.End
		if ev.AllDay && !end.After(ev.Start) {
			end = ev.Start.AddDate(0, 0, 1)
		}
		if ev.Start.Before(to) && end.After(from) {
			out = append(out, ev)
		}
	}
	SortByStart(out)
	return out, nil
}

func (m *MemoryBackend) Get(_ context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	return &ev, nil
}

func (m *MemoryBackend) Update(_ context.Context, id string, patch Patch) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("update event %s: %w", id, ErrNotFound)
	}
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
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	if len(patch.Attendees) > 0 {
		ev.Attendees = mergeAttendees(ev.Attendees, patch.Attendees)
	}
	m.events[id] = ev
	return &ev, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return fmt.Errorf("delete event %s: %w", id, ErrNotFound)
	}
	delete(m.events, id)
	return nil
}

// Len returns the number of stored events.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

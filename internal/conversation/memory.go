package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory and forgets the ones idle
// longer than its TTL. Sessions are stored as JSON so callers never share
// mutable state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	touched  map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		touched:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	data, ok := m.sessions[id]
	if ok && m.idle(m.touched[id]) {
		delete(m.sessions, id)
		delete(m.touched, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return NewSession(id), nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	now := m.now()
	s.UpdatedAt = now
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = data
	m.touched[s.ID] = now
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.touched, id)
	m.mu.Unlock()
	return nil
}

// Sweep drops sessions idle longer than the TTL and returns how many went.
func (m *MemoryStore) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, at := range m.touched {
		if m.idle(at) {
			delete(m.sessions, id)
			delete(m.touched, id)
			n++
		}
	}
	return n
}

// idle reports whether a session last saved at touched has outlived the TTL.
func (m *MemoryStore) idle(touched time.Time) bool {
	return m.ttl > 0 && m.now().Sub(touched) > m.ttl
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("idle sessions dropped", "count", n)
			}
		}
	}
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

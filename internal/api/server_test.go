package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikeSquared-Agency/agenda/internal/assistant"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChat struct {
	sessions    []string
	messages    []string
	resets      []string
	corrections []string
	err         error
	feedbackErr error
}

func (f *fakeChat) HandleMessage(_ context.Context, sessionID, text string) (assistant.Reply, error) {
	f.sessions = append(f.sessions, sessionID)
	f.messages = append(f.messages, text)
	if f.err != nil {
		return assistant.Reply{}, f.err
	}
	return assistant.Reply{
		Text:      "eco: " + text,
		SessionID: sessionID,
		EventLink: "memory://events/1",
		Payload:   &intent.Payload{Intent: intent.List, Entities: map[string]any{}},
	}, nil
}

func (f *fakeChat) Reset(_ context.Context, sessionID string) error {
	f.resets = append(f.resets, sessionID)
	return nil
}

func (f *fakeChat) SaveFeedback(_ context.Context, sessionID, correction string) (feedback.Record, error) {
	if f.feedbackErr != nil {
		return feedback.Record{}, f.feedbackErr
	}
	f.corrections = append(f.corrections, correction)
	return feedback.Record{ID: "rec-1", SessionID: sessionID, Correction: correction}, nil
}

func do(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(Options{Port: 8760}, nil, discardLogger())

	w := do(t, srv, "GET", "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := NewServer(Options{Backend: "google", Translator: "anthropic"}, &fakeChat{}, discardLogger())

	w := do(t, srv, "GET", "/api/v1/agenda/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["agent"] != "agenda" || body["status"] != "ready" {
		t.Errorf("unexpected status body %v", body)
	}
	if body["backend"] != "google" || body["translator"] != "anthropic" {
		t.Errorf("providers not reported: %v", body)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := NewServer(Options{}, nil, discardLogger())

	w := do(t, srv, "GET", "/nonexistent", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestChat(t *testing.T) {
	chat := &fakeChat{}
	srv := NewServer(Options{}, chat, discardLogger())

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "o que tenho hoje?", SessionID: "abc"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[chatResponse](t, w)
	if resp.Response != "eco: o que tenho hoje?" || resp.SessionID != "abc" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.EventLink != "memory://events/1" {
		t.Errorf("event link missing: %+v", resp)
	}
	if resp.Payload != nil {
		t.Error("payload must be hidden unless debug payloads are enabled")
	}
}

func TestChat_DebugPayloads(t *testing.T) {
	srv := NewServer(Options{DebugPayloads: true}, &fakeChat{}, discardLogger())

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "oi", SessionID: "abc"}, nil)
	resp := decode[chatResponse](t, w)
	if resp.Payload == nil || resp.Payload.Intent != intent.List {
		t.Errorf("expected payload, got %+v", resp.Payload)
	}
}

func TestChat_SessionIdentity(t *testing.T) {
	chat := &fakeChat{}
	srv := NewServer(Options{}, chat, discardLogger())

	do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "oi"}, map[string]string{sessionHeader: "from-header"})

	req := httptest.NewRequest("POST", "/api/v1/chat", bytes.NewBufferString(`{"message":"oi"}`))
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "from-cookie"})
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "oi"}, nil)
	issued := decode[chatResponse](t, w).SessionID

	if len(chat.sessions) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(chat.sessions))
	}
	if chat.sessions[0] != "from-header" || chat.sessions[1] != "from-cookie" {
		t.Errorf("sessions = %v", chat.sessions)
	}
	if issued == "" || chat.sessions[2] != issued {
		t.Errorf("expected a new session id, got %q", issued)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != issued {
		t.Errorf("expected session cookie %q, got %+v", issued, cookie)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	chat := &fakeChat{}
	srv := NewServer(Options{}, chat, discardLogger())

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "   ", SessionID: "abc"}, nil)
	if resp := decode[chatResponse](t, w); resp.Response != emptyMessage {
		t.Errorf("response = %q", resp.Response)
	}
	if len(chat.messages) != 0 {
		t.Error("empty message must not reach the assistant")
	}
}

func TestChat_BackendUnavailable(t *testing.T) {
	srv := NewServer(Options{}, nil, discardLogger())

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "oi"}, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if resp := decode[chatResponse](t, w); resp.Response != unavailable {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestChat_SessionStoreFailure(t *testing.T) {
	srv := NewServer(Options{}, &fakeChat{err: errors.New("db down")}, discardLogger())

	w := do(t, srv, "POST", "/api/v1/chat", chatRequest{Message: "oi"}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	srv := NewServer(Options{}, &fakeChat{}, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/chat", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestReset(t *testing.T) {
	chat := &fakeChat{}
	srv := NewServer(Options{}, chat, discardLogger())

	w := do(t, srv, "POST", "/api/v1/reset", nil, map[string]string{sessionHeader: "abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(chat.resets) != 1 || chat.resets[0] != "abc" {
		t.Errorf("resets = %v", chat.resets)
	}
}

func TestFeedback(t *testing.T) {
	chat := &fakeChat{}
	srv := NewServer(Options{}, chat, discardLogger())

	w := do(t, srv, "POST", "/api/v1/feedback", feedbackRequest{SessionID: "abc"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing correction: expected 400, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/feedback", feedbackRequest{SessionID: "abc", Correction: "era sexta"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["id"] != "rec-1" {
		t.Errorf("body = %v", body)
	}
	if len(chat.corrections) != 1 || chat.corrections[0] != "era sexta" {
		t.Errorf("corrections = %v", chat.corrections)
	}

	chat.feedbackErr = assistant.ErrFeedbackDisabled
	w = do(t, srv, "POST", "/api/v1/feedback", feedbackRequest{SessionID: "abc", Correction: "x"}, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled feedback: expected 503, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := NewServer(Options{APIToken: "secret"}, &fakeChat{}, discardLogger())

	if w := do(t, srv, "GET", "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/agenda/status", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/agenda/status", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/agenda/status", nil, map[string]string{"Authorization": "Bearer secret"}); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

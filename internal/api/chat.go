package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/agenda/internal/assistant"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
)

const (
	sessionCookie = "agenda_session"
	sessionHeader = "X-Session-ID"

	unavailable  = "Desculpe, o serviço de agenda não está disponível no momento."
	emptyMessage = "Recebi uma mensagem vazia."
	internalErr  = "Desculpe, ocorreu um erro interno. Tente novamente."
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	EventLink string          `json:"event_link,omitempty"`
	Payload   *intent.Payload `json:"payload,omitempty"`
}

type feedbackRequest struct {
	Correction string `json:"correction"`
	SessionID  string `json:"session_id,omitempty"`
}

// sessionID picks the body value, then the header, then the cookie, and
// issues a new id when none is present.
func sessionID(r *http.Request, fromBody string) (string, bool) {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id, false
	}
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id, false
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	return uuid.NewString(), true
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	id, issued := sessionID(r, req.SessionID)
	if issued {
		setSessionCookie(w, id)
	}
	w.Header().Set(sessionHeader, id)

	if s.chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: unavailable, SessionID: id})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusOK, chatResponse{Response: emptyMessage, SessionID: id})
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), id, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: internalErr, SessionID: id})
		return
	}

	resp := chatResponse{Response: reply.Text, SessionID: id, EventLink: reply.EventLink}
	if s.opts.DebugPayloads {
		resp.Payload = reply.Payload
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// An empty body is fine; the id may come from the header or cookie.
	_ = json.NewDecoder(r.Body).Decode(&req)
	id, issued := sessionID(r, req.SessionID)
	if issued {
		setSessionCookie(w, id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": id})
		return
	}
	if s.chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": unavailable})
		return
	}
	if err := s.chat.Reset(r.Context(), id); err != nil {
		s.logger.Error("reset failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reset failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": id})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Correction) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "correction is required"})
		return
	}
	if s.chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": unavailable})
		return
	}
	id, _ := sessionID(r, req.SessionID)

	rec, err := s.chat.SaveFeedback(r.Context(), id, req.Correction)
	if errors.Is(err, assistant.ErrFeedbackDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "feedback disabled"})
		return
	}
	if err != nil {
		s.logger.Error("feedback save failed", "session_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save feedback"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved", "id": rec.ID})
}

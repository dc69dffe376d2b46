// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/agenda/internal/assistant"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
)

// Chatter is the assistant surface the API drives.
type Chatter interface {
	HandleMessage(ctx context.Context, sessionID, text string) (assistant.Reply, error)
	Reset(ctx context.Context, sessionID string) error
	SaveFeedback(ctx context.Context, sessionID, correction string) (feedback.Record, error)
}

type Options struct {
	Port          int
	APIToken      string
	DebugPayloads bool
	// Backend and Translator name the configured providers for /status.
	Backend    string
	Translator string
}

type Server struct {
	router *chi.Mux
	opts   Options
	chat   Chatter
	logger *slog.Logger
	http   *http.Server
}

// NewServer wires the routes. A nil chat means no calendar backend could be
// reached at boot; /chat then answers 503.
func NewServer(opts Options, chat Chatter, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		opts:   opts,
		chat:   chat,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Get("/agenda/status", s.status)
		r.Post("/chat", s.handleChat)
		r.Post("/reset", s.handleReset)
		r.Post("/feedback", s.handleFeedback)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	state := "ready"
	if s.chat == nil {
		state = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":      "agenda",
		"status":     state,
		"backend":    s.opts.Backend,
		"translator": s.opts.Translator,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

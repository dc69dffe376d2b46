package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/anthropic"
	"github.com/MikeSquared-Agency/agenda/internal/assistant"
	"github.com/MikeSquared-Agency/agenda/internal/calendar"
	"github.com/MikeSquared-Agency/agenda/internal/config"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/hermes"
	"github.com/MikeSquared-Agency/agenda/internal/store"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
	"github.com/MikeSquared-Agency/agenda/internal/translator"
)

const (
	calendarAttempts = 3
	calendarBackoff  = 500 * time.Millisecond
	sweepInterval    = 10 * time.Minute
)

// app holds everything a command needs. assistant is nil when the calendar
// backend could not be reached.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	assistant *assistant.Assistant
	bus       hermes.Publisher
	nats      *hermes.Client
	db        *store.Store
	sweep     func(ctx context.Context)
}

func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	norm := timerange.New(loc)
	a := &app{cfg: cfg, logger: logger, bus: hermes.Nop{}}

	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		logger.Info("database connected")
	}

	if cfg.NatsURL != "" {
		nc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.nats, a.bus = nc, nc
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	var sessions conversation.Store
	if a.db != nil {
		pg := a.db.Sessions(cfg.SessionTTL, logger)
		sessions, a.sweep = pg, func(ctx context.Context) { pg.Run(ctx, sweepInterval) }
	} else {
		mem := conversation.NewMemoryStore(cfg.SessionTTL, logger)
		sessions, a.sweep = mem, func(ctx context.Context) { mem.Run(ctx, sweepInterval) }
	}

	sink, source := feedbackStack(cfg, a.db, a.nats, logger)

	llm, err := newLLM(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	tr := translator.New(llm, norm, source, cfg.FeedbackExamples, cfg.TranslatorTimeout, logger)

	backend, err := newBackend(ctx, cfg, loc, logger)
	if err != nil {
		logger.Error("calendar backend unavailable", "backend", cfg.CalendarBackend, "error", err)
		return a, nil
	}

	a.assistant = assistant.New(assistant.Deps{
		Translator: tr,
		Backend:    calendar.WithRetry(backend, calendarAttempts, calendarBackoff, logger),
		Normalizer: norm,
		Sessions:   sessions,
		Bus:        a.bus,
		Feedback:   sink,
		Logger:     logger,
	}, assistant.Options{
		HistoryLimit:         cfg.HistoryLimit,
		ClearHistoryOnAction: cfg.ClearHistoryOnAction,
		ConflictCheck:        cfg.ConflictCheck,
		PendingTTL:           cfg.PendingTTL,
	})
	return a, nil
}

// feedbackStack writes corrections to Postgres when configured, otherwise to
// the JSONL file, and mirrors them to the file and the bus.
func feedbackStack(cfg config.Config, db *store.Store, nc *hermes.Client, logger *slog.Logger) (feedback.Sink, feedback.Source) {
	file := feedback.NewFileLog(cfg.FeedbackFile)

	var secondaries []feedback.Sink
	if nc != nil {
		secondaries = append(secondaries, feedback.NewBusSink(nc))
	}
	if db == nil {
		return feedback.NewFanout(logger, file, secondaries...), file
	}
	secondaries = append(secondaries, file)
	return feedback.NewFanout(logger, db, secondaries...), db
}

func newLLM(cfg config.Config) (translator.LLM, error) {
	switch cfg.TranslatorProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required")
		}
		return translator.NewAnthropic(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		return translator.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown TRANSLATOR_PROVIDER %q", cfg.TranslatorProvider)
	}
}

func newBackend(ctx context.Context, cfg config.Config, loc *time.Location, logger *slog.Logger) (calendar.Backend, error) {
	switch cfg.CalendarBackend {
	case "google":
		return calendar.NewGoogle(ctx, logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenFile, cfg.GoogleCalendarID, loc)
	case "caldav":
		return calendar.NewCalDAV(ctx, logger, cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar, loc)
	case "memory":
		logger.Warn("using in-memory calendar; events are lost on exit")
		return calendar.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown CALENDAR_BACKEND %q", cfg.CalendarBackend)
	}
}

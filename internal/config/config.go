package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	APIToken string

	DatabaseURL string
	NatsURL     string
	NatsToken   string

	TranslatorProvider string
	TranslatorTimeout  time.Duration
	AnthropicAPIKey    string
	AnthropicModel     string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string

	Timezone        string
	// CalendarBackend is google, caldav or memory.
	CalendarBackend string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenFile    string
	GoogleCalendarID   string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	HistoryLimit         int
	ClearHistoryOnAction bool
	ConflictCheck        bool
	PendingTTL           time.Duration
	SessionTTL           time.Duration
	FeedbackFile         string
	FeedbackExamples     int
	DebugPayloads        bool
}

func Load() Config {
	return Config{
		Port:     envInt("AGENDA_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),
		APIToken: envStr("AGENDA_API_TOKEN", ""),

		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),

		TranslatorProvider: strings.ToLower(envStr("TRANSLATOR_PROVIDER", "anthropic")),
		TranslatorTimeout:  envDuration("TRANSLATOR_TIMEOUT", 30*time.Second),
		AnthropicAPIKey:    envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     envStr("AGENDA_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:       envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:        envStr("OPENAI_MODEL", "gpt-4o-mini"),

		Timezone:        envStr("AGENDA_TIMEZONE", "America/Sao_Paulo"),
		CalendarBackend: strings.ToLower(envStr("CALENDAR_BACKEND", "google")),

		GoogleClientID:     envStr("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envStr("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenFile:    envStr("GOOGLE_TOKEN_FILE", "token.json"),
		GoogleCalendarID:   envStr("GOOGLE_CALENDAR_ID", "primary"),

		CalDAVURL:      envStr("CALDAV_URL", "https://caldav.icloud.com/"),
		CalDAVUsername: envStr("CALDAV_USERNAME", ""),
		CalDAVPassword: envStr("CALDAV_PASSWORD", ""),
		CalDAVCalendar: envStr("CALDAV_CALENDAR", ""),

		HistoryLimit:         envInt("HISTORY_LIMIT", 10),
		ClearHistoryOnAction: envBool("CLEAR_HISTORY_ON_ACTION", false),
		ConflictCheck:        envBool("CONFLICT_CHECK", true),
		PendingTTL:           envDuration("PENDING_TTL", 10*time.Minute),
		SessionTTL:           envDuration("SESSION_TTL", 24*time.Hour),
		FeedbackFile:         envStr("FEEDBACK_FILE", "feedback_log.jsonl"),
		FeedbackExamples:     envInt("FEEDBACK_EXAMPLES", 5),
		DebugPayloads:        envBool("DEBUG_PAYLOADS", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("45s", "10m") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

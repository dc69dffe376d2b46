// Package translator turns the conversation history into an intent payload by
// asking an LLM, and repairs whatever the model sends back into something the
// dispatcher can use.
package translator

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

// LLM completes a conversation under a system prompt and returns raw text.
type LLM interface {
	Complete(ctx context.Context, system string, history []conversation.Turn) (string, error)
}

type Translator struct {
	llm      LLM
	norm     *timerange.Normalizer
	examples feedback.Source
	maxEx    int
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a translator. examples may be nil; maxExamples bounds how many
// past corrections are shown to the model.
func New(llm LLM, norm *timerange.Normalizer, examples feedback.Source, maxExamples int, timeout time.Duration, logger *slog.Logger) *Translator {
	return &Translator{
		llm:      llm,
		norm:     norm,
		examples: examples,
		maxEx:    maxExamples,
		timeout:  timeout,
		logger:   logger,
	}
}

// Translate never fails: transport errors, timeouts and unreadable output all
// degrade to intent.Fallback.
func (t *Translator) Translate(ctx context.Context, history []conversation.Turn) intent.Payload {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	system := renderSystemPrompt(t.norm.Now(), t.recentCorrections(ctx))

	start := time.Now()
	raw, err := t.llm.Complete(ctx, system, history)
	if err != nil {
		t.logger.Warn("translator call failed", "error", err, "elapsed", time.Since(start))
		return intent.Fallback()
	}

	p, err := Parse(raw)
	if err != nil {
		t.logger.Warn("translator output unusable", "error", err, "raw", truncate(raw, 500))
		return intent.Fallback()
	}

	t.logger.Debug("translated",
		"intent", p.Intent,
		"entities", len(p.Entities),
		"elapsed", time.Since(start),
	)
	return p
}

func (t *Translator) recentCorrections(ctx context.Context) []feedback.Record {
	if t.examples == nil || t.maxEx <= 0 {
		return nil
	}
	records, err := t.examples.RecentFeedback(ctx, t.maxEx)
	if err != nil {
		t.logger.Warn("loading feedback examples failed", "error", err)
		return nil
	}
	return records
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

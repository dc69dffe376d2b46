package translator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/agenda/internal/anthropic"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
	"github.com/MikeSquared-Agency/agenda/internal/feedback"
	"github.com/MikeSquared-Agency/agenda/internal/intent"
	"github.com/MikeSquared-Agency/agenda/internal/timerange"
)

var brt = time.FixedZone("BRT", -3*60*60)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNormalizer() *timerange.Normalizer {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, brt)
	return timerange.NewWithClock(brt, func() time.Time { return now })
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		intent      intent.Intent
		entityKey   string
		explanation string
	}{
		{
			name:        "clean object",
			raw:         `{"intent": "list_events", "entities": {"start_date": "2025-06-10"}, "explanation": "Sua agenda:"}`,
			intent:      intent.List,
			entityKey:   "start_date",
			explanation: "Sua agenda:",
		},
		{
			name:        "code fence and prose",
			raw:         "Claro! Aqui está:\n```json\n{\"intent\": \"create_event\", \"entities\": {\"summary\": \"Dentista\"}}\n```\nEspero ter ajudado.",
			intent:      intent.Create,
			entityKey:   "summary",
			explanation: intent.DefaultExplanation,
		},
		{
			name:        "braces in trailing prose",
			raw:         "```json\n{\"intent\": \"list_events\", \"entities\": {\"start_date\": \"2025-06-10\"}}\n```\nObs: use o formato {data}.",
			intent:      intent.List,
			entityKey:   "start_date",
			explanation: intent.DefaultExplanation,
		},
		{
			name:        "second object ignored",
			raw:         `{"intent": "find_event", "entities": {"keywords": ["dentista"]}} {"intent": "unknown"}`,
			intent:      intent.Find,
			entityKey:   "keywords",
			explanation: intent.DefaultExplanation,
		},
		{
			name:        "details alias",
			raw:         `{"intent": "cancel_event", "details": {"keywords": ["dentista"]}}`,
			intent:      intent.Cancel,
			entityKey:   "keywords",
			explanation: intent.DefaultExplanation,
		},
		{
			name:        "flat entities",
			raw:         `{"intent": "find_event", "keywords": ["dentista"], "explanation": "Procurando"}`,
			intent:      intent.Find,
			entityKey:   "keywords",
			explanation: "Procurando",
		},
		{
			name:        "intent alias and case",
			raw:         `{"intent": " Clarification_Needed ", "entities": {}, "explanation": "Qual horário?"}`,
			intent:      intent.Clarify,
			explanation: "Qual horário?",
		},
		{
			name:        "unknown intent uses reason",
			raw:         `{"intent": "order_pizza", "details": {"reason": "Não é sobre agenda."}}`,
			intent:      intent.Unknown,
			entityKey:   "reason",
			explanation: "Não é sobre agenda.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if p.Intent != tt.intent {
				t.Errorf("intent = %q, want %q", p.Intent, tt.intent)
			}
			if tt.entityKey != "" {
				if _, ok := p.Entities[tt.entityKey]; !ok {
					t.Errorf("entities %v missing %q", p.Entities, tt.entityKey)
				}
			}
			if p.Explanation != tt.explanation {
				t.Errorf("explanation = %q, want %q", p.Explanation, tt.explanation)
			}
			if p.Entities == nil {
				t.Error("entities must never be nil")
			}
		})
	}
}

func TestParse_Unusable(t *testing.T) {
	for _, raw := range []string{"", "desculpe, não sei", `{"intent": "list_events", "entities": {`, `}{`} {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
	}
}

type scriptedLLM struct {
	out    string
	err    error
	system string
	turns  []conversation.Turn
}

func (s *scriptedLLM) Complete(_ context.Context, system string, history []conversation.Turn) (string, error) {
	s.system, s.turns = system, history
	return s.out, s.err
}

func TestTranslate_FallsBackOnError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("timeout")}
	tr := New(llm, fixedNormalizer(), nil, 0, time.Second, discardLogger())

	p := tr.Translate(context.Background(), []conversation.Turn{{Role: conversation.User, Text: "oi"}})
	if p.Intent != intent.Unknown || p.Explanation != intent.Fallback().Explanation {
		t.Errorf("payload = %+v, want fallback", p)
	}
	if p.Entities == nil {
		t.Error("fallback entities must be empty, not nil")
	}
}

func TestTranslate_FallsBackOnGarbage(t *testing.T) {
	llm := &scriptedLLM{out: "não entendi"}
	tr := New(llm, fixedNormalizer(), nil, 0, time.Second, discardLogger())

	p := tr.Translate(context.Background(), []conversation.Turn{{Role: conversation.User, Text: "oi"}})
	if p.Intent != intent.Unknown {
		t.Errorf("intent = %q", p.Intent)
	}
}

type staticSource []feedback.Record

func (s staticSource) RecentFeedback(_ context.Context, n int) ([]feedback.Record, error) {
	if n < len(s) {
		return s[len(s)-n:], nil
	}
	return s, nil
}

func TestTranslate_PromptCarriesDatesAndCorrections(t *testing.T) {
	llm := &scriptedLLM{out: `{"intent": "list_events", "entities": {}}`}
	examples := staticSource{
		{LastUserPrompt: "antigo", Correction: "não deve aparecer"},
		{LastUserPrompt: "o que tenho amanhã?", Correction: "amanhã é dia 11", Payload: &intent.Payload{Intent: intent.List}},
	}
	tr := New(llm, fixedNormalizer(), examples, 1, time.Second, discardLogger())

	history := []conversation.Turn{{Role: conversation.User, Text: "o que tenho hoje?"}}
	p := tr.Translate(context.Background(), history)
	if p.Intent != intent.List {
		t.Fatalf("intent = %q", p.Intent)
	}

	for _, want := range []string{
		"Hoje é 2025-06-10 (ter)",
		"de 2025-06-09 até 2025-06-15",
		"de 2025-06-16 até 2025-06-22",
		"2025-06-11T14:00:00",
		"2025-06-13T16:00:00",
		"Fuso horário: BRT",
		"amanhã é dia 11",
	} {
		if !strings.Contains(llm.system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(llm.system, "não deve aparecer") {
		t.Error("only the most recent corrections should be included")
	}
	if len(llm.turns) != 1 {
		t.Errorf("history passed = %d turns", len(llm.turns))
	}
}

func TestAnthropicMessages(t *testing.T) {
	history := []conversation.Turn{
		{Role: conversation.Assistant, Text: "Olá!"},
		{Role: conversation.User, Text: "marque dentista"},
		{Role: conversation.User, Text: "amanhã às 10"},
		{Role: conversation.Assistant, Text: "Feito"},
		{Role: conversation.User, Text: "obrigado"},
	}
	msgs := anthropicMessages(history)

	if len(msgs) != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Role != "user" || msgs[0].Content != "marque dentista\namanhã às 10" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[2].Role != "user" {
		t.Errorf("roles = %s, %s", msgs[1].Role, msgs[2].Role)
	}
}

func TestAnthropicLLM_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": `{"intent": "ask_availability", "entities": {"start_time": "2025-06-13T08:00:00", "end_time": "2025-06-13T12:00:00"}}`},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	client := anthropic.NewClient("test-key", "test-model")
	client.SetBaseURL(server.URL)
	tr := New(NewAnthropic(client), fixedNormalizer(), nil, 0, time.Second, discardLogger())

	p := tr.Translate(context.Background(), []conversation.Turn{{Role: conversation.User, Text: "estou livre sexta de manhã?"}})
	if p.Intent != intent.Availability {
		t.Errorf("intent = %q", p.Intent)
	}
}

func TestOpenAILLM_EndToEnd(t *testing.T) {
	var req struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"intent": "confirm_action", "entities": {}, "explanation": "Confirmado."}`,
				},
			}},
		})
	}))
	defer server.Close()

	llm := NewOpenAI("test-key", server.URL+"/v1", "gpt-test")
	tr := New(llm, fixedNormalizer(), nil, 0, time.Second, discardLogger())

	p := tr.Translate(context.Background(), []conversation.Turn{
		{Role: conversation.User, Text: "apague o dentista"},
		{Role: conversation.Assistant, Text: "Confirma?"},
		{Role: conversation.User, Text: "pode apagar sim, por favor"},
	})
	if p.Intent != intent.Confirm || p.Explanation != "Confirmado." {
		t.Errorf("payload = %+v", p)
	}
	if req.Model != "gpt-test" || req.ResponseFormat.Type != "json_object" {
		t.Errorf("request model=%q format=%q", req.Model, req.ResponseFormat.Type)
	}
	if len(req.Messages) != 4 || req.Messages[0].Role != "system" || req.Messages[2].Role != "assistant" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

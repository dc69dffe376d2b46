package translator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/agenda/internal/anthropic"
	"github.com/MikeSquared-Agency/agenda/internal/conversation"
)

const maxOutputTokens = 1024

// AnthropicLLM adapts the Messages API client.
type AnthropicLLM struct {
	client *anthropic.Client
}

func NewAnthropic(client *anthropic.Client) *AnthropicLLM {
	client.SetTemperature(0)
	return &AnthropicLLM{client: client}
}

func (a *AnthropicLLM) Complete(ctx context.Context, system string, history []conversation.Turn) (string, error) {
	msgs := anthropicMessages(history)
	if len(msgs) == 0 {
		return "", errors.New("no user turn to translate")
	}
	out, err := a.client.Complete(ctx, system, msgs, maxOutputTokens)
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}
	return out, nil
}

// anthropicMessages drops leading assistant turns and merges consecutive turns
// of one role, since the Messages API wants a user-first alternating list.
func anthropicMessages(history []conversation.Turn) []anthropic.Message {
	var out []anthropic.Message
	for _, turn := range history {
		role := "user"
		if turn.Role == conversation.Assistant {
			role = "assistant"
		}
		if len(out) == 0 && role != "user" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n" + turn.Text
			continue
		}
		out = append(out, anthropic.Message{Role: role, Content: turn.Text})
	}
	return out
}

// OpenAILLM talks to any OpenAI-compatible chat completion endpoint and asks
// for a JSON object response.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAILLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAILLM) Complete(ctx context.Context, system string, history []conversation.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == conversation.Assistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  msgs,
		MaxTokens: maxOutputTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

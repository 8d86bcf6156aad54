// Package llm wraps the hosted language model behind a small completion
// interface. The call is single-shot: no retries, no streaming; any failure
// fails the caller's whole turn.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aicmo/aicmo/internal/persona"
)

// Message roles on the completion wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string
	Content string
}

// Completer is the completion-client interface the orchestrator depends on.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params persona.GenParams) (string, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a Client. baseURL may be empty to use the default
// OpenAI endpoint; model names the completion model.
func NewClient(baseURL, apiKey, model string) *Client {
	// A failed completion fails the whole turn; the SDK must not retry.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client, model: model}
}

// Complete sends one synchronous completion request with the persona's
// generation parameters and returns the raw text of the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message, params persona.GenParams) (string, error) {
	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			wire = append(wire, openai.SystemMessage(m.Content))
		case RoleAssistant:
			wire = append(wire, openai.AssistantMessage(m.Content))
		default:
			wire = append(wire, openai.UserMessage(m.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: wire,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(params.MaxTokens)
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no content choices")
	}
	return resp.Choices[0].Message.Content, nil
}

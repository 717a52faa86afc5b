// Package llm adapts the external chat-completion backend. The adapter is
// stateless: every call carries the full windowed turn list and a reply
// length ceiling.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/keko-ai/keko/internal/keko/conversation"
)

// Fallback is the reply recorded and voiced when the backend answers but
// produces no usable candidate. It participates in history exactly like a
// real reply.
const Fallback = "Perdón, tuve un problemita y no pude pensar bien. Intentá de nuevo 😊"

// ErrNoCandidate reports that the backend call succeeded but returned no
// usable candidate. Complete pairs it with the Fallback text; callers that
// see it should log the degraded reply and carry on. Transport and auth
// failures are ordinary errors, not ErrNoCandidate, and must surface.
var ErrNoCandidate = errors.New("llm: no usable candidate in response")

// Config configures the completion gateway.
type Config struct {
	// APIKey is the bearer token for the API.
	APIKey string
	// BaseURL overrides the API endpoint. Defaults to the public OpenAI API.
	BaseURL string
	// Model is the chat model. Defaults to "gpt-4o-mini".
	Model string
	// MaxTokens is the reply-length ceiling. Defaults to 400.
	MaxTokens int
	// Timeout bounds each completion call. Defaults to 120s.
	Timeout time.Duration
}

// Gateway invokes the chat-completions API.
type Gateway struct {
	client    openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// New creates a Gateway from cfg, applying the documented defaults.
func New(cfg Config) *Gateway {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Gateway{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

// Complete sends the ordered turn list as a chat completion request and
// returns the first candidate's text. A response without a usable candidate
// yields (Fallback, ErrNoCandidate); backend failures yield ("", err).
func (g *Gateway) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case conversation.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case conversation.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		}
	}
	if len(messages) == 0 {
		return "", errors.New("llm: empty turn list")
	}

	req := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(g.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(g.maxTokens)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: completion request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Fallback, ErrNoCandidate
	}
	return resp.Choices[0].Message.Content, nil
}

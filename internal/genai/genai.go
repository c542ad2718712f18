// Package genai wraps the OpenAI chat-completions API as the classification
// capability the dialogue core depends on: it sends a fully-formed prompt and
// returns the raw model output, plus helpers for decoding the JSON the model
// is instructed to emit.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ClientInterface is the classification capability consumed by the dialogue
// core. Implementations may have arbitrary latency; callers must treat any
// error as the soft-fail extraction path, never as a crash.
type ClientInterface interface {
	Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client wraps the OpenAI chat-completions service.
type Client struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = openai.ChatModel(model) }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient initializes a client from OPENAI_API_KEY (and optionally
// OPENAI_BASE_URL) in the environment.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	c := &Client{
		client:  openai.NewClient(reqOpts...),
		model:   openai.ChatModelGPT4oMini,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify sends the system and user prompts and returns the model's raw
// text output. Classification prompts are deterministic decisions, so the
// temperature is kept near zero.
func (c *Client) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		slog.Warn("GenAI classify call failed", "model", c.model, "error", err)
		return "", fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classify: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

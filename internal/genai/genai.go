// Package genai wraps the OpenAI chat completion API for conversational
// drafting.
//
// All qualification decisions are made by the deterministic engine; this
// client only rephrases engine-selected prompts and drafts narrative text.
// Failures surface as upstream-failure errors so callers can degrade to
// template output instead of blocking a turn.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BrightDesk/LeadPipe/internal/models"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// ErrNoChoicesReturned indicates the API returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK completion service to chatService.
type openaiChatService struct {
	completions openai.ChatCompletionService
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// ClientInterface is the drafting surface consumed by the session manager,
// summarizer, and PRD generator.
type ClientInterface interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat    chatService
	model   openai.ChatModel
	timeout time.Duration
}

// Opts holds configuration for creating a Client.
type Opts struct {
	apiKey  string
	model   openai.ChatModel
	timeout time.Duration
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.apiKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.model = model }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.timeout = d }
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when no option provides one.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		model:   openai.ChatModelGPT4oMini,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.apiKey))
	slog.Debug("GenAI NewClient initialized", "model", cfg.model, "timeout", cfg.timeout)
	return &Client{
		chat:    &openaiChatService{completions: cli.Chat.Completions},
		model:   cfg.model,
		timeout: cfg.timeout,
	}, nil
}

// GeneratePrompt generates a response for a single system/user prompt pair.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

// GenerateWithMessages generates a response over a full message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Warn("GenAI GenerateWithMessages: completion failed", "error", err)
		return "", fmt.Errorf("chat completion: %v: %w", err, models.ErrUpstreamFailure)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", ErrNoChoicesReturned, models.ErrUpstreamFailure)
	}
	return resp.Choices[0].Message.Content, nil
}

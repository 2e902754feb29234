// ABOUTME: Narrator backed by the Anthropic Messages API.
// ABOUTME: Sends one user message per request and joins the returned text blocks.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harperreed/ringhealth/internal/logging"
)

// ErrNoAPIKey is returned when the narrator has no API key.
var ErrNoAPIKey = errors.New("anthropic API key not configured: set narrative.api_key or ANTHROPIC_API_KEY")

// AnthropicConfig configures an AnthropicNarrator.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string // overrides the API endpoint
	MaxRetries int
	Timeout    time.Duration
}

// AnthropicNarrator writes narratives with a Claude model.
type AnthropicNarrator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ Narrator = (*AnthropicNarrator)(nil)

// NewAnthropicNarrator creates a narrator. The key is required.
func NewAnthropicNarrator(cfg AnthropicConfig) (*AnthropicNarrator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model not configured")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicNarrator{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Narrate sends the rendered prompt and returns the model's text.
func (n *AnthropicNarrator) Narrate(ctx context.Context, in Input) (string, error) {
	system, user := BuildPrompt(in)

	start := time.Now()
	msg, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: n.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())

	logging.Ctx(ctx).Debug().Str("kind", string(in.Kind)).Str("model", n.model).
		Int64("input_tokens", msg.Usage.InputTokens).Int64("output_tokens", msg.Usage.OutputTokens).
		Dur("duration", time.Since(start)).Msg("narrative generated")

	if text == "" {
		return "", ErrEmptyNarrative
	}
	return text, nil
}

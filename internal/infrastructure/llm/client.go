package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"

	domainerrors "github.com/osintwatch/conflict-ingest/internal/domain/errors"
)

// Completer is what the extraction service needs from the model: one
// system-prompted completion per call.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps the Anthropic Messages API behind a semaphore so the
// pipeline never holds more in-flight model calls than configured,
// independent of how wide the article fan-out runs.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	sem       chan struct{}
	logger    *zap.Logger
}

func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		logger:    logger,
	}
}

// Complete runs one message exchange and returns the concatenated text
// blocks of the reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", domainerrors.NewLLMError("model returned no text content")
	}
	return sb.String(), nil
}

// classify maps SDK errors into the ingestion taxonomy. 429 and 5xx are
// retryable; everything else is terminal for the article.
func classify(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		appErr := domainerrors.NewLLMError("anthropic api error").WithCause(err)
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			appErr.Retryable = true
		}
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		appErr := domainerrors.NewLLMError("model call timed out").WithCause(err)
		appErr.Retryable = true
		return appErr
	}
	return domainerrors.NewLLMError("model call failed").WithCause(err)
}

// ExtractJSON trims any prose or code fencing the model wraps around its
// JSON payload, returning the outermost object.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

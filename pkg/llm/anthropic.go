package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/opencivics/gavel/pkg/config"
)

// AnthropicSummarizer implements Summarizer over the Anthropic Messages API.
type AnthropicSummarizer struct {
	client anthropic.Client
	cfg    *config.LLMConfig
}

// NewAnthropic builds the client, or ErrUnavailable when no API key is
// configured.
func NewAnthropic(cfg *config.LLMConfig) (*AnthropicSummarizer, error) {
	if !cfg.Available() {
		return nil, ErrUnavailable
	}
	return &AnthropicSummarizer{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
	}, nil
}

// SubmitBatch implements Summarizer.
func (s *AnthropicSummarizer) SubmitBatch(ctx context.Context, reqs []ItemRequest, sharedContext string) <-chan Chunk {
	return batchChunks(ctx, reqs, s.cfg.ChunkSize, func(ctx context.Context, req ItemRequest) (string, []string, error) {
		prompt, err := ItemPrompt(req, sharedContext)
		if err != nil {
			return "", nil, err
		}
		return s.Summarize(ctx, prompt)
	})
}

// Summarize implements Summarizer.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, prompt string) (string, []string, error) {
	text, err := s.callWithRetry(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	summary, topics, err := parseReply(text)
	if err != nil {
		return "", nil, err
	}
	return summary, NormalizeTopics(topics), nil
}

func (s *AnthropicSummarizer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.cfg.Model),
		MaxTokens: int64(s.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := s.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", s.cfg.MaxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// parseReply extracts the JSON object the prompts demand. Models sometimes
// wrap it in prose or a code fence; take the outermost braces.
func parseReply(text string) (string, []string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", nil, fmt.Errorf("no JSON object in model reply")
	}

	var out struct {
		Summary string   `json:"summary"`
		Topics  []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return "", nil, fmt.Errorf("decoding model reply: %w", err)
	}
	if out.Summary == "" {
		return "", nil, fmt.Errorf("model reply has empty summary")
	}
	return out.Summary, out.Topics, nil
}

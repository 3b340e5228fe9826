package config

import "time"

// LLMConfig controls the Anthropic summarizer client.
type LLMConfig struct {
	// APIKey authenticates against the Anthropic API. When empty the
	// processor is unavailable and jobs fail non-retryably.
	APIKey string `mapstructure:"api_key"`

	// Model is the Anthropic model identifier.
	Model string `mapstructure:"model"`

	// MaxTokens caps the response length per request.
	MaxTokens int `mapstructure:"max_tokens"`

	// MaxRetries and InitialBackoff govern transient-error retry on a single
	// API call (capped exponential).
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`

	// ChunkSize is how many item requests are grouped into one batch chunk.
	// Results are written to the database chunk by chunk.
	ChunkSize int `mapstructure:"chunk_size"`
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Model:          "claude-3-5-haiku-latest",
		MaxTokens:      1024,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		ChunkSize:      4,
	}
}

// Available reports whether the summarizer can be used at all.
func (c *LLMConfig) Available() bool {
	return c.APIKey != ""
}

package llm

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Analyze sends a prompt with a system instruction and returns the raw
	// response text.
	Analyze(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Config holds configuration for LLM clients and the table classifier.
type Config struct {
	TokenSource    oauth2.TokenSource
	Provider       string
	APIKey         string
	Model          string
	ClaudeCodePath string
	BaseURL        string
	Project        string
	Location       string
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

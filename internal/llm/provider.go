package llm

import (
	"context"
	"errors"
)

// Provider abstracts the text/vision backends (Gemini, OpenRouter, Claude, OpenAI).
// One provider is chosen at configuration time and shared by every stage.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends one prompt, optionally with an image, and returns the text reply
	Generate(ctx context.Context, req Request) (string, error)

	// IsEnabled returns whether the provider is configured with valid credentials
	IsEnabled() bool
}

// Request is a single-turn generation call.
type Request struct {
	System      string
	Prompt      string
	Image       *Image
	Temperature float32
	MaxTokens   int
}

var (
	// ErrDisabled is returned by providers constructed without an API key.
	ErrDisabled = errors.New("llm provider is not configured")

	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// DefaultMaxTokens caps replies when a request does not set MaxTokens.
const DefaultMaxTokens = 4096

// MaxTokensOrDefault returns req.MaxTokens, or DefaultMaxTokens when unset.
func (r Request) MaxTokensOrDefault() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

// NewProvider factory lives in cmd/landmark-story/providers.go to avoid import cycles.
// Each provider package (providers/claude, providers/gemini, providers/openai,
// providers/openrouter) exports a NewProvider function.

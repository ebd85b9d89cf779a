package main

import (
	"context"
	"fmt"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/internal/llm/providers/claude"
	"github.com/zhe.chen/landmark-story/internal/llm/providers/gemini"
	"github.com/zhe.chen/landmark-story/internal/llm/providers/openai"
	"github.com/zhe.chen/landmark-story/internal/llm/providers/openrouter"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// createLLMProvider creates the text/vision provider named in the configuration
func createLLMProvider(ctx context.Context, config types.LLMConfig) (llm.Provider, error) {
	switch config.Provider {
	case "anthropic", "claude":
		return claude.NewProvider(config.Anthropic)

	case "google", "gemini":
		return gemini.NewProvider(ctx, config.Google)

	case "openai":
		return openai.NewProvider(config.OpenAI)

	case "openrouter":
		return openrouter.NewProvider(config.OpenRouter)

	case "":
		return nil, fmt.Errorf("llm.provider not specified in config")

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: gemini, openrouter, anthropic, openai)", config.Provider)
	}
}

package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Provider implements llm.Provider for Google Gemini
type Provider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	enabled bool
}

// NewProvider creates a new Gemini provider
func NewProvider(ctx context.Context, config types.GoogleConfig) (*Provider, error) {
	if config.APIKey == "" {
		return &Provider{enabled: false}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		client:  client,
		model:   config.Model,
		timeout: config.Timeout,
		enabled: true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "gemini"
}

// IsEnabled returns whether the provider is configured
func (p *Provider) IsEnabled() bool {
	return p.enabled
}

// Generate sends the prompt (and image, if any) as a single user turn
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if !p.enabled {
		return "", llm.ErrDisabled
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	contents := []*genai.Content{{Role: "user", Parts: buildParts(req)}}
	config := buildConfig(req)

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate (%s): %w", p.model, err)
	}

	text := strings.TrimSpace(resp.Text())
	event := log.Debug().
		Str("provider", "gemini").
		Str("model", p.model).
		Bool("image", !req.Image.Empty()).
		Int("response_chars", len(text)).
		Dur("elapsed", time.Since(start))
	if resp.UsageMetadata != nil {
		event = event.
			Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("output_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	event.Msg("Gemini response received")

	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func buildParts(req llm.Request) []*genai.Part {
	var parts []*genai.Part
	if !req.Image.Empty() {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MediaType,
				Data:     req.Image.Data,
			},
		})
	}
	return append(parts, &genai.Part{Text: req.Prompt})
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokensOrDefault()),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Temperature > 0 {
		temperature := req.Temperature
		config.Temperature = &temperature
	}
	return config
}

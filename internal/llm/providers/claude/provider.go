package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Provider implements llm.Provider for Anthropic Claude
type Provider struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	enabled bool
}

// NewProvider creates a new Claude provider
func NewProvider(config types.AnthropicConfig) (*Provider, error) {
	if config.APIKey == "" {
		return &Provider{enabled: false}, nil
	}

	return &Provider{
		client:  anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		model:   config.Model,
		timeout: config.Timeout,
		enabled: true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "anthropic"
}

// IsEnabled returns whether the provider is configured
func (p *Provider) IsEnabled() bool {
	return p.enabled
}

// Generate sends one user message with an optional base64 image block
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if !p.enabled {
		return "", llm.ErrDisabled
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := p.client.Messages.New(ctx, buildParams(p.model, req))
	if err != nil {
		return "", fmt.Errorf("claude messages (%s): %w", p.model, err)
	}

	text := strings.TrimSpace(extractText(response))
	log.Debug().
		Str("provider", "anthropic").
		Str("model", p.model).
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Str("stop_reason", string(response.StopReason)).
		Dur("elapsed", time.Since(start)).
		Msg("Claude response received")

	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func buildParams(model string, req llm.Request) anthropic.MessageNewParams {
	var blocks []anthropic.ContentBlockParamUnion
	if !req.Image.Empty() {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, req.Image.Base64()))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokensOrDefault()),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	return params
}

// extractText concatenates the text blocks of a reply
func extractText(response *anthropic.Message) string {
	var sb strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	return sb.String()
}

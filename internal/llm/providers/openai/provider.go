package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// ChatCompleter is the slice of the go-openai client used here.
// OpenRouter speaks the same API, so it reuses Complete.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Provider implements llm.Provider for OpenAI
type Provider struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	enabled bool
}

// NewProvider creates a new OpenAI provider
func NewProvider(config types.OpenAIConfig) (*Provider, error) {
	if config.APIKey == "" {
		return &Provider{enabled: false}, nil
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Organization != "" {
		clientConfig.OrgID = config.Organization
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   config.Model,
		timeout: config.Timeout,
		enabled: true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// IsEnabled returns whether the provider is configured
func (p *Provider) IsEnabled() bool {
	return p.enabled
}

// Generate runs one chat completion
func (p *Provider) Generate(ctx context.Context, req llm.Request) (string, error) {
	if !p.enabled {
		return "", llm.ErrDisabled
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return Complete(ctx, p.client, p.Name(), p.model, req)
}

// Complete sends req as a chat completion and returns the first choice's text.
func Complete(ctx context.Context, client ChatCompleter, providerName, model string, req llm.Request) (string, error) {
	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, BuildRequest(model, req))
	if err != nil {
		return "", fmt.Errorf("%s chat completion (%s): %w", providerName, model, err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	choice := resp.Choices[0]

	log.Debug().
		Str("provider", providerName).
		Str("model", model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(choice.FinishReason)).
		Dur("elapsed", time.Since(start)).
		Msg("Chat completion received")

	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%s: response blocked by content filter", providerName)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// BuildRequest converts an llm.Request to the chat completion wire shape.
func BuildRequest(model string, req llm.Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Image.Empty() {
		user.Content = req.Prompt
	} else {
		user.MultiContent = []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.Image.DataURL(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
		}
	}
	messages = append(messages, user)

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokensOrDefault(),
	}
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

func TestNewProviderWithoutKeyIsDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), types.GoogleConfig{})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.IsEnabled() {
		t.Error("provider without api key should be disabled")
	}
	if _, err := p.Generate(context.Background(), llm.Request{Prompt: "hi"}); !errors.Is(err, llm.ErrDisabled) {
		t.Errorf("Generate() error = %v, want ErrDisabled", err)
	}
}

func TestBuildParts(t *testing.T) {
	tests := []struct {
		name      string
		req       llm.Request
		wantParts int
		wantBlob  bool
	}{
		{"text only", llm.Request{Prompt: "describe"}, 1, false},
		{"with image", llm.Request{Prompt: "describe", Image: llm.NewImage([]byte{1, 2, 3}, "image/png")}, 2, true},
		{"empty image ignored", llm.Request{Prompt: "describe", Image: &llm.Image{}}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := buildParts(tt.req)
			if len(parts) != tt.wantParts {
				t.Fatalf("got %d parts, want %d", len(parts), tt.wantParts)
			}
			if got := parts[0].InlineData != nil; got != tt.wantBlob {
				t.Errorf("first part is blob = %v, want %v", got, tt.wantBlob)
			}
			if parts[len(parts)-1].Text != "describe" {
				t.Errorf("last part text = %q", parts[len(parts)-1].Text)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	config := buildConfig(llm.Request{System: "be brief", Temperature: 0.7})
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "be brief" {
		t.Error("system instruction not set")
	}
	if config.Temperature == nil || *config.Temperature != 0.7 {
		t.Error("temperature not set")
	}
	if config.MaxOutputTokens != llm.DefaultMaxTokens {
		t.Errorf("MaxOutputTokens = %d", config.MaxOutputTokens)
	}

	bare := buildConfig(llm.Request{})
	if bare.SystemInstruction != nil || bare.Temperature != nil {
		t.Error("zero request should leave optional fields nil")
	}
}

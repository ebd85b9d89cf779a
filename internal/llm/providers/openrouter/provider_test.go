package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

func TestHeaderTransportAddsHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: &headerTransport{
		Base:    http.DefaultTransport,
		Headers: map[string]string{"HTTP-Referer": httpReferer, "X-Title": appTitle},
	}}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotReferer != httpReferer || gotTitle != appTitle {
		t.Errorf("headers = (%q, %q)", gotReferer, gotTitle)
	}
}

func TestGenerateAgainstCompatibleServer(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "Luxor Temple"},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer server.Close()

	clientConfig := openai.DefaultConfig("test-key")
	clientConfig.BaseURL = server.URL
	p := &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   "meta-llama/llama-4-maverick:free",
		enabled: true,
	}

	text, err := p.Generate(context.Background(), llm.Request{Prompt: "name it"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Luxor Temple" {
		t.Errorf("text = %q", text)
	}
	if got.Model != "meta-llama/llama-4-maverick:free" {
		t.Errorf("model sent = %q", got.Model)
	}
}

func TestNewProviderWithoutKeyIsDisabled(t *testing.T) {
	p, err := NewProvider(types.OpenRouterConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if p.IsEnabled() {
		t.Error("expected disabled provider")
	}
	if _, err := p.Generate(context.Background(), llm.Request{}); !errors.Is(err, llm.ErrDisabled) {
		t.Errorf("error = %v", err)
	}
}

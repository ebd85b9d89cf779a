package main

import (
	"context"
	"strings"
	"testing"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

func TestCreateLLMProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  string
	}{
		{provider: "anthropic", wantName: "anthropic"},
		{provider: "claude", wantName: "anthropic"},
		{provider: "gemini", wantName: "gemini"},
		{provider: "google", wantName: "gemini"},
		{provider: "openai", wantName: "openai"},
		{provider: "openrouter", wantName: "openrouter"},
		{provider: "", wantErr: "not specified"},
		{provider: "watson", wantErr: "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			// no api keys: every provider is built disabled
			p, err := createLLMProvider(context.Background(), types.LLMConfig{Provider: tt.provider})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("createLLMProvider() error = %v", err)
			}
			if p.Name() != tt.wantName || p.IsEnabled() {
				t.Errorf("provider = %s enabled=%v", p.Name(), p.IsEnabled())
			}
		})
	}
}

func TestNewCacheStore(t *testing.T) {
	store, err := newCacheStore(context.Background(), types.CacheConfig{Backend: "file", Path: t.TempDir() + "/cache.json"})
	if err != nil || store == nil {
		t.Fatalf("newCacheStore(file) = %v, %v", store, err)
	}
	if _, err := newCacheStore(context.Background(), types.CacheConfig{Backend: "redis"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestNewUploaderDisabledWithoutBucket(t *testing.T) {
	u, err := newUploader(context.Background(), types.StorageConfig{})
	if err != nil || u != nil {
		t.Errorf("newUploader() = %v, %v; want nil, nil", u, err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret")

	cfg, err := Parse([]byte(`
llm:
  provider: Gemini
  google:
    api_key: ${TEST_GEMINI_KEY}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", cfg.LLM.Provider)
	}
	if cfg.LLM.Google.APIKey != "secret" {
		t.Errorf("api key not expanded from env: %q", cfg.LLM.Google.APIKey)
	}
	if cfg.LLM.Google.Model != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", cfg.LLM.Google.Model, DefaultGeminiModel)
	}
	if cfg.Pipeline.ShotCount != DefaultShotCount {
		t.Errorf("shot_count = %d, want %d", cfg.Pipeline.ShotCount, DefaultShotCount)
	}
	if cfg.Pipeline.MaxRefinements != MaxRefinements {
		t.Errorf("max_refinements = %d, want %d", cfg.Pipeline.MaxRefinements, MaxRefinements)
	}
	if cfg.Resolver.PreferUserName == nil || !*cfg.Resolver.PreferUserName {
		t.Error("prefer_user_name should default to true")
	}
	if cfg.Video.PollAttempts != DefaultPollAttempts || cfg.Video.PollInterval != DefaultPollInterval {
		t.Errorf("poll policy = %d x %v", cfg.Video.PollAttempts, cfg.Video.PollInterval)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestParseKeepsExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
llm:
  provider: openrouter
  openrouter:
    api_key: k
    model: some/model
    timeout: 45s
pipeline:
  shot_count: 3
  max_refinements: 9
resolver:
  prefer_user_name: false
video:
  enabled: true
  base_url: http://localhost:8080
  poll_interval: 2s
cache:
  backend: file
  path: /tmp/cache.json
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.LLM.OpenRouter.Model != "some/model" {
		t.Errorf("model = %q", cfg.LLM.OpenRouter.Model)
	}
	if cfg.LLM.OpenRouter.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.OpenRouter.Timeout)
	}
	if cfg.Pipeline.ShotCount != 3 {
		t.Errorf("shot_count = %d", cfg.Pipeline.ShotCount)
	}
	if cfg.Pipeline.MaxRefinements != MaxRefinements {
		t.Errorf("max_refinements should be capped at %d, got %d", MaxRefinements, cfg.Pipeline.MaxRefinements)
	}
	if *cfg.Resolver.PreferUserName {
		t.Error("prefer_user_name = true, want false")
	}
	if cfg.Video.PollInterval != 2*time.Second {
		t.Errorf("poll_interval = %v", cfg.Video.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		yaml          string
		errorContains string
	}{
		{
			name:          "missing api key",
			yaml:          "llm:\n  provider: gemini\n",
			errorContains: "llm.google.api_key",
		},
		{
			name:          "unknown provider",
			yaml:          "llm:\n  provider: watson\n",
			errorContains: "unsupported llm.provider",
		},
		{
			name:          "video without base url",
			yaml:          "llm:\n  google:\n    api_key: k\nvideo:\n  enabled: true\n",
			errorContains: "video.base_url",
		},
		{
			name:          "mcp video without server",
			yaml:          "llm:\n  google:\n    api_key: k\nvideo:\n  enabled: true\n  backend: mcp\n",
			errorContains: "video.mcp",
		},
		{
			name:          "dynamodb without table",
			yaml:          "llm:\n  google:\n    api_key: k\ncache:\n  backend: dynamodb\n",
			errorContains: "cache.table",
		},
		{
			name:          "shot count too large",
			yaml:          "llm:\n  google:\n    api_key: k\npipeline:\n  shot_count: 40\n",
			errorContains: "pipeline.shot_count",
		},
	}

	t.Setenv("GOOGLE_API_KEY", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error %q does not contain %q", err, tt.errorContains)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: anthropic\n  anthropic:\n    api_key: k\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Anthropic.Model != DefaultAnthropicModel {
		t.Errorf("model = %q", cfg.LLM.Anthropic.Model)
	}
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Cache.Backend != "memory" || cfg.LLM.Provider != DefaultProvider {
		t.Errorf("defaults not applied: %+v", cfg.Cache)
	}
	if err := Validate(cfg); err == nil {
		t.Error("defaults alone should not validate without an api key")
	}
}

func TestApplyDefaultsReadsKeysFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := Parse([]byte("llm:\n  provider: anthropic\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.LLM.Anthropic.APIKey != "from-env" {
		t.Errorf("api key = %q", cfg.LLM.Anthropic.APIKey)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Defaults for values the config file may leave out.
const (
	DefaultProvider        = "gemini"
	DefaultGeminiModel     = "gemini-2.0-flash-exp"
	DefaultOpenRouterModel = "meta-llama/llama-4-maverick:free"
	DefaultAnthropicModel  = "claude-sonnet-4-5"
	DefaultOpenAIModel     = "gpt-4o"
	DefaultTemperature     = 0.7

	DefaultShotCount      = 5
	MaxShotCount          = 15
	MaxRefinements        = 3
	DefaultStoryType      = "default"
	DefaultOutputDir      = "output"
	DefaultVoice          = "en-US-GuyNeural"
	DefaultVideoSize      = "1280*720"
	DefaultVideoModel     = "wan2.1-t2v-turbo"
	DefaultPollAttempts   = 20
	DefaultPollInterval   = 10 * time.Second
	DefaultMaxDimension   = 1568
	DefaultPresignExpiry  = time.Hour
	DefaultRequestTimeout = 2 * time.Minute
)

// Load reads a YAML config file, expands ${VAR} references from the
// environment, applies defaults, and validates the result.
func Load(path string) (*types.Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that never call a model.
// A missing file yields the defaults.
func Read(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*types.Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte) (*types.Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg types.Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills zero values in place.
func ApplyDefaults(cfg *types.Config) {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	// keys left out of the file fall back to the usual environment variables
	setString(&cfg.LLM.Google.APIKey, os.Getenv("GOOGLE_API_KEY"))
	setString(&cfg.LLM.OpenRouter.APIKey, os.Getenv("OPENROUTER_API_KEY"))
	setString(&cfg.LLM.Anthropic.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	setString(&cfg.LLM.OpenAI.APIKey, os.Getenv("OPENAI_API_KEY"))
	setString(&cfg.Video.APIKey, os.Getenv("DASHSCOPE_API_KEY"))

	setString(&cfg.LLM.Google.Model, DefaultGeminiModel)
	setString(&cfg.LLM.OpenRouter.Model, DefaultOpenRouterModel)
	setString(&cfg.LLM.Anthropic.Model, DefaultAnthropicModel)
	setString(&cfg.LLM.OpenAI.Model, DefaultOpenAIModel)
	setDuration(&cfg.LLM.Google.Timeout, DefaultRequestTimeout)
	setDuration(&cfg.LLM.OpenRouter.Timeout, DefaultRequestTimeout)
	setDuration(&cfg.LLM.Anthropic.Timeout, DefaultRequestTimeout)
	setDuration(&cfg.LLM.OpenAI.Timeout, DefaultRequestTimeout)

	setString(&cfg.Pipeline.OutputDir, DefaultOutputDir)
	setString(&cfg.Pipeline.StoryType, DefaultStoryType)
	if cfg.Pipeline.ShotCount == 0 {
		cfg.Pipeline.ShotCount = DefaultShotCount
	}
	if cfg.Pipeline.MaxRefinements == 0 || cfg.Pipeline.MaxRefinements > MaxRefinements {
		cfg.Pipeline.MaxRefinements = MaxRefinements
	}

	if cfg.Resolver.PreferUserName == nil {
		prefer := true
		cfg.Resolver.PreferUserName = &prefer
	}

	setString(&cfg.TTS.Command, "edge-tts")
	setString(&cfg.TTS.Voice, DefaultVoice)
	if cfg.TTS.Retries == 0 {
		cfg.TTS.Retries = 3
	}
	setDuration(&cfg.TTS.Timeout, time.Minute)

	setString(&cfg.Video.Backend, "http")
	setString(&cfg.Video.Size, DefaultVideoSize)
	setString(&cfg.Video.Model, DefaultVideoModel)
	setString(&cfg.Video.FFmpeg, "ffmpeg")
	if cfg.Video.PollAttempts == 0 {
		cfg.Video.PollAttempts = DefaultPollAttempts
	}
	setDuration(&cfg.Video.PollInterval, DefaultPollInterval)
	setDuration(&cfg.Video.Timeout, DefaultRequestTimeout)
	if cfg.Video.Workers == 0 {
		cfg.Video.Workers = 1
	}
	setString(&cfg.Video.MCP.Tool, "generate_video")
	setDuration(&cfg.Video.MCP.Timeout, 30*time.Second)

	setString(&cfg.Cache.Backend, "memory")
	setDuration(&cfg.Storage.PresignExpiry, DefaultPresignExpiry)

	if cfg.Image.MaxDimension == 0 {
		cfg.Image.MaxDimension = DefaultMaxDimension
	}
}

// Validate reports every configuration problem at once.
func Validate(cfg *types.Config) error {
	var errs []error

	switch cfg.LLM.Provider {
	case "gemini", "google":
		if cfg.LLM.Google.APIKey == "" {
			errs = append(errs, errors.New("llm.google.api_key is required for provider gemini"))
		}
	case "openrouter":
		if cfg.LLM.OpenRouter.APIKey == "" {
			errs = append(errs, errors.New("llm.openrouter.api_key is required for provider openrouter"))
		}
	case "anthropic", "claude":
		if cfg.LLM.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("llm.anthropic.api_key is required for provider anthropic"))
		}
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("llm.openai.api_key is required for provider openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported llm.provider %q", cfg.LLM.Provider))
	}

	if cfg.Pipeline.ShotCount < 1 || cfg.Pipeline.ShotCount > MaxShotCount {
		errs = append(errs, fmt.Errorf("pipeline.shot_count must be between 1 and %d", MaxShotCount))
	}
	if cfg.Pipeline.MaxRefinements < 0 {
		errs = append(errs, errors.New("pipeline.max_refinements must not be negative"))
	}

	if cfg.Video.Enabled {
		switch cfg.Video.Backend {
		case "http":
			if cfg.Video.BaseURL == "" {
				errs = append(errs, errors.New("video.base_url is required for the http backend"))
			}
		case "mcp":
			if cfg.Video.MCP.URL == "" && len(cfg.Video.MCP.Command) == 0 {
				errs = append(errs, errors.New("video.mcp needs a url or a command"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported video.backend %q", cfg.Video.Backend))
		}
		if cfg.Video.Workers < 1 {
			errs = append(errs, errors.New("video.workers must be at least 1"))
		}
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "file":
		if cfg.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required for the file backend"))
		}
	case "dynamodb":
		if cfg.Cache.Table == "" {
			errs = append(errs, errors.New("cache.table is required for the dynamodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache.backend %q", cfg.Cache.Backend))
	}

	return errors.Join(errs...)
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}

package types

import "time"

// Config represents the application configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Landmarks LandmarksConfig `yaml:"landmarks"`
	TTS       TTSConfig       `yaml:"tts"`
	Video     VideoConfig     `yaml:"video"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Image     ImageConfig     `yaml:"image"`
}

// LLMConfig selects the text/vision backend and holds per-provider settings
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "gemini", "openrouter", "anthropic", "openai"
	Temperature float32 `yaml:"temperature"`

	Google     GoogleConfig     `yaml:"google"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
}

// GoogleConfig for Gemini
type GoogleConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"` // e.g., "gemini-2.0-flash-exp"
	Timeout time.Duration `yaml:"timeout"`
}

// OpenRouterConfig for OpenRouter (OpenAI-compatible API)
type OpenRouterConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"` // e.g., "meta-llama/llama-4-maverick:free"
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicConfig for Claude
type AnthropicConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIConfig for GPT models
type OpenAIConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`        // e.g., "gpt-4o"
	Organization string        `yaml:"organization"` // Optional
	Timeout      time.Duration `yaml:"timeout"`
}

// PipelineConfig defines pipeline execution parameters
type PipelineConfig struct {
	OutputDir       string `yaml:"output_dir"`
	ShotCount       int    `yaml:"shot_count"`
	MaxRefinements  int    `yaml:"max_refinements"`
	StoryType       string `yaml:"story_type"`
	ForceRegenerate bool   `yaml:"force_regenerate"`
}

// ResolverConfig controls landmark name resolution
type ResolverConfig struct {
	// PreferUserName makes a user-supplied name win over automated extraction.
	// When false the user name is only used if extraction and keyword scoring fail.
	PreferUserName *bool `yaml:"prefer_user_name"`
}

// LandmarksConfig points at an optional gazetteer file
type LandmarksConfig struct {
	Path string `yaml:"path"`
}

// TTSConfig defines narration synthesis
type TTSConfig struct {
	Enabled bool          `yaml:"enabled"`
	Command string        `yaml:"command"` // defaults to edge-tts
	Voice   string        `yaml:"voice"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

// VideoConfig defines text-to-video generation and concatenation
type VideoConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"` // "http" or "mcp"
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Size         string        `yaml:"size"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
	FFmpeg       string        `yaml:"ffmpeg"`
	Timeout      time.Duration `yaml:"timeout"`
	MCP          ServerConfig  `yaml:"mcp"`
}

// ServerConfig defines MCP server connection parameters
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Command   []string          `yaml:"command"`   // For stdio transport
	URL       string            `yaml:"url"`       // For HTTP transport
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Tool      string            `yaml:"tool"`      // tool invoked per shot
	Timeout   time.Duration     `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers,omitempty"` // HTTP headers (e.g., Authorization)
}

// CacheConfig selects the video cache backend
type CacheConfig struct {
	Backend string `yaml:"backend"` // "memory", "file", "dynamodb"
	Path    string `yaml:"path"`    // file backend
	Table   string `yaml:"table"`   // dynamodb backend
}

// StorageConfig enables uploading final videos to S3
type StorageConfig struct {
	S3Bucket      string        `yaml:"s3_bucket"`
	S3Prefix      string        `yaml:"s3_prefix"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// ImageConfig bounds the photo sent to the vision model
type ImageConfig struct {
	MaxDimension int `yaml:"max_dimension"`
}

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolCallResult represents the result of a tool invocation
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// ContentBlock represents a content item in tool result
type ContentBlock struct {
	Type string `json:"type"` // "text", "image", "resource"
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// Shot is one planned video segment
type Shot struct {
	ShotNumber         int    `json:"shot_number"`
	DurationSeconds    int    `json:"duration_seconds"`
	ShotType           string `json:"shot_type"`
	VisualDescription  string `json:"visual_description"`
	Narration          string `json:"narration"`
	Mood               string `json:"mood"`
	Transition         string `json:"transition"`
	AIGenerationPrompt string `json:"ai_generation_prompt"`
	AudioPath          string `json:"audio_path,omitempty"`
	ClipPath           string `json:"clip_path,omitempty"`
}

// Shot field defaults applied when a model omits them
const (
	DefaultShotDuration = 5
	DefaultShotType     = "Medium shot"
)

// UnknownLandmark is the sentinel name when nothing could be resolved
const UnknownLandmark = "Unknown"

// PipelineStage represents a stage in the execution pipeline
type PipelineStage string

const (
	StageInit        PipelineStage = "init"
	StageDetect      PipelineStage = "detect"
	StageExtractName PipelineStage = "extract_name"
	StageNarrate     PipelineStage = "narrate"
	StageShoot       PipelineStage = "shoot"
	StageRefine      PipelineStage = "refine"
	StageNarration   PipelineStage = "narration"
	StageVideo       PipelineStage = "video"
	StageOutput      PipelineStage = "output"
	StageComplete    PipelineStage = "complete"
)

// StageStatus represents the execution status of a stage
type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusRunning   StageStatus = "running"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/cache"
	"github.com/zhe.chen/landmark-story/internal/config"
	"github.com/zhe.chen/landmark-story/internal/landmarks"
	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/internal/resolver"
	"github.com/zhe.chen/landmark-story/internal/storage"
	"github.com/zhe.chen/landmark-story/internal/tts"
	"github.com/zhe.chen/landmark-story/internal/video"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

var errNoProvider = errors.New("no text generation provider configured")

// Options are the per-pipeline settings.
type Options struct {
	OutputDir      string
	ShotCount      int
	MaxRefinements int // capped at config.MaxRefinements
	StoryType      string
	Temperature    float32

	TTSEnabled bool
	Voice      string

	VideoEnabled    bool
	VideoSize       string
	VideoModel      string
	PollPolicy      video.PollPolicy
	Workers         int
	ForceRegenerate bool

	PreferUserName bool
	NearbyCount    int
}

// DefaultOptions returns the settings used when no config file is given.
func DefaultOptions() Options {
	return Options{
		OutputDir:      config.DefaultOutputDir,
		ShotCount:      config.DefaultShotCount,
		MaxRefinements: config.MaxRefinements,
		StoryType:      config.DefaultStoryType,
		Temperature:    config.DefaultTemperature,
		Voice:          config.DefaultVoice,
		VideoSize:      config.DefaultVideoSize,
		VideoModel:     config.DefaultVideoModel,
		PollPolicy:     video.DefaultPollPolicy(),
		Workers:        1,
		PreferUserName: true,
		NearbyCount:    landmarks.DefaultTopN,
	}
}

// OptionsFromConfig maps a loaded config onto Options.
func OptionsFromConfig(cfg *types.Config) Options {
	opts := DefaultOptions()
	opts.OutputDir = cfg.Pipeline.OutputDir
	opts.ShotCount = cfg.Pipeline.ShotCount
	opts.MaxRefinements = cfg.Pipeline.MaxRefinements
	opts.StoryType = cfg.Pipeline.StoryType
	opts.ForceRegenerate = cfg.Pipeline.ForceRegenerate
	opts.Temperature = cfg.LLM.Temperature
	opts.TTSEnabled = cfg.TTS.Enabled
	opts.Voice = cfg.TTS.Voice
	opts.VideoEnabled = cfg.Video.Enabled
	opts.VideoSize = cfg.Video.Size
	opts.VideoModel = cfg.Video.Model
	opts.PollPolicy = video.PollPolicy{Attempts: cfg.Video.PollAttempts, Interval: cfg.Video.PollInterval}
	opts.Workers = cfg.Video.Workers
	if cfg.Resolver.PreferUserName != nil {
		opts.PreferUserName = *cfg.Resolver.PreferUserName
	}
	return opts
}

// NameResolver picks the canonical landmark name.
type NameResolver interface {
	Resolve(ctx context.Context, analysis, userName string) resolver.Result
}

// Deps are the collaborators a pipeline calls out to. Only Provider is
// needed for the text stages; a nil TTS or Video turns that stage off.
type Deps struct {
	Provider  llm.Provider
	Resolver  NameResolver    // defaults to resolver.New over Provider and Landmarks
	Landmarks landmarks.Store // optional
	Cache     cache.Store     // defaults to an in-memory store
	TTS       tts.Synthesizer
	Video     video.Generator
	Concat    video.Concatenator
	Uploader  storage.Uploader // optional
}

// Pipeline runs the photo-to-story stages in a fixed order
type Pipeline struct {
	opts Options

	provider  llm.Provider
	resolver  NameResolver
	landmarks landmarks.Store
	cache     cache.Store
	tts       tts.Synthesizer
	video     video.Generator
	clips     *video.CachedGenerator
	concat    video.Concatenator
	uploader  storage.Uploader

	// OnProgress, when set, receives every progress event as it happens.
	OnProgress func(ProgressEvent)
}

// New creates a pipeline.
func New(opts Options, deps Deps) *Pipeline {
	opts.MaxRefinements = min(max(opts.MaxRefinements, 0), config.MaxRefinements)
	if opts.ShotCount <= 0 {
		opts.ShotCount = config.DefaultShotCount
	}
	if opts.StoryType == "" {
		opts.StoryType = config.DefaultStoryType
	}
	if opts.OutputDir == "" {
		opts.OutputDir = config.DefaultOutputDir
	}
	if opts.Voice == "" {
		opts.Voice = tts.DefaultVoice
	}

	p := &Pipeline{
		opts:      opts,
		provider:  deps.Provider,
		resolver:  deps.Resolver,
		landmarks: deps.Landmarks,
		cache:     deps.Cache,
		tts:       deps.TTS,
		video:     deps.Video,
		concat:    deps.Concat,
		uploader:  deps.Uploader,
	}
	if p.resolver == nil {
		p.resolver = resolver.New(deps.Provider, deps.Landmarks, opts.PreferUserName)
	}
	if p.cache == nil {
		p.cache = cache.NewMemoryStore()
	}
	if p.video != nil {
		p.clips = video.NewCachedGenerator(p.cache, p.video, opts.PollPolicy, opts.ForceRegenerate)
	}
	return p
}

// Execute runs every stage once, Refine up to MaxRefinements times, and
// always returns a record and its summary. Stage failures are recorded in
// the record and the summary's status instead of stopping the run.
func (p *Pipeline) Execute(ctx context.Context, in Input) (*Record, *Summary) {
	providerName := ""
	if p.provider != nil {
		providerName = p.provider.Name()
	}
	rec := newRecord(in, providerName, p.opts.StoryType)
	rec.onProgress = p.OnProgress

	manifest := NewManifest(rec)
	manifestPath := filepath.Join(p.runDir(rec), "manifest.json")
	if err := os.MkdirAll(p.runDir(rec), 0755); err != nil {
		rec.warn(types.StageInit, "Failed to create run directory: %v", err)
	}
	rec.info(types.StageInit, "Starting run %s", rec.RunID)

	for _, s := range []struct {
		stage types.PipelineStage
		step  StepFunc
	}{
		{types.StageDetect, Detect},
		{types.StageExtractName, ExtractName},
		{types.StageNarrate, Narrate},
		{types.StageShoot, Shoot},
	} {
		p.runStage(ctx, s.stage, s.step, rec, manifest, manifestPath)
	}

	for p.shouldRefine(rec) {
		before := rec.IterationCount
		p.runStage(ctx, types.StageRefine, Refine, rec, manifest, manifestPath)
		if rec.IterationCount == before {
			break
		}
	}

	if p.opts.TTSEnabled && p.tts != nil {
		p.runStage(ctx, types.StageNarration, Narration, rec, manifest, manifestPath)
	} else {
		manifest.SkipStage(types.StageNarration)
		log.Debug().Str("run_id", rec.RunID).Msg("Narration disabled")
	}

	if p.opts.VideoEnabled && p.video != nil && p.concat != nil {
		p.runStage(ctx, types.StageVideo, Video, rec, manifest, manifestPath)
	} else {
		manifest.SkipStage(types.StageVideo)
		log.Debug().Str("run_id", rec.RunID).Msg("Video disabled")
	}

	p.runStage(ctx, types.StageOutput, Output, rec, manifest, manifestPath)

	manifest.CurrentStage = types.StageComplete
	p.saveManifest(rec, manifest, manifestPath)
	return rec, rec.summary
}

// shouldRefine reports whether Refine has work left: notes exist and the
// iteration cap is not reached.
func (p *Pipeline) shouldRefine(rec *Record) bool {
	return len(rec.RefinementNotes) > 0 && rec.IterationCount < p.opts.MaxRefinements
}

func (p *Pipeline) runStage(ctx context.Context, stage types.PipelineStage, step StepFunc, rec *Record, manifest *Manifest, manifestPath string) {
	manifest.StartStage(stage)
	log.Info().Str("run_id", rec.RunID).Str("stage", string(stage)).Msg("Starting stage")

	if err := step(ctx, p, rec); err != nil {
		rec.fail(stage, err)
		manifest.FailStage(stage, err)
	} else {
		manifest.CompleteStage(stage)
	}
	p.saveManifest(rec, manifest, manifestPath)
}

func (p *Pipeline) saveManifest(rec *Record, manifest *Manifest, path string) {
	if err := manifest.Save(path); err != nil {
		log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to save manifest")
	}
}

// generate calls the provider and rejects blank replies.
func (p *Pipeline) generate(ctx context.Context, req llm.Request) (string, error) {
	if p.provider == nil {
		return "", errNoProvider
	}
	if req.Temperature == 0 {
		req.Temperature = p.opts.Temperature
	}
	text, err := p.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func (p *Pipeline) runDir(rec *Record) string {
	return filepath.Join(p.opts.OutputDir, rec.RunID)
}

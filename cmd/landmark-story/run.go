package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhe.chen/landmark-story/internal/config"
	"github.com/zhe.chen/landmark-story/internal/imageprep"
	"github.com/zhe.chen/landmark-story/internal/pipeline"
	"github.com/zhe.chen/landmark-story/internal/video"
)

// run flags
var (
	providerFlag  string
	landmarkFlag  string
	noteFlags     []string
	storyTypeFlag string
	outputFlag    string
	noVideoFlag   bool
	noTTSFlag     bool
	forceFlag     bool
	eventsFlag    bool
	jsonFlag      bool
)

var runCmd = &cobra.Command{
	Use:   "run <image>",
	Short: "Create a historical video story from a landmark photo",
	Long: `Run analyzes the photo, resolves the landmark name, writes the story,
plans the shots, applies up to three refinement passes when notes are given,
and renders narration and video when they are enabled in the config.

Every stage is best-effort: a failed stage is recorded and the run continues.
Results are written to <output>/<run id>/summary.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runStory,
}

func init() {
	runCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "LLM provider override (gemini, openrouter, anthropic, openai)")
	runCmd.Flags().StringVarP(&landmarkFlag, "landmark", "l", "", "Landmark name, if you already know it")
	runCmd.Flags().StringArrayVarP(&noteFlags, "note", "n", nil, "Refinement note for the shot list (repeatable)")
	runCmd.Flags().StringVar(&storyTypeFlag, "story-type", "", "Story type label used for caching")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory (default: from config)")
	runCmd.Flags().BoolVar(&noVideoFlag, "no-video", false, "Skip video generation")
	runCmd.Flags().BoolVar(&noTTSFlag, "no-tts", false, "Skip narration audio")
	runCmd.Flags().BoolVar(&forceFlag, "force", false, "Ignore cached videos and regenerate")
	runCmd.Flags().BoolVar(&eventsFlag, "events", false, "Stream progress events to stdout as JSON lines")
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the summary as JSON")
}

func runStory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if providerFlag != "" {
		cfg.LLM.Provider = providerFlag
		config.ApplyDefaults(cfg)
	}
	if outputFlag != "" {
		cfg.Pipeline.OutputDir = outputFlag
	}
	if storyTypeFlag != "" {
		cfg.Pipeline.StoryType = storyTypeFlag
	}
	cfg.Video.Enabled = cfg.Video.Enabled && !noVideoFlag
	cfg.TTS.Enabled = cfg.TTS.Enabled && !noTTSFlag
	cfg.Pipeline.ForceRegenerate = cfg.Pipeline.ForceRegenerate || forceFlag
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := createLLMProvider(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	log.Info().Str("provider", provider.Name()).Bool("enabled", provider.IsEnabled()).Msg("LLM provider ready")

	photo, err := imageprep.LoadFile(args[0], cfg.Image.MaxDimension)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	log.Info().
		Str("image", args[0]).
		Int("width", photo.Width).
		Int("height", photo.Height).
		Bool("resized", photo.Resized).
		Bool("gps", photo.GPS != nil).
		Msg("Image loaded")

	store, err := loadLandmarks(cfg.Landmarks)
	if err != nil {
		return err
	}
	videoCache, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Provider:  provider,
		Landmarks: store,
		Cache:     videoCache,
	}
	if cfg.TTS.Enabled {
		deps.TTS = newSynthesizer(cfg.TTS)
	}
	if cfg.Video.Enabled {
		gen, closeVideo, err := newVideoGenerator(ctx, cfg.Video)
		if err != nil {
			return err
		}
		defer closeVideo()
		deps.Video = gen
		deps.Concat = video.NewFFmpeg(cfg.Video.FFmpeg, nil)

		if deps.Uploader, err = newUploader(ctx, cfg.Storage); err != nil {
			return err
		}
	}

	pipe := pipeline.New(pipeline.OptionsFromConfig(cfg), deps)
	if eventsFlag {
		enc := json.NewEncoder(os.Stdout)
		pipe.OnProgress = func(e pipeline.ProgressEvent) {
			if err := enc.Encode(e); err != nil {
				log.Debug().Err(err).Msg("Failed to write progress event")
			}
		}
	}

	rec, summary := pipe.Execute(ctx, pipeline.Input{
		Image:           photo.Image,
		GPS:             photo.GPS,
		LandmarkName:    landmarkFlag,
		StoryType:       cfg.Pipeline.StoryType,
		RefinementNotes: noteFlags,
	})

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(rec, summary)
	return nil
}

func printSummary(rec *pipeline.Record, summary *pipeline.Summary) {
	fmt.Println()
	fmt.Println("============================================")
	fmt.Printf("Landmark Story %s (%s)\n", summary.RunID, summary.Status)
	fmt.Println("============================================")
	fmt.Printf("Landmark:   %s (%s)\n", summary.LandmarkName, rec.LandmarkSource)
	fmt.Printf("Shots:      %d\n", summary.TotalShots)
	fmt.Printf("Iterations: %d\n", summary.Iterations)
	if len(summary.AudioPaths) > 0 {
		fmt.Printf("Audio:      %d files\n", len(summary.AudioPaths))
	}
	if summary.VideoPath != "" {
		fmt.Printf("Video:      %s\n", summary.VideoPath)
	}
	if summary.VideoURL != "" {
		fmt.Printf("Video URL:  %s\n", summary.VideoURL)
	}
	if len(summary.NearbyLandmarks) > 0 {
		fmt.Println("--------------------------------------------")
		fmt.Println("Nearby:")
		for _, r := range summary.NearbyLandmarks {
			fmt.Printf("  %-32s %6.1f km\n", r.Name, r.DistanceKM)
		}
	}
	if rec.Errors > 0 {
		fmt.Println("--------------------------------------------")
		fmt.Printf("%d stage(s) failed:\n", rec.Errors)
		for _, msg := range summary.StatusMessages {
			if strings.HasPrefix(msg, "Error in ") {
				fmt.Printf("  %s\n", msg)
			}
		}
	}
	fmt.Println("============================================")
}

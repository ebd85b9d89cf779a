package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/cache"
	"github.com/zhe.chen/landmark-story/internal/landmarks"
	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/internal/normalize"
	"github.com/zhe.chen/landmark-story/internal/video"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// StepFunc is one stage. A returned error is recorded by the controller and
// the run continues with the next stage.
type StepFunc func(ctx context.Context, p *Pipeline, rec *Record) error

// Detect asks the vision model for a historical analysis of the photo.
func Detect(ctx context.Context, p *Pipeline, rec *Record) error {
	if rec.Image == nil || rec.Image.Empty() {
		return fmt.Errorf("%w: image", ErrMissingInput)
	}

	text, err := p.generate(ctx, llm.Request{Prompt: analysisPrompt, Image: rec.Image})
	if err != nil {
		return fmt.Errorf("image analysis: %w", err)
	}
	rec.AnalysisText = text
	rec.info(types.StageDetect, "Historical content detected and analyzed")
	return nil
}

// ExtractName resolves the canonical landmark name and looks up nearby
// landmarks for it.
func ExtractName(ctx context.Context, p *Pipeline, rec *Record) error {
	user := strings.TrimSpace(rec.UserLandmarkName)

	switch {
	case strings.TrimSpace(rec.AnalysisText) != "":
		result := p.resolver.Resolve(ctx, rec.AnalysisText, user)
		rec.LandmarkName = result.Name
		rec.LandmarkSource = string(result.Source)
	case user != "":
		rec.LandmarkName = user
		rec.LandmarkSource = "user"
	default:
		rec.warn(types.StageExtractName, "No analysis available; landmark stays %s", types.UnknownLandmark)
	}
	if rec.LandmarkName != types.UnknownLandmark {
		rec.info(types.StageExtractName, "Landmark identified: %s (%s)", rec.LandmarkName, rec.LandmarkSource)
	}

	p.fillNearby(ctx, rec)
	return nil
}

// fillNearby is supplemental; failures only warn.
func (p *Pipeline) fillNearby(ctx context.Context, rec *Record) {
	if p.landmarks == nil {
		return
	}

	var nearby []landmarks.Recommendation
	var err error
	if rec.LandmarkName != types.UnknownLandmark {
		nearby, err = landmarks.Recommend(ctx, p.landmarks, rec.LandmarkName, "", p.opts.NearbyCount)
	}
	if err == nil && len(nearby) == 0 && rec.GPS != nil {
		nearby, err = landmarks.NearestTo(ctx, p.landmarks, rec.GPS.Latitude, rec.GPS.Longitude, "", p.opts.NearbyCount)
	}
	if err != nil {
		rec.warn(types.StageExtractName, "Nearby landmark lookup failed: %v", err)
		return
	}
	rec.NearbyLandmarks = nearby
}

// Narrate writes the story from the analysis.
func Narrate(ctx context.Context, p *Pipeline, rec *Record) error {
	if strings.TrimSpace(rec.AnalysisText) == "" {
		return fmt.Errorf("%w: image analysis", ErrMissingInput)
	}

	text, err := p.generate(ctx, llm.Request{Prompt: storyPrompt(rec.AnalysisText, promptLandmark(rec.LandmarkName))})
	if err != nil {
		return fmt.Errorf("story creation: %w", err)
	}
	rec.StoryText = text
	rec.info(types.StageNarrate, "Historical narrative created")
	return nil
}

// Shoot breaks the story into shots. It never leaves the record without
// shots: any failure falls back to the template shot list.
func Shoot(ctx context.Context, p *Pipeline, rec *Record) error {
	fallback := func(reason string) {
		rec.Shots = FallbackShots(rec.StoryText, rec.AnalysisText, rec.LandmarkName, p.opts.ShotCount)
		rec.warn(types.StageShoot, "%s; using %d template shots", reason, len(rec.Shots))
	}

	if strings.TrimSpace(rec.StoryText) == "" {
		fallback("No story available")
		return nil
	}

	prompt := shotsPrompt(rec.StoryText, rec.AnalysisText, promptLandmark(rec.LandmarkName), p.opts.ShotCount)
	reply, err := p.generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		fallback(fmt.Sprintf("Shot generation failed (%v)", err))
		return nil
	}

	shots, err := normalize.Shots(reply)
	if err != nil {
		kind := "unusable"
		if normalize.IsParse(err) {
			kind = "not valid JSON"
		} else if normalize.IsStructure(err) {
			kind = "missing fields"
		}
		log.Debug().Err(err).Msg("Shot list rejected")
		fallback("Shot list was " + kind)
		return nil
	}

	rec.Shots = shots
	rec.info(types.StageShoot, "Created %d shots", len(shots))
	return nil
}

// Refine applies the refinement notes to the shot list. Each visit counts
// as one iteration whether or not the model's reply is usable.
func Refine(ctx context.Context, p *Pipeline, rec *Record) error {
	if len(rec.Shots) == 0 {
		return fmt.Errorf("%w: shots", ErrMissingInput)
	}
	if len(rec.RefinementNotes) == 0 || rec.IterationCount >= p.opts.MaxRefinements {
		rec.info(types.StageRefine, "Shots finalized")
		return nil
	}

	rec.IterationCount++
	current, err := json.MarshalIndent(map[string]any{"shots": rec.Shots}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode shots: %w", err)
	}

	reply, err := p.generate(ctx, llm.Request{Prompt: refinePrompt(string(current), rec.RefinementNotes)})
	if err != nil {
		return fmt.Errorf("refinement %d: %w", rec.IterationCount, err)
	}
	shots, err := normalize.Shots(reply)
	if err != nil {
		return fmt.Errorf("refinement %d kept previous shots: %w", rec.IterationCount, err)
	}

	rec.Shots = shots
	rec.RefinementsApplied++
	rec.info(types.StageRefine, "Shots refined (iteration %d)", rec.IterationCount)
	return nil
}

// Narration synthesizes one audio file per narrated shot.
func Narration(ctx context.Context, p *Pipeline, rec *Record) error {
	if len(rec.Shots) == 0 {
		return fmt.Errorf("%w: shots", ErrMissingInput)
	}

	dir := filepath.Join(p.runDir(rec), "audio")
	var failures []error
	done := 0
	for i := range rec.Shots {
		shot := &rec.Shots[i]
		if strings.TrimSpace(shot.Narration) == "" {
			rec.warn(types.StageNarration, "Shot %d has no narration; skipped", shot.ShotNumber)
			continue
		}

		out := filepath.Join(dir, fmt.Sprintf("shot_%02d.mp3", shot.ShotNumber))
		if err := p.tts.Synthesize(ctx, shot.Narration, p.opts.Voice, out); err != nil {
			failures = append(failures, fmt.Errorf("shot %d: %w", shot.ShotNumber, err))
			continue
		}
		shot.AudioPath = out
		rec.AudioPaths[shot.ShotNumber] = out
		done++
	}

	if done > 0 {
		rec.info(types.StageNarration, "Narration audio created for %d shots", done)
	}
	return errors.Join(failures...)
}

type clipResult struct {
	path   string
	cached bool
	err    error
}

// Video produces one clip per shot, joins them and optionally uploads the
// result. A finished video cached for the landmark and story type is
// reused without any per-shot work.
func Video(ctx context.Context, p *Pipeline, rec *Record) error {
	if len(rec.Shots) == 0 {
		return fmt.Errorf("%w: shots", ErrMissingInput)
	}

	// An unidentified landmark would share one cache slot across unrelated
	// photos, so those runs never read or write the cache.
	cacheable := rec.LandmarkName != types.UnknownLandmark
	clips := p.clips

	if cacheable {
		if path, ok := clips.Lookup(ctx, rec.LandmarkName, rec.StoryType); ok {
			rec.VideoPath = path
			rec.info(types.StageVideo, "Reusing cached video for %s", rec.LandmarkName)
			return nil
		}
	}

	dir := p.runDir(rec)
	results := make([]clipResult, len(rec.Shots))
	sem := make(chan struct{}, max(p.opts.Workers, 1))
	var wg sync.WaitGroup

	for i, shot := range rec.Shots {
		prompt := strings.TrimSpace(shot.AIGenerationPrompt)
		if prompt == "" {
			rec.warn(types.StageVideo, "Shot %d has no generation prompt; skipped", shot.ShotNumber)
			continue
		}

		req := video.Request{
			Landmark:  rec.LandmarkName,
			StoryType: cache.ClipStoryType(rec.StoryType, shot.ShotNumber),
			Options:   video.SubmitOptions{Prompt: prompt, Size: p.opts.VideoSize, Model: p.opts.VideoModel},
			Dest:      filepath.Join(dir, "clips", fmt.Sprintf("shot_%02d.mp4", shot.ShotNumber)),
		}

		wg.Add(1)
		go func(i int, req video.Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var r clipResult
			if cacheable {
				r.path, r.cached, r.err = clips.Generate(ctx, req)
			} else {
				r.path, r.err = video.Generate(ctx, p.video, req.Options, req.Dest, p.opts.PollPolicy)
			}
			results[i] = r
		}(i, req)
	}
	wg.Wait()

	var failures []error
	var paths []string
	reused := 0
	for i := range rec.Shots {
		shot := &rec.Shots[i]
		r := results[i]
		switch {
		case r.err != nil:
			failures = append(failures, fmt.Errorf("shot %d: %w", shot.ShotNumber, r.err))
		case r.path != "":
			shot.ClipPath = r.path
			paths = append(paths, r.path)
			if r.cached {
				reused++
			}
		}
	}
	rec.ClipPaths = paths
	if len(paths) == 0 {
		return errors.Join(append([]error{errors.New("no clips were produced")}, failures...)...)
	}
	rec.info(types.StageVideo, "Produced %d clips (%d from cache)", len(paths), reused)

	final := filepath.Join(dir, "story.mp4")
	if err := p.concat.Concat(ctx, paths, final); err != nil {
		failures = append(failures, fmt.Errorf("concatenate clips: %w", err))
		return errors.Join(failures...)
	}
	rec.VideoPath = final
	rec.info(types.StageVideo, "Final video written to %s", final)

	if cacheable {
		meta := map[string]string{"run_id": rec.RunID, "clips": fmt.Sprint(len(paths))}
		if err := clips.Store(ctx, rec.LandmarkName, rec.StoryType, final, meta); err != nil {
			rec.warn(types.StageVideo, "%v", err)
		}
	}

	if p.uploader != nil {
		url, err := p.uploader.Upload(ctx, final, rec.RunID+"/story.mp4")
		if err != nil {
			failures = append(failures, fmt.Errorf("upload: %w", err))
		} else {
			rec.VideoURL = url
			rec.info(types.StageVideo, "Video uploaded")
		}
	}
	return errors.Join(failures...)
}

// Output builds the summary and writes summary.json. It never fails; a
// write error is only logged.
func Output(_ context.Context, p *Pipeline, rec *Record) error {
	rec.info(types.StageOutput, "Pipeline complete!")
	rec.summary = BuildSummary(rec)

	data, err := json.MarshalIndent(rec.summary, "", "  ")
	if err == nil {
		path := filepath.Join(p.runDir(rec), "summary.json")
		if err = os.WriteFile(path, data, 0644); err == nil {
			log.Info().Str("path", path).Msg("Summary written")
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("run_id", rec.RunID).Msg("Failed to write summary")
	}
	return nil
}

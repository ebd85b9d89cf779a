package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/imageprep"
	"github.com/zhe.chen/landmark-story/internal/landmarks"
	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// ErrMissingInput is returned by a stage whose required input is empty.
var ErrMissingInput = errors.New("missing input")

// Progress levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Summary status values.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

// Input is what a caller supplies for one run.
type Input struct {
	Image           *llm.Image
	GPS             *imageprep.GPS
	LandmarkName    string // optional user override
	StoryType       string
	RefinementNotes []string
	RunID           string
}

// ProgressEvent is one line of the run's progress log.
type ProgressEvent struct {
	Seq     int64               `json:"seq"`
	Time    time.Time           `json:"time"`
	Stage   types.PipelineStage `json:"stage"`
	Level   string              `json:"level"`
	Message string              `json:"message"`
}

// Record is the state threaded through every stage of a run.
type Record struct {
	RunID            string
	Image            *llm.Image
	Provider         string
	AnalysisText     string
	LandmarkName     string
	LandmarkSource   string
	UserLandmarkName string
	StoryType        string
	StoryText        string
	Shots            []types.Shot
	RefinementNotes  []string

	IterationCount     int
	RefinementsApplied int

	AudioPaths map[int]string
	VideoPath  string
	ClipPaths  []string
	VideoURL   string

	NearbyLandmarks []landmarks.Recommendation
	GPS             *imageprep.GPS

	StatusMessages []string
	ProgressLog    []ProgressEvent
	Errors         int

	summary    *Summary
	onProgress func(ProgressEvent)
	now        func() time.Time
}

func newRecord(in Input, provider, defaultStoryType string) *Record {
	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	storyType := in.StoryType
	if storyType == "" {
		storyType = defaultStoryType
	}
	notes := make([]string, 0, len(in.RefinementNotes))
	for _, note := range in.RefinementNotes {
		if note != "" {
			notes = append(notes, note)
		}
	}
	return &Record{
		RunID:            runID,
		Image:            in.Image,
		Provider:         provider,
		LandmarkName:     types.UnknownLandmark,
		UserLandmarkName: in.LandmarkName,
		StoryType:        storyType,
		RefinementNotes:  notes,
		AudioPaths:       make(map[int]string),
		GPS:              in.GPS,
		now:              time.Now,
	}
}

func (r *Record) emit(stage types.PipelineStage, level, message string) {
	event := ProgressEvent{
		Seq:     int64(len(r.ProgressLog) + 1),
		Time:    r.now(),
		Stage:   stage,
		Level:   level,
		Message: message,
	}
	r.ProgressLog = append(r.ProgressLog, event)
	if r.onProgress != nil {
		r.onProgress(event)
	}
}

func (r *Record) info(stage types.PipelineStage, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.StatusMessages = append(r.StatusMessages, msg)
	r.emit(stage, LevelInfo, msg)
	log.Info().Str("run_id", r.RunID).Str("stage", string(stage)).Msg(msg)
}

func (r *Record) warn(stage types.PipelineStage, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.StatusMessages = append(r.StatusMessages, "Warning: "+msg)
	r.emit(stage, LevelWarning, msg)
	log.Warn().Str("run_id", r.RunID).Str("stage", string(stage)).Msg(msg)
}

// fail records a stage error; the run continues.
func (r *Record) fail(stage types.PipelineStage, err error) {
	msg := fmt.Sprintf("%s: %v", stage, err)
	r.Errors++
	r.StatusMessages = append(r.StatusMessages, "Error in "+msg)
	r.emit(stage, LevelError, err.Error())
	log.Error().Err(err).Str("run_id", r.RunID).Str("stage", string(stage)).Msg("Stage failed")
}

// Summary is the terminal output of a run.
type Summary struct {
	BuildingAnalysis string         `json:"building_analysis"`
	HistoricalStory  string         `json:"historical_story"`
	VideoShots       []types.Shot   `json:"video_shots"`
	TotalShots       int            `json:"total_shots"`
	Iterations       int            `json:"iterations"`
	Status           string         `json:"status"`
	VideoPath        string         `json:"video_path,omitempty"`
	ClipPaths        []string       `json:"clip_paths,omitempty"`
	AudioPaths       map[int]string `json:"audio_paths,omitempty"`
	VideoURL         string         `json:"video_url,omitempty"`

	RunID           string                     `json:"run_id"`
	LandmarkName    string                     `json:"landmark_name"`
	Provider        string                     `json:"provider,omitempty"`
	NearbyLandmarks []landmarks.Recommendation `json:"nearby_landmarks,omitempty"`
	StatusMessages  []string                   `json:"status_messages"`
}

// BuildSummary snapshots a record. TotalShots always equals len(VideoShots).
func BuildSummary(rec *Record) *Summary {
	shots := make([]types.Shot, len(rec.Shots))
	copy(shots, rec.Shots)

	status := StatusComplete
	if rec.Errors > 0 {
		status = StatusPartial
	}

	var audio map[int]string
	if len(rec.AudioPaths) > 0 {
		audio = make(map[int]string, len(rec.AudioPaths))
		for k, v := range rec.AudioPaths {
			audio[k] = v
		}
	}

	return &Summary{
		BuildingAnalysis: rec.AnalysisText,
		HistoricalStory:  rec.StoryText,
		VideoShots:       shots,
		TotalShots:       len(shots),
		Iterations:       rec.IterationCount,
		Status:           status,
		VideoPath:        rec.VideoPath,
		ClipPaths:        append([]string(nil), rec.ClipPaths...),
		AudioPaths:       audio,
		VideoURL:         rec.VideoURL,
		RunID:            rec.RunID,
		LandmarkName:     rec.LandmarkName,
		Provider:         rec.Provider,
		NearbyLandmarks:  rec.NearbyLandmarks,
		StatusMessages:   append([]string{}, rec.StatusMessages...),
	}
}

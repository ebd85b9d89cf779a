package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Manifest records the stage-by-stage state of a run on disk
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Input ManifestInput `json:"input"`

	CurrentStage types.PipelineStage                 `json:"current_stage"`
	Stages       map[types.PipelineStage]*StageState `json:"stages"`
}

// ManifestInput is the part of the run input worth persisting
type ManifestInput struct {
	LandmarkName    string   `json:"landmark_name,omitempty"`
	StoryType       string   `json:"story_type"`
	RefinementNotes []string `json:"refinement_notes,omitempty"`
	Provider        string   `json:"provider"`
}

// StageState tracks the state of a single stage
type StageState struct {
	Status      types.StageStatus `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Visits      int               `json:"visits"`
	Error       string            `json:"error,omitempty"`
}

// NewManifest creates a manifest for a fresh record
func NewManifest(rec *Record) *Manifest {
	now := time.Now()
	return &Manifest{
		RunID:     rec.RunID,
		CreatedAt: now,
		UpdatedAt: now,
		Input: ManifestInput{
			LandmarkName:    rec.UserLandmarkName,
			StoryType:       rec.StoryType,
			RefinementNotes: rec.RefinementNotes,
			Provider:        rec.Provider,
		},
		CurrentStage: types.StageInit,
		Stages:       make(map[types.PipelineStage]*StageState),
	}
}

// LoadManifest reads a manifest from file. A missing file is not an error.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// Save writes the manifest atomically
func (m *Manifest) Save(path string) error {
	m.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// StageState returns the state for a stage, creating it if needed
func (m *Manifest) StageState(stage types.PipelineStage) *StageState {
	if m.Stages[stage] == nil {
		m.Stages[stage] = &StageState{Status: types.StatusPending}
	}
	return m.Stages[stage]
}

// StartStage marks a stage as running. Refine may be visited more than once.
func (m *Manifest) StartStage(stage types.PipelineStage) {
	state := m.StageState(stage)
	now := time.Now()
	state.Status = types.StatusRunning
	state.StartedAt = &now
	state.CompletedAt = nil
	state.Error = ""
	state.Visits++
	m.CurrentStage = stage
}

func (m *Manifest) CompleteStage(stage types.PipelineStage) {
	state := m.StageState(stage)
	now := time.Now()
	state.Status = types.StatusCompleted
	state.CompletedAt = &now
}

// FailStage marks a stage as failed. The run still moves on.
func (m *Manifest) FailStage(stage types.PipelineStage, err error) {
	state := m.StageState(stage)
	now := time.Now()
	state.Status = types.StatusFailed
	state.CompletedAt = &now
	state.Error = err.Error()
}

func (m *Manifest) SkipStage(stage types.PipelineStage) {
	m.StageState(stage).Status = types.StatusSkipped
}

// Visited reports whether a stage ran at least once
func (m *Manifest) Visited(stage types.PipelineStage) bool {
	state := m.Stages[stage]
	return state != nil && state.Visits > 0
}

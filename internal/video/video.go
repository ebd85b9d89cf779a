// Package video renders shot prompts into clips through an asynchronous
// text-to-video service and joins the clips with ffmpeg.
//
// A Generator exposes the three service calls (submit, poll, download);
// Generate drives them with a bounded poll loop. CachedGenerator adds the
// shared clip cache in front of any Generator.
package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrTimeout means the job was still running after the last poll.
	ErrTimeout = errors.New("video generation timed out")

	// ErrJobFailed means the service reported the job as failed.
	ErrJobFailed = errors.New("video generation failed")
)

// Status is a job state as reported by the service.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

// Done reports whether no further polling can change the status.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// SubmitOptions describes one clip.
type SubmitOptions struct {
	Prompt string
	Size   string // e.g. "1280*720"
	Model  string
}

// PollResult is one status check.
type PollResult struct {
	Status   Status
	VideoURL string
	Message  string
}

// PollPolicy bounds the wait for a job.
type PollPolicy struct {
	Attempts int
	Interval time.Duration

	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPollPolicy polls 20 times, 10 seconds apart.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Attempts: 20, Interval: 10 * time.Second}
}

// Generator is a text-to-video backend.
type Generator interface {
	Submit(ctx context.Context, opts SubmitOptions) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (PollResult, error)
	Download(ctx context.Context, url, dest string) error
}

// Generate submits a job, polls until it finishes and downloads the result
// to dest. It returns dest on success.
func Generate(ctx context.Context, gen Generator, opts SubmitOptions, dest string, policy PollPolicy) (string, error) {
	if opts.Prompt == "" {
		return "", errors.New("video prompt is empty")
	}
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultPollPolicy().Attempts
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	jobID, err := gen.Submit(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("submit video job: %w", err)
	}
	log.Info().Str("job_id", jobID).Msg("Video job submitted")

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		result, err := gen.Poll(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("poll video job %s: %w", jobID, err)
		}

		switch result.Status {
		case StatusSucceeded:
			if result.VideoURL == "" {
				return "", fmt.Errorf("%w: job %s succeeded without a video url", ErrJobFailed, jobID)
			}
			if err := gen.Download(ctx, result.VideoURL, dest); err != nil {
				return "", fmt.Errorf("download video for job %s: %w", jobID, err)
			}
			log.Info().Str("job_id", jobID).Str("path", dest).Msg("Video downloaded")
			return dest, nil
		case StatusFailed:
			return "", fmt.Errorf("%w: job %s: %s", ErrJobFailed, jobID, result.Message)
		}

		log.Debug().Str("job_id", jobID).Str("status", string(result.Status)).Int("attempt", attempt).Msg("Video job not ready")
		if attempt < policy.Attempts {
			if err := sleep(ctx, policy.Interval); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: job %s after %d polls", ErrTimeout, jobID, policy.Attempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package tts turns shot narration into audio files.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/command"
)

// DefaultVoice is used when a caller passes an empty voice.
const DefaultVoice = "en-US-GuyNeural"

// ErrEmptyText is returned for blank narration.
var ErrEmptyText = errors.New("tts: empty text")

// Synthesizer writes spoken text to outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// EdgeTTS shells out to the edge-tts CLI.
type EdgeTTS struct {
	command string
	runner  command.Runner
	retries int
	backoff time.Duration
	timeout time.Duration
	sleep   func(context.Context, time.Duration) error
}

var _ Synthesizer = (*EdgeTTS)(nil)

// Option customizes an EdgeTTS.
type Option func(*EdgeTTS)

// WithRunner replaces the process runner.
func WithRunner(r command.Runner) Option {
	return func(e *EdgeTTS) { e.runner = r }
}

// WithRetries sets the number of attempts per clip.
func WithRetries(n int) Option {
	return func(e *EdgeTTS) {
		if n > 0 {
			e.retries = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n*backoff.
func WithBackoff(d time.Duration) Option {
	return func(e *EdgeTTS) { e.backoff = d }
}

// WithTimeout bounds a single edge-tts invocation.
func WithTimeout(d time.Duration) Option {
	return func(e *EdgeTTS) { e.timeout = d }
}

// NewEdgeTTS returns a synthesizer invoking commandName (edge-tts when empty).
func NewEdgeTTS(commandName string, opts ...Option) *EdgeTTS {
	if strings.TrimSpace(commandName) == "" {
		commandName = "edge-tts"
	}
	e := &EdgeTTS{
		command: commandName,
		runner:  &command.ExecRunner{},
		retries: 3,
		backoff: 2 * time.Second,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize runs edge-tts, retrying with linear backoff until an attempt
// produces a non-empty file.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, voice, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if voice == "" {
		voice = DefaultVoice
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	args := []string{"--voice", voice, "--text", text, "--write-media", outPath}

	var lastErr error
	for attempt := 1; attempt <= e.retries; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, time.Duration(attempt-1)*e.backoff); err != nil {
				return err
			}
		}

		lastErr = e.attempt(ctx, args, outPath)
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Int("max", e.retries).Str("out", outPath).Msg("Speech synthesis failed")
	}
	return fmt.Errorf("tts failed after %d attempts: %w", e.retries, lastErr)
}

func (e *EdgeTTS) attempt(ctx context.Context, args []string, outPath string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if _, err := command.Run(ctx, e.runner, e.command, args...); err != nil {
		return err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file %s is empty", outPath)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

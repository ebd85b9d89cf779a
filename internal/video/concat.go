package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/command"
)

// Concatenator joins clips into one video.
type Concatenator interface {
	Concat(ctx context.Context, clips []string, out string) error
}

// FFmpeg concatenates with the concat demuxer and stream copy.
type FFmpeg struct {
	binary string
	runner command.Runner
}

var _ Concatenator = (*FFmpeg)(nil)

// NewFFmpeg returns a concatenator running binary (ffmpeg when empty).
// A nil runner executes real processes.
func NewFFmpeg(binary string, runner command.Runner) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = &command.ExecRunner{}
	}
	return &FFmpeg{binary: binary, runner: runner}
}

func (f *FFmpeg) Concat(ctx context.Context, clips []string, out string) error {
	if len(clips) == 0 {
		return errors.New("no clips to concatenate")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	list, err := writeConcatList(clips, filepath.Dir(out))
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", out}
	if _, err := command.Run(ctx, f.runner, f.binary, args...); err != nil {
		return err
	}

	log.Info().Int("clips", len(clips)).Str("out", out).Msg("Clips concatenated")
	return nil
}

// writeConcatList writes the demuxer input file next to the output.
func writeConcatList(clips []string, dir string) (string, error) {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return "", fmt.Errorf("resolve clip path: %w", err)
		}
		// Single quotes are closed, escaped, and reopened.
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	tmp, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create concat list: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	return tmp.Name(), nil
}

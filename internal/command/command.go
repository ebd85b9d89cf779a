// Package command runs external tools (ffmpeg, edge-tts) behind an interface
// that tests can replace.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the captured outcome of one process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout, stderr, and the exit code.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Error describes a failed external command.
type Error struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

// maxStderr bounds how much stderr is quoted in Error().
const maxStderr = 300

func (e *Error) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if len(stderr) > maxStderr {
		stderr = "..." + stderr[len(stderr)-maxStderr:]
	}
	if stderr == "" {
		return fmt.Sprintf("%s failed (exit=%d): %v", e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s failed (exit=%d): %v: %s", e.Command, e.ExitCode, e.Err, stderr)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Run executes name through runner and converts a failure into *Error.
func Run(ctx context.Context, runner Runner, name string, args ...string) (Result, error) {
	result, err := runner.Run(ctx, name, args...)
	if err != nil {
		return result, &Error{
			Command:  name,
			Args:     args,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}
	return result, nil
}

package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhe.chen/landmark-story/internal/command"
)

type fakeRunner struct {
	run   func(name string, args []string) (command.Result, error)
	calls int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	f.calls++
	return f.run(name, args)
}

// writeMedia emulates edge-tts by writing content to the --write-media path.
func writeMedia(args []string, content string) error {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--write-media" {
			return os.WriteFile(args[i+1], []byte(content), 0644)
		}
	}
	return errors.New("no --write-media flag")
}

func newTestTTS(runner command.Runner, slept *[]time.Duration) *EdgeTTS {
	e := NewEdgeTTS("", WithRunner(runner), WithRetries(3), WithBackoff(time.Second))
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e
}

func TestSynthesizeArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := &fakeRunner{run: func(name string, args []string) (command.Result, error) {
		gotName, gotArgs = name, args
		return command.Result{}, writeMedia(args, "mp3")
	}}
	var slept []time.Duration
	e := newTestTTS(runner, &slept)

	out := filepath.Join(t.TempDir(), "audio", "shot_01.mp3")
	if err := e.Synthesize(context.Background(), "  Hello Giza.  ", "", out); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if gotName != "edge-tts" {
		t.Errorf("command = %q, want edge-tts", gotName)
	}
	want := []string{"--voice", DefaultVoice, "--text", "Hello Giza.", "--write-media", out}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
	if len(slept) != 0 {
		t.Errorf("slept %v on first-try success", slept)
	}
}

func TestSynthesizeRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int
		wantSleep []time.Duration
	}{
		{name: "succeeds after two failures", failures: 2, wantCalls: 3, wantSleep: []time.Duration{time.Second, 2 * time.Second}},
		{name: "gives up after three attempts", failures: 5, wantErr: true, wantCalls: 3, wantSleep: []time.Duration{time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			runner.run = func(_ string, args []string) (command.Result, error) {
				if runner.calls <= tt.failures {
					return command.Result{ExitCode: 1, Stderr: "503 from service"}, errors.New("exit status 1")
				}
				return command.Result{}, writeMedia(args, "mp3")
			}
			var slept []time.Duration
			e := newTestTTS(runner, &slept)

			err := e.Synthesize(context.Background(), "text", "en-GB-RyanNeural", filepath.Join(t.TempDir(), "a.mp3"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Synthesize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var cmdErr *command.Error
				if !errors.As(err, &cmdErr) {
					t.Errorf("error %v should wrap *command.Error", err)
				}
			}
			if runner.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", runner.calls, tt.wantCalls)
			}
			if len(slept) != len(tt.wantSleep) {
				t.Fatalf("slept = %v, want %v", slept, tt.wantSleep)
			}
			for i := range slept {
				if slept[i] != tt.wantSleep[i] {
					t.Errorf("slept[%d] = %v, want %v", i, slept[i], tt.wantSleep[i])
				}
			}
		})
	}
}

func TestSynthesizeEmptyOutputIsRetried(t *testing.T) {
	runner := &fakeRunner{}
	runner.run = func(_ string, args []string) (command.Result, error) {
		if runner.calls == 1 {
			return command.Result{}, writeMedia(args, "")
		}
		return command.Result{}, writeMedia(args, "mp3")
	}
	var slept []time.Duration
	e := newTestTTS(runner, &slept)

	if err := e.Synthesize(context.Background(), "text", "", filepath.Join(t.TempDir(), "a.mp3")); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if runner.calls != 2 {
		t.Errorf("calls = %d, want 2", runner.calls)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	runner := &fakeRunner{run: func(string, []string) (command.Result, error) {
		t.Fatal("runner should not be called")
		return command.Result{}, nil
	}}
	var slept []time.Duration
	e := newTestTTS(runner, &slept)

	err := e.Synthesize(context.Background(), "   ", "", filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("error = %v, want ErrEmptyText", err)
	}
}

func TestSynthesizeStopsOnCancelledContext(t *testing.T) {
	runner := &fakeRunner{run: func(string, []string) (command.Result, error) {
		return command.Result{ExitCode: 1}, errors.New("exit status 1")
	}}
	e := NewEdgeTTS("edge-tts", WithRunner(runner), WithBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Synthesize(ctx, "text", "", filepath.Join(t.TempDir(), "a.mp3"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if runner.calls != 1 {
		t.Errorf("calls = %d, want 1", runner.calls)
	}
}

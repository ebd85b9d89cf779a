package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhe.chen/landmark-story/internal/command"
)

type fakeRunner struct {
	run func(name string, args []string) (command.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	return f.run(name, args)
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestFFmpegConcat(t *testing.T) {
	dir := t.TempDir()
	clips := []string{filepath.Join(dir, "shot_01.mp4"), filepath.Join(dir, "it's shot_02.mp4")}
	out := filepath.Join(dir, "final", "story.mp4")

	var listContent string
	var gotArgs []string
	runner := &fakeRunner{run: func(name string, args []string) (command.Result, error) {
		if name != "ffmpeg" {
			t.Errorf("binary = %q", name)
		}
		gotArgs = args
		data, err := os.ReadFile(argAfter(args, "-i"))
		if err != nil {
			t.Fatalf("concat list unreadable: %v", err)
		}
		listContent = string(data)
		return command.Result{}, nil
	}}

	if err := NewFFmpeg("", runner).Concat(context.Background(), clips, out); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}

	wantList := "file '" + clips[0] + "'\nfile '" + strings.ReplaceAll(clips[1], "'", `'\''`) + "'\n"
	if listContent != wantList {
		t.Errorf("list = %q, want %q", listContent, wantList)
	}
	if gotArgs[len(gotArgs)-1] != out || argAfter(gotArgs, "-f") != "concat" || argAfter(gotArgs, "-c") != "copy" {
		t.Errorf("args = %v", gotArgs)
	}
	if _, err := os.Stat(argAfter(gotArgs, "-i")); !os.IsNotExist(err) {
		t.Error("concat list should be removed")
	}
}

func TestFFmpegConcatFailure(t *testing.T) {
	runner := &fakeRunner{run: func(string, []string) (command.Result, error) {
		return command.Result{ExitCode: 1, Stderr: "Invalid data found when processing input"}, errors.New("exit status 1")
	}}

	err := NewFFmpeg("/usr/bin/ffmpeg", runner).Concat(context.Background(), []string{"a.mp4"}, filepath.Join(t.TempDir(), "out.mp4"))

	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *command.Error", err)
	}
	if cmdErr.Command != "/usr/bin/ffmpeg" || cmdErr.ExitCode != 1 {
		t.Errorf("error fields = %+v", cmdErr)
	}
}

func TestFFmpegConcatNoClips(t *testing.T) {
	runner := &fakeRunner{run: func(string, []string) (command.Result, error) {
		t.Fatal("ffmpeg should not run")
		return command.Result{}, nil
	}}
	if err := NewFFmpeg("", runner).Concat(context.Background(), nil, filepath.Join(t.TempDir(), "out.mp4")); err == nil {
		t.Error("expected an error for no clips")
	}
}

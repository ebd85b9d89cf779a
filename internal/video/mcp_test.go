package video

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// fakeMCP answers tool calls from a per-tool script.
type fakeMCP struct {
	replies map[string][]string // tool -> successive text replies
	calls   []string
	args    []map[string]any
}

func (f *fakeMCP) Open(context.Context, ...string) error          { return nil }
func (f *fakeMCP) ListTools(context.Context) ([]types.Tool, error) { return nil, nil }
func (f *fakeMCP) Close() error                                    { return nil }
func (f *fakeMCP) ServerInfo() (string, string)                    { return "fake", "0" }

func (f *fakeMCP) CallTool(_ context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, arguments)
	queue := f.replies[name]
	if len(queue) == 0 {
		return nil, errors.New("tool not found: " + name)
	}
	text := queue[0]
	if len(queue) > 1 {
		f.replies[name] = queue[1:]
	}
	return &types.ToolCallResult{Content: []types.ContentBlock{{Type: "text", Text: text}}}, nil
}

func TestMCPGeneratorImmediatePath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rendered.mp4")
	if err := os.WriteFile(src, []byte("rendered"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		reply string
	}{
		{name: "bare path", reply: src},
		{name: "json path", reply: `{"path":"` + src + `"}`},
		{name: "file url", reply: "file://" + src},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMCP{replies: map[string][]string{DefaultTool: {tt.reply}}}
			gen := NewMCPGenerator(fake, "", 0)
			dest := filepath.Join(t.TempDir(), "clip.mp4")

			if _, err := Generate(context.Background(), gen, SubmitOptions{Prompt: "p", Size: "1280*720"}, dest, noSleep(PollPolicy{Attempts: 1})); err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			data, _ := os.ReadFile(dest)
			if string(data) != "rendered" {
				t.Errorf("clip = %q", data)
			}
			if len(fake.calls) != 1 || fake.args[0]["size"] != "1280*720" {
				t.Errorf("calls = %v, args = %v", fake.calls, fake.args)
			}
		})
	}
}

func TestMCPGeneratorPollsTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote mp4"))
	}))
	defer server.Close()

	fake := &fakeMCP{replies: map[string][]string{
		"render": {`{"task_id":"t-9"}`},
		"render_status": {
			`{"task_status":"RUNNING"}`,
			`{"task_status":"SUCCEEDED","video_url":"` + server.URL + `/v.mp4"}`,
		},
	}}
	gen := NewMCPGenerator(fake, "render", 0)
	dest := filepath.Join(t.TempDir(), "clip.mp4")

	if _, err := Generate(context.Background(), gen, SubmitOptions{Prompt: "p"}, dest, noSleep(PollPolicy{Attempts: 3})); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "remote mp4" {
		t.Errorf("clip = %q", data)
	}
	want := []string{"render", "render_status", "render_status"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	if fake.args[1]["task_id"] != "t-9" {
		t.Errorf("status args = %v", fake.args[1])
	}
}

func TestMCPGeneratorUnusableReply(t *testing.T) {
	fake := &fakeMCP{replies: map[string][]string{DefaultTool: {`{"status":"queued"}`}}}
	gen := NewMCPGenerator(fake, "", 0)

	if _, err := gen.Submit(context.Background(), SubmitOptions{Prompt: "p"}); err == nil {
		t.Error("expected an error for a reply without task id or video")
	}
}

func TestVideoLocation(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "https://cdn.example/v.mp4", want: "https://cdn.example/v.mp4"},
		{text: `{"video_url":"https://cdn.example/v.mp4"}`, want: "https://cdn.example/v.mp4"},
		{text: `{"output":{"video_url":"u"}}`, want: "u"},
		{text: "line one\nline two", want: ""},
		{text: "  ", want: ""},
	}
	for _, tt := range tests {
		if got := videoLocation(tt.text); got != tt.want {
			t.Errorf("videoLocation(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

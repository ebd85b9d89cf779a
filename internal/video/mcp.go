package video

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/zhe.chen/landmark-story/internal/client"
)

// DefaultTool is the MCP tool MCPGenerator calls per clip.
const DefaultTool = "generate_video"

// MCPGenerator renders clips through an MCP tool. The tool may finish the
// clip in one call (returning a URL or local path) or return a task id that
// is then polled through the status tool.
type MCPGenerator struct {
	client     client.MCPClient
	tool       string
	statusTool string
	http       *http.Client

	mu   sync.Mutex
	done map[string]string // synthetic job id -> video location
}

var _ Generator = (*MCPGenerator)(nil)

// NewMCPGenerator wraps an opened MCP client. tool defaults to
// generate_video; the status tool is <tool>_status.
func NewMCPGenerator(c client.MCPClient, tool string, timeout time.Duration) *MCPGenerator {
	if tool == "" {
		tool = DefaultTool
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &MCPGenerator{
		client:     c,
		tool:       tool,
		statusTool: tool + "_status",
		http:       &http.Client{Timeout: timeout},
		done:       make(map[string]string),
	}
}

func (g *MCPGenerator) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	args := map[string]any{"prompt": opts.Prompt}
	if opts.Size != "" {
		args["size"] = opts.Size
	}
	if opts.Model != "" {
		args["model"] = opts.Model
	}

	result, err := g.client.CallTool(ctx, g.tool, args)
	if err != nil {
		return "", err
	}

	text := client.Text(result)
	if taskID := gjson.Get(text, "task_id").String(); taskID != "" {
		return taskID, nil
	}

	location := videoLocation(text)
	if location == "" {
		return "", fmt.Errorf("tool %s returned neither a task id nor a video: %q", g.tool, text)
	}

	jobID := "mcp-" + uuid.NewString()
	g.mu.Lock()
	g.done[jobID] = location
	g.mu.Unlock()
	return jobID, nil
}

func (g *MCPGenerator) Poll(ctx context.Context, jobID string) (PollResult, error) {
	g.mu.Lock()
	location, ok := g.done[jobID]
	if ok {
		delete(g.done, jobID)
	}
	g.mu.Unlock()
	if ok {
		return PollResult{Status: StatusSucceeded, VideoURL: location}, nil
	}

	result, err := g.client.CallTool(ctx, g.statusTool, map[string]any{"task_id": jobID})
	if err != nil {
		return PollResult{}, err
	}
	text := client.Text(result)
	return PollResult{
		Status:   parseStatus(gjson.Get(text, "task_status").String()),
		VideoURL: videoLocation(text),
		Message:  gjson.Get(text, "message").String(),
	}, nil
}

// Download fetches http(s) URLs and copies local paths or file:// URLs.
func (g *MCPGenerator) Download(ctx context.Context, location, dest string) error {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return download(g.http, req, dest)
	}

	path := location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open generated video: %w", err)
	}
	defer f.Close()
	return writeFile(dest, f)
}

// videoLocation picks the clip location out of a tool reply, which is
// either JSON or a bare URL/path.
func videoLocation(text string) string {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		for _, key := range []string{"video_url", "url", "path", "output.video_url"} {
			if v := gjson.Get(text, key).String(); v != "" {
				return v
			}
		}
		return ""
	}
	if strings.ContainsAny(text, "\n") {
		return ""
	}
	return text
}

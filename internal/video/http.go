package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	submitPath = "/api/v1/services/aigc/video-generation/video-synthesis"
	taskPath   = "/api/v1/tasks/"

	// maxErrorBody bounds how much of an error response is quoted.
	maxErrorBody = 512
)

// HTTPGenerator talks to a DashScope-style asynchronous video API.
type HTTPGenerator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Generator = (*HTTPGenerator)(nil)

// NewHTTPGenerator creates a generator for baseURL. timeout applies to each
// HTTP request, downloads included.
func NewHTTPGenerator(baseURL, apiKey string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size,omitempty"`
	} `json:"parameters"`
}

func (g *HTTPGenerator) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	var body submitRequest
	body.Model = opts.Model
	body.Input.Prompt = opts.Prompt
	body.Parameters.Size = opts.Size

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+submitPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")
	g.authorize(req)

	data, err := g.do(req)
	if err != nil {
		return "", err
	}

	taskID := gjson.GetBytes(data, "output.task_id").String()
	if taskID == "" {
		return "", fmt.Errorf("response has no output.task_id: %s", truncate(data))
	}
	return taskID, nil
}

func (g *HTTPGenerator) Poll(ctx context.Context, jobID string) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+taskPath+jobID, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	g.authorize(req)

	data, err := g.do(req)
	if err != nil {
		return PollResult{}, err
	}

	output := gjson.GetBytes(data, "output")
	result := PollResult{
		Status:   parseStatus(output.Get("task_status").String()),
		VideoURL: output.Get("video_url").String(),
		Message:  output.Get("message").String(),
	}
	if result.Message == "" {
		result.Message = gjson.GetBytes(data, "message").String()
	}
	return result, nil
}

func (g *HTTPGenerator) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return download(g.client, req, dest)
}

func (g *HTTPGenerator) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}

func (g *HTTPGenerator) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = truncate(data)
		}
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	return data, nil
}

func parseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "PENDING":
		return StatusPending
	case "RUNNING":
		return StatusRunning
	case "SUCCEEDED":
		return StatusSucceeded
	case "FAILED", "CANCELED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// download streams req's response body into dest via a temp file.
func download(client *http.Client, req *http.Request, dest string) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", req.URL.Redacted(), resp.StatusCode)
	}
	return writeFile(dest, resp.Body)
}

func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("empty video")
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", dest, err)
	}
	return nil
}

func truncate(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

package client

import (
	"context"
	"time"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// MockTransport is a mock implementation of Transport for testing
type MockTransport struct {
	// Behavior configuration
	StartErr      error
	InitErr       error
	CallErr       error
	ResponseDelay time.Duration
	Server        ServerInfo
	Tools         []types.Tool
	Result        *types.ToolCallResult

	// State tracking
	Started bool
	Closed  bool
	Calls   []MockCall
}

// MockCall records a tools/call sent through the transport
type MockCall struct {
	Name      string
	Arguments map[string]any
}

// NewMockTransport creates a mock transport whose tool calls succeed with "ok"
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Server: ServerInfo{Name: "test-server", Version: "1.0.0"},
		Result: &types.ToolCallResult{Content: []types.ContentBlock{{Type: "text", Text: "ok"}}},
	}
}

func (m *MockTransport) Start(ctx context.Context) error {
	if m.StartErr != nil {
		return m.StartErr
	}
	m.Started = true
	return nil
}

func (m *MockTransport) Initialize(ctx context.Context, info ClientInfo) (ServerInfo, error) {
	if err := m.wait(ctx); err != nil {
		return ServerInfo{}, err
	}
	if m.InitErr != nil {
		return ServerInfo{}, m.InitErr
	}
	return m.Server, nil
}

func (m *MockTransport) ListTools(ctx context.Context) ([]types.Tool, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.Tools, nil
}

func (m *MockTransport) CallTool(ctx context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Arguments: arguments})
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.CallErr != nil {
		return nil, m.CallErr
	}
	return m.Result, nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

// SetToolExecutionError configures a tool result with isError=true
func (m *MockTransport) SetToolExecutionError(text string) {
	m.Result = &types.ToolCallResult{
		Content: []types.ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func (m *MockTransport) wait(ctx context.Context) error {
	if m.ResponseDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.ResponseDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

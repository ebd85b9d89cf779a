// Package client talks to MCP servers that expose media tools, such as a
// text-to-video server offering generate_video.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// MCPClient defines the interface for interacting with MCP servers
type MCPClient interface {
	// Open starts the transport, performs the initialize handshake and checks
	// that every required tool is offered.
	Open(ctx context.Context, required ...string) error

	// ListTools retrieves available tools from the server
	ListTools(ctx context.Context) ([]types.Tool, error)

	// CallTool invokes a tool with given arguments
	CallTool(ctx context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error)

	// Close terminates the connection
	Close() error

	// ServerInfo returns server name and version
	ServerInfo() (name, version string)
}

// Transport is one MCP session. Implementations translate these calls to
// the wire protocol.
type Transport interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, info ClientInfo) (ServerInfo, error)
	ListTools(ctx context.Context) ([]types.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error)
	Close() error
}

// ClientInfo represents client identification
type ClientInfo struct {
	Name    string
	Version string
}

// ServerInfo represents server identification
type ServerInfo struct {
	Name    string
	Version string
}

// ToolError is returned when a tool ran but reported isError=true.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s execution failed", e.Tool)
	}
	return fmt.Sprintf("tool %s execution failed: %s", e.Tool, e.Message)
}

// Client implements MCPClient on top of a Transport
type Client struct {
	transport Transport
	timeout   time.Duration
	server    ServerInfo
}

var _ MCPClient = (*Client)(nil)

// NewClient creates a client. timeout bounds each request; zero means
// the caller's context alone decides.
func NewClient(transport Transport, timeout time.Duration) *Client {
	return &Client{
		transport: transport,
		timeout:   timeout,
	}
}

func (c *Client) Open(ctx context.Context, required ...string) error {
	if err := c.transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	server, err := c.transport.Initialize(reqCtx, ClientInfo{Name: "landmark-story", Version: "1.0.0"})
	if err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}
	c.server = server
	log.Debug().Str("server", server.Name).Str("version", server.Version).Msg("MCP session initialized")

	if len(required) == 0 {
		return nil
	}
	tools, err := c.ListTools(ctx)
	if err != nil {
		return err
	}
	return ValidateTools(tools, required)
}

func (c *Client) ListTools(ctx context.Context) ([]types.Tool, error) {
	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	tools, err := c.transport.ListTools(reqCtx)
	if err != nil {
		return nil, fmt.Errorf("tools/list request failed: %w", err)
	}
	return tools, nil
}

// CallTool invokes a tool. A result flagged isError is returned together
// with a *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error) {
	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()

	result, err := c.transport.CallTool(reqCtx, name, arguments)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s failed: %w", name, err)
	}
	if result.IsError {
		return result, &ToolError{Tool: name, Message: Text(result)}
	}
	return result, nil
}

func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) ServerInfo() (name, version string) {
	return c.server.Name, c.server.Version
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Text joins the text blocks of a tool result.
func Text(result *types.ToolCallResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	return strings.Join(parts, "\n")
}

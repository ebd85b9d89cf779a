package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

const protocolVersion = "2025-03-26"

// Mark3LabsTransport adapts a mark3labs/mcp-go client to Transport. The
// underlying wire transport is built lazily in Start.
type Mark3LabsTransport struct {
	newTransport func() (transport.Interface, error)
	mcpClient    *client.Client
	initialized  bool
}

var _ Transport = (*Mark3LabsTransport)(nil)

// NewHTTPTransport speaks Streamable HTTP to url.
func NewHTTPTransport(url string, headers map[string]string) *Mark3LabsTransport {
	return &Mark3LabsTransport{
		newTransport: func() (transport.Interface, error) {
			return transport.NewStreamableHTTP(
				url,
				transport.WithContinuousListening(),
				transport.WithHTTPHeaders(headers),
			)
		},
	}
}

// NewStdioTransport launches command and speaks MCP over its stdio.
func NewStdioTransport(command []string) *Mark3LabsTransport {
	return &Mark3LabsTransport{
		newTransport: func() (transport.Interface, error) {
			if len(command) == 0 {
				return nil, fmt.Errorf("command cannot be empty")
			}
			return transport.NewStdio(command[0], nil, command[1:]...), nil
		},
	}
}

func (t *Mark3LabsTransport) Start(ctx context.Context) error {
	trans, err := t.newTransport()
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	t.mcpClient = client.NewClient(trans)
	if err := t.mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}
	return nil
}

func (t *Mark3LabsTransport) Initialize(ctx context.Context, info ClientInfo) (ServerInfo, error) {
	if t.mcpClient == nil {
		return ServerInfo{}, fmt.Errorf("transport not started")
	}

	result, err := t.mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    info.Name,
				Version: info.Version,
			},
		},
	})
	if err != nil {
		return ServerInfo{}, fmt.Errorf("initialize failed: %w", err)
	}

	t.initialized = true
	return ServerInfo{Name: result.ServerInfo.Name, Version: result.ServerInfo.Version}, nil
}

func (t *Mark3LabsTransport) ListTools(ctx context.Context) ([]types.Tool, error) {
	if !t.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	result, err := t.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools failed: %w", err)
	}

	tools := make([]types.Tool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		var schema map[string]interface{}
		// ToolInputSchema -> map via JSON
		if schemaBytes, err := json.Marshal(tool.InputSchema); err == nil {
			_ = json.Unmarshal(schemaBytes, &schema)
		}
		tools = append(tools, types.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

func (t *Mark3LabsTransport) CallTool(ctx context.Context, name string, arguments map[string]any) (*types.ToolCallResult, error) {
	if !t.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	result, err := t.mcpClient.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call tool failed: %w", err)
	}

	// mcp.Content is an interface; the JSON form maps onto ContentBlock.
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	var out types.ToolCallResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode tool result: %w", err)
	}
	return &out, nil
}

func (t *Mark3LabsTransport) Close() error {
	if t.mcpClient != nil {
		return t.mcpClient.Close()
	}
	return nil
}

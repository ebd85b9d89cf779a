package client

import (
	"fmt"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// ValidateTools checks if required tools are available on the server
func ValidateTools(available []types.Tool, required []string) error {
	toolMap := make(map[string]bool, len(available))
	for _, tool := range available {
		toolMap[tool.Name] = true
	}

	var missing []string
	for _, req := range required {
		if !toolMap[req] {
			missing = append(missing, req)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required tools: %v", missing)
	}
	return nil
}

// CreateClient creates an MCP client from server configuration. The
// transport defaults to stdio when a command is set and http otherwise.
func CreateClient(config types.ServerConfig) (*Client, error) {
	kind := config.Transport
	if kind == "" {
		kind = "http"
		if len(config.Command) > 0 {
			kind = "stdio"
		}
	}

	var transport Transport
	switch kind {
	case "stdio":
		if len(config.Command) == 0 {
			return nil, fmt.Errorf("command required for stdio transport")
		}
		transport = NewStdioTransport(config.Command)

	case "http":
		if config.URL == "" {
			return nil, fmt.Errorf("url required for http transport")
		}
		transport = NewHTTPTransport(config.URL, config.Headers)

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", config.Transport)
	}

	return NewClient(transport, config.Timeout), nil
}

// Package mcpclient wraps the official MCP Go SDK's stdio client lifecycle:
// spawn a server process, list its tools, invoke them, and reshape results
// into the envelope the iteration loop feeds back to the model.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nifi-agent/engine/internal/engerr"
	"github.com/nifi-agent/engine/internal/schema"
)

// ServerConfig describes how to launch one MCP server subprocess.
type ServerConfig struct {
	Command string
	Args    []string
	Env     []string
}

// Client owns one connected MCP server session over stdio.
type Client struct {
	name    string
	session *mcp.ClientSession
}

// Connect launches cfg.Command as a subprocess and performs the MCP
// handshake, grounded on the teacher's pkg/mcp/manager.go server lifecycle
// (ensureRunning / session-per-server), simplified to a single eager
// connect since this engine has no idle-reaping concern of its own.
func Connect(ctx context.Context, name string, cfg ServerConfig) (*Client, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(cmd.Env, cfg.Env...)

	client := mcp.NewClient(&mcp.Implementation{Name: "nifi-agent", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, engerr.New(engerr.KindTransport, fmt.Errorf("connect to mcp server %q: %w", name, err))
	}
	return &Client{name: name, session: session}, nil
}

func (c *Client) Close() error {
	return c.session.Close()
}

// ListTools reshapes the server's tool catalog into the canonical
// OpenAI-function-style ToolDef the schema normalizer expects.
func (c *Client) ListTools(ctx context.Context) ([]schema.ToolDef, error) {
	result, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, engerr.New(engerr.KindTransport, fmt.Errorf("list_tools on %q: %w", c.name, err))
	}

	out := make([]schema.ToolDef, 0, len(result.Tools))
	for _, t := range result.Tools {
		params := map[string]any{}
		if t.InputSchema != nil {
			if data, err := json.Marshal(t.InputSchema); err == nil {
				_ = json.Unmarshal(data, &params)
			}
		}
		out = append(out, schema.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return out, nil
}

// SafetyMeta carries the configured safety-gate headers (spec §6.4) as MCP
// request metadata so the server can enforce them per call.
type SafetyMeta struct {
	AutoStopEnabled   bool
	AutoDeleteEnabled bool
	AutoPurgeEnabled  bool
}

func (m SafetyMeta) asMap() map[string]any {
	return map[string]any{
		"X-Mcp-Auto-Stop-Enabled":   m.AutoStopEnabled,
		"X-Mcp-Auto-Delete-Enabled": m.AutoDeleteEnabled,
		"X-Mcp-Auto-Purge-Enabled":  m.AutoPurgeEnabled,
	}
}

// CallTool invokes name with arguments and returns the JSON-encoded
// `{"tool_output_content": [...]}` envelope the iteration loop appends as
// a tool message's content, per spec §6.1.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, safety SafetyMeta) (string, error) {
	params := &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
		Meta:      safety.asMap(),
	}

	result, err := c.session.CallTool(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), "method not found") {
			return "", engerr.New(engerr.KindToolValidationError, fmt.Errorf("%s: %w", name, err))
		}
		return "", engerr.New(engerr.KindTransport, fmt.Errorf("call_tool %s: %w", name, err))
	}

	items := make([]map[string]any, 0, len(result.Content))
	for _, block := range result.Content {
		switch b := block.(type) {
		case *mcp.TextContent:
			items = append(items, map[string]any{"type": "text", "text": b.Text})
		default:
			items = append(items, map[string]any{"type": "unknown"})
		}
	}

	envelope := map[string]any{"tool_output_content": items}
	if result.IsError {
		envelope["is_error"] = true
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", engerr.New(engerr.KindToolError, fmt.Errorf("encode result for %s: %w", name, err))
	}

	if result.IsError {
		return string(data), engerr.New(engerr.KindToolError, fmt.Errorf("tool %s returned an error result", name))
	}
	return string(data), nil
}

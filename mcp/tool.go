// MCP tool wrapper - makes server tools usable through the tool registry.
//
// Information Hiding:
// - Client lifecycle hidden behind Manager
// - Schema conversion hidden
// - Server-reported errors turned into failed tool results

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/richinex/weaver/tools"
)

// remoteTool forwards calls to a tool on an MCP server.
type remoteTool struct {
	client *Client
	meta   tools.ToolMetadata
}

func newRemoteTool(client *Client, info ToolInfo) *remoteTool {
	return &remoteTool{
		client: client,
		meta: tools.ToolMetadata{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: parseSchema(info.InputSchema),
		},
	}
}

// parseSchema decodes a server input schema, falling back to an open object.
func parseSchema(raw json.RawMessage) map[string]any {
	var schema map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &schema) != nil || schema == nil {
		return map[string]any{"type": "object"}
	}
	return schema
}

func (t *remoteTool) Metadata() tools.ToolMetadata {
	return t.meta
}

// Execute calls the tool on the server. A result flagged isError by the
// server becomes a failed result carrying the server's text.
func (t *remoteTool) Execute(ctx context.Context, input json.RawMessage) (tools.ToolResult, error) {
	result, err := t.client.CallTool(ctx, t.meta.Name, input)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("tool call failed: %w", err)
	}
	if result.IsError {
		return tools.FailureResult(errors.New(result.Text())), nil
	}
	return formatResult(result), nil
}

// formatResult keeps JSON text as JSON and wraps anything else as a string.
func formatResult(result CallResult) tools.ToolResult {
	text := result.Text()
	if json.Valid([]byte(text)) {
		return tools.SuccessResult(json.RawMessage(text))
	}
	return tools.SuccessResult(text)
}

// Manager owns the clients of every connected server.
// The caller must call Close when done.
type Manager struct {
	clients []*Client
	tools   []tools.Tool
}

// Tools returns the discovered tools.
func (m *Manager) Tools() []tools.Tool {
	return m.tools
}

// Close stops every server.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.clients = nil
	return errors.Join(errs...)
}

// add discovers the tools of a connected client.
func (m *Manager) add(ctx context.Context, client *Client) error {
	infos, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	m.clients = append(m.clients, client)
	for _, info := range infos {
		m.tools = append(m.tools, newRemoteTool(client, info))
	}
	return nil
}

// Connect starts every server in cfg and registers their tools into
// registry. A server that fails to start is logged and skipped, as is a tool
// whose name is already taken.
func Connect(ctx context.Context, cfg *Config, registry *tools.Registry, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{}
	if cfg == nil {
		return m, nil
	}

	for _, name := range cfg.Names() {
		log := logger.With("mcp_server", name)

		client, err := Start(ctx, cfg.MCPServers[name])
		if err != nil {
			log.Warn("failed to connect to MCP server", "error", err)
			continue
		}
		before := len(m.tools)
		if err := m.add(ctx, client); err != nil {
			client.Close()
			log.Warn("failed to discover MCP tools", "error", err)
			continue
		}
		log.Info("connected to MCP server", "tools", len(m.tools)-before)
	}

	if err := m.register(registry, logger); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) register(registry *tools.Registry, logger *slog.Logger) error {
	if registry == nil {
		return fmt.Errorf("mcp: nil registry")
	}
	for _, t := range m.tools {
		if err := registry.Register(t); err != nil {
			logger.Warn("skipping MCP tool", "tool", t.Metadata().Name, "error", err)
		}
	}
	return nil
}

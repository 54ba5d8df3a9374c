// Package tools provides the tool system for the conversation loop.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool input schemas generated from Go structs, hidden in implementations
// - Registry lookup hidden from consumers
// - Tool faults converted into tool_result blocks at the Invoker boundary
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/richinex/weaver/model"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ToolMetadata describes what a tool does and the shape of its input.
type ToolMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Schema converts the metadata into the form advertised to the model.
func (m ToolMetadata) Schema() model.ToolSchema {
	return model.ToolSchema{
		Name:        m.Name,
		Description: m.Description,
		InputSchema: m.InputSchema,
	}
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output any
	Error  error
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Payload serializes Output as JSON, the form carried in a tool_result block.
func (t ToolResult) Payload() (string, error) {
	if raw, ok := t.Output.(json.RawMessage); ok && json.Valid(raw) {
		return string(raw), nil
	}
	b, err := json.Marshal(t.Output)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tool output: %w", err)
	}
	return string(b), nil
}

// SuccessResult creates a successful tool result.
func SuccessResult(output any) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Execute may report a fault either through the returned error or through a
// failed ToolResult; the Invoker treats both the same way.
type Tool interface {
	// Metadata returns tool metadata (name, description, input schema).
	Metadata() ToolMetadata

	// Execute runs the tool with the given JSON input.
	Execute(ctx context.Context, input json.RawMessage) (ToolResult, error)
}

// Validator is implemented by tools that check their input beyond the schema.
type Validator interface {
	Validate(input json.RawMessage) error
}

// ToolConfig holds tool execution configuration.
// The zero value runs each call once with no timeout.
type ToolConfig struct {
	TimeoutSecs uint64
	MaxRetries  uint32
}

// Timeout returns the configured per-call timeout; zero means none.
func (c *ToolConfig) Timeout() uint64 {
	if c == nil {
		return 0
	}
	return c.TimeoutSecs
}

// Attempts returns how many times a failing call is tried.
func (c *ToolConfig) Attempts() uint32 {
	if c == nil {
		return 1
	}
	return c.MaxRetries + 1
}

// DefaultToolConfig returns the configuration used by the CLI when nothing is set.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		TimeoutSecs: DefaultToolTimeout,
		MaxRetries:  0,
	}
}

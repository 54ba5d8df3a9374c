// Tool Invoker: turns tool_use blocks into tool_result blocks.
//
// Information Hiding:
// - Registry lookup and input validation hidden
// - Unknown tools, invalid input and execution faults all become
//   error-bearing tool_result blocks; nothing is returned as an error

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richinex/weaver/model"
)

// Invoker resolves and executes the tool calls of one assistant message.
type Invoker struct {
	registry *Registry
	executor *Executor
	parallel bool
	logger   *slog.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithExecutor sets the executor used for each call.
func WithExecutor(executor *Executor) InvokerOption {
	return func(i *Invoker) { i.executor = executor }
}

// WithParallel runs the calls of one message concurrently.
func WithParallel(enabled bool) InvokerOption {
	return func(i *Invoker) { i.parallel = enabled }
}

// WithLogger sets the logger for invocation records.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(i *Invoker) { i.logger = logger }
}

// NewInvoker creates an invoker over registry.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		registry: registry,
		executor: NewExecutor(ToolConfig{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the registry the invoker resolves tools from.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Invoke executes one tool_use block and returns the matching tool_result.
// A panic in a tool's Validate is reported like an execution fault.
func (i *Invoker) Invoke(ctx context.Context, use model.ContentBlock) (block model.ContentBlock) {
	start := time.Now()
	log := i.logger.With("tool", use.Name, "tool_use_id", use.ID)
	defer func() {
		if p := recover(); p != nil {
			log.Error("tool panicked", "panic", p)
			block = executionError(use, fmt.Errorf("panic: %v", p))
		}
	}()

	tool, ok := i.registry.Resolve(use.Name)
	if !ok {
		log.Warn("tool not found")
		return errorResult(use, fmt.Sprintf("No handler found for tool %s", use.Name))
	}

	if err := i.registry.Validate(use.Name, use.Input); err != nil {
		log.Warn("tool input rejected", "error", err)
		return executionError(use, err)
	}

	result, err := i.executor.Execute(ctx, tool, use.Input)
	if err != nil {
		log.Warn("tool call abandoned", "error", err, "duration", time.Since(start))
		return executionError(use, err)
	}
	if !result.Success() {
		log.Error("tool execution failed", "error", result.Error, "duration", time.Since(start))
		return executionError(use, result.Error)
	}

	payload, err := result.Payload()
	if err != nil {
		log.Error("tool output not serializable", "error", err)
		return executionError(use, err)
	}

	log.Info("tool executed", "duration", time.Since(start), "output_size", len(payload))
	return model.ToolResultBlock(use.ID, payload)
}

// InvokeAll executes every tool_use block. The returned results are in the
// same order as uses regardless of whether calls ran concurrently.
func (i *Invoker) InvokeAll(ctx context.Context, uses []model.ContentBlock) []model.ContentBlock {
	results := make([]model.ContentBlock, len(uses))

	if !i.parallel || len(uses) < 2 {
		for idx, use := range uses {
			results[idx] = i.Invoke(ctx, use)
		}
		return results
	}

	var wg sync.WaitGroup
	for idx, use := range uses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[idx] = i.Invoke(ctx, use)
		}()
	}
	wg.Wait()
	return results
}

// toolError is the JSON payload of an error-bearing tool_result.
type toolError struct {
	Error string `json:"error"`
	Tool  string `json:"tool"`
}

func executionError(use model.ContentBlock, err error) model.ContentBlock {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "cancelled"
	}
	return errorResult(use, fmt.Sprintf("Error executing tool %s: %s", use.Name, msg))
}

func errorResult(use model.ContentBlock, msg string) model.ContentBlock {
	b, err := json.Marshal(toolError{Error: msg, Tool: use.Name})
	if err != nil {
		b = []byte(`{"error":"unserializable tool error"}`)
	}
	return model.ToolErrorBlock(use.ID, string(b))
}

// Tool Executor with timeout and retry.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Panics inside tools recovered into failed results

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Executor runs a single tool call with the configured timeout and retries.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute runs a tool, retrying retryable failures. A tool fault is always
// returned as a failed ToolResult; the error is non-nil only when ctx ends.
func (e *Executor) Execute(ctx context.Context, tool Tool, input json.RawMessage) (ToolResult, error) {
	if timeout := e.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	var last ToolResult
	attempts := e.config.Attempts()

	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := e.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(backoff):
			}
		}

		last = e.executeOnce(ctx, tool, input)
		if last.Success() {
			return last, nil
		}
		if ctx.Err() != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return FailureResultf("timed out after %d seconds", e.config.Timeout()), nil
			}
			return last, ctx.Err()
		}
		if !e.shouldRetry(last) {
			return last, nil
		}
	}

	if attempts > 1 {
		return FailureResultf("failed after %d attempts: %v", attempts, last.Error), nil
	}
	return last, nil
}

// executeOnce runs the tool a single time, folding returned errors and
// panics into the result.
func (e *Executor) executeOnce(ctx context.Context, tool Tool, input json.RawMessage) (result ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			result = FailureResultf("panic: %v", p)
		}
	}()

	res, err := tool.Execute(ctx, input)
	if err != nil {
		return FailureResult(err)
	}
	return res
}

// calculateBackoff returns the backoff duration for the given attempt.
func (e *Executor) calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// shouldRetry determines if a failure is retryable.
func (e *Executor) shouldRetry(result ToolResult) bool {
	if result.Error == nil {
		return false
	}

	errLower := strings.ToLower(result.Error.Error())

	// Don't retry validation errors, permission issues or panics
	nonRetryable := []string{"invalid", "validation", "not allowed", "permission", "empty", "panic"}
	for _, s := range nonRetryable {
		if strings.Contains(errLower, s) {
			return false
		}
	}

	return true
}

// String describes the executor configuration for logs.
func (e *Executor) String() string {
	return fmt.Sprintf("executor(timeout=%ds attempts=%d)", e.config.Timeout(), e.config.Attempts())
}

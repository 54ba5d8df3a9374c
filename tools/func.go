package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// FuncTool adapts a typed function into a Tool. The input schema is
// generated from T; the output R is serialized verbatim into the result.
type FuncTool[T any, R any] struct {
	meta ToolMetadata
	fn   func(ctx context.Context, args T) (R, error)
}

// NewFuncTool builds a Tool from a typed function.
func NewFuncTool[T any, R any](name, description string, fn func(ctx context.Context, args T) (R, error)) *FuncTool[T, R] {
	return &FuncTool[T, R]{
		meta: ToolMetadata{
			Name:        name,
			Description: description,
			InputSchema: GenerateSchema[T](),
		},
		fn: fn,
	}
}

// Metadata returns the tool metadata.
func (t *FuncTool[T, R]) Metadata() ToolMetadata {
	return t.meta
}

// Execute decodes input into T and calls the function.
func (t *FuncTool[T, R]) Execute(ctx context.Context, input json.RawMessage) (ToolResult, error) {
	var args T
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return FailureResult(fmt.Errorf("%w: %v", ErrInvalidInput, err)), nil
		}
	}
	out, err := t.fn(ctx, args)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(out), nil
}

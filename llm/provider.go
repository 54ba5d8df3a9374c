// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific streaming events, folded into text deltas
// - Reconstruction of the final assistant message from the stream

package llm

import (
	"context"

	"github.com/richinex/weaver/model"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a single streaming turn operation.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// StreamTurn starts one model turn over the conversation. Failures to
	// start are reported through the returned stream's Err.
	StreamTurn(ctx context.Context, req TurnRequest) TurnStream
}

// TurnRequest is the input of one turn.
type TurnRequest struct {
	System   string
	Messages []model.Message
	Tools    []model.ToolSchema
}

// TurnStream is a pull-based view of one streaming turn.
//
//	for ts.Next() {
//		fmt.Print(ts.Current().Text)
//	}
//	if err := ts.Err(); err != nil { ... }
//	result := ts.Result()
//
// Result is only meaningful after Next has returned false and Err is nil.
type TurnStream interface {
	Next() bool
	Current() Delta
	Err() error
	Result() TurnResult
	Close() error
}

// Delta is an incremental fragment of assistant text.
type Delta struct {
	Text string
}

// TurnResult is the finalized outcome of a turn.
type TurnResult struct {
	Message    model.Message
	StopReason model.StopReason
	Usage      *TokenUsage
}

// failedStream is a TurnStream that never yields and reports err.
type failedStream struct {
	err error
}

// FailedStream returns a stream that fails immediately with err.
func FailedStream(err error) TurnStream {
	return failedStream{err: err}
}

func (f failedStream) Next() bool         { return false }
func (f failedStream) Current() Delta     { return Delta{} }
func (f failedStream) Err() error         { return f.err }
func (f failedStream) Result() TurnResult { return TurnResult{} }
func (f failedStream) Close() error       { return nil }

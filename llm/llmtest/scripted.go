// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/richinex/weaver/llm"
	"github.com/richinex/weaver/model"
)

// Turn scripts one model turn.
type Turn struct {
	// StartErr fails the turn before any delta.
	StartErr error
	// Deltas are yielded in order.
	Deltas []string
	// MidErr fails the turn after Deltas have been yielded.
	MidErr error
	// Content is the finalized assistant content. When nil, one text block
	// joining Deltas is used.
	Content []model.ContentBlock
	// StopReason defaults to end_turn.
	StopReason model.StopReason
	// Block, when non-nil, is waited on before the first delta.
	Block <-chan struct{}
}

// Text scripts a plain text answer streamed as deltas.
func Text(deltas ...string) Turn {
	return Turn{Deltas: deltas, StopReason: model.StopEndTurn}
}

// ToolUse scripts a turn that requests the given tool calls.
func ToolUse(uses ...model.ContentBlock) Turn {
	return Turn{Content: uses, StopReason: model.StopToolUse}
}

// Provider replays Turns in order and records every request.
type Provider struct {
	mu       sync.Mutex
	turns    []Turn
	requests []llm.TurnRequest
	closed   int
}

// New creates a provider that plays turns in order.
func New(turns ...Turn) *Provider {
	return &Provider{turns: turns}
}

func (p *Provider) Name() string  { return "scripted" }
func (p *Provider) Model() string { return "scripted-1" }

// StreamTurn plays the next scripted turn.
func (p *Provider) StreamTurn(ctx context.Context, req llm.TurnRequest) llm.TurnStream {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := req
	snapshot.Messages = append([]model.Message(nil), req.Messages...)
	p.requests = append(p.requests, snapshot)

	idx := len(p.requests) - 1
	if idx >= len(p.turns) {
		return llm.FailedStream(fmt.Errorf("scripted provider: no turn %d", idx+1))
	}
	turn := p.turns[idx]
	if turn.StartErr != nil {
		return llm.FailedStream(turn.StartErr)
	}
	return &stream{ctx: ctx, turn: turn, provider: p}
}

// Requests returns the requests received so far.
func (p *Provider) Requests() []llm.TurnRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.TurnRequest(nil), p.requests...)
}

// Closed reports how many streams were closed.
func (p *Provider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type stream struct {
	ctx      context.Context
	turn     Turn
	provider *Provider
	pos      int
	current  llm.Delta
	err      error
	done     bool
	closed   bool
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}
	if s.pos == 0 && s.turn.Block != nil {
		select {
		case <-s.turn.Block:
		case <-s.ctx.Done():
			s.done, s.err = true, s.ctx.Err()
			return false
		}
	}
	if err := s.ctx.Err(); err != nil {
		s.done, s.err = true, err
		return false
	}
	if s.pos < len(s.turn.Deltas) {
		s.current = llm.Delta{Text: s.turn.Deltas[s.pos]}
		s.pos++
		return true
	}
	s.done = true
	s.err = s.turn.MidErr
	return false
}

func (s *stream) Current() llm.Delta { return s.current }
func (s *stream) Err() error         { return s.err }

func (s *stream) Result() llm.TurnResult {
	content := s.turn.Content
	if content == nil {
		text := ""
		for _, d := range s.turn.Deltas {
			text += d
		}
		content = []model.ContentBlock{model.TextBlock(text)}
	}
	stop := s.turn.StopReason
	if stop == "" {
		stop = model.StopEndTurn
	}
	return llm.TurnResult{
		Message:    model.Message{Role: model.RoleAssistant, Content: append([]model.ContentBlock(nil), content...)},
		StopReason: stop,
	}
}

func (s *stream) Close() error {
	if !s.closed {
		s.closed = true
		s.provider.mu.Lock()
		s.provider.closed++
		s.provider.mu.Unlock()
	}
	return nil
}

var _ llm.Provider = (*Provider)(nil)

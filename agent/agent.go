// Turn loop implementation.
//
// This is the only place a conversation advances: model turns are streamed
// out as they happen, requested tools are dispatched, and their results are
// fed back until the model stops asking for tools.
//
// Information Hiding:
// - Turn loop internals and state transitions hidden
// - LLM communication hidden behind llm.Provider
// - Tool execution coordination hidden behind tools.Invoker
// - Conversation ownership hidden; callers only see events

package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/weaver/llm"
	"github.com/richinex/weaver/model"
	"github.com/richinex/weaver/stream"
	"github.com/richinex/weaver/tools"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrNoToolUse reports a turn that stopped for tool use without
	// requesting any tool.
	ErrNoToolUse = errors.New("model stopped for tool use but requested no tools")
	// ErrMaxTurns reports a run that hit Config.MaxTurns.
	ErrMaxTurns = errors.New("turn limit reached")
)

// Agent runs conversations against one provider and one tool registry.
// An Agent holds no per-conversation state and may serve concurrent runs.
type Agent struct {
	provider llm.Provider
	registry *tools.Registry
	invoker  *tools.Invoker
	config   Config
	logger   *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithConfig replaces the agent configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) { a.config = config }
}

// WithSystemPrompt sets the system prompt sent with every turn.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.config.SystemPrompt = prompt }
}

// WithMaxTurns caps the number of turns per run. Zero means no cap.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.config.MaxTurns = n }
}

// WithInvoker sets the tool invoker. By default one is built over the
// registry from Config.Tool and Config.ParallelTools.
func WithInvoker(invoker *tools.Invoker) Option {
	return func(a *Agent) { a.invoker = invoker }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New creates an agent.
func New(provider llm.Provider, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		registry: registry,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.invoker == nil {
		a.invoker = tools.NewInvoker(registry,
			tools.WithExecutor(tools.NewExecutor(a.config.Tool)),
			tools.WithParallel(a.config.ParallelTools),
			tools.WithLogger(a.logger),
		)
	}
	return a
}

// Provider returns the provider turns are sent to.
func (a *Agent) Provider() llm.Provider {
	return a.provider
}

// Registry returns the tool registry.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// Run continues the conversation in history and returns its events:
// streaming_message for each text delta, full_message for every message
// appended to the conversation, and at most one error, always last.
//
// The sequence is lazy and can be ranged over once. Breaking out of the
// range, or cancelling ctx, abandons the run; nothing produced afterwards is
// delivered. history is copied and never modified.
func (a *Agent) Run(ctx context.Context, history []model.Message) iter.Seq[stream.Event] {
	return func(yield func(stream.Event) bool) {
		r := &run{
			agent:        a,
			conversation: slices.Clone(history),
			log:          a.logger.With("run", uuid.NewString()[:8], "provider", a.provider.Name()),
			yield:        yield,
		}
		r.loop(ctx)
	}
}

// run is the state of one conversation.
type run struct {
	agent        *Agent
	conversation []model.Message
	log          *slog.Logger
	yield        func(stream.Event) bool
	state        State
	turns        int
	toolCalls    int
}

func (r *run) transition(s State) {
	r.log.Debug("state", "from", r.state, "to", s, "turn", r.turns)
	r.state = s
}

// fail emits the terminal error event.
func (r *run) fail(err error) {
	r.log.Error("run failed", "error", err, "turn", r.turns)
	r.transition(StateDone)
	r.yield(stream.Error(err.Error()))
}

// abandon ends the run without further events.
func (r *run) abandon(reason string) {
	r.log.Info("run abandoned", "reason", reason, "turn", r.turns, "state", r.state)
	r.state = StateDone
}

func (r *run) loop(ctx context.Context) {
	start := time.Now()
	defer func() {
		r.log.Info("run finished", "turns", r.turns, "tool_calls", r.toolCalls, "duration", time.Since(start))
	}()

	if err := model.Validate(r.conversation); err != nil {
		r.fail(fmt.Errorf("invalid conversation: %w", err))
		return
	}

	for r.state != StateDone {
		if ctx.Err() != nil {
			r.abandon(ctx.Err().Error())
			return
		}
		switch r.state {
		case StateAwaitingTurn:
			if limit := r.agent.config.MaxTurns; limit > 0 && r.turns >= limit {
				r.fail(fmt.Errorf("%w: %d turns", ErrMaxTurns, limit))
				return
			}
			r.turns++
			r.transition(StateStreaming)

		case StateStreaming:
			req := llm.TurnRequest{
				System:   r.agent.config.SystemPrompt,
				Messages: r.conversation,
				Tools:    r.agent.registry.Catalog(),
			}
			msg, stop, err := stream.Transcode(r.agent.provider.StreamTurn(ctx, req), r.yield)
			switch {
			case errors.Is(err, stream.ErrAborted):
				r.abandon("consumer gone")
				return
			case err != nil && ctx.Err() != nil:
				r.abandon(ctx.Err().Error())
				return
			case err != nil:
				r.fail(err)
				return
			}
			r.conversation = append(r.conversation, msg)
			r.log.Info("turn complete", "turn", r.turns, "stop_reason", stop, "tool_uses", len(msg.ToolUses()))
			r.transition(StateTurnComplete)

			if stop.Terminal() {
				r.transition(StateDone)
				return
			}
			r.transition(StateDispatchingTools)

		case StateDispatchingTools:
			last := r.conversation[len(r.conversation)-1]
			uses := last.ToolUses()
			if len(uses) == 0 {
				r.fail(ErrNoToolUse)
				return
			}

			results := r.agent.invoker.InvokeAll(ctx, uses)
			r.toolCalls += len(uses)
			if ctx.Err() != nil {
				r.abandon(ctx.Err().Error())
				return
			}

			reply := model.UserMessage(results...)
			r.conversation = append(r.conversation, reply)
			if !r.yield(stream.FullMessage(reply)) {
				r.abandon("consumer gone")
				return
			}
			r.transition(StateAwaitingTurn)
		}
	}
}

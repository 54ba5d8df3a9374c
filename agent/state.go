package agent

// State is a phase of a conversation run.
type State int

const (
	// StateAwaitingTurn is the initial state and the state after tool results
	// have been appended.
	StateAwaitingTurn State = iota
	// StateStreaming means a turn is in flight and its deltas are forwarded.
	StateStreaming
	// StateTurnComplete means the assistant message has been finalized.
	StateTurnComplete
	// StateDispatchingTools means the requested tool calls are running.
	StateDispatchingTools
	// StateDone is terminal.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingTurn:
		return "awaiting_turn"
	case StateStreaming:
		return "streaming"
	case StateTurnComplete:
		return "turn_complete"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

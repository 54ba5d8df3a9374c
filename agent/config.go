// Agent configuration types.
//
// Information Hiding:
// - Default values hidden

package agent

import (
	"github.com/richinex/weaver/tools"
)

// DefaultSystemPrompt steers the model towards the note tools.
const DefaultSystemPrompt = "You are a helpful assistant with access to tools that give you extra capabilities. " +
	"When asked a question that is outside of your training data, use the search_notes tool to find relevant " +
	"information, including personal information about the user."

// Config holds agent configuration.
type Config struct {
	// SystemPrompt is sent with every turn.
	SystemPrompt string

	// MaxTurns caps the number of model turns in one run. Zero means no cap.
	MaxTurns int

	// Tool controls the timeout and retries of each tool call.
	Tool tools.ToolConfig

	// ParallelTools runs the tool calls of one turn concurrently.
	ParallelTools bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: DefaultSystemPrompt,
		Tool:         tools.DefaultToolConfig(),
	}
}

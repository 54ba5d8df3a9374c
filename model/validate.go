package model

import (
	"errors"
	"fmt"
)

// ErrEmptyConversation is returned by Validate for a history with no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Validate checks caller-supplied history before it is sent to a model:
// roles and block types are known, and every tool_result references a
// tool_use from the immediately preceding assistant message.
func Validate(history []Message) error {
	if len(history) == 0 {
		return ErrEmptyConversation
	}

	var prevUses map[string]bool
	for i, msg := range history {
		switch msg.Role {
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}

		uses := make(map[string]bool)
		for j, b := range msg.Content {
			switch b.Type {
			case BlockText:
			case BlockToolUse:
				if msg.Role != RoleAssistant {
					return fmt.Errorf("message %d block %d: tool_use outside an assistant message", i, j)
				}
				if b.ID == "" || b.Name == "" {
					return fmt.Errorf("message %d block %d: tool_use needs id and name", i, j)
				}
				uses[b.ID] = true
			case BlockToolResult:
				if msg.Role != RoleUser {
					return fmt.Errorf("message %d block %d: tool_result outside a user message", i, j)
				}
				if !prevUses[b.ToolUseID] {
					return fmt.Errorf("message %d block %d: tool_result %q has no matching tool_use in the preceding message", i, j, b.ToolUseID)
				}
			default:
				return fmt.Errorf("message %d block %d: unknown block type %q", i, j, b.Type)
			}
		}

		if msg.Role == RoleAssistant {
			prevUses = uses
		} else {
			prevUses = nil
		}
	}
	return nil
}

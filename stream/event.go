// Package stream turns streaming model turns into outbound conversation
// events and writes them to clients as server-sent events.
package stream

import (
	"github.com/richinex/weaver/model"
)

// EventType names an outbound event.
type EventType string

const (
	// TypeStreamingMessage carries one text delta of the turn in progress.
	TypeStreamingMessage EventType = "streaming_message"
	// TypeFullMessage carries a finalized message appended to the conversation.
	TypeFullMessage EventType = "full_message"
	// TypeError carries the message of a fault that ended the run.
	TypeError EventType = "error"
)

// Event is one item of the outbound sequence. Data is a string for
// streaming_message and error events and a model.Message for full_message.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// StreamingMessage builds a text delta event.
func StreamingMessage(delta string) Event {
	return Event{Type: TypeStreamingMessage, Data: delta}
}

// FullMessage builds a finalized message event.
func FullMessage(msg model.Message) Event {
	return Event{Type: TypeFullMessage, Data: msg}
}

// Error builds a terminal error event.
func Error(msg string) Event {
	return Event{Type: TypeError, Data: msg}
}

// Message returns the message of a full_message event.
func (e Event) Message() (model.Message, bool) {
	msg, ok := e.Data.(model.Message)
	return msg, ok && e.Type == TypeFullMessage
}

// Text returns the string payload of a streaming_message or error event.
func (e Event) Text() string {
	s, _ := e.Data.(string)
	return s
}

package stream

import (
	"errors"

	"github.com/richinex/weaver/llm"
	"github.com/richinex/weaver/model"
)

// ErrAborted reports that the consumer stopped accepting events.
var ErrAborted = errors.New("event consumer went away")

// Transcode drains one turn. Every non-empty text delta is yielded as a
// streaming_message while the turn runs; once it resolves, the finalized
// assistant message is yielded as a single full_message and returned with
// the turn's stop reason. The stream is always closed.
//
// A provider failure is returned without a full_message; no partial message
// is ever emitted. If yield returns false, Transcode stops pulling and
// returns ErrAborted.
func Transcode(ts llm.TurnStream, yield func(Event) bool) (model.Message, model.StopReason, error) {
	defer ts.Close()

	for ts.Next() {
		delta := ts.Current()
		if delta.Text == "" {
			continue
		}
		if !yield(StreamingMessage(delta.Text)) {
			return model.Message{}, "", ErrAborted
		}
	}
	if err := ts.Err(); err != nil {
		return model.Message{}, "", err
	}

	result := ts.Result()
	msg := result.Message
	msg.Role = model.RoleAssistant
	if msg.Content == nil {
		msg.Content = []model.ContentBlock{}
	}
	if !yield(FullMessage(msg)) {
		return msg, result.StopReason, ErrAborted
	}
	return msg, result.StopReason, nil
}

package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/richinex/weaver/model"
)

// wireEvent defers decoding of data until the type is known.
type wireEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes the JSON payload of one `data:` record.
func ParseEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, fmt.Errorf("stream: decode event: %w", err)
	}

	switch w.Type {
	case TypeFullMessage:
		var msg model.Message
		if err := json.Unmarshal(w.Data, &msg); err != nil {
			return Event{}, fmt.Errorf("stream: decode full_message: %w", err)
		}
		return FullMessage(msg), nil
	case TypeStreamingMessage, TypeError:
		var s string
		if err := json.Unmarshal(w.Data, &s); err != nil {
			return Event{}, fmt.Errorf("stream: decode %s: %w", w.Type, err)
		}
		return Event{Type: w.Type, Data: s}, nil
	default:
		return Event{}, fmt.Errorf("stream: unknown event type %q", w.Type)
	}
}

// Decode reads server-sent events written by Writer. Iteration stops after
// the first error.
func Decode(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if data.Len() == 0 {
					continue
				}
				evt, err := ParseEvent([]byte(data.String()))
				data.Reset()
				if !yield(evt, err) || err != nil {
					return
				}
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Event{}, fmt.Errorf("stream: read: %w", err))
		}
	}
}

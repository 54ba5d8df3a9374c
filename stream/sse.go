package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Writer frames events as server-sent events: one `data: <json>` record per
// event, each flushed as soon as it is written.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
}

// NewWriter prepares an HTTP response for event streaming and sets the
// event-stream headers. Call it before the first write to w.
func NewWriter(w http.ResponseWriter) *Writer {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache, no-transform")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// NewPlainWriter frames events onto any writer, such as a file or buffer.
func NewPlainWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes one event.
func (s *Writer) Send(evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", body); err != nil {
		return fmt.Errorf("stream: write event: %w", err)
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// Flush pushes buffered output, including response headers, to the client.
func (s *Writer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flush != nil {
		s.flush()
	}
}

package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/richinex/weaver/model"
	"github.com/richinex/weaver/server"
	"github.com/richinex/weaver/stream"
)

// Runner continues a conversation and returns its events. Agent.Run is a
// Runner; RemoteRunner builds one that talks to a weaver server.
type Runner func(ctx context.Context, history []model.Message) iter.Seq[stream.Event]

// maxResultPreview bounds how much of a tool result is echoed in verbose mode.
const maxResultPreview = 200

// RemoteRunner returns a Runner that posts the conversation to the server at
// baseURL and decodes the event stream it answers with.
func RemoteRunner(baseURL string, client *http.Client) Runner {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/stream"

	return func(ctx context.Context, history []model.Message) iter.Seq[stream.Event] {
		return func(yield func(stream.Event) bool) {
			body, err := json.Marshal(server.StreamRequest{Messages: history})
			if err != nil {
				yield(stream.Error(err.Error()))
				return
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				yield(stream.Error(err.Error()))
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == nil {
					yield(stream.Error(err.Error()))
				}
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				yield(stream.Error(fmt.Sprintf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))))
				return
			}

			for evt, err := range stream.Decode(resp.Body) {
				if err != nil {
					if ctx.Err() == nil {
						yield(stream.Error(err.Error()))
					}
					return
				}
				if !yield(evt) {
					return
				}
			}
		}
	}
}

// Chat runs an interactive session. Each input line is sent as a user
// message and the reply is rendered as it streams. A run that ends in an
// error leaves the conversation as it was before the line was sent.
func Chat(ctx context.Context, in io.Reader, out io.Writer, run Runner, verbose bool) error {
	scanner := bufio.NewScanner(in)
	var history []model.Message

	fmt.Fprintf(out, "Chat session started. Type 'exit' to quit.\n\n")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		next := append(slices.Clone(history), model.UserMessage(model.TextBlock(line)))
		next, err := render(out, run(ctx, next), next, verbose)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n\n", err)
			continue
		}
		history = next
	}
}

// Ask sends a single prompt and renders the reply.
func Ask(ctx context.Context, out io.Writer, run Runner, prompt string, verbose bool) error {
	history := []model.Message{model.UserMessage(model.TextBlock(prompt))}
	_, err := render(out, run(ctx, history), history, verbose)
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// render prints the events of one run and returns the conversation extended
// with every full message. An error event ends rendering with that error.
func render(out io.Writer, events iter.Seq[stream.Event], history []model.Message, verbose bool) ([]model.Message, error) {
	names := make(map[string]string)
	midLine := false

	for evt := range events {
		switch evt.Type {
		case stream.TypeStreamingMessage:
			text := evt.Text()
			fmt.Fprint(out, text)
			midLine = !strings.HasSuffix(text, "\n")

		case stream.TypeFullMessage:
			msg, ok := evt.Message()
			if !ok {
				continue
			}
			history = append(history, msg)
			if midLine {
				fmt.Fprintln(out)
				midLine = false
			}
			renderMessage(out, msg, names, verbose)

		case stream.TypeError:
			if midLine {
				fmt.Fprintln(out)
			}
			return history, errors.New(evt.Text())
		}
	}

	if midLine {
		fmt.Fprintln(out)
	}
	return history, nil
}

func renderMessage(out io.Writer, msg model.Message, names map[string]string, verbose bool) {
	for _, block := range msg.Content {
		switch block.Type {
		case model.BlockToolUse:
			names[block.ID] = block.Name
			fmt.Fprintf(out, "  → %s(%s)\n", block.Name, compact(block.Input))
		case model.BlockToolResult:
			name := names[block.ToolUseID]
			if block.IsError {
				fmt.Fprintf(out, "  ✗ %s: %s\n", name, preview(block.Content))
			} else if verbose {
				fmt.Fprintf(out, "  ← %s: %s\n", name, preview(block.Content))
			}
		}
	}
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// preview flattens s to one line of at most maxResultPreview runes.
func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	n := 0
	for i := range s {
		if n == maxResultPreview {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

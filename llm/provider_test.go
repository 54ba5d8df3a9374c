package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/richinex/weaver/model"
)

// drain collects the deltas of a stream.
func drain(t *testing.T, ts TurnStream) []string {
	t.Helper()
	defer ts.Close()
	var deltas []string
	for ts.Next() {
		deltas = append(deltas, ts.Current().Text)
	}
	return deltas
}

// sseServer replies to every request with body. Request bodies are sent on
// seen when it is non-nil.
func sseServer(t *testing.T, contentType string, body string, seen chan<- []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			select {
			case seen <- b:
			default:
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func anthropicEvent(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func TestAnthropicStreamTurn(t *testing.T) {
	body := strings.Join([]string{
		anthropicEvent("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`),
		anthropicEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		anthropicEvent("ping", `{"type":"ping"}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me "}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"check."}}`),
		anthropicEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		anthropicEvent("content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"lookup","input":{}}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`),
		anthropicEvent("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"x\"}"}}`),
		anthropicEvent("content_block_stop", `{"type":"content_block_stop","index":1}`),
		anthropicEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":9}}`),
		anthropicEvent("message_stop", `{"type":"message_stop"}`),
	}, "")

	requests := make(chan []byte, 1)
	srv := sseServer(t, "text/event-stream", body, requests)
	provider := NewAnthropicProvider("test-key", "claude-test", 256, 0.5, WithBaseURL(srv.URL))

	ts := provider.StreamTurn(context.Background(), TurnRequest{
		System:   "be brief",
		Messages: []model.Message{model.UserMessage(model.TextBlock("look up x"))},
		Tools: []model.ToolSchema{{
			Name:        "lookup",
			Description: "Look up a value",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}, "required": []any{"q"}},
		}},
	})
	deltas := drain(t, ts)
	if err := ts.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(deltas, "|"); got != "Let me |check." {
		t.Errorf("deltas = %q", got)
	}

	result := ts.Result()
	if result.StopReason != model.StopToolUse {
		t.Errorf("stop reason = %q, want tool_use", result.StopReason)
	}
	if len(result.Message.Content) != 2 {
		t.Fatalf("content = %+v", result.Message.Content)
	}
	if result.Message.Content[0].Text != "Let me check." {
		t.Errorf("text = %q", result.Message.Content[0].Text)
	}
	use := result.Message.Content[1]
	if use.Type != model.BlockToolUse || use.ID != "toolu_1" || use.Name != "lookup" || string(use.Input) != `{"q":"x"}` {
		t.Errorf("tool_use = %+v (input %s)", use, use.Input)
	}
	if result.Usage == nil || result.Usage.PromptTokens != 12 || result.Usage.CompletionTokens != 9 {
		t.Errorf("usage = %+v", result.Usage)
	}

	seen := <-requests
	var req map[string]any
	if err := json.Unmarshal(seen, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req["stream"] != true {
		t.Errorf("request not streaming: %s", seen)
	}
	if tools, _ := req["tools"].([]any); len(tools) != 1 {
		t.Errorf("tools not forwarded: %s", seen)
	}
	if !strings.Contains(string(seen), "be brief") {
		t.Errorf("system prompt not forwarded: %s", seen)
	}
}

func TestAnthropicEmptyTurnThenFollowUp(t *testing.T) {
	body := strings.Join([]string{
		anthropicEvent("message_start", `{"type":"message_start","message":{"id":"msg_2","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":0}}}`),
		anthropicEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":0}}`),
		anthropicEvent("message_stop", `{"type":"message_stop"}`),
	}, "")

	requests := make(chan []byte, 2)
	srv := sseServer(t, "text/event-stream", body, requests)
	provider := NewAnthropicProvider("test-key", "claude-test", 256, 0.5, WithBaseURL(srv.URL))

	history := []model.Message{model.UserMessage(model.TextBlock("hi"))}
	first := provider.StreamTurn(context.Background(), TurnRequest{Messages: history})
	drain(t, first)
	if err := first.Err(); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	reply := first.Result().Message
	if len(reply.Content) != 0 {
		t.Fatalf("expected empty reply, got %+v", reply.Content)
	}
	<-requests

	history = append(history, reply, model.UserMessage(model.TextBlock("again")))
	second := provider.StreamTurn(context.Background(), TurnRequest{Messages: history})
	drain(t, second)
	if err := second.Err(); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	var req struct {
		Messages []struct {
			Role    string            `json:"role"`
			Content []json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(<-requests, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("sent %d messages, want 2 (empty assistant dropped)", len(req.Messages))
	}
	for i, m := range req.Messages {
		if m.Role != "user" || len(m.Content) == 0 {
			t.Errorf("message %d = %+v", i, m)
		}
	}
}

func TestOpenAIStreamTurnToolCalls(t *testing.T) {
	chunks := []string{
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"On it"}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"lookup","arguments":""}}]}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":"}}]}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"list_notes","arguments":"{}"}}]}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`,
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: " + c + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")

	srv := sseServer(t, "text/event-stream", b.String(), nil)
	provider := NewOpenAIProvider("test-key", "gpt-test", 256, 0.5, WithBaseURL(srv.URL))

	ts := provider.StreamTurn(context.Background(), TurnRequest{
		Messages: []model.Message{model.UserMessage(model.TextBlock("hi"))},
	})
	deltas := drain(t, ts)
	if err := ts.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 1 || deltas[0] != "On it" {
		t.Errorf("deltas = %q", deltas)
	}

	result := ts.Result()
	if result.StopReason != model.StopToolUse {
		t.Errorf("stop reason = %q", result.StopReason)
	}
	uses := result.Message.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("tool uses = %+v", result.Message.Content)
	}
	if uses[0].ID != "call_a" || string(uses[0].Input) != `{"q":"x"}` {
		t.Errorf("first call = %+v (%s)", uses[0], uses[0].Input)
	}
	if uses[1].ID != "call_b" || uses[1].Name != "list_notes" {
		t.Errorf("second call = %+v", uses[1])
	}
	if result.Usage == nil || result.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v", result.Usage)
	}
}

func TestGeminiStreamTurn(t *testing.T) {
	chunks := []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Two plus two "}]}}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"is 4."}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":4,"totalTokenCount":7}}`,
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: " + c + "\r\n\r\n")
	}

	srv := sseServer(t, "text/event-stream", b.String(), nil)
	provider := NewGeminiProvider("test-key", "gemini-test", 256, 0.5, WithBaseURL(srv.URL))

	ts := provider.StreamTurn(context.Background(), TurnRequest{
		Messages: []model.Message{model.UserMessage(model.TextBlock("What is 2+2?"))},
	})
	deltas := drain(t, ts)
	if err := ts.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(deltas, ""); got != "Two plus two is 4." {
		t.Errorf("deltas = %q", deltas)
	}
	result := ts.Result()
	if result.StopReason != model.StopEndTurn {
		t.Errorf("stop reason = %q", result.StopReason)
	}
	if result.Message.Text() != "Two plus two is 4." {
		t.Errorf("message = %+v", result.Message)
	}
}

// TestProviderErrorsNoAPIKeyLeak verifies failed turns don't echo API keys.
func TestProviderErrorsNoAPIKeyLeak(t *testing.T) {
	const testKey = "sk-test-invalid-key-12345xyz"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	providers := []Provider{
		NewAnthropicProvider(testKey, "claude-test", 100, 0.7, WithBaseURL(srv.URL)),
		NewOpenAIProvider(testKey, "gpt-test", 100, 0.7, WithBaseURL(srv.URL)),
		NewDeepSeekProvider(testKey, "deepseek-chat", 100, 0.7, WithBaseURL(srv.URL)),
		NewGeminiProvider(testKey, "gemini-test", 100, 0.7, WithBaseURL(srv.URL)),
	}
	for _, provider := range providers {
		t.Run(provider.Name(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			ts := provider.StreamTurn(ctx, TurnRequest{
				Messages: []model.Message{model.UserMessage(model.TextBlock("test"))},
			})
			deltas := drain(t, ts)
			if len(deltas) != 0 {
				t.Errorf("unexpected deltas %q", deltas)
			}
			err := ts.Err()
			if err == nil {
				t.Fatal("expected error from rejected request")
			}
			if strings.Contains(err.Error(), testKey) {
				t.Errorf("%s error leaked API key: %v", provider.Name(), err)
			}
			if strings.Contains(err.Error(), "Authorization:") {
				t.Errorf("%s error exposed Authorization header: %v", provider.Name(), err)
			}
		})
	}
}

func TestFailedStream(t *testing.T) {
	ts := FailedStream(fmt.Errorf("boom"))
	if ts.Next() {
		t.Fatal("failed stream yielded")
	}
	if ts.Err() == nil || ts.Err().Error() != "boom" {
		t.Errorf("err = %v", ts.Err())
	}
	if err := ts.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

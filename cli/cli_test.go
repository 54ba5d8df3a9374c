package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/weaver/agent"
	"github.com/richinex/weaver/config"
	"github.com/richinex/weaver/llm/llmtest"
	"github.com/richinex/weaver/model"
	"github.com/richinex/weaver/server"
	"github.com/richinex/weaver/storage"
	"github.com/richinex/weaver/tools"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newAgent(t *testing.T, provider *llmtest.Provider) *agent.Agent {
	t.Helper()
	registry, err := tools.WithDefaults(storage.NewInMemoryNotes())
	require.NoError(t, err)
	return agent.New(provider, registry, agent.WithLogger(quiet))
}

func TestChatKeepsHistoryAcrossLines(t *testing.T) {
	provider := llmtest.New(llmtest.Text("Hello", " there"), llmtest.Text("Fine."))
	a := newAgent(t, provider)

	var out bytes.Buffer
	err := Chat(context.Background(), strings.NewReader("hi\n\nhow are you?\nexit\n"), &out, a.Run, false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Hello there\n")
	assert.Contains(t, out.String(), "Fine.")

	requests := provider.Requests()
	require.Len(t, requests, 2)
	require.Len(t, requests[1].Messages, 3)
	assert.Equal(t, "Hello there", requests[1].Messages[1].Text())
	assert.Equal(t, "how are you?", requests[1].Messages[2].Text())
}

func TestChatDropsFailedExchange(t *testing.T) {
	provider := llmtest.New(
		llmtest.Turn{StartErr: errors.New("overloaded")},
		llmtest.Text("ok"),
	)
	a := newAgent(t, provider)

	var out bytes.Buffer
	err := Chat(context.Background(), strings.NewReader("first\nsecond\n"), &out, a.Run, false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Error: ")
	assert.Contains(t, out.String(), "overloaded")

	requests := provider.Requests()
	require.Len(t, requests, 2)
	require.Len(t, requests[1].Messages, 1)
	assert.Equal(t, "second", requests[1].Messages[0].Text())
}

func TestChatContinuesAfterEmptyReply(t *testing.T) {
	provider := llmtest.New(
		llmtest.Turn{Content: []model.ContentBlock{}, StopReason: model.StopEndTurn},
		llmtest.Text("ok"),
	)
	a := newAgent(t, provider)

	var out bytes.Buffer
	err := Chat(context.Background(), strings.NewReader("hi\nagain\n"), &out, a.Run, false)
	require.NoError(t, err)

	assert.NotContains(t, out.String(), "Error: ")
	assert.Contains(t, out.String(), "ok")

	requests := provider.Requests()
	require.Len(t, requests, 2)
	require.Len(t, requests[1].Messages, 3)
	assert.Equal(t, model.RoleAssistant, requests[1].Messages[1].Role)
	assert.Empty(t, requests[1].Messages[1].Content)
	assert.Equal(t, "again", requests[1].Messages[2].Text())
}

func TestAskRendersToolCalls(t *testing.T) {
	provider := llmtest.New(
		llmtest.ToolUse(
			model.ToolUseBlock("t1", "add_note", json.RawMessage(`{"content": "tea"}`)),
			model.ToolUseBlock("t2", "missing_tool", nil),
		),
		llmtest.Text("Done."),
	)
	a := newAgent(t, provider)

	var out bytes.Buffer
	require.NoError(t, Ask(context.Background(), &out, a.Run, "remember tea", true))

	text := out.String()
	assert.Contains(t, text, `→ add_note({"content":"tea"})`)
	assert.Contains(t, text, "← add_note: ")
	assert.Contains(t, text, "✗ missing_tool: ")
	assert.Contains(t, text, "Done.")
}

func TestAskThroughServer(t *testing.T) {
	provider := llmtest.New(llmtest.Text("4"))
	srv := httptest.NewServer(server.New(newAgent(t, provider), quiet).Handler())
	defer srv.Close()

	var out bytes.Buffer
	run := RemoteRunner(srv.URL+"/", srv.Client())
	require.NoError(t, Ask(context.Background(), &out, run, "What's 2+2?", false))

	assert.Equal(t, "4\n", out.String())
	require.Len(t, provider.Requests(), 1)
	assert.Equal(t, "What's 2+2?", provider.Requests()[0].Messages[0].Text())
}

func TestRemoteRunnerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := Ask(context.Background(), &out, RemoteRunner(srv.URL, srv.Client()), "hi", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "boom")
}

func TestListTools(t *testing.T) {
	registry, err := tools.WithDefaults(storage.NewInMemoryNotes())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ListTools(&out, registry, false))
	for _, name := range []string{"add_note", "search_notes", "list_notes", "http_request"} {
		assert.Contains(t, out.String(), name)
	}
	assert.NotContains(t, out.String(), "Input:")

	out.Reset()
	require.NoError(t, ListTools(&out, registry, true))
	assert.Contains(t, out.String(), "Input:")
}

func TestShowToolsWithoutMCP(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ShowTools(context.Background(), &out, "", false, quiet))
	assert.Contains(t, out.String(), "search_notes")
}

func TestAssemble(t *testing.T) {
	t.Setenv("WEAVER_MAX_TURNS", "3")
	t.Setenv("WEAVER_PROVIDER", "")
	settings, err := config.New("openai")
	require.NoError(t, err)

	notes := storage.NewInMemoryNotes()
	app, err := assemble(context.Background(), settings, llmtest.New(), notes, "", quiet)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"add_note", "http_request", "list_notes", "search_notes"}, app.Agent.Registry().Names())
	assert.Equal(t, "scripted", app.Agent.Provider().Name())
}

func TestApplyOverrides(t *testing.T) {
	settings := config.Settings{}
	settings.LLM.Model = "from-env"
	settings.Agent.MaxTurns = 2

	applyOverrides(&settings, Options{Model: "from-flag", DBPath: "/tmp/x.db"})

	assert.Equal(t, "from-flag", settings.LLM.Model)
	assert.Equal(t, "/tmp/x.db", settings.Storage.DBPath)
	assert.Equal(t, 2, settings.Agent.MaxTurns)
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := newProvider(config.LLMConfig{Provider: "openai", Model: "gpt-4o"})
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	p, err := newProvider(config.LLMConfig{Provider: "openai", Model: "gpt-4o", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.Model())
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := preview(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", maxResultPreview)+"...", got)

	// 151 runes but 301 bytes: short enough to keep as is.
	short := "a" + strings.Repeat("é", 150)
	assert.Equal(t, short, preview(short))

	assert.Equal(t, "line one line two", preview("line one\nline two"))
}

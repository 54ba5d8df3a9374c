package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/richinex/weaver/agent"
)

// clearEnv blanks every variable New reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEAVER_PROVIDER", "LLM_MAX_TOKENS", "LLM_TEMPERATURE",
		"WEAVER_SYSTEM_PROMPT", "WEAVER_MAX_TURNS", "WEAVER_TOOL_TIMEOUT",
		"WEAVER_TOOL_RETRIES", "WEAVER_PARALLEL_TOOLS", "WEAVER_DB_PATH",
		"WEAVER_ADDR", "WEAVER_LOG_LEVEL",
		"OPENAI_MODEL", "OPENAI_BASE_URL", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestNewValidProvider(t *testing.T) {
	clearEnv(t)
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewDefaults(t *testing.T) {
	clearEnv(t)
	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != DefaultProvider {
		t.Errorf("expected provider %q, got %q", DefaultProvider, settings.LLM.Provider)
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("expected 4096 max tokens, got %d", settings.LLM.MaxTokens)
	}
	if settings.Agent.SystemPrompt != agent.DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", settings.Agent.SystemPrompt)
	}
	if settings.Agent.MaxTurns != 0 {
		t.Errorf("expected no turn cap, got %d", settings.Agent.MaxTurns)
	}
	if settings.Agent.ToolTimeout != 30*time.Second {
		t.Errorf("expected 30s tool timeout, got %s", settings.Agent.ToolTimeout)
	}
	if settings.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", settings.Server.Addr)
	}
	if settings.Storage.DBPath != ".weaver/notes.db" {
		t.Errorf("expected default db path, got %q", settings.Storage.DBPath)
	}
	if settings.Log.Level != slog.LevelInfo {
		t.Errorf("expected info level, got %s", settings.Log.Level)
	}
}

func TestNewFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEAVER_PROVIDER", "gpt")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("WEAVER_MAX_TURNS", "6")
	t.Setenv("WEAVER_TOOL_TIMEOUT", "5")
	t.Setenv("WEAVER_TOOL_RETRIES", "2")
	t.Setenv("WEAVER_PARALLEL_TOOLS", "true")
	t.Setenv("WEAVER_LOG_LEVEL", "debug")

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" || settings.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected LLM config: %+v", settings.LLM)
	}
	if settings.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected base URL %q", settings.LLM.BaseURL)
	}
	if settings.Log.Level != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", settings.Log.Level)
	}

	cfg := settings.AgentConfig()
	if cfg.MaxTurns != 6 || !cfg.ParallelTools {
		t.Errorf("unexpected agent config: %+v", cfg)
	}
	if cfg.Tool.TimeoutSecs != 5 || cfg.Tool.MaxRetries != 2 {
		t.Errorf("unexpected tool config: %+v", cfg.Tool)
	}
}

func TestNewWithAlias(t *testing.T) {
	clearEnv(t)
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	for _, tc := range []struct{ key, val string }{
		{"LLM_MAX_TOKENS", "not-a-number"},
		{"WEAVER_MAX_TURNS", "-1"},
		{"WEAVER_PARALLEL_TOOLS", "sometimes"},
		{"WEAVER_LOG_LEVEL", "loud"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)

			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for invalid %s", tc.key)
			}
		})
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 4 || providers[0] != "anthropic" {
		t.Errorf("unexpected providers: %v", providers)
	}
}

func TestNewProviderResolvesSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1/v1")
	t.Setenv("LLM_TEMPERATURE", "0.2")

	settings, err := New("gpt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := settings.LLM.ProviderConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "sk-test" || cfg.Model != "gpt-4o-mini" || cfg.BaseURL != "http://localhost:1/v1" || cfg.Temperature != float32(0.2) {
		t.Errorf("unexpected provider config: %+v", cfg)
	}

	provider, err := settings.NewProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" || provider.Model() != "gpt-4o-mini" {
		t.Errorf("provider = %s/%s", provider.Name(), provider.Model())
	}

	t.Setenv("OPENAI_API_KEY", "")
	if _, err := settings.NewProvider(); err == nil {
		t.Error("expected error without an API key")
	}
}

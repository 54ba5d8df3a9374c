// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/weaver/agent"
	"github.com/richinex/weaver/llm"
	"github.com/richinex/weaver/tools"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	Agent   AgentConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	MaxTokens   uint32
	Temperature float64
}

// AgentConfig holds conversation loop configuration.
type AgentConfig struct {
	SystemPrompt  string
	MaxTurns      int
	ToolTimeout   time.Duration
	ToolRetries   uint32
	ParallelTools bool
}

// ServerConfig holds HTTP transport configuration.
type ServerConfig struct {
	Addr string
}

// StorageConfig holds the note store location.
type StorageConfig struct {
	DBPath string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	baseURLEnv   string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY", "GEMINI_BASE_URL"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// DefaultProvider is used when neither a flag nor WEAVER_PROVIDER names one.
const DefaultProvider = "anthropic"

// New creates settings for the specified provider, loading values from environment variables.
// An empty provider falls back to WEAVER_PROVIDER, then DefaultProvider.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	if provider == "" {
		provider = getEnvString("WEAVER_PROVIDER", DefaultProvider)
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxTurns, err := getEnvInt("WEAVER_MAX_TURNS", 0)
	if err != nil {
		return Settings{}, err
	}
	if maxTurns < 0 {
		return Settings{}, fmt.Errorf("invalid value for WEAVER_MAX_TURNS: %d must not be negative", maxTurns)
	}

	toolTimeout, err := getEnvUint32("WEAVER_TOOL_TIMEOUT", tools.DefaultToolTimeout)
	if err != nil {
		return Settings{}, err
	}

	toolRetries, err := getEnvUint32("WEAVER_TOOL_RETRIES", 0)
	if err != nil {
		return Settings{}, err
	}

	parallel, err := getEnvBool("WEAVER_PARALLEL_TOOLS", false)
	if err != nil {
		return Settings{}, err
	}

	level, err := LogLevel()
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnvString(info.modelEnv, info.defaultModel),
			BaseURL:     os.Getenv(info.baseURLEnv),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Agent: AgentConfig{
			SystemPrompt:  getEnvString("WEAVER_SYSTEM_PROMPT", agent.DefaultSystemPrompt),
			MaxTurns:      maxTurns,
			ToolTimeout:   time.Duration(toolTimeout) * time.Second,
			ToolRetries:   toolRetries,
			ParallelTools: parallel,
		},
		Server: ServerConfig{
			Addr: getEnvString("WEAVER_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("WEAVER_DB_PATH", ".weaver/notes.db"),
		},
		Log: LogConfig{
			Level: level,
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// AgentConfig converts the loop settings into an agent.Config.
func (s Settings) AgentConfig() agent.Config {
	return agent.Config{
		SystemPrompt: s.Agent.SystemPrompt,
		MaxTurns:     s.Agent.MaxTurns,
		Tool: tools.ToolConfig{
			TimeoutSecs: uint64(s.Agent.ToolTimeout / time.Second),
			MaxRetries:  s.Agent.ToolRetries,
		},
		ParallelTools: s.Agent.ParallelTools,
	}
}

// ProviderConfig resolves the API key for c.Provider and returns the
// complete provider configuration.
func (c LLMConfig) ProviderConfig() (llm.Config, error) {
	key, err := APIKeyFor(c.Provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("%s: %w", c.Provider, err)
	}
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      key,
		BaseURL:     c.BaseURL,
		MaxTokens:   c.MaxTokens,
		Temperature: float32(c.Temperature),
	}, nil
}

// NewProvider creates the configured LLM provider.
func (s Settings) NewProvider(opts ...llm.ProviderOption) (llm.Provider, error) {
	cfg, err := s.LLM.ProviderConfig()
	if err != nil {
		return nil, err
	}
	return llm.New(cfg, opts...)
}

// LogLevel returns the level named by WEAVER_LOG_LEVEL, defaulting to info.
// It is read separately so a logger can exist before the provider is known.
func LogLevel() (slog.Level, error) {
	return getEnvLevel("WEAVER_LOG_LEVEL", slog.LevelInfo)
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	return getEnvString(info.modelEnv, info.defaultModel), nil
}

// SupportedProviders returns the supported provider names in sorted order.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvLevel(key string, defaultVal slog.Level) (slog.Level, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(val)); err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return level, nil
}

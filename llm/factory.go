// LLM Provider Factory - builds a provider from resolved settings.
//
// Key, model and endpoint resolution happens in package config; this file
// only maps a Config onto the matching constructor:
//
//	provider, err := llm.New(llm.Config{
//	    Provider:  "anthropic",
//	    Model:     "claude-sonnet-4-20250514",
//	    APIKey:    key,
//	    MaxTokens: 8192,
//	})

package llm

import (
	"fmt"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// DefaultMaxTokens is used when Config.MaxTokens is zero.
const DefaultMaxTokens = 4096

// Config is a fully resolved provider configuration.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string // empty means the provider's public endpoint
	MaxTokens   uint32
	Temperature float32
}

// New creates the provider named by cfg.Provider.
func New(cfg Config, opts ...ProviderOption) (Provider, error) {
	providerType, err := ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: no API key", providerType)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: no model", providerType)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	switch providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, opts...), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, opts...), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, opts...), nil
	default:
		return NewGeminiProvider(cfg.APIKey, cfg.Model, maxTokens, cfg.Temperature, opts...), nil
	}
}

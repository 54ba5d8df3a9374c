// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models

package llm

import (
	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a new DeepSeek provider. It speaks the OpenAI
// chat completions protocol, so it shares the OpenAI stream handling.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...ProviderOption) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return newOpenAICompatible("deepseek", config, model, maxTokens, temperature, opts)
}

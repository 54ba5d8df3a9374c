// Package llm provides shared data models for LLM providers.
package llm

import (
	"net/http"
)

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// providerOptions carries transport overrides shared by all providers.
type providerOptions struct {
	baseURL    string
	httpClient *http.Client
}

// ProviderOption overrides how a provider reaches its API.
type ProviderOption func(*providerOptions)

// WithBaseURL points the provider at a different API endpoint, such as a
// proxy or a compatible server.
func WithBaseURL(url string) ProviderOption {
	return func(o *providerOptions) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(o *providerOptions) { o.httpClient = client }
}

func applyOptions(opts []ProviderOption) providerOptions {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// schemaProperties extracts the "properties" object of a JSON schema.
func schemaProperties(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	return props
}

// schemaRequired extracts the "required" list of a JSON schema, which may be
// []string when built in code or []any after a JSON round trip.
func schemaRequired(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// schemaExtras returns the keys of a JSON schema other than type, properties
// and required, such as $defs or additionalProperties. Document metadata
// ($schema, $id) is left out.
func schemaExtras(schema map[string]any) map[string]any {
	var extras map[string]any
	for k, v := range schema {
		switch k {
		case "type", "properties", "required", "$schema", "$id":
			continue
		}
		if extras == nil {
			extras = make(map[string]any)
		}
		extras[k] = v
	}
	return extras
}

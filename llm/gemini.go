// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Streaming via official SDK iterator, pulled one response at a time
// - Function calls without an ID get a generated one

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/richinex/weaver/model"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...ProviderOption) *GeminiProvider {
	o := applyOptions(opts)
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions.BaseURL = o.baseURL
	}

	p := &GeminiProvider{
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		p.initErr = fmt.Errorf("failed to initialize Gemini client: %w", err)
		return p
	}
	p.client = client
	return p
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// StreamTurn starts a streaming generate-content call.
func (p *GeminiProvider) StreamTurn(ctx context.Context, req TurnRequest) TurnStream {
	if p.initErr != nil {
		return FailedStream(p.initErr)
	}
	if p.client == nil {
		return FailedStream(fmt.Errorf("gemini client not initialized"))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		Tools:           convertToGeminiTools(req.Tools),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	next, stop := iter.Pull2(p.client.Models.GenerateContentStream(ctx, p.model, toGeminiContents(req.Messages), config))
	return &geminiStream{next: next, stop: stop}
}

// geminiStream adapts the SDK response iterator to TurnStream.
type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	text    strings.Builder
	calls   []model.ContentBlock
	finish  genai.FinishReason
	usage   *TokenUsage
	pending []string
	current Delta
	err     error
	done    bool
}

func (s *geminiStream) Next() bool {
	for len(s.pending) == 0 {
		if s.done {
			return false
		}
		response, err, ok := s.next()
		if !ok {
			s.done = true
			return false
		}
		if err != nil {
			s.done = true
			s.err = fmt.Errorf("stream error: %w", err)
			return false
		}
		s.absorb(response)
	}

	s.current = Delta{Text: s.pending[0]}
	s.pending = s.pending[1:]
	return true
}

// absorb records one streamed response: text is queued for delivery,
// function calls and finish metadata are kept for Result.
func (s *geminiStream) absorb(response *genai.GenerateContentResponse) {
	if response == nil {
		return
	}
	if response.UsageMetadata != nil {
		s.usage = &TokenUsage{
			PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
			CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
		}
	}
	if len(response.Candidates) == 0 {
		return
	}

	candidate := response.Candidates[0]
	if candidate.FinishReason != "" {
		s.finish = candidate.FinishReason
	}
	if candidate.Content == nil {
		return
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			s.text.WriteString(part.Text)
			s.pending = append(s.pending, part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			input, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				input = nil
			}
			s.calls = append(s.calls, model.ToolUseBlock(id, fc.Name, input))
		}
	}
}

func (s *geminiStream) Current() Delta { return s.current }
func (s *geminiStream) Err() error     { return s.err }

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}

func (s *geminiStream) Result() TurnResult {
	msg := model.Message{Role: model.RoleAssistant, Content: []model.ContentBlock{}}
	if s.text.Len() > 0 {
		msg.Content = append(msg.Content, model.TextBlock(s.text.String()))
	}
	msg.Content = append(msg.Content, s.calls...)

	// Gemini reports STOP even when it calls functions.
	stop := fromGeminiFinishReason(s.finish)
	if len(s.calls) > 0 && stop == model.StopEndTurn {
		stop = model.StopToolUse
	}
	return TurnResult{Message: msg, StopReason: stop, Usage: s.usage}
}

func fromGeminiFinishReason(reason genai.FinishReason) model.StopReason {
	switch reason {
	case genai.FinishReasonStop, "":
		return model.StopEndTurn
	case genai.FinishReasonMaxTokens:
		return model.StopMaxTokens
	default:
		return model.StopReason(strings.ToLower(string(reason)))
	}
}

// toGeminiContents converts the conversation to Gemini contents. Function
// responses must carry the function name, which is looked up from the
// tool_use block with the same ID.
func toGeminiContents(messages []model.Message) []*genai.Content {
	names := make(map[string]string)
	var contents []*genai.Content

	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		content := &genai.Content{Role: role}

		for _, block := range msg.Content {
			switch block.Type {
			case model.BlockText:
				if block.Text != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: block.Text})
				}
			case model.BlockToolUse:
				names[block.ID] = block.Name
				var args map[string]any
				_ = json.Unmarshal(block.Input, &args)
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: block.ID, Name: block.Name, Args: args},
				})
			case model.BlockToolResult:
				var result map[string]any
				_ = json.Unmarshal([]byte(block.Content), &result)
				if result == nil {
					result = map[string]any{"result": block.Content}
				}
				if block.IsError {
					if _, ok := result["error"]; !ok {
						result = map[string]any{"error": result}
					}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       block.ToolUseID,
						Name:     names[block.ToolUseID],
						Response: result,
					},
				})
			}
		}
		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}
	return contents
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []model.ToolSchema) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		schema := convertToGeminiSchema(t.InputSchema)
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema recursively converts a parameter schema to Gemini format.
// Handles arrays by adding required 'items' field.
func convertToGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	// Get type if present
	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	schema.Required = schemaRequired(params)

	// Convert properties
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	// Get type
	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get description
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	if enum, ok := prop["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	// Handle array items - Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]any); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			// Default to string items if not specified
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	// Handle nested object properties
	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]any); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

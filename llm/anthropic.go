// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming via official SDK, final message rebuilt with Message.Accumulate

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/richinex/weaver/model"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...ProviderOption) *AnthropicProvider {
	o := applyOptions(opts)
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// StreamTurn starts a streaming Messages request.
func (p *AnthropicProvider) StreamTurn(ctx context.Context, req TurnRequest) TurnStream {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(p.temperature),
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	return &anthropicStream{stream: p.client.Messages.NewStreaming(ctx, params)}
}

// anthropicStream adapts the SDK event stream to TurnStream.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	message anthropic.Message
	current Delta
	err     error
	done    bool
}

func (s *anthropicStream) Next() bool {
	if s.done {
		return false
	}
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.message.Accumulate(event); err != nil {
			s.finish(fmt.Errorf("stream error: %w", err))
			return false
		}

		// Only text deltas surface; tool input is taken from the accumulated message.
		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.current = Delta{Text: delta.Text}
				return true
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.finish(fmt.Errorf("stream error: %w", err))
		return false
	}
	s.finish(nil)
	return false
}

func (s *anthropicStream) finish(err error) {
	s.done = true
	s.err = err
	s.current = Delta{}
}

func (s *anthropicStream) Current() Delta { return s.current }
func (s *anthropicStream) Err() error     { return s.err }
func (s *anthropicStream) Close() error   { return s.stream.Close() }

func (s *anthropicStream) Result() TurnResult {
	result := TurnResult{
		Message:    fromAnthropicMessage(s.message),
		StopReason: model.StopReason(s.message.StopReason),
	}
	if u := s.message.Usage; u.InputTokens > 0 || u.OutputTokens > 0 {
		result.Usage = &TokenUsage{
			PromptTokens:     uint32(u.InputTokens),
			CompletionTokens: uint32(u.OutputTokens),
			TotalTokens:      uint32(u.InputTokens + u.OutputTokens),
		}
	}
	return result
}

// fromAnthropicMessage keeps the text and tool_use blocks of a response.
func fromAnthropicMessage(msg anthropic.Message) model.Message {
	out := model.Message{Role: model.RoleAssistant, Content: []model.ContentBlock{}}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content = append(out.Content, model.TextBlock(block.Text))
		case "tool_use":
			input := json.RawMessage(block.Input)
			if !json.Valid(input) {
				input = nil
			}
			out.Content = append(out.Content, model.ToolUseBlock(block.ID, block.Name, input))
		}
	}
	return out
}

// toAnthropicMessages converts the conversation to Messages API params.
func toAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		param := anthropic.MessageParam{Role: anthropic.MessageParamRoleUser}
		if msg.Role == model.RoleAssistant {
			param.Role = anthropic.MessageParamRoleAssistant
		}

		for _, block := range msg.Content {
			switch block.Type {
			case model.BlockText:
				if block.Text == "" {
					continue
				}
				param.Content = append(param.Content, anthropic.NewTextBlock(block.Text))
			case model.BlockToolUse:
				input := block.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				param.Content = append(param.Content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    block.ID,
						Name:  block.Name,
						Input: input,
					},
				})
			case model.BlockToolResult:
				param.Content = append(param.Content, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
			}
		}
		// The API rejects empty messages anywhere but the final position.
		if len(param.Content) == 0 {
			continue
		}
		result = append(result, param)
	}
	return result
}

// toAnthropicTools converts tool schemas to Anthropic format.
func toAnthropicTools(tools []model.ToolSchema) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties:  schemaProperties(t.InputSchema),
				Required:    schemaRequired(t.InputSchema),
				ExtraFields: schemaExtras(t.InputSchema),
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)

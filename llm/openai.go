// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Tool-call argument fragments reassembled from streamed deltas

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/richinex/weaver/model"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...ProviderOption) *OpenAIProvider {
	return newOpenAICompatible("openai", openai.DefaultConfig(apiKey), model, maxTokens, temperature, opts)
}

func newOpenAICompatible(name string, config openai.ClientConfig, model string, maxTokens uint32, temperature float32, opts []ProviderOption) *OpenAIProvider {
	o := applyOptions(opts)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		config.HTTPClient = o.httpClient
	}

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// StreamTurn starts a streaming chat completion.
func (p *OpenAIProvider) StreamTurn(ctx context.Context, req TurnRequest) TurnStream {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(req.System, req.Messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Tools:       toOpenAITools(req.Tools),
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return FailedStream(fmt.Errorf("stream creation failed: %w", err))
	}
	return &openAIStream{stream: stream, calls: map[int]*openai.ToolCall{}}
}

// openAIStream adapts a chat completion stream to TurnStream.
type openAIStream struct {
	stream       *openai.ChatCompletionStream
	text         strings.Builder
	calls        map[int]*openai.ToolCall
	finishReason openai.FinishReason
	usage        *TokenUsage
	current      Delta
	err          error
	done         bool
}

func (s *openAIStream) Next() bool {
	if s.done {
		return false
	}
	for {
		response, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return false
		}
		if err != nil {
			s.done = true
			s.err = fmt.Errorf("stream recv failed: %w", err)
			return false
		}

		// Capture token usage from final chunk
		if response.Usage != nil {
			s.usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.FinishReason != "" {
			s.finishReason = choice.FinishReason
		}
		s.accumulateToolCalls(choice.Delta.ToolCalls)

		if content := choice.Delta.Content; content != "" {
			s.text.WriteString(content)
			s.current = Delta{Text: content}
			return true
		}
	}
}

// accumulateToolCalls merges streamed fragments keyed by their index.
func (s *openAIStream) accumulateToolCalls(deltas []openai.ToolCall) {
	for pos, d := range deltas {
		idx := pos
		if d.Index != nil {
			idx = *d.Index
		}
		call, ok := s.calls[idx]
		if !ok {
			call = &openai.ToolCall{Type: openai.ToolTypeFunction}
			s.calls[idx] = call
		}
		if d.ID != "" {
			call.ID = d.ID
		}
		if d.Function.Name != "" {
			call.Function.Name = d.Function.Name
		}
		call.Function.Arguments += d.Function.Arguments
	}
}

func (s *openAIStream) Current() Delta { return s.current }
func (s *openAIStream) Err() error     { return s.err }
func (s *openAIStream) Close() error   { return s.stream.Close() }

func (s *openAIStream) Result() TurnResult {
	msg := model.Message{Role: model.RoleAssistant, Content: []model.ContentBlock{}}
	if s.text.Len() > 0 {
		msg.Content = append(msg.Content, model.TextBlock(s.text.String()))
	}

	indexes := make([]int, 0, len(s.calls))
	for idx := range s.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		call := s.calls[idx]
		var input json.RawMessage
		if args := strings.TrimSpace(call.Function.Arguments); args != "" && json.Valid([]byte(args)) {
			input = json.RawMessage(args)
		}
		msg.Content = append(msg.Content, model.ToolUseBlock(call.ID, call.Function.Name, input))
	}

	return TurnResult{
		Message:    msg,
		StopReason: fromOpenAIFinishReason(s.finishReason),
		Usage:      s.usage,
	}
}

// fromOpenAIFinishReason maps finish reasons onto the Messages API vocabulary.
func fromOpenAIFinishReason(reason openai.FinishReason) model.StopReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return model.StopToolUse
	case openai.FinishReasonStop, "":
		return model.StopEndTurn
	case openai.FinishReasonLength:
		return model.StopMaxTokens
	default:
		return model.StopReason(reason)
	}
}

// toOpenAIMessages converts the conversation to chat messages. Tool results
// become "tool" role messages, emitted ahead of any text in the same turn.
func toOpenAIMessages(system string, messages []model.Message) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		if msg.Role == model.RoleAssistant {
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Text(),
			}
			for _, use := range msg.ToolUses() {
				args := string(use.Input)
				if args == "" {
					args = "{}"
				}
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   use.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      use.Name,
						Arguments: args,
					},
				})
			}
			result = append(result, oaiMsg)
			continue
		}

		for _, block := range msg.Content {
			if block.Type == model.BlockToolResult {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.Content,
					ToolCallID: block.ToolUseID,
				})
			}
		}
		if text := msg.Text(); text != "" {
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			})
		}
	}
	return result
}

// toOpenAITools converts tool schemas to OpenAI format.
func toOpenAITools(tools []model.ToolSchema) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

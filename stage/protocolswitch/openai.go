package protocolswitch

import (
	"encoding/json"

	"github.com/rcc-sub005/llmrouter/core"
)

// wireMessage, wireToolCall, wireFunction, wireTool mirror
// llm/providers/common.go's OpenAICompatMessage/ToolCall/Function/Tool,
// carried over field-for-field since the normalized core.Request already
// speaks this shape almost directly.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type openAIChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      wireMessage `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
}

// openAIConverter is the near pass-through converter for the openai and
// openai-compat protocol families, grounded on
// llm/providers/common.go's ConvertMessagesToOpenAI/ConvertToolsToOpenAI/
// ToLLMChatResponse.
type openAIConverter struct{}

func (openAIConverter) ToWire(req *core.Request) (WireRequest, error) {
	out := openAIRequest{
		Model:       req.Model,
		Messages:    convertMessagesToWire(req.Messages),
		Tools:       convertToolsToWire(req.Tools),
		ToolChoice:  req.ToolChoice,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}
	body, err := json.Marshal(out)
	if err != nil {
		return WireRequest{}, core.NewError(core.KindInvalidRequest, "marshal openai request").WithCause(err)
	}
	return WireRequest{Body: body}, nil
}

type openAIDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type openAIStreamChoice struct {
	Index        int         `json:"index"`
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIStreamChunk struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage,omitempty"`
}

// openAIStreamDecoder is stateless: every OpenAI SSE chunk is a complete,
// self-describing JSON object, unlike Anthropic's event-accumulator
// scheme.
type openAIStreamDecoder struct{}

func (openAIStreamDecoder) Decode(raw []byte) (core.Chunk, bool, error) {
	var c openAIStreamChunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return core.Chunk{}, false, core.NewError(core.KindMalformedStream, "decode openai stream chunk").WithCause(err)
	}
	if len(c.Choices) == 0 {
		if c.Usage == nil {
			return core.Chunk{}, false, nil
		}
		return core.Chunk{ID: c.ID, Object: "chat.completion.chunk", Model: c.Model, Usage: &core.Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}}, true, nil
	}
	ch := c.Choices[0]
	out := core.Chunk{
		ID:           c.ID,
		Object:       "chat.completion.chunk",
		Model:        c.Model,
		Index:        ch.Index,
		FinishReason: core.FinishReason(ch.FinishReason),
		Delta:        wireMessageToCore(wireMessage{Role: ch.Delta.Role, Content: ch.Delta.Content, ToolCalls: ch.Delta.ToolCalls}, ""),
	}
	if c.Usage != nil {
		out.Usage = &core.Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}
	}
	return out, true, nil
}

func (openAIConverter) NewStreamDecoder() StreamDecoder {
	return openAIStreamDecoder{}
}

func (openAIConverter) FromWire(data []byte) (*core.Response, error) {
	var oa openAIResponse
	if err := json.Unmarshal(data, &oa); err != nil {
		return nil, core.NewError(core.KindMalformedResponse, "decode openai response").WithCause(err)
	}
	choices := make([]core.Choice, 0, len(oa.Choices))
	for _, c := range oa.Choices {
		choices = append(choices, core.Choice{
			Index:        c.Index,
			FinishReason: core.FinishReason(c.FinishReason),
			Message:      wireMessageToCore(c.Message, core.RoleAssistant),
		})
	}
	resp := &core.Response{ID: oa.ID, Model: oa.Model, Choices: choices}
	if oa.Usage != nil {
		resp.Usage = core.Usage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	return resp, nil
}

func convertMessagesToWire(msgs []core.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			wm.ToolCalls = make([]wireToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireFunction{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		}
		out = append(out, wm)
	}
	return out
}

func convertToolsToWire(tools []core.ToolSchema) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:      t.Name,
				Arguments: t.Parameters,
			},
		})
	}
	return out
}

func wireMessageToCore(m wireMessage, defaultRole core.Role) core.Message {
	role := core.Role(m.Role)
	if role == "" {
		role = defaultRole
	}
	out := core.Message{
		Role:       role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]core.ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return out
}

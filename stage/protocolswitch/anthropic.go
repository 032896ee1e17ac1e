package protocolswitch

import (
	"encoding/json"

	"github.com/rcc-sub005/llmrouter/core"
)

// claudeMessage, claudeContent, claudeTool, claudeRequest, claudeUsage,
// claudeResponse mirror providers/anthropic/provider.go's wire types
// verbatim in shape; the anthropic stage owns them here so the pipeline's
// protocol-switch step no longer depends on a concrete provider package.
type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	StopSeq     []string        `json:"stop_sequences,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Content      []claudeContent `json:"content"`
	Model        string          `json:"model"`
	StopReason   string          `json:"stop_reason"`
	StopSequence string          `json:"stop_sequence,omitempty"`
	Usage        *claudeUsage    `json:"usage,omitempty"`
}

const anthropicDefaultMaxTokens = 4096

// anthropicConverter converts the normalized core shape to and from
// Claude's message-array wire shape, grounded on
// providers/anthropic/provider.go's convertToClaudeMessages/
// convertToClaudeTools/toClaudeChatResponse. System-message extraction and
// tool-role→tool_result wrapping are Claude-specific requirements the
// OpenAI converter has no equivalent for.
type anthropicConverter struct{}

func (anthropicConverter) ToWire(req *core.Request) (WireRequest, error) {
	system, msgs := convertToClaudeMessages(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	out := claudeRequest{
		Model:       req.Model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeq:     req.Stop,
		Stream:      req.Stream,
		Tools:       convertToClaudeTools(req.Tools),
	}
	body, err := json.Marshal(out)
	if err != nil {
		return WireRequest{}, core.NewError(core.KindInvalidRequest, "marshal anthropic request").WithCause(err)
	}
	return WireRequest{Body: body, Extra: map[string]string{"anthropic-version": "2023-06-01"}}, nil
}

// claudeStreamEvent, claudeDelta mirror
// providers/anthropic/provider.go's wire shapes for SSE events.
type claudeStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index,omitempty"`
	Delta        *claudeDelta    `json:"delta,omitempty"`
	ContentBlock *claudeContent  `json:"content_block,omitempty"`
	Message      *claudeResponse `json:"message,omitempty"`
	Usage        *claudeUsage    `json:"usage,omitempty"`
}

type claudeDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// anthropicStreamDecoder replays providers/anthropic/provider.go's Stream()
// event switch (message_start/content_block_start/content_block_delta/
// content_block_stop/message_delta/message_stop) as a pure per-event
// Decode call, carrying the same currentID/currentModel/toolCallAccumulator
// state the teacher closed over in its goroutine.
type anthropicStreamDecoder struct {
	currentID    string
	currentModel string
	toolCalls    map[int]*core.ToolCall
}

func newAnthropicStreamDecoder() *anthropicStreamDecoder {
	return &anthropicStreamDecoder{toolCalls: make(map[int]*core.ToolCall)}
}

func (d *anthropicStreamDecoder) Decode(raw []byte) (core.Chunk, bool, error) {
	var event claudeStreamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return core.Chunk{}, false, core.NewError(core.KindMalformedStream, "decode anthropic stream event").WithCause(err)
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			d.currentID = event.Message.ID
			d.currentModel = event.Message.Model
		}
		return core.Chunk{}, false, nil

	case "content_block_start":
		if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
			d.toolCalls[event.Index] = &core.ToolCall{
				ID:        event.ContentBlock.ID,
				Name:      event.ContentBlock.Name,
				Arguments: json.RawMessage("{}"),
			}
		}
		return core.Chunk{}, false, nil

	case "content_block_delta":
		if event.Delta == nil {
			return core.Chunk{}, false, nil
		}
		chunk := core.Chunk{
			ID:    d.currentID,
			Model: d.currentModel,
			Index: event.Index,
			Delta: core.Message{Role: core.RoleAssistant},
		}
		switch event.Delta.Type {
		case "text_delta":
			chunk.Delta.Content = event.Delta.Text
		case "input_json_delta":
			if tc, ok := d.toolCalls[event.Index]; ok {
				tc.Arguments = append(tc.Arguments, []byte(event.Delta.PartialJSON)...)
			}
			return core.Chunk{}, false, nil
		}
		return chunk, true, nil

	case "content_block_stop":
		tc, ok := d.toolCalls[event.Index]
		if !ok {
			return core.Chunk{}, false, nil
		}
		delete(d.toolCalls, event.Index)
		return core.Chunk{
			ID:    d.currentID,
			Model: d.currentModel,
			Index: event.Index,
			Delta: core.Message{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{*tc}},
		}, true, nil

	case "message_delta":
		if event.Delta == nil || event.Delta.StopReason == "" {
			return core.Chunk{}, false, nil
		}
		return core.Chunk{
			ID:           d.currentID,
			Model:        d.currentModel,
			FinishReason: claudeStopReasonToCore(event.Delta.StopReason),
		}, true, nil

	case "message_stop":
		if event.Usage == nil {
			return core.Chunk{}, false, nil
		}
		return core.Chunk{
			ID:    d.currentID,
			Model: d.currentModel,
			Usage: &core.Usage{
				PromptTokens:     event.Usage.InputTokens,
				CompletionTokens: event.Usage.OutputTokens,
				TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
			},
		}, true, nil

	default:
		return core.Chunk{}, false, nil
	}
}

func (anthropicConverter) NewStreamDecoder() StreamDecoder {
	return newAnthropicStreamDecoder()
}

func (anthropicConverter) FromWire(data []byte) (*core.Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, core.NewError(core.KindMalformedResponse, "decode anthropic response").WithCause(err)
	}
	return toCoreResponse(cr), nil
}

// convertToClaudeMessages extracts the system message and wraps tool-role
// turns as user/tool_result content blocks, since Claude has no "tool"
// role of its own.
func convertToClaudeMessages(msgs []core.Message) (string, []claudeMessage) {
	var system string
	var out []claudeMessage

	for _, m := range msgs {
		if m.Role == core.RoleSystem {
			system = m.Content
			continue
		}
		if m.Role == core.RoleTool {
			out = append(out, claudeMessage{
				Role: "user",
				Content: []claudeContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
			continue
		}

		cm := claudeMessage{Role: string(m.Role)}
		if m.Content != "" {
			cm.Content = append(cm.Content, claudeContent{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			cm.Content = append(cm.Content, claudeContent{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Arguments,
			})
		}
		if len(cm.Content) > 0 {
			out = append(out, cm)
		}
	}
	return system, out
}

func convertToClaudeTools(tools []core.ToolSchema) []claudeTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]claudeTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, claudeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return out
}

func toCoreResponse(cr claudeResponse) *core.Response {
	msg := core.Message{Role: core.RoleAssistant}
	for _, content := range cr.Content {
		switch content.Type {
		case "text":
			msg.Content += content.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:        content.ID,
				Name:      content.Name,
				Arguments: content.Input,
			})
		}
	}

	resp := &core.Response{
		ID:    cr.ID,
		Model: cr.Model,
		Choices: []core.Choice{{
			Index:        0,
			FinishReason: claudeStopReasonToCore(cr.StopReason),
			Message:      msg,
		}},
	}
	if cr.Usage != nil {
		resp.Usage = core.Usage{
			PromptTokens:     cr.Usage.InputTokens,
			CompletionTokens: cr.Usage.OutputTokens,
			TotalTokens:      cr.Usage.InputTokens + cr.Usage.OutputTokens,
		}
	}
	return resp
}

func claudeStopReasonToCore(reason string) core.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return core.FinishStop
	case "max_tokens":
		return core.FinishLength
	case "tool_use":
		return core.FinishToolCalls
	default:
		return core.FinishReason(reason)
	}
}

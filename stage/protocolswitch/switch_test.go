package protocolswitch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

func TestFor_UnknownFamilyErrors(t *testing.T) {
	_, err := For("does-not-exist")
	require.Error(t, err)
	assert.Equal(t, core.KindUnsupportedConv, core.GetKind(err))
}

func TestOpenAIConverter_ToWire_RoundTripsMessages(t *testing.T) {
	c := openAIConverter{}
	req := &core.Request{
		Model: "gpt-4",
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "hello"},
		},
		MaxTokens: 256,
	}
	wire, err := c.ToWire(req)
	require.NoError(t, err)

	var decoded openAIRequest
	require.NoError(t, json.Unmarshal(wire.Body, &decoded))
	assert.Equal(t, "gpt-4", decoded.Model)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "hello", decoded.Messages[0].Content)
}

func TestOpenAIConverter_FromWire_DecodesChoices(t *testing.T) {
	c := openAIConverter{}
	raw := `{"id":"x","model":"gpt-4","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`
	resp, err := c.FromWire([]byte(raw))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content)
	assert.Equal(t, core.FinishStop, resp.Choices[0].FinishReason)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestAnthropicConverter_ToWire_ExtractsSystemMessage(t *testing.T) {
	c := anthropicConverter{}
	req := &core.Request{
		Model: "claude-3",
		Messages: []core.Message{
			{Role: core.RoleSystem, Content: "be terse"},
			{Role: core.RoleUser, Content: "hello"},
		},
	}
	wire, err := c.ToWire(req)
	require.NoError(t, err)

	var decoded claudeRequest
	require.NoError(t, json.Unmarshal(wire.Body, &decoded))
	assert.Equal(t, "be terse", decoded.System)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	assert.Equal(t, anthropicDefaultMaxTokens, decoded.MaxTokens)
	assert.Equal(t, "2023-06-01", wire.Extra["anthropic-version"])
}

func TestAnthropicConverter_ToWire_WrapsToolRoleAsToolResult(t *testing.T) {
	c := anthropicConverter{}
	req := &core.Request{
		Model: "claude-3",
		Messages: []core.Message{
			{Role: core.RoleTool, ToolCallID: "call_1", Content: "42"},
		},
	}
	wire, err := c.ToWire(req)
	require.NoError(t, err)

	var decoded claudeRequest
	require.NoError(t, json.Unmarshal(wire.Body, &decoded))
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	require.Len(t, decoded.Messages[0].Content, 1)
	assert.Equal(t, "tool_result", decoded.Messages[0].Content[0].Type)
	assert.Equal(t, "call_1", decoded.Messages[0].Content[0].ToolUseID)
}

func TestAnthropicConverter_FromWire_ConcatenatesTextBlocksAndMapsStopReason(t *testing.T) {
	c := anthropicConverter{}
	raw := `{"id":"msg_1","model":"claude-3","role":"assistant","stop_reason":"end_turn","content":[{"type":"text","text":"hi "},{"type":"text","text":"there"}],"usage":{"input_tokens":5,"output_tokens":2}}`
	resp, err := c.FromWire([]byte(raw))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi there", resp.Choices[0].Message.Content)
	assert.Equal(t, core.FinishStop, resp.Choices[0].FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestAnthropicConverter_FromWire_CollectsToolUseBlocks(t *testing.T) {
	c := anthropicConverter{}
	raw := `{"id":"msg_2","model":"claude-3","stop_reason":"tool_use","content":[{"type":"tool_use","id":"call_1","name":"lookup","input":{"q":"x"}}]}`
	resp, err := c.FromWire([]byte(raw))
	require.NoError(t, err)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.Choices[0].Message.ToolCalls[0].Name)
	assert.Equal(t, core.FinishToolCalls, resp.Choices[0].FinishReason)
}

func TestOpenAIStreamDecoder_DecodesSelfContainedChunk(t *testing.T) {
	dec := openAIConverter{}.NewStreamDecoder()
	raw := `{"id":"x","model":"gpt-4","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":""}]}`
	chunk, emit, err := dec.Decode([]byte(raw))
	require.NoError(t, err)
	assert.True(t, emit)
	assert.Equal(t, "hi", chunk.Delta.Content)
}

func TestAnthropicStreamDecoder_AccumulatesToolCallArgumentsAcrossEvents(t *testing.T) {
	dec := anthropicConverter{}.NewStreamDecoder()

	_, emit, err := dec.Decode([]byte(`{"type":"message_start","message":{"id":"msg_1","model":"claude-3"}}`))
	require.NoError(t, err)
	assert.False(t, emit)

	_, emit, err = dec.Decode([]byte(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"call_1","name":"lookup"}}`))
	require.NoError(t, err)
	assert.False(t, emit)

	_, emit, err = dec.Decode([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}`))
	require.NoError(t, err)
	assert.False(t, emit, "input_json_delta only accumulates, it does not emit")

	_, emit, err = dec.Decode([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"x\"}"}}`))
	require.NoError(t, err)
	assert.False(t, emit)

	chunk, emit, err := dec.Decode([]byte(`{"type":"content_block_stop","index":0}`))
	require.NoError(t, err)
	require.True(t, emit)
	require.Len(t, chunk.Delta.ToolCalls, 1)
	assert.Equal(t, "lookup", chunk.Delta.ToolCalls[0].Name)
	assert.JSONEq(t, `{"q":"x"}`, string(chunk.Delta.ToolCalls[0].Arguments))
}

func TestAnthropicStreamDecoder_MessageStopEmitsUsage(t *testing.T) {
	dec := anthropicConverter{}.NewStreamDecoder()
	chunk, emit, err := dec.Decode([]byte(`{"type":"message_stop","usage":{"input_tokens":3,"output_tokens":5}}`))
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, 8, chunk.Usage.TotalTokens)
}

func TestRegister_OverridesFamily(t *testing.T) {
	custom := openAIConverter{}
	Register(config.ProtocolFamily("custom"), custom)
	got, err := For(config.ProtocolFamily("custom"))
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

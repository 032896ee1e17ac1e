package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/core"
)

func TestPrepareRequest_ClearsStreamWhenTargetLacksSupport(t *testing.T) {
	s := New(Config{})
	ec := core.NewExecutionContext("s", "r", "vm", time.Now().Add(time.Minute))
	req := &core.Request{Model: "m", Stream: true}

	out := s.PrepareRequest(req, ec, false)
	assert.False(t, out.Stream)
	streaming, reStream := ec.StreamMode()
	assert.True(t, streaming)
	assert.True(t, reStream)
}

func TestPrepareRequest_PassesThroughWhenSupported(t *testing.T) {
	s := New(Config{})
	ec := core.NewExecutionContext("s", "r", "vm", time.Now().Add(time.Minute))
	req := &core.Request{Model: "m", Stream: true}

	out := s.PrepareRequest(req, ec, true)
	assert.True(t, out.Stream)
	assert.Same(t, req, out)
}

func TestSynthesize_SplitsContentIntoChunksEndingWithFinishReason(t *testing.T) {
	s := New(Config{ChunkSize: 4})
	resp := &core.Response{
		ID:    "r1",
		Model: "m",
		Choices: []core.Choice{{
			Message:      core.Message{Role: core.RoleAssistant, Content: "hello world"},
			FinishReason: core.FinishStop,
		}},
		Usage: core.Usage{TotalTokens: 9},
	}

	seq := s.Synthesize(resp)
	chunks := seq.Drain()
	require.NotEmpty(t, chunks)

	var rebuilt string
	for i, c := range chunks {
		assert.Equal(t, "chat.completion.chunk", c.Object)
		rebuilt += c.Delta.Content
		if i < len(chunks)-1 {
			assert.Empty(t, c.FinishReason)
		}
	}
	assert.Equal(t, "hello world", rebuilt)
	last := chunks[len(chunks)-1]
	assert.Equal(t, core.FinishStop, last.FinishReason)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 9, last.Usage.TotalTokens)
}

func TestSynthesize_EmptyContentStillEmitsTerminalChunk(t *testing.T) {
	s := New(Config{})
	resp := &core.Response{
		Choices: []core.Choice{{FinishReason: core.FinishToolCalls}},
	}
	chunks := s.Synthesize(resp).Drain()
	require.Len(t, chunks, 1)
	assert.Equal(t, core.FinishToolCalls, chunks[0].FinishReason)
}

func TestConcatenate_JoinsDeltasInOrder(t *testing.T) {
	s := New(Config{})
	ch := make(chan core.Chunk, 3)
	ch <- core.Chunk{ID: "r1", Model: "m", Delta: core.Message{Role: core.RoleAssistant, Content: "hel"}}
	ch <- core.Chunk{Delta: core.Message{Content: "lo"}}
	ch <- core.Chunk{FinishReason: core.FinishStop, Usage: &core.Usage{TotalTokens: 4}}
	close(ch)

	resp, err := s.Concatenate(core.NewChunkSequence(ch))
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Choices[0].Message.Content)
	assert.Equal(t, core.FinishStop, resp.Choices[0].FinishReason)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Equal(t, "r1", resp.ID)
}

func TestConcatenate_PropagatesMidStreamError(t *testing.T) {
	s := New(Config{})
	boom := core.NewError(core.KindMalformedStream, "boom")
	ch := make(chan core.Chunk, 2)
	ch <- core.Chunk{Delta: core.Message{Content: "partial"}}
	ch <- core.Chunk{Err: boom}
	close(ch)

	_, err := s.Concatenate(core.NewChunkSequence(ch))
	require.Error(t, err)
	assert.Equal(t, core.KindMalformedStream, core.GetKind(err))
}

func TestAdaptResponse_SynthesizesWhenCallerWantedStreamButGotComplete(t *testing.T) {
	s := New(Config{})
	ec := core.NewExecutionContext("s", "r", "vm", time.Now().Add(time.Minute))
	ec.SetStreamMode(true, true)
	resp := &core.Response{Choices: []core.Choice{{Message: core.Message{Content: "hi"}, FinishReason: core.FinishStop}}}

	gotResp, gotChunks, err := s.AdaptResponse(ec, resp, nil)
	require.NoError(t, err)
	assert.Nil(t, gotResp)
	require.NotNil(t, gotChunks)
}

func TestAdaptResponse_ConcatenatesWhenCallerWantedCompleteButGotStream(t *testing.T) {
	s := New(Config{})
	ec := core.NewExecutionContext("s", "r", "vm", time.Now().Add(time.Minute))
	ec.SetStreamMode(false, false)
	ch := make(chan core.Chunk, 1)
	ch <- core.Chunk{Delta: core.Message{Content: "hi"}, FinishReason: core.FinishStop}
	close(ch)
	seq := core.NewChunkSequence(ch)

	gotResp, gotChunks, err := s.AdaptResponse(ec, nil, &seq)
	require.NoError(t, err)
	assert.Nil(t, gotChunks)
	require.NotNil(t, gotResp)
	assert.Equal(t, "hi", gotResp.Choices[0].Message.Content)
}

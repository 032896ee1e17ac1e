// Package workflow implements the pipeline's second stage: bridging a
// caller's stream/non-stream request mode against whatever mode the
// resolved target actually supports. Grounded on
// llm/streaming/backpressure.go's channel-based token stream (reworked
// here from a byte-buffer token stream into core.Chunk production/
// concatenation, since the normalized shape the rest of the pipeline
// shares is core.Chunk, not streaming.Token).
package workflow

import (
	"github.com/rcc-sub005/llmrouter/core"
)

// defaultChunkSize is the soft per-chunk content length the teacher's
// BackpressureConfig.BufferSize plays an analogous role for token count;
// here it bounds characters per delta instead of buffered tokens.
const defaultChunkSize = 240

// Config tunes chunk synthesis. A zero Config uses defaultChunkSize.
type Config struct {
	ChunkSize int
}

func (c Config) chunkSize() int {
	if c.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return c.ChunkSize
}

// Stage adapts requests and responses across the stream/non-stream
// boundary so every later stage only has to deal with one representation
// at a time.
type Stage struct {
	cfg Config
}

// New builds a Stage with the given Config.
func New(cfg Config) *Stage {
	return &Stage{cfg: cfg}
}

// PrepareRequest clears the Stream flag and marks the context
// re-stream-required when the target cannot natively stream but the
// caller asked for streaming; it passes the request through unchanged
// otherwise.
func (s *Stage) PrepareRequest(req *core.Request, ec *core.ExecutionContext, targetSupportsStreaming bool) *core.Request {
	wantsStream := req.Stream
	if wantsStream && !targetSupportsStreaming {
		out := req.Clone()
		out.Stream = false
		ec.SetStreamMode(true, true)
		return out
	}
	ec.SetStreamMode(wantsStream, false)
	return req
}

// AdaptResponse reconciles what the provider actually returned with what
// the caller originally asked for. When the caller wanted streaming but
// the target answered with a complete core.Response, the response is
// split into a synthesized core.ChunkSequence. When the caller wanted a
// complete response but the target streamed, the chunks are concatenated
// into one. Otherwise the shape the provider returned passes straight
// through.
func (s *Stage) AdaptResponse(ec *core.ExecutionContext, resp *core.Response, chunks *core.ChunkSequence) (*core.Response, *core.ChunkSequence, error) {
	wantsStream, _ := ec.StreamMode()

	switch {
	case wantsStream && resp != nil:
		seq := s.Synthesize(resp)
		return nil, &seq, nil
	case !wantsStream && chunks != nil:
		out, err := s.Concatenate(*chunks)
		if err != nil {
			return nil, nil, err
		}
		return out, nil, nil
	default:
		return resp, chunks, nil
	}
}

// Synthesize splits a complete Response into a chunk sequence. Only the
// first choice is split; spec.md scopes the Streaming Workflow stage to
// single-choice completions. Each chunk carries object = chat.completion.chunk
// and an incremental delta.content substring; the final chunk carries the
// original finish_reason and no further content delta.
func (s *Stage) Synthesize(resp *core.Response) core.ChunkSequence {
	ch := make(chan core.Chunk)
	size := s.cfg.chunkSize()

	go func() {
		defer close(ch)
		if len(resp.Choices) == 0 {
			return
		}
		choice := resp.Choices[0]
		content := choice.Message.Content
		idx := 0
		if content == "" {
			ch <- core.Chunk{
				ID:           resp.ID,
				Object:       "chat.completion.chunk",
				Model:        resp.Model,
				Index:        0,
				FinishReason: choice.FinishReason,
				Usage:        &resp.Usage,
			}
			return
		}
		for len(content) > 0 {
			n := size
			if n > len(content) {
				n = len(content)
			}
			part := content[:n]
			content = content[n:]
			c := core.Chunk{
				ID:     resp.ID,
				Object: "chat.completion.chunk",
				Model:  resp.Model,
				Index:  idx,
				Delta:  core.Message{Role: choice.Message.Role, Content: part},
			}
			ch <- c
			idx++
		}
		ch <- core.Chunk{
			ID:           resp.ID,
			Object:       "chat.completion.chunk",
			Model:        resp.Model,
			Index:        idx,
			FinishReason: choice.FinishReason,
			Usage:        &resp.Usage,
		}
	}()

	return core.NewChunkSequence(ch)
}

// Concatenate drains a ChunkSequence into one complete Response, joining
// delta.content substrings in arrival order and taking the finish reason
// and usage from the terminal chunk. A stream failure mid-sequence
// (core.Chunk.Err set) terminates concatenation with that error instead
// of silently dropping the partial content.
func (s *Stage) Concatenate(seq core.ChunkSequence) (*core.Response, error) {
	var (
		id      string
		model   string
		content string
		role    core.Role = core.RoleAssistant
		finish  core.FinishReason
		usage   core.Usage
		toolCalls []core.ToolCall
	)

	for {
		c, ok := seq.Next()
		if !ok {
			break
		}
		if c.Err != nil {
			return nil, c.Err
		}
		if c.ID != "" {
			id = c.ID
		}
		if c.Model != "" {
			model = c.Model
		}
		if c.Delta.Role != "" {
			role = c.Delta.Role
		}
		content += c.Delta.Content
		toolCalls = append(toolCalls, c.Delta.ToolCalls...)
		if c.FinishReason != "" {
			finish = c.FinishReason
		}
		if c.Usage != nil {
			usage = *c.Usage
		}
	}

	return &core.Response{
		ID:    id,
		Model: model,
		Choices: []core.Choice{{
			Index:        0,
			FinishReason: finish,
			Message: core.Message{
				Role:      role,
				Content:   content,
				ToolCalls: toolCalls,
			},
		}},
		Usage: usage,
	}, nil
}

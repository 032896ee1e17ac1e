// Package protocolswitch implements the pipeline's first stage: converting
// the normalized core.Request/core.Response shape to and from a provider
// family's native wire shape. Grounded directly on
// providers/anthropic/provider.go's convertToClaudeMessages/
// toClaudeChatResponse (the richest two-way conversion in the corpus) and
// llm/providers/common.go's OpenAI-compatible conversion helpers,
// generalized from hand-written per-provider functions into a registry
// keyed by config.ProtocolFamily so new protocol families can be added
// without touching the pipeline executor.
package protocolswitch

import (
	"encoding/json"
	"fmt"

	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

// WireRequest is the provider-native request shape, already marshalable.
type WireRequest struct {
	Body   json.RawMessage
	Extra  map[string]string // e.g. Anthropic's anthropic-version header value
}

// Converter switches a normalized core Request/Response to and from one
// provider family's wire shape. Every Converter must be a two-sided
// inverse of itself for the fields it owns — spec.md §8's reversibility
// invariant for the forward/reverse pipeline pass.
type Converter interface {
	ToWire(req *core.Request) (WireRequest, error)
	FromWire(data []byte) (*core.Response, error)

	// NewStreamDecoder returns a fresh decoder for one streaming call.
	// A fresh instance per call matters for families (Anthropic) whose
	// wire events are only meaningful against accumulated state from
	// earlier events in the same stream; a package-level Converter value
	// is shared across concurrent requests and must stay stateless.
	NewStreamDecoder() StreamDecoder
}

// StreamDecoder turns one raw SSE payload (the bytes after "data:",
// already stripped of the "[DONE]" sentinel by stage/provideradapter)
// into zero or one core.Chunk. emit is false for wire events that only
// update internal state (e.g. Anthropic's content_block_start) and
// produce nothing the caller should see yet.
type StreamDecoder interface {
	Decode(raw []byte) (chunk core.Chunk, emit bool, err error)
}

var registry = map[config.ProtocolFamily]Converter{
	config.ProtocolOpenAI:       openAIConverter{},
	config.ProtocolOpenAICompat: openAIConverter{},
	config.ProtocolAnthropic:    anthropicConverter{},
}

// Register adds or replaces the Converter for a protocol family.
func Register(family config.ProtocolFamily, c Converter) {
	registry[family] = c
}

// For returns the Converter registered for family.
func For(family config.ProtocolFamily) (Converter, error) {
	c, ok := registry[family]
	if !ok {
		return nil, core.NewError(core.KindUnsupportedConv, fmt.Sprintf("no protocol converter registered for %q", family))
	}
	return c, nil
}

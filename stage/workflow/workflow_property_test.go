package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rcc-sub005/llmrouter/core"
)

// TestSynthesizeConcatenate_RoundTripsArbitraryContent exercises spec.md
// §8's reversibility invariant directly: splitting a complete Response
// into a chunk sequence and concatenating it back must reproduce the
// original content byte-for-byte, regardless of how the chunk boundaries
// fall relative to the content's rune boundaries. Grounded on the
// property-test style used throughout the corpus (e.g.
// llm/providers/tool_calling_both_modes_property_test.go), which favors
// pgregory.net/rapid for generator-driven invariant checks over
// leanovate/gopter.
func TestSynthesizeConcatenate_RoundTripsArbitraryContent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		content := rapid.StringMatching(`[a-zA-Z0-9 .,!?\néü日本語]{0,500}`).Draw(rt, "content")
		chunkSize := rapid.IntRange(1, 64).Draw(rt, "chunkSize")

		stage := New(Config{ChunkSize: chunkSize})
		original := &core.Response{
			ID:    "resp-1",
			Model: "gpt-4o",
			Choices: []core.Choice{{
				Index:        0,
				FinishReason: core.FinishStop,
				Message:      core.Message{Role: core.RoleAssistant, Content: content},
			}},
			Usage: core.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}

		seq := stage.Synthesize(original)
		rebuilt, err := stage.Concatenate(seq)
		require.NoError(rt, err)

		require.Equal(rt, original.ID, rebuilt.ID)
		require.Equal(rt, original.Model, rebuilt.Model)
		require.Equal(rt, content, rebuilt.Choices[0].Message.Content)
		require.Equal(rt, core.RoleAssistant, rebuilt.Choices[0].Message.Role)
		require.Equal(rt, original.Choices[0].FinishReason, rebuilt.Choices[0].FinishReason)
		require.Equal(rt, original.Usage, rebuilt.Usage)
	})
}

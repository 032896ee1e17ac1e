// Package tokenbudget estimates prompt size and clamps a request's
// MaxTokens against a provider's context window before it reaches the
// Protocol Switch stage. Grounded on llm/tokenizer/{tokenizer,tiktoken,
// estimator}.go: the teacher's Tokenizer interface and its two
// implementations (exact tiktoken counting for OpenAI-family models,
// a CJK-aware character estimator otherwise) are reworked here into a
// single Clamp call keyed off config.ProtocolFamily instead of the
// teacher's global model-name registry, since the pipeline already
// knows which protocol a target speaks by the time this runs.
package tokenbudget

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

// Estimator counts the tokens a message list will occupy on the wire.
type Estimator interface {
	CountMessages(messages []core.Message) (int, error)
	Name() string
}

// For returns the Estimator appropriate for provider's wire protocol:
// exact tiktoken counting for OpenAI and OpenAI-compatible providers
// (both speak the same cl100k/o200k-family encodings), a CJK-aware
// character estimator for everything else.
func For(protocol config.ProtocolFamily, model string) Estimator {
	switch protocol {
	case config.ProtocolOpenAI, config.ProtocolOpenAICompat:
		return newTiktokenEstimator(model)
	default:
		return newCharEstimator()
	}
}

// Clamp estimates the prompt token count of req against provider's
// MaxTokensLimit and reduces req.MaxTokens so prompt+completion fits
// inside the window. A provider with no configured limit is passed
// through unchanged. Returns core.KindInvalidRequest when the prompt
// alone already exceeds the window, since no completion budget could
// possibly satisfy the request.
func Clamp(req *core.Request, provider config.Provider) (*core.Request, error) {
	if provider.MaxTokensLimit <= 0 {
		return req, nil
	}

	est := For(provider.Protocol, req.Model)
	promptTokens, err := est.CountMessages(req.Messages)
	if err != nil {
		return nil, core.NewError(core.KindInvalidRequest, "estimate prompt tokens").WithCause(err)
	}

	if promptTokens >= provider.MaxTokensLimit {
		return nil, core.NewError(core.KindInvalidRequest,
			fmt.Sprintf("prompt alone (~%d tokens, %s) exceeds provider window of %d tokens", promptTokens, est.Name(), provider.MaxTokensLimit))
	}

	remaining := provider.MaxTokensLimit - promptTokens
	if req.MaxTokens <= 0 || req.MaxTokens > remaining {
		out := req.Clone()
		out.MaxTokens = remaining
		return out, nil
	}
	return req, nil
}

// tiktokenEstimator adapts tiktoken-go for exact OpenAI-family counting.
type tiktokenEstimator struct {
	model    string
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
	"o1":            "o200k_base",
}

func newTiktokenEstimator(model string) *tiktokenEstimator {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding, ok = enc, true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &tiktokenEstimator{model: model, encoding: encoding}
}

func (t *tiktokenEstimator) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountMessages mirrors OpenAI's documented per-message token overhead:
// 4 tokens of role/separator overhead per message plus 3 for the
// conversation-end marker.
func (t *tiktokenEstimator) CountMessages(messages []core.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 3
	for _, msg := range messages {
		total += 4
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
		total += len(t.enc.Encode(msg.Content, nil, nil))
	}
	return total, nil
}

func (t *tiktokenEstimator) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// charEstimator is a character-count estimator distinguishing CJK from
// ASCII text for better accuracy than a flat chars-per-token ratio,
// used for protocols tiktoken's encodings don't cover.
type charEstimator struct{}

func newCharEstimator() charEstimator { return charEstimator{} }

func (charEstimator) CountMessages(messages []core.Message) (int, error) {
	total := 3
	for _, msg := range messages {
		total += 4 + countChars(msg.Content)
	}
	return total, nil
}

func (charEstimator) Name() string { return "char-estimator" }

func countChars(text string) int {
	if text == "" {
		return 0
	}
	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}
	cjkTokens := float64(cjkCount) / 1.5
	asciiTokens := float64(totalChars-cjkCount) / 4.0
	estimated := int(cjkTokens + asciiTokens)
	if estimated == 0 && totalChars > 0 {
		estimated = 1
	}
	return estimated
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}

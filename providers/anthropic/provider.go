// Package anthropic provides the default config.Provider preset for
// Anthropic's Claude API. The wire conversion, HTTP call, SSE parsing,
// and error taxonomy mapping that providers/anthropic/provider.go used
// to own directly now live generically in stage/protocolswitch and
// stage/provideradapter (keyed off config.Provider.Protocol /
// config.ProtocolAnthropic); this package's only remaining job is
// supplying the known-good defaults a hosting program would otherwise
// have to hand-author, grounded on this file's own prior BaseURL/header/
// max-tokens constants.
package anthropic

import (
	"time"

	"github.com/rcc-sub005/llmrouter/config"
)

const (
	defaultBaseURL        = "https://api.anthropic.com/v1/messages"
	defaultHealthEndpoint = "https://api.anthropic.com/v1/models"
	defaultTimeout        = 60 * time.Second
	defaultMaxTokens      = 4096
)

// KnownModels lists the Claude model IDs this preset has been exercised
// against. Not exhaustive — config.VirtualModel.Targets may reference any
// model ID Anthropic accepts; this is an onboarding convenience, not a
// validated whitelist.
var KnownModels = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
}

// DefaultModel is the model ID this package suggests for Anthropic
// targets. Nothing applies it automatically: the pipeline always sends
// the resolved config.Target.ModelID upstream.
const DefaultModel = "claude-3-5-sonnet-20241022"

// Preset builds the config.Provider Anthropic's API ordinarily needs:
// x-api-key auth (stage/provideradapter.Client.credential selects this
// header for config.AuthAPIKey), a 60s timeout (Claude's first-token
// latency runs higher than OpenAI-compatible providers), and the
// anthropic-version header baked into stage/protocolswitch's
// anthropicConverter.ToWire rather than here, since that header is a
// wire-format detail, not a connection-level one. baseURL overrides the
// default, e.g. for an Anthropic-compatible proxy.
func Preset(id, baseURL string, keys ...config.APIKeyEntry) config.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return config.Provider{
		ID:                id,
		Protocol:          config.ProtocolAnthropic,
		BaseURL:           baseURL,
		AuthScheme:        config.AuthAPIKey,
		SupportsStreaming: true,
		MaxTokensLimit:    defaultMaxTokens,
		HealthEndpoint:    defaultHealthEndpoint,
		RequestTimeout:    defaultTimeout,
		APIKeys:           keys,
	}
}

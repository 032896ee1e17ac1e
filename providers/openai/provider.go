// Package openai provides the default config.Provider preset for the
// native OpenAI chat-completions API. stage/protocolswitch's
// openAIConverter and stage/provideradapter's Client already implement
// the wire conversion, HTTP call, and SSE decoding generically for
// config.ProtocolOpenAI; this package only supplies the connection
// defaults, grounded on the teacher's llm/providers/openai.go-style
// constructor (BaseURL default, Bearer auth, streaming support).
package openai

import (
	"time"

	"github.com/rcc-sub005/llmrouter/config"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultHealthEndpoint = "https://api.openai.com/v1/models"
	defaultTimeout        = 30 * time.Second
)

// KnownModels lists model IDs this preset has been exercised against.
var KnownModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"o1",
}

// DefaultModel is the model ID this package suggests for OpenAI targets
// (cmd/demo uses it as its --model default). Nothing applies it
// automatically: the pipeline always sends the resolved
// config.Target.ModelID upstream.
const DefaultModel = "gpt-4o"

// Preset builds the config.Provider a hosting program needs to route
// traffic to native OpenAI: Bearer auth (stage/provideradapter.Client
// sets "Authorization: Bearer <token>" for config.AuthBearer), streaming
// enabled, and a 30s default timeout matching OpenAI's typical
// first-token latency.
func Preset(id, baseURL string, keys ...config.APIKeyEntry) config.Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return config.Provider{
		ID:                id,
		Protocol:          config.ProtocolOpenAI,
		BaseURL:           baseURL,
		AuthScheme:        config.AuthBearer,
		SupportsStreaming: true,
		HealthEndpoint:    defaultHealthEndpoint,
		RequestTimeout:    defaultTimeout,
		APIKeys:           keys,
	}
}

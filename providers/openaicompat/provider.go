// Package openaicompat provides config.Provider presets for the family of
// vendors that speak an OpenAI-compatible chat-completions wire format
// without being OpenAI itself: Qwen (DashScope), DeepSeek, GLM (Zhipu),
// MiniMax, and Llama-family gateways (Together/Replicate/OpenRouter).
// stage/protocolswitch's openAIConverter is registered against both
// config.ProtocolOpenAI and config.ProtocolOpenAICompat, so every preset
// here is served by the same generic converter and
// stage/provideradapter.Client the native OpenAI preset uses — this
// package's only job is the per-vendor connection defaults the teacher
// used to hand-roll one near-identical HTTP client package per vendor
// for (providers/qwen, providers/deepseek, providers/glm, providers/
// minimax, providers/llama). Folding five packages that differed only
// in BaseURL/model defaults into one data-driven catalog is the
// consolidation recorded in DESIGN.md's final adaptation pass.
package openaicompat

import (
	"fmt"
	"time"

	"github.com/rcc-sub005/llmrouter/config"
)

// Vendor names a known OpenAI-compatible provider this catalog has a
// preset for.
type Vendor string

const (
	VendorQwen     Vendor = "qwen"
	VendorDeepSeek Vendor = "deepseek"
	VendorGLM      Vendor = "glm"
	VendorMiniMax  Vendor = "minimax"
	VendorTogether Vendor = "together" // Llama family via together.xyz
)

type vendorDefaults struct {
	baseURL        string
	healthPath     string
	defaultModel   string
	requestTimeout time.Duration
}

// defaults mirrors the BaseURL constants the teacher's per-vendor
// constructors hard-coded (providers/qwen/provider.go,
// providers/gemini/provider.go's sibling packages, providers/llama/
// provider.go's together.xyz branch): DashScope's OpenAI-compatible
// endpoint for Qwen, DeepSeek's own API host, Zhipu's open-platform host,
// MiniMax's API host, and together.xyz for the Llama family.
var defaults = map[Vendor]vendorDefaults{
	VendorQwen: {
		baseURL:        "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions",
		healthPath:     "https://dashscope.aliyuncs.com/compatible-mode/v1/models",
		defaultModel:   "qwen-max",
		requestTimeout: 30 * time.Second,
	},
	VendorDeepSeek: {
		baseURL:        "https://api.deepseek.com/chat/completions",
		healthPath:     "https://api.deepseek.com/models",
		defaultModel:   "deepseek-chat",
		requestTimeout: 30 * time.Second,
	},
	VendorGLM: {
		baseURL:        "https://open.bigmodel.cn/api/paas/v4/chat/completions",
		healthPath:     "https://open.bigmodel.cn/api/paas/v4/models",
		defaultModel:   "glm-4",
		requestTimeout: 30 * time.Second,
	},
	VendorMiniMax: {
		baseURL:        "https://api.minimax.chat/v1/text/chatcompletion_v2",
		healthPath:     "https://api.minimax.chat/v1/models",
		defaultModel:   "abab6.5-chat",
		requestTimeout: 30 * time.Second,
	},
	VendorTogether: {
		baseURL:        "https://api.together.xyz/v1/chat/completions",
		healthPath:     "https://api.together.xyz/v1/models",
		defaultModel:   "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		requestTimeout: 45 * time.Second,
	},
}

// DefaultModel returns vendor's preset default chat model, or "" if
// vendor is unknown.
func DefaultModel(vendor Vendor) string {
	return defaults[vendor].defaultModel
}

// Preset builds the config.Provider for a known vendor. baseURL overrides
// the vendor's default endpoint (e.g. a self-hosted DashScope-compatible
// gateway). An unknown vendor with a non-empty baseURL returns a usable
// Provider with Bearer auth and streaming enabled, just without
// vendor-specific defaults filled in, so new OpenAI-compatible vendors
// don't require a catalog entry to be onboarded; an unknown vendor with
// an empty baseURL panics.
func Preset(vendor Vendor, id, baseURL string, keys ...config.APIKeyEntry) config.Provider {
	d, known := defaults[vendor]
	if baseURL == "" {
		baseURL = d.baseURL
	}
	timeout := d.requestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if !known && baseURL == "" {
		panic(fmt.Sprintf("openaicompat: no default base URL for unknown vendor %q; pass one explicitly", vendor))
	}
	return config.Provider{
		ID:                id,
		Protocol:          config.ProtocolOpenAICompat,
		BaseURL:           baseURL,
		AuthScheme:        config.AuthBearer,
		SupportsStreaming: true,
		HealthEndpoint:    d.healthPath,
		RequestTimeout:    timeout,
		APIKeys:           keys,
	}
}

// KnownVendors lists every vendor this catalog carries a default for.
func KnownVendors() []Vendor {
	out := make([]Vendor, 0, len(defaults))
	for v := range defaults {
		out = append(out, v)
	}
	return out
}

package openaicompat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/config"
)

func TestPreset_QwenUsesDashScopeCompatibleEndpoint(t *testing.T) {
	p := Preset(VendorQwen, "qwen-main", "")
	assert.Contains(t, p.BaseURL, "dashscope.aliyuncs.com")
	assert.Equal(t, config.ProtocolOpenAICompat, p.Protocol)
	assert.Equal(t, config.AuthBearer, p.AuthScheme)
}

func TestPreset_HonorsBaseURLOverride(t *testing.T) {
	p := Preset(VendorDeepSeek, "deepseek-private", "https://deepseek.internal/v1/chat/completions")
	assert.Equal(t, "https://deepseek.internal/v1/chat/completions", p.BaseURL)
}

func TestPreset_UnknownVendorWithExplicitBaseURLStillWorks(t *testing.T) {
	p := Preset(Vendor("custom-vendor"), "custom-main", "https://custom.example/v1/chat/completions")
	assert.Equal(t, "https://custom.example/v1/chat/completions", p.BaseURL)
	assert.Equal(t, config.ProtocolOpenAICompat, p.Protocol)
}

func TestPreset_UnknownVendorWithoutBaseURLPanics(t *testing.T) {
	assert.Panics(t, func() {
		Preset(Vendor("custom-vendor"), "custom-main", "")
	})
}

func TestDefaultModel_KnownVendorsAllHaveDefaults(t *testing.T) {
	for _, v := range KnownVendors() {
		require.NotEmpty(t, DefaultModel(v), "vendor %s should have a default model", v)
	}
}

func TestKnownVendors_IncludesCoreFive(t *testing.T) {
	vendors := KnownVendors()
	assert.Contains(t, vendors, VendorQwen)
	assert.Contains(t, vendors, VendorDeepSeek)
	assert.Contains(t, vendors, VendorGLM)
	assert.Contains(t, vendors, VendorMiniMax)
	assert.Contains(t, vendors, VendorTogether)
}

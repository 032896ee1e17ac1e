package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/config"
)

func TestBuildSnapshot_ProducesOneVirtualModelWithOneActiveTarget(t *testing.T) {
	snap := buildSnapshot("https://api.openai.com/v1/chat/completions", "sk-test", "gpt-4o")

	vm, ok := snap.VirtualModels["chat-default"]
	require.True(t, ok)
	require.Len(t, vm.Targets, 1)
	assert.Equal(t, config.TargetActive, vm.Targets[0].Status)
	assert.Equal(t, "gpt-4o", vm.Targets[0].ModelID)

	provider, ok := snap.Providers[vm.Targets[0].ProviderID]
	require.True(t, ok)
	assert.Equal(t, config.ProtocolOpenAI, provider.Protocol)
	require.Len(t, provider.APIKeys, 1)
	assert.Equal(t, "sk-test", provider.APIKeys[0].Key)
}

func TestBuildSnapshot_HonorsCustomBaseURL(t *testing.T) {
	snap := buildSnapshot("https://my-gateway.internal/v1/chat/completions", "", "gpt-4o-mini")

	vm := snap.VirtualModels["chat-default"]
	provider := snap.Providers[vm.Targets[0].ProviderID]
	assert.Equal(t, "https://my-gateway.internal/v1/chat/completions", provider.BaseURL)
}

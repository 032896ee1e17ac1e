package compatibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

func TestMapRequest_PassThroughReturnsInputUnchanged(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {ProviderID: "p1", PassThrough: true},
	})
	doc := Doc{"model": "x"}
	out, err := m.MapRequest("p1", doc, nil)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestMapRequest_UnregisteredProviderPassesThrough(t *testing.T) {
	m := NewMapper(nil)
	doc := Doc{"model": "x"}
	out, err := m.MapRequest("unknown", doc, nil)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestMapRequest_RenamesFieldViaDottedTargetPath(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "temperature", TargetField: "parameters.temperature", Required: true},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{"temperature": 0.5}, nil)
	require.NoError(t, err)
	params, ok := out["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.5, params["temperature"])
	_, stillPresent := out["temperature"]
	assert.False(t, stillPresent)
}

func TestMapRequest_MissingRequiredFieldErrors(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "model", TargetField: "model", Required: true},
			},
		},
	})
	_, err := m.MapRequest("p1", Doc{}, nil)
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidRequest, core.GetKind(err))
}

func TestMapRequest_MissingOptionalFieldUsesDefault(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "top_p", TargetField: "top_p", DefaultValue: 1.0},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["top_p"])
}

func TestMapRequest_DropsUnknownFieldsUnlessPreserved(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "model", TargetField: "model", Required: true},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{"model": "x", "mystery": true}, nil)
	require.NoError(t, err)
	_, present := out["mystery"]
	assert.False(t, present)
}

func TestMapRequest_PreservesUnknownFieldsWhenConfigured(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID:            "p1",
			PreserveUnknownFields: true,
			RequestMappings: []config.FieldMapping{
				{SourceField: "model", TargetField: "model", Required: true},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{"model": "x", "mystery": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["mystery"])
}

func TestMapRequest_MappingTransformLooksUpLookupTable(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "tier", TargetField: "tier", Transform: "mapping:tiers:standard"},
			},
			LookupTables: map[string]map[string]any{
				"tiers": {"pro": "premium"},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{"tier": "pro"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "premium", out["tier"])

	out2, err := m.MapRequest("p1", Doc{"tier": "unknown"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "standard", out2["tier"])
}

func TestMapRequest_StringTransformPrefixAndUpper(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "model", TargetField: "model", Transform: "string_transform:prefix:v2-"},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{"model": "gpt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2-gpt", out["model"])
}

func TestMapRequest_TransformFailureRecordsWarningAndSkipsField(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "count", TargetField: "count", Transform: "string_transform:upper"},
			},
		},
	})
	ec := core.NewExecutionContext("s", "r", "vm", time.Now().Add(time.Minute))
	out, err := m.MapRequest("p1", Doc{"count": 5}, ec)
	require.NoError(t, err)
	_, present := out["count"]
	assert.False(t, present)
	assert.NotEmpty(t, ec.Warnings())
}

func TestMapRequest_ArrayTransformRenamesSubField(t *testing.T) {
	m := NewMapper(map[string]config.MappingTable{
		"p1": {
			ProviderID: "p1",
			RequestMappings: []config.FieldMapping{
				{SourceField: "tools", TargetField: "tools", Transform: "array_transform:fn_name:name"},
			},
		},
	})
	out, err := m.MapRequest("p1", Doc{
		"tools": []any{
			map[string]any{"fn_name": "lookup"},
		},
	}, nil)
	require.NoError(t, err)
	tools, ok := out["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	el := tools[0].(map[string]any)
	assert.Equal(t, "lookup", el["name"])
}

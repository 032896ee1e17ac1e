// Package compatibility implements the pipeline's third stage: a
// declarative, table-driven field rewrite applied after Protocol Switch
// has already produced a provider-native wire document. Where
// stage/protocolswitch handles the structural differences between
// protocol families (OpenAI vs. Anthropic message shapes), compatibility
// handles the smaller per-provider quirks within a family — renamed
// fields, enum remaps, string massaging — without a bespoke Go function
// per provider.
//
// Grounded on llm/providers/common.go's ConvertMessagesToOpenAI/
// ConvertToolsToOpenAI/ToLLMChatResponse, generalized from hand-written
// per-field Go functions into config.MappingTable/config.FieldMapping
// lookups plus a small transform registry (spec.md §4.5).
package compatibility

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

// Doc is the generic JSON-document shape the mapper reads from and writes
// to; it is what json.Unmarshal into map[string]any yields for both a
// provider's request body and its response body.
type Doc = map[string]any

// Mapper applies a provider's MappingTable to a request or response
// document.
type Mapper struct {
	tables map[string]config.MappingTable
}

// NewMapper builds a Mapper over the given per-provider tables, keyed by
// provider ID.
func NewMapper(tables map[string]config.MappingTable) *Mapper {
	if tables == nil {
		tables = make(map[string]config.MappingTable)
	}
	return &Mapper{tables: tables}
}

// MapRequest rewrites doc per providerID's RequestMappings. A provider
// declared PassThrough, or with no registered table, returns doc
// unchanged — structural equality observable to the caller, per spec.md
// §4.5's pass-through mode.
func (m *Mapper) MapRequest(providerID string, doc Doc, ec *core.ExecutionContext) (Doc, error) {
	mt, ok := m.tables[providerID]
	if !ok || mt.PassThrough {
		return doc, nil
	}
	return applyMappings(doc, mt, mt.RequestMappings, ec)
}

// MapResponse rewrites doc per providerID's ResponseMappings.
func (m *Mapper) MapResponse(providerID string, doc Doc, ec *core.ExecutionContext) (Doc, error) {
	mt, ok := m.tables[providerID]
	if !ok || mt.PassThrough {
		return doc, nil
	}
	return applyMappings(doc, mt, mt.ResponseMappings, ec)
}

func applyMappings(doc Doc, mt config.MappingTable, mappings []config.FieldMapping, ec *core.ExecutionContext) (Doc, error) {
	out := make(Doc, len(doc))
	consumed := make(map[string]bool, len(mappings))
	for k, v := range doc {
		out[k] = v
	}

	for _, fm := range mappings {
		consumed[topSegment(fm.SourceField)] = true
		val, found := getPath(doc, fm.SourceField)
		if !found {
			if fm.Required {
				return nil, core.NewError(core.KindInvalidRequest, "missing required field "+fm.SourceField)
			}
			if fm.DefaultValue == nil {
				continue
			}
			val = fm.DefaultValue
		} else if fm.Transform != "" {
			transformed, err := applyTransform(fm.Transform, val, mt)
			if err != nil {
				if ec != nil {
					ec.AppendWarning(fmt.Sprintf("compatibility: transform %q on %s failed: %v", fm.Transform, fm.SourceField, err))
				}
				deletePath(out, fm.SourceField)
				continue
			}
			val = transformed
		}
		deletePath(out, fm.SourceField)
		setPath(out, fm.TargetField, val)
	}

	if !mt.PreserveUnknownFields {
		for k := range out {
			if !consumed[k] && !isMappingTarget(mappings, k) {
				delete(out, k)
			}
		}
	}
	return out, nil
}

func isMappingTarget(mappings []config.FieldMapping, key string) bool {
	for _, fm := range mappings {
		if topSegment(fm.TargetField) == key {
			return true
		}
	}
	return false
}

func topSegment(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// applyTransform dispatches fm.Transform, a string of the form
// "<registry-name>[:arg1[:arg2...]]", e.g. "mapping:pricing_tier",
// "string_transform:prefix:gpt-", "array_transform:model".
func applyTransform(spec string, val any, mt config.MappingTable) (any, error) {
	parts := strings.Split(spec, ":")
	kind := parts[0]
	args := parts[1:]

	switch kind {
	case "mapping":
		return applyMappingTransform(args, val, mt)
	case "string_transform":
		return applyStringTransform(args, val)
	case "array_transform":
		return applyArrayTransform(args, val, mt)
	default:
		return nil, fmt.Errorf("unknown transform kind %q", kind)
	}
}

// applyMappingTransform looks val up in mt.LookupTables[args[0]],
// returning args[1] (or the input unchanged) as the default when the key
// is absent.
func applyMappingTransform(args []string, val any, mt config.MappingTable) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("mapping transform requires a table name")
	}
	table, ok := mt.LookupTables[args[0]]
	if !ok {
		return nil, fmt.Errorf("no lookup table named %q", args[0])
	}
	key := fmt.Sprintf("%v", val)
	if mapped, ok := table[key]; ok {
		return mapped, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return val, nil
}

func applyStringTransform(args []string, val any) (any, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("string_transform requires a string value, got %T", val)
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("string_transform requires an operation")
	}
	switch args[0] {
	case "prefix":
		if len(args) < 2 {
			return nil, fmt.Errorf("prefix requires an argument")
		}
		return args[1] + s, nil
	case "suffix":
		if len(args) < 2 {
			return nil, fmt.Errorf("suffix requires an argument")
		}
		return s + args[1], nil
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "regex_replace":
		if len(args) < 3 {
			return nil, fmt.Errorf("regex_replace requires pattern and replacement")
		}
		re, err := regexp.Compile(args[1])
		if err != nil {
			return nil, fmt.Errorf("regex_replace: %w", err)
		}
		return re.ReplaceAllString(s, args[2]), nil
	default:
		return nil, fmt.Errorf("unknown string_transform op %q", args[0])
	}
}

// applyArrayTransform applies a dotted sub-field rename within each
// element of val, which must be a []any of map[string]any elements.
// args[0] is the source sub-field, args[1] the target sub-field.
func applyArrayTransform(args []string, val any, mt config.MappingTable) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("array_transform requires source and target sub-fields")
	}
	arr, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("array_transform requires an array value, got %T", val)
	}
	out := make([]any, len(arr))
	for i, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			out[i] = el
			continue
		}
		elem := make(map[string]any, len(m))
		for k, v := range m {
			elem[k] = v
		}
		if v, found := getPath(elem, args[0]); found {
			deletePath(elem, args[0])
			setPath(elem, args[1], v)
		}
		out[i] = elem
	}
	return out, nil
}

// getPath reads a dotted path (e.g. "parameters.temperature") out of doc.
func getPath(doc Doc, path string) (any, bool) {
	segs := strings.Split(path, ".")
	var cur any = doc
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at a dotted path, creating intermediate maps as
// needed.
func setPath(doc Doc, path string, value any) {
	segs := strings.Split(path, ".")
	cur := doc
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
}

// deletePath removes a dotted path from doc if present.
func deletePath(doc Doc, path string) {
	segs := strings.Split(path, ".")
	cur := doc
	for i, seg := range segs {
		if i == len(segs)-1 {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
}

package bridge

import (
	"encoding/json"
	"strings"

	"ccfallback/internal/models"
)

// ProviderLooksLikeGemini reports whether provider.name triggers schema
// normalization, per spec.md section 4.4's note: "triggered by provider
// name substring, not by upstream host" so operators can opt any gateway
// into Gemini-style cleanup by naming it accordingly.
func ProviderLooksLikeGemini(providerName string) bool {
	return strings.Contains(strings.ToLower(providerName), "gemini")
}

// stripKeys are schema properties Gemini's tool-calling surface rejects.
var stripKeys = map[string]bool{
	"additionalProperties": true,
	"minLength":             true,
	"maxLength":             true,
	"format":                true,
	"minimum":               true,
	"maximum":               true,
	"pattern":               true,
}

// NormalizeSchemaForGemini recursively cleans a tool's input_schema per
// spec.md section 4.4: $ref resolved against $defs then both stripped,
// the listed keys stripped, nullable type arrays collapsed, const
// replaced by a single-element enum, and anyOf of pure literals flattened
// into an enum on the parent. Malformed schemas are returned unchanged.
func NormalizeSchemaForGemini(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}

	defs := extractDefs(v)
	cleaned := normalizeSchemaNode(v, defs)

	out, err := json.Marshal(cleaned)
	if err != nil {
		return raw
	}
	return out
}

// ApplyGeminiSchemaNormalization mutates each tool's Parameters in place.
// Called by the provider attempt after building the OpenAI request, only
// when ProviderLooksLikeGemini(provider.Name).
func ApplyGeminiSchemaNormalization(tools []models.OpenAITool) {
	for i := range tools {
		tools[i].Function.Parameters = NormalizeSchemaForGemini(tools[i].Function.Parameters)
	}
}

func extractDefs(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	defs, ok := m["$defs"].(map[string]any)
	if !ok {
		return nil
	}
	return defs
}

func normalizeSchemaNode(node any, defs map[string]any) any {
	switch n := node.(type) {
	case map[string]any:
		return normalizeSchemaObject(n, defs)
	case []any:
		out := make([]any, len(n))
		for i, el := range n {
			out[i] = normalizeSchemaNode(el, defs)
		}
		return out
	default:
		return node
	}
}

func normalizeSchemaObject(n map[string]any, defs map[string]any) map[string]any {
	if ref, ok := n["$ref"].(string); ok {
		if resolved, ok := resolveRef(ref, defs); ok {
			return normalizeSchemaObject(mergeResolved(n, resolved), defs)
		}
	}

	out := map[string]any{}
	for k, val := range n {
		if k == "$defs" || k == "$ref" || stripKeys[k] {
			continue
		}
		switch k {
		case "type":
			out[k] = collapseNullableType(val)
		case "const":
			out["enum"] = []any{val}
		case "anyOf":
			arr, ok := val.([]any)
			if ok {
				if literals, isLiteral := flattenLiteralAnyOf(arr); isLiteral {
					out["enum"] = literals
					continue
				}
			}
			out[k] = normalizeSchemaNode(val, defs)
		default:
			out[k] = normalizeSchemaNode(val, defs)
		}
	}
	return out
}

// mergeResolved overlays sibling keys from n (other than $ref) onto the
// resolved definition, so a $ref with adjacent constraints is not lost.
func mergeResolved(n map[string]any, resolved any) map[string]any {
	base, ok := resolved.(map[string]any)
	if !ok {
		return n
	}
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range n {
		if k == "$ref" {
			continue
		}
		out[k] = v
	}
	return out
}

func resolveRef(ref string, defs map[string]any) (any, bool) {
	const prefix = "#/$defs/"
	if !strings.HasPrefix(ref, prefix) || defs == nil {
		return nil, false
	}
	name := strings.TrimPrefix(ref, prefix)
	resolved, ok := defs[name]
	return resolved, ok
}

// collapseNullableType drops a "null" entry from a type array, returning
// the remaining single type bare (Gemini does not accept type arrays).
func collapseNullableType(val any) any {
	arr, ok := val.([]any)
	if !ok {
		return val
	}
	filtered := make([]any, 0, len(arr))
	for _, t := range arr {
		if s, ok := t.(string); ok && s == "null" {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return filtered
}

// flattenLiteralAnyOf reports whether every element of an anyOf array is
// a pure-literal schema (only a const key, nothing else of substance),
// returning the flattened literal values when so.
func flattenLiteralAnyOf(arr []any) ([]any, bool) {
	literals := make([]any, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, false
		}
		c, ok := m["const"]
		if !ok {
			return nil, false
		}
		for k := range m {
			if k != "const" && k != "type" {
				return nil, false
			}
		}
		literals = append(literals, c)
	}
	return literals, true
}

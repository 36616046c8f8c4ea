package bridge

import (
	"encoding/json"
	"testing"
)

func TestProviderLooksLikeGemini(t *testing.T) {
	cases := map[string]bool{
		"gemini-pro":      true,
		"My Gemini Proxy": true,
		"openrouter":      false,
		"":                false,
	}
	for name, want := range cases {
		if got := ProviderLooksLikeGemini(name); got != want {
			t.Errorf("ProviderLooksLikeGemini(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNormalizeSchemaForGeminiStripsDisallowedKeys(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"name": {"type": "string", "minLength": 1, "maxLength": 10, "pattern": "^[a-z]+$"},
			"age": {"type": "integer", "minimum": 0, "maximum": 120, "format": "int32"}
		}
	}`)

	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if _, ok := got["additionalProperties"]; ok {
		t.Error("additionalProperties should be stripped")
	}
	props := got["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	for _, k := range []string{"minLength", "maxLength", "pattern"} {
		if _, ok := name[k]; ok {
			t.Errorf("%s should be stripped", k)
		}
	}
	age := props["age"].(map[string]any)
	for _, k := range []string{"minimum", "maximum", "format"} {
		if _, ok := age[k]; ok {
			t.Errorf("%s should be stripped", k)
		}
	}
}

func TestNormalizeSchemaForGeminiCollapsesNullableType(t *testing.T) {
	schema := json.RawMessage(`{"type": ["string", "null"]}`)
	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if got["type"] != "string" {
		t.Errorf("type = %v, want bare \"string\"", got["type"])
	}
}

func TestNormalizeSchemaForGeminiConstBecomesEnum(t *testing.T) {
	schema := json.RawMessage(`{"const": "fixed-value"}`)
	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	enum, ok := got["enum"].([]any)
	if !ok || len(enum) != 1 || enum[0] != "fixed-value" {
		t.Fatalf("enum = %+v, want [\"fixed-value\"]", got["enum"])
	}
	if _, ok := got["const"]; ok {
		t.Error("const should be removed")
	}
}

func TestNormalizeSchemaForGeminiFlattensLiteralAnyOf(t *testing.T) {
	schema := json.RawMessage(`{"anyOf": [{"const": "a"}, {"const": "b"}, {"const": "c"}]}`)
	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	enum, ok := got["enum"].([]any)
	if !ok || len(enum) != 3 {
		t.Fatalf("enum = %+v, want 3 literal values", got["enum"])
	}
	if _, ok := got["anyOf"]; ok {
		t.Error("anyOf should be replaced by enum when all branches are literals")
	}
}

func TestNormalizeSchemaForGeminiResolvesRefAgainstDefs(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"unit": {"$ref": "#/$defs/Unit"}},
		"$defs": {"Unit": {"type": "string", "enum": ["c", "f"]}}
	}`)

	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if _, ok := got["$defs"]; ok {
		t.Error("$defs should be stripped from the output")
	}
	props := got["properties"].(map[string]any)
	unit := props["unit"].(map[string]any)
	if unit["type"] != "string" {
		t.Fatalf("resolved ref missing fields: %+v", unit)
	}
	if _, ok := unit["$ref"]; ok {
		t.Error("$ref should not survive resolution")
	}
}

func TestNormalizeSchemaForGeminiLeavesNonLiteralAnyOfAlone(t *testing.T) {
	schema := json.RawMessage(`{"anyOf": [{"type": "string"}, {"type": "integer"}]}`)
	out := NormalizeSchemaForGemini(schema)

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if _, ok := got["enum"]; ok {
		t.Error("non-literal anyOf should not be flattened into enum")
	}
	if _, ok := got["anyOf"]; !ok {
		t.Error("anyOf should be preserved when branches are not pure literals")
	}
}

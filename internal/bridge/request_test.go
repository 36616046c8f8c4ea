package bridge

import (
	"encoding/json"
	"testing"

	"ccfallback/internal/models"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestAnthropicToOpenAIRequestPlainStrings(t *testing.T) {
	req := models.AnthropicRequest{
		Model:         "claude-sonnet-4-5-20250929",
		MaxTokens:     1024,
		StopSequences: []string{"STOP"},
		Messages: []models.AnthropicMessage{
			{Role: "user", Content: raw(t, "Hi")},
		},
	}

	out := AnthropicToOpenAIRequest(req)

	if out.Model != req.Model || out.MaxTokens != 1024 {
		t.Fatalf("unexpected model/max_tokens: %+v", out)
	}
	if len(out.Stop) != 1 || out.Stop[0] != "STOP" {
		t.Fatalf("stop_sequences not renamed to stop: %+v", out.Stop)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != "user" || *out.Messages[0].Content != "Hi" {
		t.Fatalf("unexpected messages: %+v", out.Messages)
	}
}

func TestAnthropicToOpenAIRequestFlattensSystem(t *testing.T) {
	req := models.AnthropicRequest{
		Model:  "claude-sonnet-4-5-20250929",
		System: raw(t, "You are terse."),
		Messages: []models.AnthropicMessage{
			{Role: "user", Content: raw(t, "Hi")},
		},
	}

	out := AnthropicToOpenAIRequest(req)

	if len(out.Messages) != 2 || out.Messages[0].Role != "system" || *out.Messages[0].Content != "You are terse." {
		t.Fatalf("expected leading system message, got %+v", out.Messages)
	}
}

func TestAnthropicToOpenAIRequestSplitsToolResults(t *testing.T) {
	content := raw(t, []map[string]any{
		{"type": "tool_result", "tool_use_id": "call_1", "content": "42"},
		{"type": "text", "text": "thanks"},
	})
	req := models.AnthropicRequest{
		Model: "claude-sonnet-4-5-20250929",
		Messages: []models.AnthropicMessage{
			{Role: "user", Content: content},
		},
	}

	out := AnthropicToOpenAIRequest(req)

	if len(out.Messages) != 2 {
		t.Fatalf("expected 2 messages (tool + user text), got %d: %+v", len(out.Messages), out.Messages)
	}
	if out.Messages[0].Role != "tool" || out.Messages[0].ToolCallID != "call_1" || *out.Messages[0].Content != "42" {
		t.Fatalf("unexpected tool message: %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "user" || *out.Messages[1].Content != "thanks" {
		t.Fatalf("unexpected trailing user message: %+v", out.Messages[1])
	}
}

func TestAnthropicToOpenAIRequestAssistantToolUse(t *testing.T) {
	content := raw(t, []map[string]any{
		{"type": "text", "text": "Let me check."},
		{"type": "tool_use", "id": "call_1", "name": "get_weather", "input": map[string]any{"city": "nyc"}},
	})
	req := models.AnthropicRequest{
		Model: "claude-sonnet-4-5-20250929",
		Messages: []models.AnthropicMessage{
			{Role: "assistant", Content: content},
		},
	}

	out := AnthropicToOpenAIRequest(req)

	if len(out.Messages) != 1 {
		t.Fatalf("expected single assistant message, got %+v", out.Messages)
	}
	msg := out.Messages[0]
	if msg.Role != "assistant" || msg.Content == nil || *msg.Content != "Let me check." {
		t.Fatalf("unexpected assistant content: %+v", msg)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "get_weather" {
		t.Fatalf("unexpected tool_calls: %+v", msg.ToolCalls)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["city"] != "nyc" {
		t.Fatalf("unexpected arguments: %+v", args)
	}
}

func TestAnthropicToOpenAIRequestToolsAndToolChoice(t *testing.T) {
	req := models.AnthropicRequest{
		Model: "claude-sonnet-4-5-20250929",
		Tools: []models.AnthropicTool{
			{Name: "get_weather", Description: "look up weather", InputSchema: raw(t, map[string]any{"type": "object"})},
		},
		ToolChoice: raw(t, map[string]any{"type": "tool", "name": "get_weather"}),
		Messages:   []models.AnthropicMessage{{Role: "user", Content: raw(t, "hi")}},
	}

	out := AnthropicToOpenAIRequest(req)

	if len(out.Tools) != 1 || out.Tools[0].Type != "function" || out.Tools[0].Function.Name != "get_weather" {
		t.Fatalf("unexpected tools: %+v", out.Tools)
	}

	var tc map[string]any
	if err := json.Unmarshal(out.ToolChoice, &tc); err != nil {
		t.Fatalf("tool_choice not valid JSON: %v", err)
	}
	if tc["type"] != "function" {
		t.Fatalf("unexpected tool_choice: %+v", tc)
	}
}

func TestAnthropicToOpenAIRequestToolChoiceAutoAndAny(t *testing.T) {
	cases := map[string]string{"auto": `"auto"`, "any": `"required"`}
	for in, want := range cases {
		req := models.AnthropicRequest{
			Model:      "m",
			ToolChoice: raw(t, in),
			Messages:   []models.AnthropicMessage{{Role: "user", Content: raw(t, "hi")}},
		}
		out := AnthropicToOpenAIRequest(req)
		if string(out.ToolChoice) != want {
			t.Errorf("tool_choice %q => %s, want %s", in, out.ToolChoice, want)
		}
	}
}

func TestAnthropicToOpenAIRequestStreamAddsUsageOption(t *testing.T) {
	req := models.AnthropicRequest{
		Model:    "m",
		Stream:   true,
		Messages: []models.AnthropicMessage{{Role: "user", Content: raw(t, "hi")}},
	}
	out := AnthropicToOpenAIRequest(req)
	if out.StreamOptions == nil || !out.StreamOptions.IncludeUsage {
		t.Fatalf("expected stream_options.include_usage=true, got %+v", out.StreamOptions)
	}
}

package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"ccfallback/internal/models"
)

// finishReasonToStopReason maps Chat Completions finish_reason values to
// the Messages API's stop_reason vocabulary, per spec.md section 4.4.
var finishReasonToStopReason = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"function_call":  "tool_use",
	"content_filter": "end_turn",
}

// OpenAIToAnthropicResponse translates a non-streaming Chat Completions
// response into a Messages API response, generalizing the teacher's
// openai.ResponseTransformer (which only surfaced a single text block)
// to also emit tool_use blocks from tool_calls.
func OpenAIToAnthropicResponse(resp models.OpenAIResponse, requestedModel string) models.AnthropicResponse {
	id := resp.ID
	if id == "" {
		id = "msg_converted"
	}

	out := models.AnthropicResponse{
		ID:    id,
		Type:  "message",
		Role:  "assistant",
		Model: requestedModel,
		Usage: models.AnthropicUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	var choice models.OpenAIChoice
	if len(resp.Choices) > 0 {
		choice = resp.Choices[0]
	}

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		out.Content = append(out.Content, models.AnthropicContentBlock{
			Type: "text",
			Text: *choice.Message.Content,
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, models.AnthropicContentBlock{
			Type:  "tool_use",
			ID:    toolCallID(tc.ID),
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	if len(out.Content) == 0 {
		out.Content = append(out.Content, models.AnthropicContentBlock{Type: "text", Text: ""})
	}

	if stop, ok := finishReasonToStopReason[choice.FinishReason]; ok {
		out.StopReason = stop
	} else {
		out.StopReason = "end_turn"
	}

	return out
}

// parseToolArguments parses a tool call's arguments string as JSON; on
// parse failure the raw string is kept, re-encoded as a JSON string so
// Input remains valid JSON.
func parseToolArguments(args string) json.RawMessage {
	if args == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(encoded)
}

// toolCallID guarantees a non-empty id; some OpenAI-compatible providers
// omit it on the final accumulated tool call.
func toolCallID(id string) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("toolu_%s", uuid.New().String())
}

package bridge

import (
	"encoding/json"

	"ccfallback/internal/models"
)

// AnthropicToOpenAIRequest translates an Anthropic Messages request into
// the OpenAI Chat Completions shape, per spec.md section 4.4. It is the
// generalization of the teacher's openai.RequestTransformer.Transform,
// which only handled plain-string messages; this version also splits out
// tool_result blocks and maps tool_use blocks to tool_calls.
func AnthropicToOpenAIRequest(req models.AnthropicRequest) models.OpenAIRequest {
	out := models.OpenAIRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if len(req.StopSequences) > 0 {
		out.Stop = req.StopSequences
	}
	if req.Stream {
		out.StreamOptions = &models.OpenAIStreamOption{IncludeUsage: true}
	}

	var messages []models.OpenAIMessage
	if sysMsg, ok := systemMessage(req.System); ok {
		messages = append(messages, sysMsg)
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m)...)
	}
	out.Messages = messages

	if len(req.Tools) > 0 {
		out.Tools = make([]models.OpenAITool, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = models.OpenAITool{
				Type: "function",
				Function: models.OpenAIFunctionSpec{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			}
		}
	}

	if tc := convertToolChoice(req.ToolChoice); tc != nil {
		out.ToolChoice = tc
	}

	return out
}

// systemMessage converts the top-level system field (string or array of
// content blocks) into a leading {role:"system"} message.
func systemMessage(raw json.RawMessage) (models.OpenAIMessage, bool) {
	if len(raw) == 0 {
		return models.OpenAIMessage{}, false
	}
	text, blocks, isBlocks := decodeContent(raw)
	if isBlocks {
		joined := ""
		for _, b := range blocks {
			if b.Type == "text" || b.Type == "" {
				joined += b.Text
			}
		}
		text = joined
	}
	if text == "" {
		return models.OpenAIMessage{}, false
	}
	return models.OpenAIMessage{Role: "system", Content: strPtr(text)}, true
}

// convertMessage expands one Anthropic message into zero or more OpenAI
// messages: plain-string content passes through 1:1; array content for a
// user message is split into a user message (text) plus one tool message
// per tool_result (in original order, tool messages first since they
// respond to a preceding assistant tool_calls); array content for an
// assistant message becomes one assistant message whose tool_use blocks
// become tool_calls.
func convertMessage(m models.AnthropicMessage) []models.OpenAIMessage {
	text, blocks, isBlocks := decodeContent(m.Content)
	if !isBlocks {
		return []models.OpenAIMessage{{Role: m.Role, Content: strPtr(text)}}
	}

	if m.Role == "assistant" {
		return []models.OpenAIMessage{convertAssistantBlocks(blocks)}
	}

	// user (or any other role carrying tool_result blocks)
	var out []models.OpenAIMessage
	var leftoverText string
	for _, b := range blocks {
		switch b.Type {
		case "tool_result":
			out = append(out, models.OpenAIMessage{
				Role:       "tool",
				ToolCallID: b.ToolUseID,
				Content:    strPtr(toolResultText(b.Content)),
			})
		case "text", "":
			leftoverText += b.Text
		default:
			// image and other non-text, non-tool_result blocks are not
			// representable in OpenAI's plain-string user content; they
			// are dropped rather than silently corrupting the message.
		}
	}
	if leftoverText != "" || len(out) == 0 {
		out = append(out, models.OpenAIMessage{Role: "user", Content: strPtr(leftoverText)})
	}
	return out
}

func convertAssistantBlocks(blocks []contentBlock) models.OpenAIMessage {
	msg := models.OpenAIMessage{Role: "assistant"}
	var text string
	var calls []models.OpenAIToolCall
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			calls = append(calls, models.OpenAIToolCall{
				ID:   b.ID,
				Type: "function",
				Function: models.OpenAIFunctionCall{
					Name:      b.Name,
					Arguments: args,
				},
			})
		}
	}
	if text != "" {
		msg.Content = strPtr(text)
	}
	msg.ToolCalls = calls
	return msg
}

// convertToolChoice maps Anthropic's tool_choice shapes to OpenAI's.
func convertToolChoice(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto":
			return json.RawMessage(`"auto"`)
		case "any":
			return json.RawMessage(`"required"`)
		}
	}
	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		switch obj.Type {
		case "auto":
			return json.RawMessage(`"auto"`)
		case "any":
			return json.RawMessage(`"required"`)
		case "tool":
			out, _ := json.Marshal(map[string]any{
				"type": "function",
				"function": map[string]string{
					"name": obj.Name,
				},
			})
			return out
		}
	}
	return nil
}

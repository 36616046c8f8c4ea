// Package bridge implements the bidirectional Anthropic <-> OpenAI format
// translation from spec.md section 4.4, grounded on the teacher's
// internal/provider/openai, internal/provider/anthropic, and
// internal/streaming packages, generalized to cover tool use/tool result
// content blocks (which the teacher's simpler string-only Message type
// does not model) and the full streaming state machine the spec requires.
package bridge

import "encoding/json"

// decodeContent interprets an Anthropic message's raw content field,
// which may be a plain JSON string or an array of content blocks.
func decodeContent(raw json.RawMessage) (text string, blocks []contentBlock, isBlocks bool) {
	if len(raw) == 0 {
		return "", nil, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil, false
	}
	var bs []contentBlock
	if err := json.Unmarshal(raw, &bs); err == nil {
		return "", bs, true
	}
	return "", nil, false
}

// contentBlock mirrors models.AnthropicContentBlock but keeps Input/Content
// as raw JSON for lossless round-tripping through the rectifier and bridge.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Data      string          `json:"data,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Source    json.RawMessage `json:"source,omitempty"`
}

// toolResultText extracts a plain-text rendering of a tool_result block's
// content, which itself may be a string or an array of text blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		out := ""
		for _, b := range blocks {
			if b.Type == "text" || b.Type == "" {
				out += b.Text
			}
		}
		return out
	}
	return string(raw)
}

func strPtr(s string) *string { return &s }

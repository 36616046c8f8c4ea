package models

import "encoding/json"

// AnthropicRequest is the Anthropic Messages API request body, the shape
// clients of ccfallback send and that the primary upstream and
// anthropic-format providers receive verbatim (after model mapping).
type AnthropicRequest struct {
	Model         string              `json:"model"`
	Messages      []AnthropicMessage  `json:"messages"`
	System        json.RawMessage     `json:"system,omitempty"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
	TopP          *float64            `json:"top_p,omitempty"`
	TopK          *int                `json:"top_k,omitempty"`
	StopSequences []string            `json:"stop_sequences,omitempty"`
	Stream        bool                `json:"stream,omitempty"`
	Tools         []AnthropicTool     `json:"tools,omitempty"`
	ToolChoice    json.RawMessage     `json:"tool_choice,omitempty"`
	Thinking      *AnthropicThinking  `json:"thinking,omitempty"`
	Metadata      json.RawMessage     `json:"metadata,omitempty"`
	Extra         map[string]any      `json:"-"`
}

// AnthropicThinking is the thinking-mode configuration block.
type AnthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// AnthropicMessage is one turn of the conversation. Content may be a plain
// string or an array of content blocks; Content keeps whichever the client
// sent so re-serialization is lossless until a rectifier mutates it.
type AnthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// AnthropicContentBlock is one element of a content-block array: text,
// image, thinking, redacted_thinking, tool_use, or tool_result.
type AnthropicContentBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	Thinking     string          `json:"thinking,omitempty"`
	Data         string          `json:"data,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	Content      json.RawMessage `json:"content,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	Source       json.RawMessage `json:"source,omitempty"`
}

// AnthropicTool is a tool definition in Anthropic's input_schema shape.
type AnthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// AnthropicResponse is the non-streaming Messages API response shape.
type AnthropicResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Model        string                  `json:"model"`
	Content      []AnthropicContentBlock `json:"content"`
	StopReason   string                  `json:"stop_reason,omitempty"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        AnthropicUsage          `json:"usage"`
}

// AnthropicUsage reports token accounting in Anthropic's field names.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicErrorBody is the {error:{type,message}} shape used for every
// proxy-originated error in spec.md section 6.
type AnthropicErrorBody struct {
	Error AnthropicErrorDetail `json:"error"`
}

type AnthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	ErrTypeAuthentication    = "authentication_error"
	ErrTypeProxyError        = "proxy_error"
	ErrTypeFallbackExhausted = "fallback_exhausted"
)

// NewErrorBody builds the canonical proxy error body.
func NewErrorBody(errType, message string) AnthropicErrorBody {
	return AnthropicErrorBody{Error: AnthropicErrorDetail{Type: errType, Message: message}}
}

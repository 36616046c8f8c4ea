package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"sort"

	"github.com/google/uuid"

	"ccfallback/internal/models"
	"ccfallback/internal/sse"
)

// The following types are the wire shapes of the Anthropic streaming
// events this translator emits. They are kept separate from
// models.AnthropicResponse because the streaming protocol's event
// envelopes do not match the non-streaming response body.
type messageStart struct {
	Type    string            `json:"type"`
	Message streamMsgEnvelope `json:"message"`
}

type streamMsgEnvelope struct {
	ID           string                          `json:"id"`
	Type         string                          `json:"type"`
	Role         string                          `json:"role"`
	Model        string                          `json:"model"`
	Content      []models.AnthropicContentBlock `json:"content"`
	StopReason   *string                         `json:"stop_reason"`
	StopSequence *string                         `json:"stop_sequence"`
	Usage        models.AnthropicUsage          `json:"usage"`
}

type contentBlockStart struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock blockStarter `json:"content_block"`
}

type blockStarter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Input is present only on tool_use block starts; its arguments
	// arrive afterward as a single input_json_delta.
	Input json.RawMessage `json:"input,omitempty"`
}

type contentBlockDelta struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta blockDelta `json:"delta"`
}

type blockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

type contentBlockStop struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type messageDelta struct {
	Type  string            `json:"type"`
	Delta messageDeltaBody  `json:"delta"`
	Usage messageDeltaUsage `json:"usage"`
}

type messageDeltaBody struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

type messageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

type messageStop struct {
	Type string `json:"type"`
}

// accumulatedToolCall collects one tool call's identity and concatenated
// arguments string across however many deltas it was split over. Per
// spec.md section 4.4, no block events are emitted for a tool call until
// the stream ends and the full argument string is known.
type accumulatedToolCall struct {
	index     int
	id        string
	name      string
	arguments string
}

// streamState accumulates across the lifetime of one upstream stream.
type streamState struct {
	w            *sse.Writer
	model        string
	messageID    string
	started      bool
	nextIndex    int
	textOpen     bool
	textIndex    int
	tools        map[int]*accumulatedToolCall
	toolOrder    []int
	outputTokens int
	finishReason string
}

// TranslateOpenAIStream reads Chat Completions SSE chunks from upstream
// and writes the equivalent Anthropic Messages SSE events to w, per
// spec.md section 4.4's streaming state machine. It tolerates invalid
// JSON in an individual chunk (skipped, stream continues) and chunks
// carrying only usage with no choices.
func TranslateOpenAIStream(upstream io.Reader, w *sse.Writer, requestedModel string) error {
	st := &streamState{
		w:         w,
		model:     requestedModel,
		messageID: "msg_" + uuid.New().String(),
		tools:     make(map[int]*accumulatedToolCall),
	}
	parser := sse.NewParser(upstream)

	for {
		ev, err := parser.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if ev.Data == "" || ev.Data == "[DONE]" {
			continue
		}

		var chunk models.OpenAIStreamChunk
		if jsonErr := json.Unmarshal([]byte(ev.Data), &chunk); jsonErr != nil {
			continue
		}
		if err := st.consume(chunk); err != nil {
			return err
		}
	}

	return st.finish()
}

func (st *streamState) consume(chunk models.OpenAIStreamChunk) error {
	if !st.started {
		st.started = true
		if err := st.emitMessageStart(); err != nil {
			return err
		}
	}

	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			st.outputTokens = chunk.Usage.CompletionTokens
		}
		return nil
	}

	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		if err := st.emitTextDelta(choice.Delta.Content); err != nil {
			return err
		}
	}

	if len(choice.Delta.ToolCalls) > 0 {
		if err := st.closeTextBlock(); err != nil {
			return err
		}
		for _, tc := range choice.Delta.ToolCalls {
			st.accumulateTool(tc)
		}
	}

	if chunk.Usage != nil {
		st.outputTokens = chunk.Usage.CompletionTokens
	}
	if choice.FinishReason != nil {
		st.finishReason = *choice.FinishReason
	}

	return nil
}

func (st *streamState) emitTextDelta(text string) error {
	if !st.textOpen {
		st.textIndex = st.nextIndex
		st.nextIndex++
		st.textOpen = true
		if err := st.emit(contentBlockStart{
			Type:         "content_block_start",
			Index:        st.textIndex,
			ContentBlock: blockStarter{Type: "text", Text: ""},
		}, "content_block_start"); err != nil {
			return err
		}
	}
	return st.emit(contentBlockDelta{
		Type:  "content_block_delta",
		Index: st.textIndex,
		Delta: blockDelta{Type: "text_delta", Text: text},
	}, "content_block_delta")
}

func (st *streamState) closeTextBlock() error {
	if !st.textOpen {
		return nil
	}
	st.textOpen = false
	return st.emit(contentBlockStop{Type: "content_block_stop", Index: st.textIndex}, "content_block_stop")
}

// accumulateTool records identity and concatenates arguments for the
// tool call at tc.Index, first seen or continued.
func (st *streamState) accumulateTool(tc models.OpenAIStreamToolCall) {
	acc, ok := st.tools[tc.Index]
	if !ok {
		acc = &accumulatedToolCall{index: tc.Index}
		st.tools[tc.Index] = acc
		st.toolOrder = append(st.toolOrder, tc.Index)
	}
	if tc.ID != "" {
		acc.id = tc.ID
	}
	if tc.Function.Name != "" {
		acc.name = tc.Function.Name
	}
	acc.arguments += tc.Function.Arguments
}

func (st *streamState) emitMessageStart() error {
	return st.emit(messageStart{
		Type: "message_start",
		Message: streamMsgEnvelope{
			ID:      st.messageID,
			Type:    "message",
			Role:    "assistant",
			Model:   st.model,
			Content: []models.AnthropicContentBlock{},
			Usage:   models.AnthropicUsage{},
		},
	}, "message_start")
}

// finish drains any open text block and all accumulated tool calls (in
// ascending order of their OpenAI tool-call index) as complete, instantaneous
// content blocks, then closes the message.
func (st *streamState) finish() error {
	if !st.started {
		if err := st.emitMessageStart(); err != nil {
			return err
		}
	}
	if err := st.closeTextBlock(); err != nil {
		return err
	}

	order := append([]int(nil), st.toolOrder...)
	sort.Ints(order)
	for _, idx := range order {
		acc := st.tools[idx]
		blockIndex := st.nextIndex
		st.nextIndex++

		args := acc.arguments
		if args == "" {
			args = "{}"
		}

		if err := st.emit(contentBlockStart{
			Type:  "content_block_start",
			Index: blockIndex,
			ContentBlock: blockStarter{
				Type:  "tool_use",
				ID:    toolCallID(acc.id),
				Name:  acc.name,
				Input: json.RawMessage("{}"),
			},
		}, "content_block_start"); err != nil {
			return err
		}
		if err := st.emit(contentBlockDelta{
			Type:  "content_block_delta",
			Index: blockIndex,
			Delta: blockDelta{Type: "input_json_delta", PartialJSON: args},
		}, "content_block_delta"); err != nil {
			return err
		}
		if err := st.emit(contentBlockStop{Type: "content_block_stop", Index: blockIndex}, "content_block_stop"); err != nil {
			return err
		}
	}

	stopReason := finishReasonToStopReason[st.finishReason]
	if stopReason == "" {
		stopReason = "end_turn"
	}
	if err := st.emit(messageDelta{
		Type:  "message_delta",
		Delta: messageDeltaBody{StopReason: &stopReason},
		Usage: messageDeltaUsage{OutputTokens: st.outputTokens},
	}, "message_delta"); err != nil {
		return err
	}

	return st.emit(messageStop{Type: "message_stop"}, "message_stop")
}

func (st *streamState) emit(payload any, eventType string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return st.w.WriteEvent(sse.Event{Event: eventType, Data: string(data)})
}

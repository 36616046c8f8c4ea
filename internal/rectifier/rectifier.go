// Package rectifier implements the three error-driven self-healing
// detector/mutator pairs from spec.md section 4.5. Each rule inspects the
// upstream's rejection message, and when it matches, produces a mutated
// deep copy of the request body that is retried once per tryProvider
// invocation.
package rectifier

import (
	"encoding/json"
	"regexp"
	"strings"

	"ccfallback/internal/models"
)

// Feature names a rectifier rule; they double as the RectifierConfig flag
// names and the retry-tracking keys in the provider attempt's one-shot map.
type Feature string

const (
	FeatureThinkingSignature  Feature = "requestThinkingSignature"
	FeatureThinkingBudget     Feature = "requestThinkingBudget"
	FeatureToolUseConcurrency Feature = "requestToolUseConcurrency"
)

// Rule pairs one feature's detector and mutator. Mutate receives the
// triggering error message too: R3 needs it to parse orphaned tool_use
// ids; R1 and R2 ignore it.
type Rule struct {
	Feature Feature
	Detect  func(errorMessage string) bool
	Mutate  func(body map[string]any, errorMessage string) (mutated map[string]any, applied bool)
}

// Rules is the ordered list applied by the provider attempt: R1, then R2,
// then R3, matching spec.md section 4.5's presentation order.
var Rules = []Rule{
	{Feature: FeatureThinkingSignature, Detect: DetectThinkingSignature, Mutate: adaptMutator(MutateThinkingSignature)},
	{Feature: FeatureThinkingBudget, Detect: DetectThinkingBudget, Mutate: adaptMutator(MutateThinkingBudget)},
	{Feature: FeatureToolUseConcurrency, Detect: DetectToolUseConcurrency, Mutate: MutateToolUseConcurrencyWithError},
}

// adaptMutator lifts an error-message-agnostic mutator to the Rule.Mutate
// signature.
func adaptMutator(f func(map[string]any) (map[string]any, bool)) func(map[string]any, string) (map[string]any, bool) {
	return func(body map[string]any, _ string) (map[string]any, bool) {
		return f(body)
	}
}

// Enabled reports whether cfg's master switch and this feature's flag are
// both on.
func (r Rule) Enabled(cfg models.RectifierConfig) bool {
	if !cfg.Enabled {
		return false
	}
	switch r.Feature {
	case FeatureThinkingSignature:
		return cfg.RequestThinkingSignature
	case FeatureThinkingBudget:
		return cfg.RequestThinkingBudget
	case FeatureToolUseConcurrency:
		return cfg.RequestToolUseConcurrency
	default:
		return false
	}
}

// ExtractErrorMessage pulls a human-readable message out of an upstream
// error body, trying error.message, then message, then error.type, then
// falling back to the raw body text.
func ExtractErrorMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if errObj, ok := parsed["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	if errObj, ok := parsed["error"].(map[string]any); ok {
		if typ, ok := errObj["type"].(string); ok && typ != "" {
			return typ
		}
	}
	return string(body)
}

// DeepCopyBody round-trips body through JSON, the simplest faithful deep
// copy for a value that is itself JSON-shaped (it came from json.Unmarshal
// and will be marshaled again to retry the request).
func DeepCopyBody(body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	if err != nil {
		return body
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return body
	}
	return out
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// DetectThinkingSignature implements R1's detector over the substring/token
// sets in spec.md section 4.5.
func DetectThinkingSignature(errMsg string) bool {
	m := strings.ToLower(errMsg)
	switch {
	case containsAll(m, "invalid", "signature", "thinking", "block"):
		return true
	case strings.Contains(m, "must start with a thinking block"):
		return true
	case containsAll(m, "expected") && containsAny(m, "thinking", "redacted_thinking") && containsAll(m, "found", "tool_use"):
		return true
	case containsAll(m, "signature", "field required"):
		return true
	case containsAll(m, "signature", "extra inputs are not permitted"):
		return true
	case containsAny(m, "thinking", "redacted_thinking") && strings.Contains(m, "cannot be modified"):
		return true
	case containsAny(m, "illegal request", "invalid request", "非法请求", "无效请求"):
		return true
	default:
		return false
	}
}

// MutateThinkingSignature drops thinking/redacted_thinking blocks and
// strips signature from survivors, across every message's content array
// and the top-level system array; it also removes the top-level thinking
// field under the conditions in spec.md section 4.5.
func MutateThinkingSignature(body map[string]any) (map[string]any, bool) {
	out := DeepCopyBody(body)
	applied := false

	if sys, ok := out["system"].([]any); ok {
		cleaned, changed := stripThinkingBlocks(sys)
		out["system"] = cleaned
		applied = applied || changed
	}

	messages, _ := out["messages"].([]any)
	for i, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		content, ok := msg["content"].([]any)
		if !ok {
			continue
		}
		cleaned, changed := stripThinkingBlocks(content)
		msg["content"] = cleaned
		applied = applied || changed
		messages[i] = msg
	}
	out["messages"] = messages

	if removed := maybeRemoveTopLevelThinking(out, messages); removed {
		applied = true
	}

	return out, applied
}

func stripThinkingBlocks(blocks []any) ([]any, bool) {
	changed := false
	out := make([]any, 0, len(blocks))
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			out = append(out, b)
			continue
		}
		switch block["type"] {
		case "thinking", "redacted_thinking":
			changed = true
			continue
		}
		if _, hasSig := block["signature"]; hasSig {
			delete(block, "signature")
			changed = true
		}
		out = append(out, block)
	}
	return out, changed
}

// maybeRemoveTopLevelThinking implements the three-condition removal rule:
// the thinking field is enabled, the last assistant message's first block
// is not a thinking block, and that message contains a tool_use block.
func maybeRemoveTopLevelThinking(out map[string]any, messages []any) bool {
	thinking, ok := out["thinking"].(map[string]any)
	if !ok || thinking["type"] != "enabled" {
		return false
	}

	var lastAssistant map[string]any
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(map[string]any)
		if ok && msg["role"] == "assistant" {
			lastAssistant = msg
			break
		}
	}
	if lastAssistant == nil {
		return false
	}
	content, _ := lastAssistant["content"].([]any)
	if len(content) == 0 {
		return false
	}
	first, _ := content[0].(map[string]any)
	if first != nil {
		switch first["type"] {
		case "thinking", "redacted_thinking":
			return false
		}
	}

	hasToolUse := false
	for _, b := range content {
		block, ok := b.(map[string]any)
		if ok && block["type"] == "tool_use" {
			hasToolUse = true
			break
		}
	}
	if !hasToolUse {
		return false
	}

	delete(out, "thinking")
	return true
}

// DetectThinkingBudget implements R2's detector: references thinking,
// references a budget term, and asserts the ≥1024 lower bound.
var budgetLowerBoundPattern = regexp.MustCompile(`(?i)(>=|≥|greater than or equal to|at least)\s*1024`)

func DetectThinkingBudget(errMsg string) bool {
	m := strings.ToLower(errMsg)
	if !strings.Contains(m, "thinking") {
		return false
	}
	if !containsAny(m, "budget_tokens", "budget tokens", "budget") {
		return false
	}
	return budgetLowerBoundPattern.MatchString(errMsg)
}

// MutateThinkingBudget raises the thinking budget to the vendor minimum
// and max_tokens to accommodate it, unless thinking mode is already
// adaptive (which has no fixed budget to raise).
func MutateThinkingBudget(body map[string]any) (map[string]any, bool) {
	out := DeepCopyBody(body)

	if thinking, ok := out["thinking"].(map[string]any); ok {
		if thinking["type"] == "adaptive" {
			return out, false
		}
	}

	applied := false
	thinking, _ := out["thinking"].(map[string]any)
	if thinking == nil {
		thinking = map[string]any{}
	}
	if thinking["type"] != "enabled" {
		thinking["type"] = "enabled"
		applied = true
	}
	if budget, ok := thinking["budget_tokens"].(float64); !ok || budget != 32000 {
		thinking["budget_tokens"] = float64(32000)
		applied = true
	}
	out["thinking"] = thinking

	maxTokens, ok := out["max_tokens"].(float64)
	if !ok || maxTokens < 32001 {
		out["max_tokens"] = float64(64000)
		applied = true
	}

	return out, applied
}

// orphanPattern extracts the comma-separated tool_use ids from the phrase
// "without `tool_result` blocks immediately after: id1, id2."
var orphanPattern = regexp.MustCompile("without `tool_result` blocks immediately after: ([^.]+)")

// DetectToolUseConcurrency implements R3's detector.
func DetectToolUseConcurrency(errMsg string) bool {
	m := strings.ToLower(errMsg)
	return containsAll(m, "tool_use", "without", "tool_result")
}

func parseOrphanedIDs(errMsg string) []string {
	match := orphanPattern.FindStringSubmatch(errMsg)
	if match == nil {
		return nil
	}
	parts := strings.Split(match[1], ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// MutateToolUseConcurrencyWithError repairs orphaned tool_use blocks: for
// each assistant message containing an id parsed out of errMsg, the
// following user message (or a synthesized one) gets a synthetic error
// tool_result for every id not already satisfied.
func MutateToolUseConcurrencyWithError(body map[string]any, errMsg string) (map[string]any, bool) {
	return mutateToolUseConcurrencyForIDs(body, parseOrphanedIDs(errMsg))
}

const orphanedToolResultMessage = "Tool execution was interrupted; no result was produced."

func mutateToolUseConcurrencyForIDs(body map[string]any, orphanIDs []string) (map[string]any, bool) {
	if len(orphanIDs) == 0 {
		return DeepCopyBody(body), false
	}
	out := DeepCopyBody(body)
	messages, _ := out["messages"].([]any)
	applied := false

	for i := 0; i < len(messages); i++ {
		msg, ok := messages[i].(map[string]any)
		if !ok || msg["role"] != "assistant" {
			continue
		}
		content, _ := msg["content"].([]any)
		present := toolUseIDsIn(content)

		missing := make([]string, 0, len(orphanIDs))
		for _, id := range orphanIDs {
			if present[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			continue
		}

		existingResults := map[string]bool{}
		if i+1 < len(messages) {
			if next, ok := messages[i+1].(map[string]any); ok && next["role"] == "user" {
				nextContent, _ := next["content"].([]any)
				for _, b := range nextContent {
					block, ok := b.(map[string]any)
					if ok && block["type"] == "tool_result" {
						if id, ok := block["tool_use_id"].(string); ok {
							existingResults[id] = true
						}
					}
				}
			}
		}

		var toInsert []any
		for _, id := range missing {
			if existingResults[id] {
				continue
			}
			toInsert = append(toInsert, map[string]any{
				"type":        "tool_result",
				"tool_use_id": id,
				"is_error":    true,
				"content":     orphanedToolResultMessage,
			})
		}
		if len(toInsert) == 0 {
			continue
		}
		applied = true

		if i+1 < len(messages) {
			if next, ok := messages[i+1].(map[string]any); ok && next["role"] == "user" {
				nextContent, _ := next["content"].([]any)
				next["content"] = append(toInsert, nextContent...)
				messages[i+1] = next
				continue
			}
		}

		newMsg := map[string]any{"role": "user", "content": toInsert}
		tail := append([]any{newMsg}, messages[i+1:]...)
		messages = append(messages[:i+1:i+1], tail...)
	}

	out["messages"] = messages
	return out, applied
}

func toolUseIDsIn(content []any) map[string]bool {
	ids := map[string]bool{}
	for _, b := range content {
		block, ok := b.(map[string]any)
		if !ok || block["type"] != "tool_use" {
			continue
		}
		if id, ok := block["id"].(string); ok {
			ids[id] = true
		}
	}
	return ids
}

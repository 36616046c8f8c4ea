package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ccfallback/internal/bridge"
	"ccfallback/internal/models"
)

// testModels is the fixed set of four Claude models spec.md section 6's
// test-provider endpoint probes, spanning the current model family sizes
// so a provider's model mapping table gets real coverage.
var testModels = []string{
	"claude-opus-4-1-20250805",
	"claude-sonnet-4-5-20250929",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

const testProviderTimeout = 10 * time.Second

// modelTestResult is one model's outcome from a test-provider probe.
type modelTestResult struct {
	Model      string `json:"model"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"statusCode,omitempty"`
	LatencyMs  int64  `json:"latencyMs"`
	Error      string `json:"error,omitempty"`
}

// handleTestProvider implements POST /admin/test-provider: the body is a
// ProviderConfig, tested against all four testModels in parallel, each
// bounded by testProviderTimeout, per spec.md section 5's timeout table.
func (h *Handlers) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var provider models.ProviderConfig
	if err := json.Unmarshal(body, &provider); err != nil {
		badRequest(w, "body must be a ProviderConfig")
		return
	}
	if err := provider.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	results := make([]modelTestResult, len(testModels))
	var wg sync.WaitGroup
	for i, model := range testModels {
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			results[i] = h.testOneModel(r.Context(), provider, model)
		}(i, model)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"provider": provider.Name, "results": results})
}

func (h *Handlers) testOneModel(parent context.Context, provider models.ProviderConfig, model string) modelTestResult {
	ctx, cancel := context.WithTimeout(parent, testProviderTimeout)
	defer cancel()

	mapped := provider.MappedModel(model)
	outBytes, err := buildTestBody(provider, mapped)
	if err != nil {
		return modelTestResult{Model: model, Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.BaseURL, bytes.NewReader(outBytes))
	if err != nil {
		return modelTestResult{Model: model, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range provider.Headers {
		req.Header.Set(k, v)
	}
	applyTestCredential(req.Header, provider)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return modelTestResult{Model: model, Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return modelTestResult{
		Model:      model,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		LatencyMs:  latency,
	}
}

func buildTestBody(provider models.ProviderConfig, model string) ([]byte, error) {
	areq := models.AnthropicRequest{
		Model:     model,
		MaxTokens: 16,
		Messages: []models.AnthropicMessage{
			{Role: "user", Content: json.RawMessage(`"ping"`)},
		},
	}
	if provider.EffectiveFormat() != models.FormatOpenAI {
		return json.Marshal(areq)
	}
	oreq := bridge.AnthropicToOpenAIRequest(areq)
	if bridge.ProviderLooksLikeGemini(provider.Name) {
		bridge.ApplyGeminiSchemaNormalization(oreq.Tools)
	}
	return json.Marshal(oreq)
}

func applyTestCredential(h http.Header, provider models.ProviderConfig) {
	name := provider.EffectiveAuthHeader()
	value := provider.APIKey
	if strings.EqualFold(name, "Authorization") && !strings.HasPrefix(value, "Bearer ") {
		value = fmt.Sprintf("Bearer %s", value)
	}
	h.Set(name, value)
}

package routing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"ccfallback/internal/bridge"
	"ccfallback/internal/headers"
	"ccfallback/internal/models"
	"ccfallback/internal/rectifier"
	"ccfallback/internal/sse"
)

// tryProvider implements spec.md section 4.3's tryProvider(provider, body,
// clientHeaders, config, retryFlags) -> response. bodyMap is the client's
// original (unmapped, unmutated) Anthropic request, decoded once by the
// routing engine; it is never mutated in place here, only deep-copied.
func (e *Engine) tryProvider(ctx context.Context, w http.ResponseWriter, provider models.ProviderConfig, bodyMap map[string]any, clientHeaders http.Header, cfg models.AppConfig, clientStream bool) (result, bool) {
	retried := map[rectifier.Feature]bool{}
	return e.attemptProvider(ctx, w, provider, bodyMap, clientHeaders, cfg, clientStream, retried)
}

func (e *Engine) attemptProvider(ctx context.Context, w http.ResponseWriter, provider models.ProviderConfig, bodyMap map[string]any, clientHeaders http.Header, cfg models.AppConfig, clientStream bool, retried map[rectifier.Feature]bool) (result, bool) {
	requestedModel, _ := bodyMap["model"].(string)
	mappedModel := provider.MappedModel(requestedModel)

	outBytes, err := buildUpstreamBody(provider, bodyMap, mappedModel)
	if err != nil {
		return result{failed: true}, true
	}

	headerSet := headers.SieveInboundToUpstream(clientHeaders)
	for k, v := range provider.Headers {
		headerSet.Set(k, v)
	}
	headerSet.Set("Content-Type", "application/json")
	applyCredential(headerSet, provider)

	resp, derr := e.dispatchWithRetry(ctx, provider.BaseURL, headerSet, outBytes, provider.Retry)
	if derr != nil {
		return result{failed: true}, true
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return e.handleProviderSuccess(w, provider, resp, requestedModel, clientStream)
	}

	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	failResult := result{failed: true, statusCode: resp.StatusCode, header: resp.Header, body: raw}

	if provider.EffectiveFormat() == models.FormatAnthropic && cfg.Rectifier.Enabled {
		if next, recursed := e.tryRectify(ctx, w, provider, bodyMap, clientHeaders, cfg, clientStream, retried, raw); recursed {
			return next, next.failed
		}
	}

	return failResult, true
}

// tryRectify runs the ordered rectifier rules against raw's error message
// and, on the first enabled, not-yet-retried rule that matches, marks that
// feature retried and, if its mutation changed the body, recurses into
// attemptProvider. recursed is false when no rule matched or the first
// matching rule's mutation was a no-op (later rules are not tried), in
// which case the caller should use its own buffered failure result.
func (e *Engine) tryRectify(ctx context.Context, w http.ResponseWriter, provider models.ProviderConfig, bodyMap map[string]any, clientHeaders http.Header, cfg models.AppConfig, clientStream bool, retried map[rectifier.Feature]bool, raw []byte) (result, bool) {
	errMsg := rectifier.ExtractErrorMessage(raw)
	for _, rule := range rectifier.Rules {
		if retried[rule.Feature] || !rule.Enabled(cfg.Rectifier) || !rule.Detect(errMsg) {
			continue
		}
		retried[rule.Feature] = true
		mutated, applied := rule.Mutate(bodyMap, errMsg)
		if !applied {
			return result{}, false
		}
		res, _ := e.attemptProvider(ctx, w, provider, mutated, clientHeaders, cfg, clientStream, retried)
		return res, true
	}
	return result{}, false
}

// buildUpstreamBody implements spec.md section 4.3 steps 1-2: model
// mapping, then Anthropic->OpenAI translation (with Gemini schema cleanup)
// for openai-format providers, or a plain model-substituted pass-through
// for anthropic-format ones.
func buildUpstreamBody(provider models.ProviderConfig, bodyMap map[string]any, mappedModel string) ([]byte, error) {
	if provider.EffectiveFormat() != models.FormatOpenAI {
		copied := rectifier.DeepCopyBody(bodyMap)
		copied["model"] = mappedModel
		return json.Marshal(copied)
	}

	raw, err := json.Marshal(bodyMap)
	if err != nil {
		return nil, err
	}
	var areq models.AnthropicRequest
	if err := json.Unmarshal(raw, &areq); err != nil {
		return nil, err
	}
	areq.Model = mappedModel

	oreq := bridge.AnthropicToOpenAIRequest(areq)
	if bridge.ProviderLooksLikeGemini(provider.Name) {
		bridge.ApplyGeminiSchemaNormalization(oreq.Tools)
	}
	return json.Marshal(oreq)
}

// applyCredential sets the provider's credential header per spec.md
// section 3: Authorization gets a Bearer prefix (unless already present),
// any other header name carries the raw key.
func applyCredential(h http.Header, provider models.ProviderConfig) {
	name := provider.EffectiveAuthHeader()
	value := provider.APIKey
	if strings.EqualFold(name, "Authorization") && !strings.HasPrefix(value, "Bearer ") {
		value = "Bearer " + value
	}
	h.Set(name, value)
}

// handleProviderSuccess implements spec.md section 4.3 step 7: response
// translation on a 2xx upstream response, streaming or not.
func (e *Engine) handleProviderSuccess(w http.ResponseWriter, provider models.ProviderConfig, resp *http.Response, requestedModel string, clientStream bool) (result, bool) {
	openai := provider.EffectiveFormat() == models.FormatOpenAI

	if clientStream {
		defer resp.Body.Close()
		if openai {
			writer, werr := sse.NewWriter(w)
			if werr != nil {
				return result{failed: true}, true
			}
			if terr := bridge.TranslateOpenAIStream(resp.Body, writer, requestedModel); terr != nil {
				writer.Close()
				return result{failed: true}, true
			}
			writer.Close()
			return result{written: true}, false
		}
		if perr := streamPassthrough(w, resp.Body, resp.Header); perr != nil {
			return result{failed: true}, true
		}
		return result{written: true}, false
	}

	raw, rerr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if rerr != nil {
		return result{failed: true}, true
	}

	if !openai {
		return result{statusCode: resp.StatusCode, header: resp.Header, body: raw}, false
	}

	var oresp models.OpenAIResponse
	if err := json.Unmarshal(raw, &oresp); err != nil {
		return result{failed: true, statusCode: resp.StatusCode, header: resp.Header, body: raw}, true
	}
	aresp := bridge.OpenAIToAnthropicResponse(oresp, requestedModel)
	encoded, eerr := json.Marshal(aresp)
	if eerr != nil {
		return result{failed: true}, true
	}
	return result{statusCode: http.StatusOK, header: resp.Header, body: encoded}, false
}

// dispatchWithRetry implements spec.md section 4.3 step 5: retry on
// network error or 5xx, waiting 500*2^(attempt-1) ms between attempts, up
// to maxRetries additional tries beyond the first.
func (e *Engine) dispatchWithRetry(ctx context.Context, url string, header http.Header, body []byte, maxRetries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := e.dispatchOnce(ctx, url, header, body)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errFailedStatus(resp.StatusCode)
		}
		if attempt >= maxRetries {
			if err == nil {
				return resp, nil
			}
			return nil, lastErr
		}
		if err == nil {
			resp.Body.Close()
		}
		wait := time.Duration(500*(1<<attempt)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// dispatchOnce issues a single request bounded by the 30s abort timeout.
// The timeout's cancel func is wired to fire when the response body is
// closed, not when this function returns — otherwise a streaming response
// would be torn down before the caller ever reads it.
func (e *Engine) dispatchOnce(ctx context.Context, url string, header http.Header, body []byte) (*http.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, attemptTimeout)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, newBodyReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header = header.Clone()

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnCloseBody releases the per-attempt timeout context when the
// response body is closed, whether by a successful drain or an early
// abandonment.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

type statusError int

func (e statusError) Error() string { return "upstream returned a server error status" }

func errFailedStatus(code int) error { return statusError(code) }

package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ccfallback/internal/audit"
	"ccfallback/internal/authgate"
	"ccfallback/internal/logger"
	"ccfallback/internal/models"
	"ccfallback/internal/obs"
)

// primaryBreakerName is the circuit breaker's key for the real Anthropic
// endpoint, distinct from any configured fallback provider name.
const primaryBreakerName = "anthropic-primary"

// HandleMessages implements spec.md section 4.1's handleMessages(request)
// -> response: auth gate, debug skip, primary attempt, fallback chain,
// exhaustion policy. cfg is the AppConfig snapshot the caller already
// rebuilt from the KV store for this request.
func (e *Engine) HandleMessages(w http.ResponseWriter, r *http.Request, cfg models.AppConfig) {
	log := logger.WithComponent("routing")

	if !authgate.Authorize(r, cfg.AllowedTokens) {
		writeError(w, http.StatusUnauthorized, models.ErrTypeAuthentication, "missing or invalid x-ccf-api-key")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, models.ErrTypeProxyError, "failed to read request body")
		return
	}
	var bodyMap map[string]any
	if err := json.Unmarshal(rawBody, &bodyMap); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrTypeProxyError, "request body is not valid JSON")
		return
	}
	stream, _ := bodyMap["stream"].(bool)

	skipPrimary := authgate.ShouldSkipPrimary(r)
	routeCtx, routeSpan := obs.StartRouteSpan(r.Context(), hashClientToken(r), skipPrimary)
	defer routeSpan.End()
	ctx := routeCtx

	var lastFailure *result

	if !skipPrimary && !cfg.AnthropicPrimaryDisabled && e.Breaker.IsAvailable(ctx, primaryBreakerName, cfg.Debug) {
		res, disposition := e.tryPrimary(ctx, w, rawBody, r.Header, stream)
		switch disposition {
		case primarySuccess:
			_ = e.Breaker.MarkSuccess(ctx, primaryBreakerName)
			obs.SetWinningProvider(routeSpan, primaryBreakerName)
			e.Audit.Publish(audit.Event{Type: audit.EventPrimarySuccess, TimestampUnixMilli: time.Now().UnixMilli()})
			if !res.written {
				writeResult(w, res)
			}
			return
		case primaryTerminal:
			writeResult(w, res)
			return
		case primaryFailure:
			_ = e.Breaker.MarkFailed(ctx, primaryBreakerName, cfg.MaxCooldownSeconds)
			log.Warn("primary attempt failed, falling back", "status", res.statusCode)
			e.Audit.Publish(auditEventForPrimaryFailure(res.statusCode))
			captured := res
			lastFailure = &captured
		}
	}

	eligible := make(map[string]models.ProviderConfig, len(cfg.Providers))
	attemptedAny := false

	for _, provider := range cfg.Providers {
		if provider.Disabled {
			continue
		}
		eligible[provider.Name] = provider
		if !e.Breaker.IsAvailable(ctx, provider.Name, cfg.Debug) {
			continue
		}

		attemptedAny = true
		if done := e.runProviderAttempt(ctx, w, provider, bodyMap, r, cfg, stream, log, &lastFailure); done {
			return
		}
	}

	// Safety valve: every eligible provider was in cooldown. Rather than
	// give up outright, make one last-resort attempt against whichever one
	// has the earliest cooldownUntil, per SPEC_FULL.md's resolution of the
	// leastRecentlyFailed open question.
	if !attemptedAny && len(eligible) > 0 {
		names := make([]string, 0, len(eligible))
		for name := range eligible {
			names = append(names, name)
		}
		if picked, perr := e.Breaker.LeastRecentlyFailed(ctx, names); perr == nil && picked != "" {
			provider := eligible[picked]
			log.Warn("all providers in cooldown, using safety-valve pick", "provider", picked)
			if done := e.runProviderAttempt(ctx, w, provider, bodyMap, r, cfg, stream, log, &lastFailure); done {
				return
			}
		}
	}

	if lastFailure != nil && lastFailure.statusCode != 0 {
		e.Audit.Publish(audit.Event{Type: audit.EventFallbackExhausted, TimestampUnixMilli: time.Now().UnixMilli(), StatusCode: lastFailure.statusCode})
		writeResult(w, *lastFailure)
		return
	}

	if skipPrimary && len(cfg.Providers) == 0 {
		writeError(w, http.StatusBadGateway, models.ErrTypeProxyError, "no providers configured and primary was skipped")
		return
	}
	e.Audit.Publish(audit.Event{Type: audit.EventFallbackExhausted, TimestampUnixMilli: time.Now().UnixMilli()})
	writeError(w, http.StatusBadGateway, models.ErrTypeFallbackExhausted, "every upstream provider failed")
}

// auditEventForPrimaryFailure resolves spec.md section 9's open question
// about 401/403-at-primary-then-fallback-succeeds visibility: that
// specific case gets its own distinct event type rather than blending
// into the generic failure event, per SPEC_FULL.md section 9.
func auditEventForPrimaryFailure(statusCode int) audit.Event {
	eventType := audit.EventPrimaryFailedFallback
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		eventType = audit.EventPrimaryAuthFailedFallback
	}
	return audit.Event{Type: eventType, TimestampUnixMilli: time.Now().UnixMilli(), StatusCode: statusCode}
}

// runProviderAttempt calls tryProvider for one fallback and folds its
// outcome into the shared lastFailure pointer. It returns true when the
// caller should stop processing entirely (a response has already been
// produced for the client).
func (e *Engine) runProviderAttempt(ctx context.Context, w http.ResponseWriter, provider models.ProviderConfig, bodyMap map[string]any, r *http.Request, cfg models.AppConfig, stream bool, log *slog.Logger, lastFailure **result) bool {
	attemptCtx, span := obs.StartProviderAttemptSpan(ctx, provider.Name, string(provider.EffectiveFormat()), 1, "")
	defer span.End()

	res, failed := e.tryProvider(attemptCtx, w, provider, bodyMap, r.Header, cfg, stream)
	if !failed {
		_ = e.Breaker.MarkSuccess(ctx, provider.Name)
		e.Audit.Publish(audit.Event{Type: audit.EventFallbackSuccess, TimestampUnixMilli: time.Now().UnixMilli(), Provider: provider.Name})
		if !res.written {
			writeResult(w, res)
		}
		return true
	}
	_ = e.Breaker.MarkFailed(ctx, provider.Name, cfg.MaxCooldownSeconds)
	log.Warn("provider attempt failed", "provider", provider.Name, "status", res.statusCode)
	captured := res
	*lastFailure = &captured
	return false
}

// hashClientToken fingerprints the ingress token for span attributes
// without putting the credential itself into trace data.
func hashClientToken(r *http.Request) string {
	token := r.Header.Get(authgate.HeaderClientToken)
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

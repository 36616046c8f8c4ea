// Package routing implements the routing engine and provider attempt from
// spec.md sections 4.1 and 4.3: primary-then-fallback orchestration with
// breaker checks, and the per-provider dispatch/retry/rectifier/translate
// pipeline. Grounded on the teacher's internal/api/handlers.go (HTTP
// dispatch and io.Pipe streaming idiom) and internal/provider/adapter.go
// (retry/timeout configuration shapes), generalized to the spec's
// primary+fallback-chain semantics.
package routing

import (
	"net/http"
	"time"

	"ccfallback/internal/audit"
	"ccfallback/internal/breaker"
)

// Engine holds the dependencies the routing engine and provider attempt
// need: the circuit breaker and the HTTP client used for every upstream
// dispatch (primary and fallback alike).
type Engine struct {
	Breaker        *breaker.Breaker
	HTTPClient     *http.Client
	PrimaryBaseURL string
	Audit          audit.Sink
}

// NewEngine constructs an Engine with a plain http.Client that carries no
// timeout of its own. The spec's 30s per-attempt abort timeout
// (attemptTimeout) is applied via context in attempt.go and primary.go, so
// it governs the whole round trip including header exchange and body read.
// Audit defaults to a no-op sink; callers wire a *audit.KafkaSink in when
// CCFALLBACK_KAFKA_BROKERS is configured.
func NewEngine(b *breaker.Breaker) *Engine {
	return &Engine{
		Breaker:        b,
		HTTPClient:     &http.Client{},
		PrimaryBaseURL: "https://api.anthropic.com/v1/messages",
		Audit:          audit.NoopSink{},
	}
}

// attemptTimeout is the hard abort deadline for a single upstream fetch,
// per spec.md section 4.1/4.3/5: "30s abort timeout" regardless of whether
// the caller is streaming.
const attemptTimeout = 30 * time.Second

// result is what one dispatch (primary or a single provider) produced.
// written is true when the attempt already streamed its translated body
// straight to the client's http.ResponseWriter (the only way to honor
// "piped without materialization" for a successful streaming response);
// in that case statusCode/header/body are meaningless to the caller.
type result struct {
	written    bool
	failed     bool
	statusCode int
	header     http.Header
	body       []byte
}

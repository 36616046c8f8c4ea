package routing

import (
	"context"
	"io"
	"net/http"

	"ccfallback/internal/headers"
)

// primaryDisposition classifies how the primary attempt terminated, per
// spec.md section 4.1 step 3 and section 7's error taxonomy.
type primaryDisposition int

const (
	// primarySuccess: 2xx, already written or buffered in res.
	primarySuccess primaryDisposition = iota
	// primaryTerminal: a client-fatal 4xx outside {401,403,429} — returned
	// verbatim, no fallback, no breaker update.
	primaryTerminal
	// primaryFailure: 401/403/429, 5xx, or a network error/timeout — marks
	// the breaker failed and falls through to the fallback chain.
	primaryFailure
)

// tryPrimary implements spec.md section 4.1 step 3: a single, un-retried
// call to the real Anthropic endpoint, body and headers forwarded as-is
// apart from the inbound-to-upstream header sieve.
func (e *Engine) tryPrimary(ctx context.Context, w http.ResponseWriter, rawBody []byte, clientHeaders http.Header, stream bool) (result, primaryDisposition) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.PrimaryBaseURL, newBodyReader(rawBody))
	if err != nil {
		return result{failed: true}, primaryFailure
	}
	req.Header = headers.SieveInboundToUpstream(clientHeaders)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return result{failed: true}, primaryFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if stream {
			if perr := streamPassthrough(w, resp.Body, resp.Header); perr != nil {
				return result{failed: true}, primaryFailure
			}
			return result{written: true}, primarySuccess
		}
		body, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return result{failed: true}, primaryFailure
		}
		return result{statusCode: resp.StatusCode, header: resp.Header, body: body}, primarySuccess
	}

	body, _ := io.ReadAll(resp.Body)
	res := result{failed: true, statusCode: resp.StatusCode, header: resp.Header, body: body}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return res, primaryFailure
	}
	if resp.StatusCode >= 500 {
		return res, primaryFailure
	}
	if resp.StatusCode >= 400 {
		return res, primaryTerminal
	}
	// Anything else (redirect, informational) is treated as a terminal
	// pass-through rather than guessed at.
	return res, primaryTerminal
}

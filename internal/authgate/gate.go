// Package authgate implements the ingress auth gate from spec.md section
// 4.6: a constant-time allow-list check on the x-ccf-api-key header,
// grounded on the teacher's middleware.Authenticator (which performs the
// analogous check for its own ingress API key header).
package authgate

import (
	"crypto/subtle"
	"net/http"

	"ccfallback/internal/models"
)

const (
	// HeaderClientToken is the client-facing ingress token header.
	HeaderClientToken = "x-ccf-api-key"
	// HeaderDebugSkipPrimary and its legacy alias route straight to the
	// fallback chain, per spec.md section 4.1 step 2.
	HeaderDebugSkipPrimary      = "x-ccf-debug-skip-anthropic"
	HeaderDebugSkipPrimaryAlias = "x-ccfallback-debug-skip-anthropic"
)

// Authorize checks r against the allow-list. An empty allow-list means
// unauthenticated access is permitted, per spec.md section 4.6. It returns
// true when the request may proceed.
func Authorize(r *http.Request, allowed []models.Token) bool {
	if len(allowed) == 0 {
		return true
	}
	presented := r.Header.Get(HeaderClientToken)
	if presented == "" {
		return false
	}
	for _, tok := range allowed {
		if constantTimeEqual(presented, tok.Token) {
			return true
		}
	}
	return false
}

// ShouldSkipPrimary reports whether the request carries the debug header
// (or its legacy alias) that routes directly to the fallback chain.
func ShouldSkipPrimary(r *http.Request) bool {
	return r.Header.Get(HeaderDebugSkipPrimary) == "1" || r.Header.Get(HeaderDebugSkipPrimaryAlias) == "1"
}

func constantTimeEqual(a, b string) bool {
	// subtle.ConstantTimeCompare returns 0 at once on mismatched lengths;
	// the explicit length check below only reveals token length, not content.
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Package headers implements the header sieve described in spec.md
// section 4.6: two drop-list profiles applied when forwarding headers
// between the client and an upstream, grounded on the teacher's header
// handling in internal/middleware and internal/provider/*/adapter.go
// (each adapter sets a narrow, explicit header set rather than forwarding
// everything blind).
package headers

import (
	"net/http"
	"strings"
)

// inboundToUpstream drops hop-by-hop headers plus ccfallback's own
// internal control headers and credential headers before a request is
// forwarded to any upstream.
var inboundToUpstream = map[string]struct{}{
	"connection":        {},
	"keep-alive":        {},
	"te":                {},
	"trailer":           {},
	"transfer-encoding":  {},
	"upgrade":           {},
	"host":              {},
	"content-length":    {},
	"x-api-key":         {},
	"authorization":     {},
	"x-ccf-api-key":     {},
	"accept-encoding":   {},
}

// upstreamToClient drops headers that describe the upstream's own
// transport framing, which must not leak through to the client verbatim.
var upstreamToClient = map[string]struct{}{
	"content-length":    {},
	"content-encoding":  {},
	"transfer-encoding": {},
	"connection":        {},
	"keep-alive":        {},
	"te":                {},
	"trailer":           {},
	"upgrade":           {},
	"host":              {},
}

// internalControlPrefixes are dropped from inbound-to-upstream regardless
// of the exact suffix, per spec.md section 4.6 ("x-ccf-*, x-ccfallback-*").
var internalControlPrefixes = []string{"x-ccf-", "x-ccfallback-"}

func isDropped(name string, set map[string]struct{}) bool {
	lower := strings.ToLower(name)
	if _, ok := set[lower]; ok {
		return true
	}
	for _, prefix := range internalControlPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// SieveInboundToUpstream returns a copy of src with every inbound-to-upstream
// dropped header removed. Comparisons are case-insensitive; the header
// names that survive keep their original case.
func SieveInboundToUpstream(src http.Header) http.Header {
	return sieve(src, inboundToUpstream)
}

// SieveUpstreamToClient returns a copy of src with every upstream-to-client
// dropped header removed.
func SieveUpstreamToClient(src http.Header) http.Header {
	return sieve(src, upstreamToClient)
}

func sieve(src http.Header, dropSet map[string]struct{}) http.Header {
	out := make(http.Header, len(src))
	for name, values := range src {
		if isDropped(name, dropSet) {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// CopyToResponse writes the sieved headers onto an http.ResponseWriter's
// header map, used after an upstream response is received.
func CopyToResponse(dst http.ResponseWriter, src http.Header) {
	cleaned := SieveUpstreamToClient(src)
	for name, values := range cleaned {
		for _, v := range values {
			dst.Header().Add(name, v)
		}
	}
}

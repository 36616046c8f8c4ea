// Package admin implements the thin CRUD HTTP surface over the KV store
// described in spec.md section 6: configuration, tokens, settings,
// primary-disable flag, breaker observability, rectifier flags, and the
// provider test endpoint. Grounded on the teacher's internal/admin
// package (Handlers, writeJSON, per-resource handler files registered
// onto one mux) but narrowed from rad-gateway's full workspace/project
// CRUD surface to the flat, KV-backed resource set this spec defines.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"ccfallback/internal/adminauthz"
	"ccfallback/internal/breaker"
	"ccfallback/internal/kvstore"
	"ccfallback/internal/logger"
)

// Handlers bundles everything the admin surface needs: the KV store
// every resource reads and writes, the breaker for provider-state
// observability/reset, the auth gate, and an HTTP client for
// test-provider's outbound probes.
type Handlers struct {
	store      kvstore.Store
	breaker    *breaker.Breaker
	authz      *adminauthz.Authorizer
	httpClient *http.Client
	log        *slog.Logger
}

// NewHandlers builds the admin Handlers. authz must not be nil; its
// Authenticate/Authorize methods gate every route registered here.
func NewHandlers(store kvstore.Store, b *breaker.Breaker, authz *adminauthz.Authorizer, httpClient *http.Client) *Handlers {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Handlers{
		store:      store,
		breaker:    b,
		authz:      authz,
		httpClient: httpClient,
		log:        logger.WithComponent("admin"),
	}
}

// Register wires every admin route from spec.md section 6 onto mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/config", h.gate("config", h.handleConfig))
	mux.HandleFunc("/admin/tokens", h.gate("tokens", h.handleTokens))
	mux.HandleFunc("/admin/settings", h.gate("settings", h.handleSettings))
	mux.HandleFunc("/admin/anthropic-status", h.gate("anthropic-status", h.handleAnthropicStatus))
	mux.HandleFunc("/admin/provider-states", h.gate("provider-states", h.handleProviderStates))
	mux.HandleFunc("/admin/provider-states/", h.gate("provider-states", h.handleProviderStateReset))
	mux.HandleFunc("/admin/rectifier", h.gate("rectifier", h.handleRectifier))
	mux.HandleFunc("/admin/test-provider", h.gate("test-provider", h.handleTestProvider))
}

// gate wraps next with the bearer/JWT Authenticate check and the optional
// Cedar Authorize check, mapping the HTTP method to the admin::read or
// admin::write action per SPEC_FULL.md section 4.9.
func (h *Handlers) gate(resource string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := h.authz.Authenticate(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		action := adminauthz.ActionRead
		if r.Method != http.MethodGet {
			action = adminauthz.ActionWrite
		}
		if !h.authz.Authorize(principal, action, resource) {
			h.log.Warn("admin: cedar denied action", "principal", principal, "action", action, "resource", resource)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

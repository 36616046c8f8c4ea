package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/models"
)

type providerStateEntry struct {
	Name string `json:"name"`
	models.ProviderState
}

// handleProviderStates implements GET /admin/provider-states: breaker
// observability across every configured provider plus the synthetic
// anthropic-primary breaker, per spec.md section 6.
func (h *Handlers) handleProviderStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	names := h.configuredProviderNames(r)
	names = append([]string{"anthropic-primary"}, names...)

	entries := make([]providerStateEntry, 0, len(names))
	for _, name := range names {
		state, err := h.breaker.State(r.Context(), name)
		if err != nil {
			h.log.Warn("admin: failed to read provider state", "provider", name, "error", err.Error())
			continue
		}
		entries = append(entries, providerStateEntry{Name: name, ProviderState: state})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleProviderStateReset implements POST
// /admin/provider-states/:name/reset.
func (h *Handlers) handleProviderStateReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/admin/provider-states/")
	name := strings.TrimSuffix(path, "/reset")
	if name == "" || name == path {
		badRequest(w, "expected /admin/provider-states/:name/reset")
		return
	}
	if err := h.breaker.Reset(r.Context(), name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset provider state"})
		return
	}
	h.log.Info("admin: provider state reset", "provider", name)
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "status": "reset"})
}

func (h *Handlers) configuredProviderNames(r *http.Request) []string {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyProviders)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var providers []models.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		return nil
	}
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}
	return names
}

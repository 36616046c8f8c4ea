package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/models"
)

// handleConfig implements GET/POST /admin/config: the ordered
// ProviderConfig array, per spec.md section 6. Providers are stored and
// returned in the exact order submitted — that order is the fallback
// priority.
func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getConfig(w, r)
	case http.MethodPost:
		h.postConfig(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyProviders)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read providers"})
		return
	}
	if !ok || raw == "" {
		writeJSON(w, http.StatusOK, []models.ProviderConfig{})
		return
	}
	var providers []models.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stored providers are malformed"})
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

func (h *Handlers) postConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var providers []models.ProviderConfig
	if err := json.Unmarshal(body, &providers); err != nil {
		badRequest(w, "body must be a JSON array of ProviderConfig")
		return
	}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	raw, err := json.Marshal(providers)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode providers"})
		return
	}
	if err := h.store.Put(r.Context(), kvstore.KeyProviders, string(raw), 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist providers"})
		return
	}
	h.log.Info("admin: providers updated", "count", len(providers))
	writeJSON(w, http.StatusOK, providers)
}

package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/models"
)

// handleRectifier implements GET/POST /admin/rectifier: the master
// switch and three feature flags from spec.md section 3.
func (h *Handlers) handleRectifier(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getRectifier(w, r)
	case http.MethodPost:
		h.postRectifier(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handlers) getRectifier(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyRectifierConfig)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read rectifier config"})
		return
	}
	if !ok || raw == "" {
		writeJSON(w, http.StatusOK, models.DefaultRectifierConfig())
		return
	}
	var cfg models.RectifierConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stored rectifier config is malformed"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) postRectifier(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var cfg models.RectifierConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		badRequest(w, "body must be a rectifier config object")
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode rectifier config"})
		return
	}
	if err := h.store.Put(r.Context(), kvstore.KeyRectifierConfig, string(raw), 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist rectifier config"})
		return
	}
	h.log.Info("admin: rectifier config updated", "enabled", cfg.Enabled)
	writeJSON(w, http.StatusOK, cfg)
}

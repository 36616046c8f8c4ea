package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"ccfallback/internal/kvstore"
)

type anthropicStatusBody struct {
	Disabled bool `json:"disabled"`
}

// handleAnthropicStatus implements GET/POST /admin/anthropic-status: the
// manual override that skips the primary attempt entirely, per spec.md
// section 4.1 step 2.
func (h *Handlers) handleAnthropicStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getAnthropicStatus(w, r)
	case http.MethodPost:
		h.postAnthropicStatus(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handlers) getAnthropicStatus(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyAnthropicPrimaryDisabled)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read status"})
		return
	}
	writeJSON(w, http.StatusOK, anthropicStatusBody{Disabled: ok && raw == "true"})
}

func (h *Handlers) postAnthropicStatus(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var parsed anthropicStatusBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		badRequest(w, "body must be {disabled: bool}")
		return
	}
	value := "false"
	if parsed.Disabled {
		value = "true"
	}
	if err := h.store.Put(r.Context(), kvstore.KeyAnthropicPrimaryDisabled, value, 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist status"})
		return
	}
	h.log.Info("admin: anthropic primary status updated", "disabled", parsed.Disabled)
	writeJSON(w, http.StatusOK, parsed)
}

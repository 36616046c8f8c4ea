package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"ccfallback/internal/kvstore"
)

type settingsBody struct {
	CooldownDuration int `json:"cooldownDuration"`
}

// handleSettings implements GET/POST /admin/settings: the
// cooldownDuration used as CooldownSeconds' maxCooldownSec cap.
func (h *Handlers) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPost:
		h.postSettings(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyCooldownDuration)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read settings"})
		return
	}
	seconds := 300
	if ok && raw != "" {
		if v, perr := strconv.Atoi(raw); perr == nil {
			seconds = v
		}
	}
	writeJSON(w, http.StatusOK, settingsBody{CooldownDuration: seconds})
}

func (h *Handlers) postSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var parsed settingsBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		badRequest(w, "body must be {cooldownDuration: seconds}")
		return
	}
	if parsed.CooldownDuration < 0 {
		badRequest(w, "cooldownDuration must be a non-negative integer")
		return
	}
	if err := h.store.Put(r.Context(), kvstore.KeyCooldownDuration, strconv.Itoa(parsed.CooldownDuration), 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist settings"})
		return
	}
	h.log.Info("admin: cooldown duration updated", "seconds", parsed.CooldownDuration)
	writeJSON(w, http.StatusOK, parsed)
}

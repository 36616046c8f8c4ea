package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/models"
)

// noteValidPattern is spec.md section 6's allow-list note constraint.
var noteValidPattern = regexp.MustCompile(`^[A-Za-z0-9 -]*$`)

// handleTokens implements GET/POST /admin/tokens.
func (h *Handlers) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getTokens(w, r)
	case http.MethodPost:
		h.postTokens(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handlers) getTokens(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.store.Get(r.Context(), kvstore.KeyAllowedTokens)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read tokens"})
		return
	}
	if !ok || raw == "" {
		writeJSON(w, http.StatusOK, []models.Token{})
		return
	}
	var tokens []models.Token
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stored tokens are malformed"})
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handlers) postTokens(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	var tokens []models.Token
	if err := json.Unmarshal(body, &tokens); err != nil {
		badRequest(w, "body must be a JSON array of {token, note}")
		return
	}
	for _, tok := range tokens {
		if tok.Token == "" {
			badRequest(w, "token must not be empty")
			return
		}
		if !noteValidPattern.MatchString(tok.Note) {
			badRequest(w, "note must match ^[A-Za-z0-9 -]*$")
			return
		}
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode tokens"})
		return
	}
	if err := h.store.Put(r.Context(), kvstore.KeyAllowedTokens, string(raw), 0); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist tokens"})
		return
	}
	h.log.Info("admin: allowed tokens updated", "count", len(tokens))
	writeJSON(w, http.StatusOK, tokens)
}

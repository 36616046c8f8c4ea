package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ccfallback/internal/adminauthz"
	"ccfallback/internal/breaker"
	"ccfallback/internal/kvstore"
	"ccfallback/internal/models"
)

func newTestHandlers(t *testing.T) (*Handlers, *http.ServeMux) {
	t.Helper()
	store := kvstore.NewMemory()
	b := breaker.New(store)
	authz := adminauthz.New("admin-secret", nil, nil)
	h := NewHandlers(store, b, authz, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	return h, mux
}

func doAdminRequest(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path+"?token=admin-secret", reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminRejectsMissingToken(t *testing.T) {
	_, mux := newTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminConfigRoundTrip(t *testing.T) {
	_, mux := newTestHandlers(t)

	providers := []models.ProviderConfig{
		{Name: "fallback-a", BaseURL: "https://a.example", APIKey: "k1", Format: models.FormatAnthropic},
	}
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/config", providers)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /admin/config status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doAdminRequest(t, mux, http.MethodGet, "/admin/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /admin/config status = %d", rec.Code)
	}
	var got []models.ProviderConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "fallback-a" {
		t.Fatalf("got %+v, want one provider named fallback-a", got)
	}
}

func TestAdminConfigRejectsInvalidProvider(t *testing.T) {
	_, mux := newTestHandlers(t)
	providers := []models.ProviderConfig{{Name: "", BaseURL: "https://a.example", APIKey: "k1"}}
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/config", providers)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a provider missing name", rec.Code)
	}
}

func TestAdminTokensRejectsInvalidNote(t *testing.T) {
	_, mux := newTestHandlers(t)
	tokens := []models.Token{{Token: "tok1", Note: "has a bad char: *"}}
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/tokens", tokens)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an invalid note", rec.Code)
	}
}

func TestAdminTokensRoundTrip(t *testing.T) {
	_, mux := newTestHandlers(t)
	tokens := []models.Token{{Token: "tok1", Note: "ci key"}}
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/tokens", tokens)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /admin/tokens status = %d", rec.Code)
	}
	rec = doAdminRequest(t, mux, http.MethodGet, "/admin/tokens", nil)
	var got []models.Token
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Token != "tok1" {
		t.Fatalf("got %+v", got)
	}
}

func TestAdminSettingsDefaultsTo300(t *testing.T) {
	_, mux := newTestHandlers(t)
	rec := doAdminRequest(t, mux, http.MethodGet, "/admin/settings", nil)
	var got settingsBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CooldownDuration != 300 {
		t.Errorf("default cooldownDuration = %d, want 300", got.CooldownDuration)
	}
}

func TestAdminSettingsRejectsNegative(t *testing.T) {
	_, mux := newTestHandlers(t)
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/settings", settingsBody{CooldownDuration: -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a negative cooldownDuration", rec.Code)
	}
}

func TestAdminAnthropicStatusRoundTrip(t *testing.T) {
	_, mux := newTestHandlers(t)
	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/anthropic-status", anthropicStatusBody{Disabled: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}
	rec = doAdminRequest(t, mux, http.MethodGet, "/admin/anthropic-status", nil)
	var got anthropicStatusBody
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Disabled {
		t.Error("expected disabled=true to round-trip")
	}
}

func TestAdminRectifierDefaultsAllEnabled(t *testing.T) {
	_, mux := newTestHandlers(t)
	rec := doAdminRequest(t, mux, http.MethodGet, "/admin/rectifier", nil)
	var got models.RectifierConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Enabled || !got.RequestThinkingSignature || !got.RequestThinkingBudget || !got.RequestToolUseConcurrency {
		t.Errorf("got %+v, want the safe-default rectifier config", got)
	}
}

func TestAdminProviderStatesIncludesPrimary(t *testing.T) {
	_, mux := newTestHandlers(t)
	rec := doAdminRequest(t, mux, http.MethodGet, "/admin/provider-states", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []providerStateEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "anthropic-primary" {
		t.Fatalf("got %+v, want just anthropic-primary with no providers configured", got)
	}
}

func TestAdminProviderStateReset(t *testing.T) {
	h, mux := newTestHandlers(t)
	ctx := context.Background()
	_ = h.breaker.MarkFailed(ctx, "anthropic-primary", 300)

	rec := doAdminRequest(t, mux, http.MethodPost, "/admin/provider-states/anthropic-primary/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	state, err := h.breaker.State(ctx, "anthropic-primary")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after reset", state.ConsecutiveFailures)
	}
}

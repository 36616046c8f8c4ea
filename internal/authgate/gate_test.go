package authgate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ccfallback/internal/models"
)

func TestAuthorizeEmptyAllowListPermitsAll(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	if !Authorize(r, nil) {
		t.Fatal("empty allow-list should permit unauthenticated access")
	}
}

func TestAuthorizeRejectsMissingToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	allowed := []models.Token{{Token: "secret-1"}}
	if Authorize(r, allowed) {
		t.Fatal("request without a token should be rejected when allow-list is non-empty")
	}
}

func TestAuthorizeRejectsWrongToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set(HeaderClientToken, "wrong")
	allowed := []models.Token{{Token: "secret-1"}}
	if Authorize(r, allowed) {
		t.Fatal("request with wrong token should be rejected")
	}
}

func TestAuthorizeAcceptsMatchingToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r.Header.Set(HeaderClientToken, "secret-1")
	allowed := []models.Token{{Token: "other"}, {Token: "secret-1"}}
	if !Authorize(r, allowed) {
		t.Fatal("request with matching token should be accepted")
	}
}

func TestShouldSkipPrimaryHeaderAndAlias(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	if ShouldSkipPrimary(r) {
		t.Fatal("request without debug header should not skip primary")
	}

	r.Header.Set(HeaderDebugSkipPrimary, "1")
	if !ShouldSkipPrimary(r) {
		t.Fatal("x-ccf-debug-skip-anthropic: 1 should skip primary")
	}

	r2 := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r2.Header.Set(HeaderDebugSkipPrimaryAlias, "1")
	if !ShouldSkipPrimary(r2) {
		t.Fatal("legacy alias header should also skip primary")
	}
}

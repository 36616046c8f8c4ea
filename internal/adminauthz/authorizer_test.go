package adminauthz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticateStaticTokenViaQuery(t *testing.T) {
	a := New("secret-token", nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/admin/config?token=secret-token", nil)

	principal, ok := a.Authenticate(r)
	if !ok || principal == "" {
		t.Fatalf("Authenticate() = (%q, %v), want ok with a principal", principal, ok)
	}
}

func TestAuthenticateStaticTokenViaBearerHeader(t *testing.T) {
	a := New("secret-token", nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	r.Header.Set("Authorization", "Bearer secret-token")

	if _, ok := a.Authenticate(r); !ok {
		t.Error("Authenticate() should accept a matching Bearer header")
	}
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	a := New("secret-token", nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/admin/config?token=wrong", nil)

	if _, ok := a.Authenticate(r); ok {
		t.Error("Authenticate() should reject a non-matching token")
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	a := New("secret-token", nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/admin/config", nil)

	if _, ok := a.Authenticate(r); ok {
		t.Error("Authenticate() should reject a request with no token at all")
	}
}

func TestAuthenticateFallsBackToJWT(t *testing.T) {
	jwtVerifier := NewJWTVerifier("jwt-secret")
	token, err := jwtVerifier.IssueForTests("operator-7", time.Hour)
	if err != nil {
		t.Fatalf("IssueForTests: %v", err)
	}

	a := New("secret-token", jwtVerifier, nil)
	r := httptest.NewRequest(http.MethodGet, "/admin/config?token="+token, nil)

	principal, ok := a.Authenticate(r)
	if !ok {
		t.Fatal("Authenticate() should accept a valid admin JWT when the static token doesn't match")
	}
	if principal != "operator-7" {
		t.Errorf("principal = %q, want operator-7", principal)
	}
}

func TestAuthorizeWithNilPDPAlwaysAllows(t *testing.T) {
	a := New("secret-token", nil, nil)
	if !a.Authorize("admin-token", ActionWrite, "config") {
		t.Error("Authorize() with no PDP configured should allow")
	}
}

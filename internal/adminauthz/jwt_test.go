package adminauthz

import (
	"testing"
	"time"
)

func TestNewJWTVerifierNilOnEmptySecret(t *testing.T) {
	if v := NewJWTVerifier(""); v != nil {
		t.Fatalf("NewJWTVerifier(\"\") = %v, want nil", v)
	}
}

func TestNilVerifierAlwaysRejects(t *testing.T) {
	var v *JWTVerifier
	if _, err := v.Verify("anything"); err == nil {
		t.Error("nil verifier should reject every token")
	}
	if _, err := v.IssueForTests("sub", time.Minute); err == nil {
		t.Error("nil verifier should refuse to issue tokens")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.IssueForTests("operator-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueForTests: %v", err)
	}

	sub, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "operator-1" {
		t.Errorf("subject = %q, want operator-1", sub)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.IssueForTests("operator-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueForTests: %v", err)
	}
	if _, err := v.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTVerifier("secret-a")
	token, err := issuer.IssueForTests("operator-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueForTests: %v", err)
	}

	verifier := NewJWTVerifier("secret-b")
	if _, err := verifier.Verify(token); err == nil {
		t.Error("expected token signed with a different secret to be rejected")
	}
}

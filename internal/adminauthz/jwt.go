// Package adminauthz implements the optional authorization depth layered
// on top of spec.md section 6's required ADMIN_TOKEN bearer check: a
// signed admin JWT accepted as an alternative credential, and a Cedar
// policy evaluated per admin action when a policy set is configured.
// Grounded on the teacher's internal/auth/jwt.go (JWTManager) and
// internal/auth/cedar.PolicyDecisionPoint, narrowed from rad-gateway's
// user/workspace/permission model to the admin subsystem's single
// resource set.
package adminauthz

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims identifies the admin session a JWT was issued for. Unlike
// the teacher's end-user Claims, there is no workspace or permission
// list — admin JWTs are all-or-nothing, matching spec.md's bearer-token
// semantics.
type AdminClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTVerifier validates admin session tokens signed with a shared
// secret. A nil *JWTVerifier is valid and always rejects, so callers can
// leave the JWT layer unconfigured without a nil check at every call
// site.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns nil when secret is empty, per
// CCFALLBACK_ADMIN_JWT_SECRET being optional.
func NewJWTVerifier(secret string) *JWTVerifier {
	if secret == "" {
		return nil
	}
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates tokenString, returning the subject claim
// on success.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("adminauthz: jwt verification not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid admin token: %w", err)
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid admin token claims")
	}
	return claims.Subject, nil
}

// IssueForTests mints a short-lived token for the given subject. It
// exists for test setup only — the admin surface has no token-issuance
// endpoint of its own, since CCFALLBACK_ADMIN_JWT_SECRET is meant to be
// provisioned out of band.
func (v *JWTVerifier) IssueForTests(subject string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", fmt.Errorf("adminauthz: jwt verification not configured")
	}
	now := time.Now()
	claims := AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

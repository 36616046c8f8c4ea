// Package kvstore provides the opaque string-to-string, TTL-capable
// persistence adapter described in spec.md section 6 ("persisted state")
// and section 2's "KV store adapter" leaf component. The routing engine,
// circuit breaker, and admin subsystem all address it purely by key; none
// of them know or care which backend is behind it.
package kvstore

import (
	"context"
	"time"
)

// Store is the opaque KV interface every other component depends on.
// Implementations: Memory (tests / last-resort fallback), SQLite (default persistence),
// Postgres (clustered persistence), Redis (shared cache for multi-instance
// breaker state).
type Store interface {
	// Get returns the value and true, or "", false if absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key. ttl <= 0 means no expiration.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any underlying resources.
	Close() error
}

// Keys used by the persisted config and breaker state, per spec.md
// section 6.
const (
	KeyProviders                = "providers"
	KeyAllowedTokens            = "allowed_tokens"
	KeyCooldownDuration         = "cooldown_duration"
	KeyAnthropicPrimaryDisabled = "anthropic_primary_disabled"
	KeyRectifierConfig          = "rectifier_config"
)

// ProviderStateKey returns the "provider-state:<name>" key for a provider.
func ProviderStateKey(name string) string {
	return "provider-state:" + name
}

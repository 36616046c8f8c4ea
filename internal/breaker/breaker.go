// Package breaker implements the per-provider circuit breaker described in
// spec.md section 4.2: a persisted failure counter with tiered exponential
// cooldown, read/write against the KV store rather than held in memory —
// generalized from the teacher's in-memory provider.CircuitBreaker to the
// spec's stateless, multi-instance-safe design.
package breaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ccfallback/internal/kvstore"
	"ccfallback/internal/logger"
	"ccfallback/internal/models"
)

// Breaker reads and writes ProviderState against a kvstore.Store.
type Breaker struct {
	store kvstore.Store
}

// New creates a Breaker backed by store.
func New(store kvstore.Store) *Breaker {
	return &Breaker{store: store}
}

// CooldownSeconds implements the tiered cooldown table from spec.md
// section 4.2, capped at maxCooldownSec:
//
//	0-2 failures  -> 0
//	3-4 failures  -> min(30, max)
//	5-9 failures  -> min(60, max)
//	>=10 failures -> min(300, max)
func CooldownSeconds(consecutiveFailures, maxCooldownSec int) int {
	var tier int
	switch {
	case consecutiveFailures < 3:
		return 0
	case consecutiveFailures < 5:
		tier = 30
	case consecutiveFailures < 10:
		tier = 60
	default:
		tier = 300
	}
	if maxCooldownSec >= 0 && tier > maxCooldownSec {
		return maxCooldownSec
	}
	return tier
}

// readState loads ProviderState for a provider, returning a zero-value
// state when none is persisted yet.
func (b *Breaker) readState(ctx context.Context, name string) (models.ProviderState, error) {
	raw, ok, err := b.store.Get(ctx, kvstore.ProviderStateKey(name))
	if err != nil {
		return models.ProviderState{}, fmt.Errorf("reading breaker state for %q: %w", name, err)
	}
	if !ok {
		return models.ProviderState{}, nil
	}
	var state models.ProviderState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logger.WithComponent("breaker").Warn("malformed provider state, treating as fresh", "provider", name, "error", err.Error())
		return models.ProviderState{}, nil
	}
	return state, nil
}

func (b *Breaker) writeState(ctx context.Context, name string, state models.ProviderState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling breaker state for %q: %w", name, err)
	}
	if err := b.store.Put(ctx, kvstore.ProviderStateKey(name), string(raw), 0); err != nil {
		return fmt.Errorf("writing breaker state for %q: %w", name, err)
	}
	return nil
}

// IsAvailable reports whether the provider may be attempted: the breaker
// is closed (no cooldown) or the cooldown has elapsed. debugBypass, when
// true, always returns true — the debug flag escape hatch from spec.md
// section 4.2.
func (b *Breaker) IsAvailable(ctx context.Context, name string, debugBypass bool) bool {
	if debugBypass {
		return true
	}
	state, err := b.readState(ctx, name)
	if err != nil {
		logger.WithComponent("breaker").Warn("failed to read state, assuming available", "provider", name, "error", err.Error())
		return true
	}
	if state.CooldownUntil == nil {
		return true
	}
	return nowMillis() >= *state.CooldownUntil
}

// State returns the raw persisted state for a provider, for admin
// observability (GET /admin/provider-states).
func (b *Breaker) State(ctx context.Context, name string) (models.ProviderState, error) {
	return b.readState(ctx, name)
}

// MarkFailed increments the failure counter and recomputes the cooldown
// per the tiered table, preserving lastSuccess.
func (b *Breaker) MarkFailed(ctx context.Context, name string, maxCooldownSec int) error {
	state, err := b.readState(ctx, name)
	if err != nil {
		return err
	}

	previousCooldown := state.CooldownUntil
	state.ConsecutiveFailures++
	now := nowMillis()
	state.LastFailure = &now

	cooldown := CooldownSeconds(state.ConsecutiveFailures, maxCooldownSec)
	if cooldown > 0 {
		until := now + int64(cooldown)*1000
		state.CooldownUntil = &until
	} else {
		state.CooldownUntil = nil
	}

	if err := b.writeState(ctx, name, state); err != nil {
		return err
	}

	log := logger.WithComponent("breaker")
	if previousCooldown == nil && state.CooldownUntil != nil {
		log.Warn("breaker opened", "provider", name, "consecutive_failures", state.ConsecutiveFailures, "cooldown_seconds", cooldown)
	} else {
		log.Debug("breaker recorded failure", "provider", name, "consecutive_failures", state.ConsecutiveFailures)
	}
	return nil
}

// MarkSuccess resets the provider's failure state entirely, per spec.md
// section 4.2's "a success always fully resets" invariant.
func (b *Breaker) MarkSuccess(ctx context.Context, name string) error {
	state, err := b.readState(ctx, name)
	if err != nil {
		return err
	}
	wasOpen := state.CooldownUntil != nil
	now := nowMillis()
	state = models.ProviderState{
		ConsecutiveFailures: 0,
		LastSuccess:         &now,
	}
	if err := b.writeState(ctx, name, state); err != nil {
		return err
	}
	if wasOpen {
		logger.WithComponent("breaker").Info("breaker closed", "provider", name)
	}
	return nil
}

// LeastRecentlyFailed is the safety-valve selector from spec.md section
// 4.2: among names, returns the one whose cooldownUntil is smallest
// (nil treated as 0), or "" if names is empty. Per SPEC_FULL.md's
// resolution of the corresponding Open Question, the routing engine wires
// this in as a last resort when every provider is in cooldown.
func (b *Breaker) LeastRecentlyFailed(ctx context.Context, names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	best := ""
	var bestUntil int64 = -1
	for _, name := range names {
		state, err := b.readState(ctx, name)
		if err != nil {
			return "", err
		}
		var until int64
		if state.CooldownUntil != nil {
			until = *state.CooldownUntil
		}
		if bestUntil == -1 || until < bestUntil {
			bestUntil = until
			best = name
		}
	}
	return best, nil
}

// Reset clears all persisted state for a provider, used by the admin
// endpoint POST /admin/provider-states/:name/reset.
func (b *Breaker) Reset(ctx context.Context, name string) error {
	return b.store.Delete(ctx, kvstore.ProviderStateKey(name))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

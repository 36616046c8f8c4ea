package breaker

import (
	"context"
	"testing"

	"ccfallback/internal/kvstore"
)

func TestCooldownSecondsTiers(t *testing.T) {
	cases := []struct {
		failures int
		max      int
		want     int
	}{
		{0, 300, 0},
		{1, 300, 0},
		{2, 300, 0},
		{3, 300, 30},
		{4, 300, 30},
		{5, 300, 60},
		{9, 300, 60},
		{10, 300, 300},
		{100, 300, 300},
		{5, 45, 45},
		{10, 10, 10},
	}
	for _, c := range cases {
		got := CooldownSeconds(c.failures, c.max)
		if got != c.want {
			t.Errorf("CooldownSeconds(%d, %d) = %d, want %d", c.failures, c.max, got, c.want)
		}
	}
}

func TestMarkFailedOpensBreakerAtThirdFailure(t *testing.T) {
	ctx := context.Background()
	b := New(kvstore.NewMemory())

	for i := 0; i < 2; i++ {
		if err := b.MarkFailed(ctx, "p1", 300); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}
	if !b.IsAvailable(ctx, "p1", false) {
		t.Fatal("breaker should remain closed below 3 failures")
	}

	if err := b.MarkFailed(ctx, "p1", 300); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if b.IsAvailable(ctx, "p1", false) {
		t.Fatal("breaker should open on the 3rd consecutive failure")
	}

	state, err := b.State(ctx, "p1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.ConsecutiveFailures != 3 {
		t.Fatalf("consecutiveFailures = %d, want 3", state.ConsecutiveFailures)
	}
	if state.CooldownUntil == nil {
		t.Fatal("cooldownUntil should be set once breaker opens")
	}
}

func TestMarkSuccessFullyResets(t *testing.T) {
	ctx := context.Background()
	b := New(kvstore.NewMemory())

	for i := 0; i < 10; i++ {
		_ = b.MarkFailed(ctx, "p1", 300)
	}
	if err := b.MarkSuccess(ctx, "p1"); err != nil {
		t.Fatalf("MarkSuccess: %v", err)
	}

	state, err := b.State(ctx, "p1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.ConsecutiveFailures != 0 {
		t.Fatalf("consecutiveFailures = %d, want 0", state.ConsecutiveFailures)
	}
	if state.CooldownUntil != nil {
		t.Fatal("cooldownUntil should be nil after success")
	}
	if state.LastSuccess == nil {
		t.Fatal("lastSuccess should be set after success")
	}
	if !b.IsAvailable(ctx, "p1", false) {
		t.Fatal("breaker should be available after success reset")
	}
}

func TestIsAvailableDebugBypass(t *testing.T) {
	ctx := context.Background()
	b := New(kvstore.NewMemory())
	for i := 0; i < 10; i++ {
		_ = b.MarkFailed(ctx, "p1", 300)
	}
	if !b.IsAvailable(ctx, "p1", true) {
		t.Fatal("debug bypass should always report available")
	}
}

func TestLeastRecentlyFailedPicksSmallestCooldown(t *testing.T) {
	ctx := context.Background()
	b := New(kvstore.NewMemory())

	for i := 0; i < 10; i++ {
		_ = b.MarkFailed(ctx, "high-cooldown", 300)
	}
	for i := 0; i < 3; i++ {
		_ = b.MarkFailed(ctx, "low-cooldown", 300)
	}
	// "fresh" has never failed; cooldownUntil is treated as 0, so it wins.
	got, err := b.LeastRecentlyFailed(ctx, []string{"high-cooldown", "low-cooldown", "fresh"})
	if err != nil {
		t.Fatalf("LeastRecentlyFailed: %v", err)
	}
	if got != "fresh" {
		t.Fatalf("LeastRecentlyFailed = %q, want %q", got, "fresh")
	}
}

func TestResetClearsState(t *testing.T) {
	ctx := context.Background()
	b := New(kvstore.NewMemory())
	for i := 0; i < 10; i++ {
		_ = b.MarkFailed(ctx, "p1", 300)
	}
	if err := b.Reset(ctx, "p1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !b.IsAvailable(ctx, "p1", false) {
		t.Fatal("breaker should be available after reset")
	}
}

package obs

import (
	"context"
	"testing"
)

func TestInitWithEmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "")
	if err != nil {
		t.Fatalf("Init(\"\") error = %v, want nil", err)
	}
	if shutdown == nil {
		t.Fatal("Init(\"\") returned a nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown() = %v, want nil", err)
	}
}

func TestSpanHelpersDoNotPanicWithoutInit(t *testing.T) {
	ctx, routeSpan := StartRouteSpan(context.Background(), "abcd1234", false)
	SetWinningProvider(routeSpan, "anthropic-primary")
	routeSpan.End()

	_, attemptSpan := StartProviderAttemptSpan(ctx, "fallback-a", "anthropic", 1, "")
	attemptSpan.End()
}

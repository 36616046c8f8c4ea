package audit

import "testing"

func TestNoopSinkDoesNothing(t *testing.T) {
	var s Sink = NoopSink{}
	s.Publish(Event{Type: EventPrimarySuccess})
	if err := s.Close(); err != nil {
		t.Errorf("NoopSink.Close() = %v, want nil", err)
	}
}

func TestEventTypesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, et := range []string{
		EventPrimarySuccess,
		EventPrimaryAuthFailedFallback,
		EventPrimaryFailedFallback,
		EventFallbackSuccess,
		EventFallbackExhausted,
	} {
		if seen[et] {
			t.Errorf("duplicate event type constant: %q", et)
		}
		seen[et] = true
	}
}

// Package audit implements the optional routing-outcome audit sink from
// SPEC_FULL.md section 4.8: best-effort publication of structured events
// to a Kafka topic. Grounded on the teacher's
// internal/messaging/kafka.Producer (itself a thin wrapper around
// IBM/sarama's async producer), narrowed to this package's single event
// topic and a publish-or-log-and-drop contract — publish failures never
// affect the response already sent to the client.
package audit

// Event types, per SPEC_FULL.md section 4.8/9. The
// primary_auth_failed_fallback_used type exists specifically to resolve
// spec.md's open question about 401/403-at-primary-then-fallback-succeeds
// visibility: rather than stay silent, that path is both logged at warn
// (see internal/routing) and published under this distinct type so
// operators can audit silent credential failovers after the fact.
const (
	EventPrimarySuccess            = "route:primary_success"
	EventPrimaryAuthFailedFallback = "route:primary_auth_failed_fallback_used"
	EventPrimaryFailedFallback     = "route:primary_failed_fallback_used"
	EventFallbackSuccess           = "route:fallback_success"
	EventFallbackExhausted         = "route:fallback_exhausted"
)

// Event is one routing outcome, published best-effort to the configured
// Sink.
type Event struct {
	Type              string `json:"type"`
	TimestampUnixMilli int64  `json:"timestampUnixMilli"`
	Provider          string `json:"provider,omitempty"`
	StatusCode        int    `json:"statusCode,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// Sink publishes routing-outcome events. Publish must never block the
// request path on a slow or unavailable broker for long, and must never
// return an error the caller is expected to act on beyond logging.
type Sink interface {
	Publish(event Event)
	Close() error
}

package audit

// NoopSink discards every event. Used when CCFALLBACK_KAFKA_BROKERS is
// unset, per SPEC_FULL.md section 4.8's "optional, off by default".
type NoopSink struct{}

func (NoopSink) Publish(Event) {}
func (NoopSink) Close() error  { return nil }

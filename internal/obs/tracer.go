// Package obs implements the optional OpenTelemetry tracing described in
// SPEC_FULL.md section 4.7: a span around every routing decision and
// provider attempt, off by default. Grounded on the teacher's
// internal/observability.Tracer (InitTracer/Tracer/StartTaskSpan),
// narrowed from the teacher's A2A task attributes to this spec's
// provider-attempt/breaker attributes.
package obs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ccfallback"

// Init wires a batching OTLP/gRPC exporter and installs it as the global
// tracer provider. Returns a no-op shutdown func and a nil error when
// endpoint is empty, so CCFALLBACK_OTLP_ENDPOINT being unset genuinely
// disables tracing rather than erroring at startup.
func Init(ctx context.Context, endpoint string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: creating otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", "ccfallback"),
	))
	if err != nil {
		return nil, fmt.Errorf("obs: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the package-wide tracer. Calling Start on it before Init
// (or when tracing is disabled) is safe and produces no-op spans, per
// OpenTelemetry's documented global-provider default.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartRouteSpan opens the ccfallback.route span for one handleMessages
// call, per SPEC_FULL.md section 4.7.
func StartRouteSpan(ctx context.Context, clientTokenHash string, skipPrimary bool) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ccfallback.route",
		trace.WithAttributes(
			attribute.String("ccfallback.client_token_hash", clientTokenHash),
			attribute.Bool("ccfallback.skip_primary", skipPrimary),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetWinningProvider tags the route span with whichever upstream
// ultimately produced the response (including "anthropic-primary").
func SetWinningProvider(span trace.Span, name string) {
	if span.IsRecording() {
		span.SetAttributes(attribute.String("ccfallback.winning_provider", name))
	}
}

// StartProviderAttemptSpan opens the ccfallback.provider_attempt child
// span, tagged with the attributes SPEC_FULL.md section 4.7 names:
// provider name, format, attempt number, and rectifier feature (empty
// when no rectifier rule fired yet).
func StartProviderAttemptSpan(ctx context.Context, provider, format string, attemptNumber int, rectifierFeature string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ccfallback.provider_attempt",
		trace.WithAttributes(
			attribute.String("ccfallback.provider", provider),
			attribute.String("ccfallback.format", format),
			attribute.Int("ccfallback.attempt_number", attemptNumber),
			attribute.String("ccfallback.rectifier_feature", rectifierFeature),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

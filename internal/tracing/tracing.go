// Package tracing wires OpenTelemetry trace propagation across the
// gateway's request path. Grounded on digitallysavvy-go-ai's
// pkg/telemetry package: tracing is off by default and every call site
// asks for a Tracer through Settings rather than reaching for
// otel.Tracer directly, so a disabled deployment pays nothing beyond a
// noop.Tracer's no-op spans; RecordSpan generalizes that package's own
// generic span-wrapping helper (start span, run fn, record error and set
// span status on failure, end span) unchanged.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies every span this gateway emits.
const TracerName = "converse-gateway"

// Settings configures whether tracing is active and which provider backs
// it. Mirrors digitallysavvy-go-ai's telemetry.Settings: disabled by
// default, a nil Tracer falls back to the global one set by Init.
type Settings struct {
	IsEnabled bool
	Tracer    trace.Tracer
}

// Disabled is the zero-cost default: GetTracer returns a noop.Tracer so
// every Start call is a cheap no-op.
func Disabled() *Settings {
	return &Settings{IsEnabled: false}
}

// GetTracer returns settings.Tracer if set, the global tracer configured
// by Init if tracing is enabled, or a no-op tracer otherwise.
func GetTracer(settings *Settings) trace.Tracer {
	if settings == nil || !settings.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if settings.Tracer != nil {
		return settings.Tracer
	}
	return otel.Tracer(TracerName)
}

// Init installs a TracerProvider with the given sampler-always-on batcher
// exporters as the global provider, returning a shutdown func the caller
// must defer. Passing no exporters installs a provider that creates
// spans but exports nothing, useful for local development where only the
// span attributes logged alongside a request matter.
func Init(ctx context.Context, exporters ...sdktrace.SpanExporter) (shutdown func(context.Context) error, err error) {
	opts := make([]sdktrace.TracerProviderOption, 0, len(exporters))
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// SpanOptions configures one traced operation.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan runs fn inside a span named opts.Name, recording any
// returned error on the span and setting its status accordingly.
// Grounded on digitallysavvy-go-ai's pkg/telemetry/span.go RecordSpan.
func RecordSpan[T any](ctx context.Context, tracer trace.Tracer, opts SpanOptions, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()

	result, err := fn(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, err
	}
	return result, nil
}

// RequestAttributes builds the standard attribute set attached to every
// translated-request span.
func RequestAttributes(dialect, clientModel, upstreamModel, keyID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("gateway.dialect", dialect),
		attribute.String("gateway.client_model", clientModel),
		attribute.String("gateway.upstream_model", upstreamModel),
		attribute.String("gateway.key_id", keyID),
	}
}

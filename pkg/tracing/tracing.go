// Package tracing holds the process-wide tracer used by services, repositories
// and middleware. When no tracer is configured every helper degrades to a
// no-op so code paths never need a nil check.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var tracer trace.Tracer = noop.NewTracerProvider().Tracer("")

// SetTracer installs the tracer used by StartSpan. Called once at startup.
func SetTracer(t trace.Tracer) {
	if t != nil {
		tracer = t
	}
}

// StartSpan opens a span named after the calling method, in the form
// "package.Type.Method". The returned span must be ended by the caller.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// GetTraceID returns the active trace id, or "" when no recording span is in
// the context. The error middleware attaches it to responses.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

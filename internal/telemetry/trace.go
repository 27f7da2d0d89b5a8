// Package telemetry owns the OpenTelemetry tracer provider and the span
// helpers used by the session controller, the API client and the console.
package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/felixgeelhaar/agriconnect"

// StartSessionSpan creates a span for a session controller operation
// (boot, login, register, logout).
//
//	ctx, span := telemetry.StartSessionSpan(ctx, "login")
//	defer span.End()
func StartSessionSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer(instrumentation).Start(ctx, "session."+operation)
	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("component", "session"),
	)
	return ctx, span
}

// StartAPISpan creates a client span for one backend request.
func StartAPISpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer(instrumentation).Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("component", "platform"),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Middleware traces every request served by next.
func Middleware(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithTracerProvider(GetTracerProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

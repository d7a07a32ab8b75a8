package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every calculator span.
const TracerName = "calc"

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRequestSpan starts a server span for an HTTP request.
	StartRequestSpan(ctx context.Context, method, route string) (context.Context, trace.Span)

	// StartOperationSpan starts a span for a calculator operation, a child
	// of whatever span ctx carries.
	StartOperationSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span carried by ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// SpanOption configures the OTel span manager.
type SpanOption func(*otelSpanManager)

// WithTracerProvider draws spans from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) SpanOption {
	return func(m *otelSpanManager) {
		if tp != nil {
			m.tracer = tp.Tracer(TracerName)
		}
	}
}

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager backed by OpenTelemetry.
//
// Without WithTracerProvider it uses the global provider, so spans reach
// whatever provider is later installed with otel.SetTracerProvider.
func NewSpanManager(opts ...SpanOption) SpanManager {
	m := &otelSpanManager{tracer: otel.Tracer(TracerName)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *otelSpanManager) StartRequestSpan(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "calc.http "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
}

func (m *otelSpanManager) StartOperationSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "calc."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("calc.operation", op),
			attribute.String("session.id", sessionID),
		),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

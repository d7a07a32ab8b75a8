package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records calculator metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOperation records a calculator operation with its duration and
	// error category ("" on success).
	RecordOperation(ctx context.Context, op string, duration time.Duration, category string)

	// RecordEvaluation records one expression evaluation.
	RecordEvaluation(ctx context.Context, duration time.Duration, err error)

	// RecordRequest records a served HTTP request.
	RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration)

	// RecordSweep records an idle-session sweep and how many sessions it removed.
	RecordSweep(ctx context.Context, removed int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	operations      metric.Int64Counter
	operationErrors metric.Int64Counter
	operationTime   metric.Float64Histogram
	evaluations     metric.Int64Counter
	evalErrors      metric.Int64Counter
	evalTime        metric.Float64Histogram
	requests        metric.Int64Counter
	requestTime     metric.Float64Histogram
	sessionsExpired metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("calc")
	m := &otelMetrics{}
	var err error

	if m.operations, err = meter.Int64Counter("calc.operations",
		metric.WithDescription("Number of calculator operations"),
	); err != nil {
		return nil, err
	}
	if m.operationErrors, err = meter.Int64Counter("calc.operation.errors",
		metric.WithDescription("Number of failed calculator operations"),
	); err != nil {
		return nil, err
	}
	if m.operationTime, err = meter.Float64Histogram("calc.operation.latency_ms",
		metric.WithDescription("Calculator operation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.evaluations, err = meter.Int64Counter("calc.evaluations",
		metric.WithDescription("Number of expression evaluations"),
	); err != nil {
		return nil, err
	}
	if m.evalErrors, err = meter.Int64Counter("calc.evaluation.errors",
		metric.WithDescription("Number of failed expression evaluations"),
	); err != nil {
		return nil, err
	}
	if m.evalTime, err = meter.Float64Histogram("calc.evaluation.latency_ms",
		metric.WithDescription("Expression evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter("calc.http.requests",
		metric.WithDescription("Number of HTTP requests served"),
	); err != nil {
		return nil, err
	}
	if m.requestTime, err = meter.Float64Histogram("calc.http.latency_ms",
		metric.WithDescription("HTTP request latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.sessionsExpired, err = meter.Int64Counter("calc.sessions.expired",
		metric.WithDescription("Number of idle sessions removed by the sweeper"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// RecordOperation records a calculator operation.
func (m *otelMetrics) RecordOperation(ctx context.Context, op string, duration time.Duration, category string) {
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.operations.Add(ctx, 1, attrs)
	m.operationTime.Record(ctx, millis(duration), attrs)
	if category != "" {
		m.operationErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("category", category),
		))
	}
}

// RecordEvaluation records an expression evaluation.
func (m *otelMetrics) RecordEvaluation(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.evaluations.Add(ctx, 1, attrs)
	m.evalTime.Record(ctx, millis(duration), attrs)
	if err != nil {
		m.evalErrors.Add(ctx, 1)
	}
}

// RecordRequest records a served HTTP request.
func (m *otelMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestTime.Record(ctx, millis(duration), attrs)
}

// RecordSweep records an idle-session sweep.
func (m *otelMetrics) RecordSweep(ctx context.Context, removed int, _ time.Duration) {
	m.sessionsExpired.Add(ctx, int64(removed))
}

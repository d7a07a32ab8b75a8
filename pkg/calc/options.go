package calc

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/calc/pkg/calc/observability"
)

// Default value limits, inclusive.
const (
	DefaultMin = -10000
	DefaultMax = 10000
)

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger for operation logging.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
//
// Example:
//
//	c := calc.New(store, calc.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Calculator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the span manager for tracing.
// Default: observability.NoopSpanManager{}
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *Calculator) {
		if sm != nil {
			c.spans = sm
		}
	}
}

// WithRange sets the inclusive range variable values and results must fall in.
// Default: [-10000, 10000]
//
// A range with lo > hi is ignored.
func WithRange(lo, hi int) Option {
	return func(c *Calculator) {
		if lo <= hi {
			c.min, c.max = lo, hi
		}
	}
}

// WithClock sets the time source for session timestamps.
// Default: time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Package observability provides logging, metrics and tracing helpers for
// the calculator: structured logging via slog, metrics and tracing via
// OpenTelemetry.
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"

	calcerrors "github.com/randalmurphal/calc/pkg/calc/errors"
)

// EnrichLogger adds the session ID to a logger.
func EnrichLogger(logger *slog.Logger, sessionID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("session_id", sessionID))
}

// LogOperation logs a completed calculator operation.
func LogOperation(logger *slog.Logger, op string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("operation completed",
		slog.String("operation", op),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogOperationError logs a failed calculator operation. Client errors are
// logged at info, everything else at error.
func LogOperationError(logger *slog.Logger, op string, category calcerrors.Category, err error) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if category == calcerrors.CategoryPermanent || category == calcerrors.CategoryTransient {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "operation failed",
		slog.String("operation", op),
		slog.String("category", category.String()),
		slog.String("error", err.Error()),
	)
}

// LogEvaluation logs an expression evaluation.
func LogEvaluation(logger *slog.Logger, expression string, result int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Debug("evaluation failed",
			slog.String("expression", expression),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("evaluation completed",
		slog.String("expression", expression),
		slog.Int("result", result),
	)
}

// LogRequest logs a served HTTP request.
func LogRequest(logger *slog.Logger, method, path string, status int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("request served",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSweep logs an idle-session sweep.
func LogSweep(logger *slog.Logger, removed int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("idle sessions swept",
		slog.Int("removed", removed),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSweepError logs a sweep failure (non-fatal).
func LogSweepError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("idle session sweep failed",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}

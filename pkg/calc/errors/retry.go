package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, the first included.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each retry.
	BackoffFactor float64

	// Jitter spreads each wait by up to this fraction either way (0.0-1.0).
	Jitter float64

	// RetryableFunc overrides IsRetryable when set.
	RetryableFunc func(error) bool
}

// StoreRetry suits SQLite writes: lock contention clears within
// milliseconds, so back off briefly and give up fast.
var StoreRetry = RetryConfig{
	MaxAttempts:    5,
	InitialBackoff: 5 * time.Millisecond,
	MaxBackoff:     200 * time.Millisecond,
	BackoffFactor:  2.0,
	Jitter:         0.2,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// RetryResult contains the outcome of a retried operation.
type RetryResult[T any] struct {
	// Value is the result of the successful attempt.
	Value T

	// Err is the categorized final error, nil on success.
	Err error

	// Attempts is the number of times the operation ran.
	Attempts int

	// Duration is the total time spent, waits included.
	Duration time.Duration
}

// WithRetry executes fn with retries based on cfg.
func WithRetry[T any](cfg RetryConfig, fn func() (T, error)) RetryResult[T] {
	return WithRetryContext(context.Background(), cfg, func(context.Context) (T, error) {
		return fn()
	})
}

// WithRetryContext executes fn with retries, giving up when ctx is done.
//
// Only errors the config deems retryable are retried. The final error is
// always a *CategorizedError carrying the number of attempts made.
func WithRetryContext[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) RetryResult[T] {
	start := time.Now()
	retryable := cfg.RetryableFunc
	if retryable == nil {
		retryable = IsRetryable
	}
	limit := max(cfg.MaxAttempts, 1)

	var res RetryResult[T]
	wait := cfg.InitialBackoff
	for {
		if err := ctx.Err(); err != nil {
			res.Err = cancelled(err, res.Attempts)
			break
		}

		res.Attempts++
		v, err := fn(ctx)
		if err == nil {
			res.Value, res.Err = v, nil
			break
		}

		res.Err = &CategorizedError{Err: err, Category: Categorize(err), Retries: res.Attempts}
		if !retryable(err) {
			break
		}
		if res.Attempts == limit {
			res.Err.(*CategorizedError).Context = "max retries exceeded"
			break
		}

		if !sleep(ctx, calculateBackoff(wait, cfg.Jitter)) {
			res.Err = cancelled(ctx.Err(), res.Attempts)
			break
		}
		wait = min(time.Duration(float64(wait)*cfg.BackoffFactor), cfg.MaxBackoff)
	}
	res.Duration = time.Since(start)
	return res
}

// Retry runs fn under cfg for operations with no result value.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	return WithRetryContext(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}).Err
}

func cancelled(err error, attempts int) *CategorizedError {
	return &CategorizedError{Err: err, Category: Categorize(err), Retries: attempts, Context: "context cancelled"}
}

// sleep waits for d and reports whether it did so before ctx was done.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// calculateBackoff returns base spread by up to jitter either way.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	spread := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + spread)
}

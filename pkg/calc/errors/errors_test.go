package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_String(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryPermanent, "permanent"},
		{CategoryTransient, "transient"},
		{CategoryInvalid, "invalid"},
		{CategoryConflict, "conflict"},
		{CategoryForbidden, "forbidden"},
		{Category(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cat.String())
	}
}

func TestCategory_HTTPStatus(t *testing.T) {
	tests := []struct {
		cat  Category
		want int
	}{
		{CategoryPermanent, http.StatusInternalServerError},
		{CategoryTransient, http.StatusServiceUnavailable},
		{CategoryInvalid, http.StatusBadRequest},
		{CategoryConflict, http.StatusConflict},
		{CategoryForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.cat.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cat.HTTPStatus())
		})
	}
}

func TestCategorizedError(t *testing.T) {
	base := errors.New("No expression set")

	t.Run("error returns the underlying message", func(t *testing.T) {
		err := Conflict(base, "result")
		assert.Equal(t, "No expression set", err.Error())
	})

	t.Run("detail includes context and category", func(t *testing.T) {
		err := Conflict(base, "result")
		assert.Equal(t, "result: No expression set (category: conflict, attempts: 0)", err.Detail())
	})

	t.Run("detail without context", func(t *testing.T) {
		err := &CategorizedError{Err: base, Category: CategoryTransient, Retries: 2}
		assert.Equal(t, "No expression set (category: transient, attempts: 2)", err.Detail())
	})

	t.Run("unwrap", func(t *testing.T) {
		err := Invalid(base, "")
		assert.ErrorIs(t, err, base)
	})
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryPermanent},
		{"invalid", Invalid(errors.New("x"), ""), CategoryInvalid},
		{"conflict", Conflict(errors.New("x"), ""), CategoryConflict},
		{"forbidden", Forbidden(errors.New("x"), ""), CategoryForbidden},
		{"transient", Transient(errors.New("x"), ""), CategoryTransient},
		{"wrapped categorized", fmt.Errorf("put: %w", Forbidden(errors.New("x"), "")), CategoryForbidden},
		{"deadline", context.DeadlineExceeded, CategoryTransient},
		{"canceled", fmt.Errorf("op: %w", context.Canceled), CategoryTransient},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), CategoryTransient},
		{"table locked", errors.New("Database table is locked"), CategoryTransient},
		{"plain", errors.New("boom"), CategoryPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestWithRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2}

	result := WithRetry(cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("database is locked")
		}
		return 42, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	base := errors.New("constraint failed")

	result := WithRetry(StoreRetry, func() (int, error) {
		calls++
		return 0, base
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.Err, base)
	assert.Equal(t, CategoryPermanent, Categorize(result.Err))
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffFactor: 2, Jitter: 0.5}

	result := WithRetry(cfg, func() (string, error) {
		calls++
		return "", errors.New("SQLITE_BUSY")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, result.Attempts)

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, "max retries exceeded", catErr.Context)
	assert.Equal(t, CategoryTransient, catErr.Category)
}

func TestWithRetryContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := WithRetryContext(ctx, StoreRetry, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	require.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, result.Attempts)
	assert.Equal(t, CategoryTransient, Categorize(result.Err))
	assert.Equal(t, http.StatusServiceUnavailable, Categorize(result.Err).HTTPStatus())
}

func TestRetry_NoValue(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), NoRetry, func(context.Context) error {
		calls++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	err = Retry(context.Background(), NoRetry, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, calculateBackoff(10*time.Millisecond, 0))

	for i := 0; i < 100; i++ {
		d := calculateBackoff(10*time.Millisecond, 0.5)
		assert.GreaterOrEqual(t, d, 5*time.Millisecond)
		assert.LessOrEqual(t, d, 15*time.Millisecond)
	}
}

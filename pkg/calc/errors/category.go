// Package errors provides error categorization and retry for the calculator.
//
// Every failure that leaves the calculator carries a Category that decides
// how it is reported and whether it may be retried:
//   - Invalid, Conflict, Forbidden: the request cannot succeed as sent
//   - Transient: a storage hiccup, retry will likely help
//   - Permanent: anything else
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryPermanent indicates an unexpected failure that retry won't fix.
	CategoryPermanent Category = iota

	// CategoryTransient indicates retry will likely help.
	// Examples: SQLite busy or locked, deadline exceeded.
	CategoryTransient

	// CategoryInvalid indicates malformed client input.
	// Examples: bad expression syntax, non-numeric variable value.
	CategoryInvalid

	// CategoryConflict indicates the request is well formed but the
	// session state does not allow it.
	// Examples: no expression stored, undefined variable, division by zero.
	CategoryConflict

	// CategoryForbidden indicates a value outside the permitted range.
	CategoryForbidden
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPermanent:
		return "permanent"
	case CategoryTransient:
		return "transient"
	case CategoryInvalid:
		return "invalid"
	case CategoryConflict:
		return "conflict"
	case CategoryForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the response status code for the category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryTransient:
		return http.StatusServiceUnavailable
	case CategoryInvalid:
		return http.StatusBadRequest
	case CategoryConflict:
		return http.StatusConflict
	case CategoryForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
//
// Only the underlying message is returned; it is what clients see in
// response bodies. Detail() includes the category and context.
func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

// Detail returns the message with context, category and attempts, for logs.
func (e *CategorizedError) Detail() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Invalid creates an invalid-input error.
func Invalid(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInvalid, context)
}

// Conflict creates a state-conflict error.
func Conflict(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryConflict, context)
}

// Forbidden creates an out-of-range error.
func Forbidden(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryForbidden, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if isBusy(err.Error()) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// isBusy recognises SQLite contention reported by the driver. The driver
// only exposes it through the message text.
func isBusy(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range []string{"sqlite_busy", "database is locked", "database table is locked"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

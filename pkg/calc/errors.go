package calc

import "errors"

// Sentinel errors for request validation.
var (
	// ErrInvalidExpression indicates an expression failed validation.
	ErrInvalidExpression = errors.New("invalid expression format")

	// ErrInvalidName indicates a variable name is not a single lowercase letter.
	ErrInvalidName = errors.New("invalid variable name")

	// ErrInvalidValue indicates a variable value is neither an integer nor
	// the name of a bound variable.
	ErrInvalidValue = errors.New("invalid variable value format")
)

// Sentinel errors for session state and limits.
var (
	// ErrNoExpression indicates a result was requested with no expression set.
	ErrNoExpression = errors.New("no expression set")

	// ErrValueOutOfRange indicates a variable value outside the permitted range.
	ErrValueOutOfRange = errors.New("variable value out of range")

	// ErrResultOutOfRange indicates a result outside the permitted range.
	ErrResultOutOfRange = errors.New("result out of range")
)

// detailedError reports cause as its message while matching both sentinel
// and cause with errors.Is and errors.As.
type detailedError struct {
	sentinel error
	cause    error
}

func (e *detailedError) Error() string {
	return e.cause.Error()
}

func (e *detailedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}

package expr

import "strconv"

// EvalError is an error produced by Evaluate. Every failure Evaluate returns
// implements EvalError.
type EvalError interface {
	error
	// Pos returns the 1-based byte column of the token that caused the
	// error, or the length of the input plus one when the error was found
	// after the scan.
	Pos() int
}

// UndefinedVariableError indicates a variable with no binding.
type UndefinedVariableError struct {
	// Name is the variable that was missing.
	Name string
	// Col is the position of the variable.
	Col int
}

func (err *UndefinedVariableError) Error() string {
	return "Undefined variable: " + err.Name
}

func (err *UndefinedVariableError) Pos() int {
	return err.Col
}

// DivideByZeroError indicates a division whose right operand is zero.
type DivideByZeroError struct {
	// Col is the position at which the division was applied.
	Col int
}

func (err *DivideByZeroError) Error() string {
	return "Cannot divide by zero"
}

func (err *DivideByZeroError) Pos() int {
	return err.Col
}

// UnbalancedParenthesesError indicates a close parenthesis with no open
// parenthesis, or an open parenthesis that is never closed.
type UnbalancedParenthesesError struct {
	// Col is the position of the unmatched parenthesis, or of the end of
	// input for an unclosed one.
	Col int
}

func (err *UnbalancedParenthesesError) Error() string {
	return errpos(err.Col, "unbalanced parentheses")
}

func (err *UnbalancedParenthesesError) Pos() int {
	return err.Col
}

// MalformedExpressionError indicates input that does not reduce to a single
// value, such as an operator missing an operand.
type MalformedExpressionError struct {
	// Col is the position where the problem was detected.
	Col int
	// Reason describes the problem.
	Reason string
}

func (err *MalformedExpressionError) Error() string {
	return errpos(err.Col, "malformed expression: "+err.Reason)
}

func (err *MalformedExpressionError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return "column " + strconv.Itoa(pos) + ": " + msg
}

var (
	_ EvalError = (*UndefinedVariableError)(nil)
	_ EvalError = (*DivideByZeroError)(nil)
	_ EvalError = (*UnbalancedParenthesesError)(nil)
	_ EvalError = (*MalformedExpressionError)(nil)
)

package expr

import (
	"regexp"
	"strconv"
)

var (
	charsetRe     = regexp.MustCompile(`^[0-9 \t\n\v\f\r+\-*/()a-z]+$`)
	operatorRunRe = regexp.MustCompile(`[+\-*/]{2,}`)
)

// ValidationError describes why an expression was rejected by Validate.
type ValidationError struct {
	// Reason is a short description of the problem.
	Reason string
	// Col is the 1-based byte column of the problem, or 0 if the problem
	// concerns the whole input.
	Col int
}

func (err *ValidationError) Error() string {
	if err.Col > 0 {
		return "invalid expression: " + errpos(err.Col, err.Reason)
	}
	return "invalid expression: " + err.Reason
}

// Validate checks the lexical rules an expression must satisfy before it is
// stored: it must be non-empty, contain only digits, whitespace, lowercase
// letters, operators and parentheses, have balanced parentheses and never
// have two operator characters in a row.
//
// Validate does not check that the expression reduces to a single value;
// "1+" passes here and fails in Evaluate.
func Validate(expression string) error {
	if !charsetRe.MatchString(expression) {
		if expression == "" {
			return &ValidationError{Reason: "empty expression"}
		}
		return &ValidationError{Reason: "unsupported character"}
	}
	if col := unbalancedAt(expression); col > 0 {
		return &ValidationError{Reason: "unbalanced parentheses", Col: col}
	}
	if loc := operatorRunRe.FindStringIndex(expression); loc != nil {
		return &ValidationError{
			Reason: "consecutive operators " + strconv.Quote(expression[loc[0]:loc[1]]),
			Col:    loc[0] + 1,
		}
	}
	return nil
}

// unbalancedAt returns the column of the first close parenthesis with no
// match, len+1 if some open parenthesis is never closed, or 0 if the
// parentheses balance.
func unbalancedAt(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return i + 1
			}
		}
	}
	if depth != 0 {
		return len(s) + 1
	}
	return 0
}

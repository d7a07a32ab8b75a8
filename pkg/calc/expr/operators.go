package expr

// Operators contains the bytes which are binary operators.
const Operators = "+-*/"

func isOperator(c byte) bool {
	switch c {
	case '+', '-', '*', '/':
		return true
	}
	return false
}

func isParen(c byte) bool {
	return c == '(' || c == ')'
}

// precedence returns the binding strength of a binary operator.
func precedence(op byte) int {
	switch op {
	case '*', '/':
		return 2
	case '+', '-':
		return 1
	default:
		return 0
	}
}

// yields reports whether the pending operator top must be applied before cur
// is pushed. Parentheses never yield; otherwise top yields unless it binds
// strictly weaker than cur, which makes equal precedence left associative.
func yields(cur, top byte) bool {
	if isParen(top) {
		return false
	}
	return precedence(top) >= precedence(cur)
}

// apply computes left op right. col is reported on division by zero.
func apply(op byte, right, left, col int) (int, error) {
	switch op {
	case '+':
		return left + right, nil
	case '-':
		return left - right, nil
	case '*':
		return left * right, nil
	case '/':
		if right == 0 {
			return 0, &DivideByZeroError{Col: col}
		}
		return left / right, nil
	default:
		panic("expr: apply on non-operator " + string(op))
	}
}

/*
Package expr evaluates integer arithmetic expressions over single-letter
variables.

# Overview

expr implements the calculator's expression language: non-negative integer
literals, lowercase single-letter variables, the binary operators + - * /
and parentheses. Evaluation is a single left-to-right scan with an operand
stack and an operator stack.

# Expression Syntax

	<expr>    := <term> | <expr> '+' <term> | <expr> '-' <term>
	<term>    := <factor> | <term> '*' <factor> | <term> '/' <factor>
	<factor>  := <number> | <variable> | '(' <expr> ')'
	<number>  := [0-9]+
	<variable>:= [a-z]

Whitespace between tokens is ignored. There is no unary minus: negative
values enter an expression only through variables.

# Semantics

  - * and / bind tighter than + and -
  - operators of equal precedence are left associative: 8-3-2 is 3
  - / truncates toward zero: 7/2 is 3, -7/2 is -3
  - arithmetic is on Go int with no overflow checks

# Examples

	vars := expr.Bindings{"a": 7, "b": 2}
	v, _ := expr.Evaluate("a/b", vars)       // 3
	v, _ = expr.Evaluate("(2+3)*4", nil)    // 20
	_, err := expr.Evaluate("y+1", nil)     // *UndefinedVariableError{Name: "y"}

# Validation

Evaluate assumes its input has already passed Validate, which is what the
request layer calls before storing an expression. Evaluate still fails
cleanly on input Validate would reject: unmatched parentheses yield
*UnbalancedParenthesesError and everything else that cannot be reduced to a
single value yields *MalformedExpressionError.

# Thread Safety

Evaluate keeps all state on the call's own stacks and never writes to the
bindings, so concurrent calls are safe.
*/
package expr

package expr

import "strconv"

// Bindings maps single-letter variable names to their values. Evaluate only
// reads it.
type Bindings map[string]int

// pending is an operator or open parenthesis waiting on the operator stack,
// with the column it was scanned at.
type pending struct {
	op  byte
	col int
}

// evaluation holds the transient state of one Evaluate call.
type evaluation struct {
	src      string
	vars     Bindings
	operands *stack[int]
	ops      *stack[pending]
}

// Evaluate computes the value of expression with the given variable
// bindings. vars may be nil. Every error returned implements EvalError.
func Evaluate(expression string, vars Bindings) (int, error) {
	ev := evaluation{
		src:      expression,
		vars:     vars,
		operands: newStack[int](len(expression)/2 + 1),
		ops:      newStack[pending](len(expression)/2 + 1),
	}
	return ev.run()
}

func (ev *evaluation) run() (int, error) {
	src := ev.src
	for i := 0; i < len(src); i++ {
		c := src[i]
		col := i + 1
		switch {
		case isSpace(c):
			continue
		case isDigit(c):
			n := 0
			for i < len(src) && isDigit(src[i]) {
				n = n*10 + int(src[i]-'0')
				i++
			}
			i--
			ev.operands.push(n)
		case c == '(':
			ev.ops.push(pending{op: c, col: col})
		case c == ')':
			if err := ev.closeParen(col); err != nil {
				return 0, err
			}
		case isOperator(c):
			for {
				top, ok := ev.ops.peek()
				if !ok || !yields(c, top.op) {
					break
				}
				if err := ev.reduce(); err != nil {
					return 0, err
				}
			}
			ev.ops.push(pending{op: c, col: col})
		case 'a' <= c && c <= 'z':
			name := src[i : i+1]
			v, ok := ev.vars[name]
			if !ok {
				return 0, &UndefinedVariableError{Name: name, Col: col}
			}
			ev.operands.push(v)
		default:
			return 0, &MalformedExpressionError{
				Col:    col,
				Reason: "unexpected character " + strconv.Quote(src[i:i+1]),
			}
		}
	}
	return ev.finish()
}

// closeParen reduces back to the matching open parenthesis and discards it.
func (ev *evaluation) closeParen(col int) error {
	for {
		top, ok := ev.ops.peek()
		if !ok {
			return &UnbalancedParenthesesError{Col: col}
		}
		if top.op == '(' {
			break
		}
		if err := ev.reduce(); err != nil {
			return err
		}
	}
	ev.ops.pop()
	return nil
}

// finish drains the operator stack and extracts the single result.
func (ev *evaluation) finish() (int, error) {
	end := len(ev.src) + 1
	for ev.ops.len() > 0 {
		top, _ := ev.ops.peek()
		if top.op == '(' {
			return 0, &UnbalancedParenthesesError{Col: top.col}
		}
		if err := ev.reduce(); err != nil {
			return 0, err
		}
	}
	result, ok := ev.operands.pop()
	if !ok {
		return 0, &MalformedExpressionError{Col: end, Reason: "no value"}
	}
	if ev.operands.len() > 0 {
		return 0, &MalformedExpressionError{Col: end, Reason: "missing operator between values"}
	}
	return result, nil
}

// reduce pops the top operator and its two operands and pushes the result.
// The operand pushed last is the right-hand side.
func (ev *evaluation) reduce() error {
	p, _ := ev.ops.pop()
	right, ok := ev.operands.pop()
	if !ok {
		return missingOperand(p)
	}
	left, ok := ev.operands.pop()
	if !ok {
		return missingOperand(p)
	}
	v, err := apply(p.op, right, left, p.col)
	if err != nil {
		return err
	}
	ev.operands.push(v)
	return nil
}

func missingOperand(p pending) error {
	return &MalformedExpressionError{
		Col:    p.col,
		Reason: "operator " + strconv.Quote(string(p.op)) + " is missing an operand",
	}
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

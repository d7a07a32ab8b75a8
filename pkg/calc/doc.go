// Package calc implements the session-scoped calculator.
//
// A Calculator keeps, per session, at most one integer expression and any
// number of single-letter variables, and evaluates the expression against
// those variables on request. Sessions live in a session.Store.
//
// # Basic Usage
//
//	c := calc.New(session.NewMemoryStore())
//
//	_, _ = c.PutVariable(ctx, sid, "x", "4")
//	_, _ = c.PutExpression(ctx, sid, "(x + 2) * 3")
//	result, err := c.Result(ctx, sid) // 18
//
// # Errors
//
// Every error returned by a Calculator is categorized (see package
// errors). The category decides the HTTP status the server answers with:
//
//	invalid    400  ErrInvalidExpression, ErrInvalidName, ErrInvalidValue
//	conflict   409  ErrNoExpression, evaluation failures
//	forbidden  403  ErrValueOutOfRange, ErrResultOutOfRange
//	transient  503  storage contention
//	permanent  500  anything else
//
// Use errors.Is with the sentinels to check for a specific condition.
//
// # Observability
//
// Inject a logger, metrics recorder and span manager with WithLogger,
// WithMetrics and WithSpanManager. All three default to quiet
// implementations.
package calc

package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	calcerrors "github.com/randalmurphal/calc/pkg/calc/errors"
	"github.com/randalmurphal/calc/pkg/calc/expr"
	"github.com/randalmurphal/calc/pkg/calc/observability"
	"github.com/randalmurphal/calc/pkg/calc/session"
)

// Operation names, as they appear in logs, metrics and span names.
const (
	OpPutExpression    = "put_expression"
	OpDeleteExpression = "delete_expression"
	OpPutVariable      = "put_variable"
	OpDeleteVariable   = "delete_variable"
	OpResult           = "result"
	OpSnapshot         = "snapshot"
)

var integerRe = regexp.MustCompile(`^-?\d+$`)

// lineBreaks are removed from request bodies before trimming, so a body
// sent over several lines reads as one.
var lineBreaks = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// Calculator stores expressions and variables per session and evaluates them.
// It is safe for concurrent use; operations on the same session are
// serialized.
type Calculator struct {
	store   session.Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	min     int
	max     int
	now     func() time.Time
	locks   sessionLocks
}

// New creates a Calculator backed by store.
func New(store session.Store, opts ...Option) *Calculator {
	c := &Calculator{
		store:   store,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		min:     DefaultMin,
		max:     DefaultMax,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Range returns the inclusive value range.
func (c *Calculator) Range() (lo, hi int) {
	return c.min, c.max
}

// PutExpression stores the expression in body, replacing any previous one.
// It reports whether the session had no expression before.
func (c *Calculator) PutExpression(ctx context.Context, sid, body string) (created bool, err error) {
	expression := normalizeBody(body)
	err = c.do(ctx, OpPutExpression, sid, true, func(_ context.Context, s *session.Session) error {
		if err := expr.Validate(expression); err != nil {
			return calcerrors.Invalid(&detailedError{sentinel: ErrInvalidExpression, cause: err}, OpPutExpression)
		}
		created = !s.HasExpression()
		s.Expression = expression
		return nil
	})
	return created, err
}

// DeleteExpression removes the stored expression. Deleting a missing
// expression is not an error.
func (c *Calculator) DeleteExpression(ctx context.Context, sid string) error {
	return c.do(ctx, OpDeleteExpression, sid, false, func(_ context.Context, s *session.Session) error {
		s.Expression = ""
		return nil
	})
}

// PutVariable binds name to the value in body. The body is either a decimal
// integer or the name of another bound variable, whose value is copied.
// It reports whether name was unbound before.
func (c *Calculator) PutVariable(ctx context.Context, sid, name, body string) (created bool, err error) {
	value := normalizeBody(body)
	err = c.do(ctx, OpPutVariable, sid, true, func(_ context.Context, s *session.Session) error {
		if !isVarName(name) {
			return calcerrors.Invalid(fmt.Errorf("%w %q", ErrInvalidName, name), OpPutVariable)
		}
		v, err := parseValue(s, value)
		if err != nil {
			return calcerrors.Invalid(err, OpPutVariable)
		}
		if v < c.min || v > c.max {
			return calcerrors.Forbidden(ErrValueOutOfRange, OpPutVariable)
		}
		_, bound := s.Vars[name]
		created = !bound
		s.Vars[name] = v
		return nil
	})
	return created, err
}

// DeleteVariable unbinds name. Deleting an unbound variable is not an error.
func (c *Calculator) DeleteVariable(ctx context.Context, sid, name string) error {
	return c.do(ctx, OpDeleteVariable, sid, false, func(_ context.Context, s *session.Session) error {
		if !isVarName(name) {
			return calcerrors.Invalid(fmt.Errorf("%w %q", ErrInvalidName, name), OpDeleteVariable)
		}
		delete(s.Vars, name)
		return nil
	})
}

// Result evaluates the stored expression with the session's variables.
//
// A stored expression that no longer passes validation is reported as
// ErrInvalidExpression without being evaluated. Evaluation failures are
// returned as conflicts carrying the evaluator's error, so errors.As
// finds the expr error types.
func (c *Calculator) Result(ctx context.Context, sid string) (result int, err error) {
	err = c.do(ctx, OpResult, sid, false, func(ctx context.Context, s *session.Session) error {
		if !s.HasExpression() {
			return calcerrors.Conflict(ErrNoExpression, OpResult)
		}
		if err := expr.Validate(s.Expression); err != nil {
			return calcerrors.Invalid(&detailedError{sentinel: ErrInvalidExpression, cause: err}, OpResult)
		}

		start := time.Now()
		v, err := expr.Evaluate(s.Expression, s.Vars)
		c.metrics.RecordEvaluation(ctx, time.Since(start), err)
		observability.LogEvaluation(c.logger, s.Expression, v, err)
		if err != nil {
			return calcerrors.Conflict(err, OpResult)
		}
		c.spans.AddSpanEvent(ctx, "evaluated", attribute.Int("calc.result", v))

		if v < c.min || v > c.max {
			return calcerrors.Forbidden(ErrResultOutOfRange, OpResult)
		}
		result = v
		return nil
	})
	return result, err
}

// Snapshot returns a copy of the session. A missing session reads as empty.
func (c *Calculator) Snapshot(ctx context.Context, sid string) (session.Session, error) {
	var snap session.Session
	err := c.do(ctx, OpSnapshot, sid, false, func(_ context.Context, s *session.Session) error {
		snap = *s.Clone()
		return nil
	})
	return snap, err
}

// do runs fn against the session sid while holding its lock.
//
// A missing session is created empty. It is saved only if write is set and
// fn succeeds. An existing session is touched and saved whatever fn
// returns.
func (c *Calculator) do(
	ctx context.Context,
	op, sid string,
	write bool,
	fn func(context.Context, *session.Session) error,
) (err error) {
	ctx, span := c.spans.StartOperationSpan(ctx, op, sid)
	logger := observability.EnrichLogger(c.logger, sid)
	start := time.Now()
	done := observability.TimedOperation()

	defer func() {
		category := ""
		if err != nil {
			cat := calcerrors.Categorize(err)
			category = cat.String()
			observability.LogOperationError(logger, op, cat, err)
		} else {
			observability.LogOperation(logger, op, done())
		}
		c.metrics.RecordOperation(ctx, op, time.Since(start), category)
		c.spans.EndSpanWithError(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	mu := c.locks.get(sid)
	mu.Lock()
	defer mu.Unlock()

	now := c.now()
	s, err := c.store.Load(sid)
	exists := true
	switch {
	case errors.Is(err, session.ErrNotFound):
		s, exists = session.New(sid, now), false
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}

	fnErr := fn(ctx, s)
	if !exists && (!write || fnErr != nil) {
		return fnErr
	}

	s.Touch(now)
	if err := c.store.Save(s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return fnErr
}

// parseValue resolves a variable body: a decimal integer that fits in 32
// bits, or the name of a bound variable.
func parseValue(s *session.Session, body string) (int, error) {
	switch {
	case integerRe.MatchString(body):
		v, err := strconv.ParseInt(body, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s does not fit in 32 bits", ErrInvalidValue, body)
		}
		return int(v), nil
	case isVarName(body):
		v, ok := s.Vars[body]
		if !ok {
			return 0, fmt.Errorf("%w: variable %s is not set", ErrInvalidValue, body)
		}
		return v, nil
	default:
		return 0, ErrInvalidValue
	}
}

func isVarName(name string) bool {
	return len(name) == 1 && name[0] >= 'a' && name[0] <= 'z'
}

func normalizeBody(body string) string {
	return strings.TrimSpace(lineBreaks.Replace(body))
}

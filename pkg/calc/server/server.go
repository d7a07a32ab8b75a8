// Package server exposes a Calculator over HTTP using fasthttp.
//
// Routes, relative to the prefix (default /calc):
//
//	PUT    /expression  store an expression (201 new, 200 replaced)
//	DELETE /expression  remove it (204)
//	PUT    /{a-z}       bind a variable (201 new, 200 replaced)
//	DELETE /{a-z}       unbind it (204)
//	GET    /result      evaluate (200, decimal body)
//
// Clients are told apart by the CALCSESSIONID cookie, which is issued on the
// first request that does not carry a valid one.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/randalmurphal/calc/pkg/calc"
	calcerrors "github.com/randalmurphal/calc/pkg/calc/errors"
	"github.com/randalmurphal/calc/pkg/calc/observability"
)

// CookieName is the session cookie.
const CookieName = "CALCSESSIONID"

// DefaultPrefix is the path all routes live under.
const DefaultPrefix = "/calc"

const (
	maxBodySize = 64 * 1024
	textPlain   = "text/plain; charset=utf-8"
)

// ErrInvalidPath indicates a request for a path with no resource behind it.
var ErrInvalidPath = errors.New("invalid resource path")

// Allowed is the value of the Allow header on 405 responses.
const Allowed = "GET, PUT, DELETE"

// Route labels used for metrics and span names.
const (
	routeExpression = "expression"
	routeVariable   = "{name}"
	routeResult     = "result"
	routeUnknown    = "unknown"
)

// Server serves a Calculator over HTTP.
type Server struct {
	calc         *calc.Calculator
	prefix       string
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	readTimeout  time.Duration
	writeTimeout time.Duration
	srv          *fasthttp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix sets the path prefix. Default: /calc
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpanManager sets the span manager. Default: no-op.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// WithTimeouts sets the connection read and write timeouts.
// Default: 15s each. Non-positive values are ignored.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
	}
}

// New creates a Server for c.
func New(c *calc.Calculator, opts ...Option) *Server {
	s := &Server{
		calc:         c,
		prefix:       DefaultPrefix,
		logger:       slog.Default(),
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		readTimeout:  15 * time.Second,
		writeTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "calcd",
		ReadTimeout:        s.readTimeout,
		WriteTimeout:       s.writeTimeout,
		MaxRequestBodySize: maxBodySize,
		Logger:             slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the request handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.handle
}

// ListenAndServe serves HTTP on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("calculator listening", slog.String("addr", addr), slog.String("prefix", s.prefix))
	return s.srv.ListenAndServe(addr)
}

// Serve serves HTTP on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown stops accepting connections and waits for open ones to finish
// or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	done := observability.TimedOperation()
	method := string(ctx.Method())
	path := string(ctx.Path())
	route, name := s.route(path)

	reqCtx, span := s.spans.StartRequestSpan(context.Background(), method, route)
	sid := s.session(ctx)

	var err error
	switch method {
	case fasthttp.MethodPut:
		err = s.put(reqCtx, ctx, sid, route, name)
	case fasthttp.MethodGet:
		err = s.get(reqCtx, ctx, sid, route)
	case fasthttp.MethodDelete:
		err = s.delete(reqCtx, ctx, sid, route, name)
	default:
		ctx.Response.Header.Set(fasthttp.HeaderAllow, Allowed)
		writeText(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}
	if err != nil {
		s.writeError(ctx, err)
	}

	status := ctx.Response.StatusCode()
	observability.LogRequest(s.logger, method, path, status, done())
	s.metrics.RecordRequest(reqCtx, method, route, status, time.Since(start))
	s.spans.EndSpanWithError(span, err)
}

// route classifies path. name is the variable letter for variable routes.
func (s *Server) route(path string) (route, name string) {
	if len(path) <= len(s.prefix)+1 || path[:len(s.prefix)] != s.prefix || path[len(s.prefix)] != '/' {
		return routeUnknown, ""
	}
	rest := path[len(s.prefix)+1:]
	switch {
	case rest == "expression":
		return routeExpression, ""
	case rest == "result":
		return routeResult, ""
	case len(rest) == 1 && rest[0] >= 'a' && rest[0] <= 'z':
		return routeVariable, rest
	default:
		return routeUnknown, ""
	}
}

// session returns the caller's session ID, issuing a new one if the
// request carries none or a malformed one.
func (s *Server) session(ctx *fasthttp.RequestCtx) string {
	if id, err := uuid.ParseBytes(ctx.Request.Header.Cookie(CookieName)); err == nil {
		return id.String()
	}

	id := uuid.NewString()
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(CookieName)
	c.SetValue(id)
	c.SetPath(s.prefix)
	c.SetHTTPOnly(true)
	ctx.Response.Header.SetCookie(c)
	return id
}

func (s *Server) put(reqCtx context.Context, ctx *fasthttp.RequestCtx, sid, route, name string) error {
	var (
		created bool
		err     error
	)
	body := string(ctx.PostBody())
	switch route {
	case routeExpression:
		created, err = s.calc.PutExpression(reqCtx, sid, body)
	case routeVariable:
		created, err = s.calc.PutVariable(reqCtx, sid, name, body)
	default:
		return calcerrors.Invalid(ErrInvalidPath, "route")
	}
	if err != nil {
		return err
	}

	ctx.Response.Header.Set(fasthttp.HeaderLocation, location(ctx))
	if created {
		ctx.SetStatusCode(fasthttp.StatusCreated)
	} else {
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
	return nil
}

func (s *Server) get(reqCtx context.Context, ctx *fasthttp.RequestCtx, sid, route string) error {
	if route != routeResult {
		return calcerrors.Invalid(ErrInvalidPath, "route")
	}
	result, err := s.calc.Result(reqCtx, sid)
	if err != nil {
		return err
	}
	ctx.SetContentType(textPlain)
	ctx.SetBody(strconv.AppendInt(nil, int64(result), 10))
	return nil
}

func (s *Server) delete(reqCtx context.Context, ctx *fasthttp.RequestCtx, sid, route, name string) error {
	var err error
	switch route {
	case routeExpression:
		err = s.calc.DeleteExpression(reqCtx, sid)
	case routeVariable:
		err = s.calc.DeleteVariable(reqCtx, sid, name)
	default:
		return calcerrors.Invalid(ErrInvalidPath, "route")
	}
	if err != nil {
		return err
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	return nil
}

// writeError answers with the status of err's category. Server-side
// failures get a generic body; their detail is in the logs.
func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	category := calcerrors.Categorize(err)
	status := category.HTTPStatus()
	msg := err.Error()
	if category == calcerrors.CategoryPermanent || category == calcerrors.CategoryTransient {
		msg = fasthttp.StatusMessage(status)
	}
	writeText(ctx, status, msg)
}

// writeText sets a plain text response, keeping headers already set.
func writeText(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType(textPlain)
	ctx.SetBodyString(msg)
}

// location is the absolute URL of the requested resource, without query.
func location(ctx *fasthttp.RequestCtx) string {
	u := ctx.URI()
	return string(u.Scheme()) + "://" + string(u.Host()) + string(u.Path())
}

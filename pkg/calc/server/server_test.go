package server_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/calc/pkg/calc"
	"github.com/randalmurphal/calc/pkg/calc/observability"
	"github.com/randalmurphal/calc/pkg/calc/server"
	"github.com/randalmurphal/calc/pkg/calc/session"
)

// client drives a handler in-process and keeps the session cookie.
type client struct {
	t       *testing.T
	handler fasthttp.RequestHandler
	cookie  string
}

func newClient(t *testing.T, opts ...server.Option) *client {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	srv := server.New(calc.New(store), opts...)
	return &client{t: t, handler: srv.Handler()}
}

func (c *client) do(method, path, body string) *fasthttp.Response {
	c.t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI("http://localhost" + path)
	req.SetBodyString(body)
	if c.cookie != "" {
		req.Header.SetCookie(server.CookieName, c.cookie)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	c.handler(&ctx)

	resp := &fasthttp.Response{}
	ctx.Response.CopyTo(resp)

	if id, ok := sessionCookie(resp); ok {
		c.cookie = id
	}
	return resp
}

func sessionCookie(resp *fasthttp.Response) (string, bool) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(server.CookieName)
	if !resp.Header.Cookie(cookie) {
		return "", false
	}
	return string(cookie.Value()), true
}

func TestServer_ResultFlow(t *testing.T) {
	c := newClient(t)

	resp := c.do(fasthttp.MethodPut, "/calc/x", "4")
	assert.Equal(t, fasthttp.StatusCreated, resp.StatusCode())
	assert.Equal(t, "http://localhost/calc/x", string(resp.Header.Peek(fasthttp.HeaderLocation)))

	resp = c.do(fasthttp.MethodPut, "/calc/expression", "(x + 2) * 3")
	assert.Equal(t, fasthttp.StatusCreated, resp.StatusCode())
	assert.Equal(t, "http://localhost/calc/expression", string(resp.Header.Peek(fasthttp.HeaderLocation)))

	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "18", string(resp.Body()))
	assert.True(t, strings.HasPrefix(string(resp.Header.ContentType()), "text/plain"))

	resp = c.do(fasthttp.MethodPut, "/calc/x", "-7")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())

	resp = c.do(fasthttp.MethodPut, "/calc/expression", "x / 2")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())

	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, "-3", string(resp.Body()))
}

func TestServer_SessionCookie(t *testing.T) {
	c := newClient(t)

	resp := c.do(fasthttp.MethodPut, "/calc/a", "1")
	id, ok := sessionCookie(resp)
	require.True(t, ok, "first request must issue a cookie")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(server.CookieName)
	require.True(t, resp.Header.Cookie(cookie))
	assert.True(t, cookie.HTTPOnly())
	assert.Equal(t, "/calc", string(cookie.Path()))

	resp = c.do(fasthttp.MethodPut, "/calc/a", "2")
	_, ok = sessionCookie(resp)
	assert.False(t, ok, "a valid cookie is not reissued")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode(), "same session sees the earlier variable")
}

func TestServer_MalformedCookie(t *testing.T) {
	c := newClient(t)
	c.cookie = "not-a-uuid"

	resp := c.do(fasthttp.MethodGet, "/calc/result", "")
	id, ok := sessionCookie(resp)
	require.True(t, ok)
	assert.NotEqual(t, "not-a-uuid", id)
}

func TestServer_SessionsAreIsolated(t *testing.T) {
	a := newClient(t)
	b := &client{t: t, handler: a.handler}

	a.do(fasthttp.MethodPut, "/calc/expression", "1 + 1")

	resp := b.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusConflict, resp.StatusCode())

	resp = a.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "2", string(resp.Body()))
}

func TestServer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  [][3]string
		method string
		path   string
		body   string
		status int
		msg    string
	}{
		{
			name:   "no expression",
			method: fasthttp.MethodGet, path: "/calc/result",
			status: fasthttp.StatusConflict, msg: "no expression set",
		},
		{
			name:   "invalid expression",
			method: fasthttp.MethodPut, path: "/calc/expression", body: "1 ++ 2",
			status: fasthttp.StatusBadRequest, msg: "invalid expression",
		},
		{
			name:   "invalid variable value",
			method: fasthttp.MethodPut, path: "/calc/x", body: "abc",
			status: fasthttp.StatusBadRequest, msg: "invalid variable value format",
		},
		{
			name:   "unbound variable reference",
			method: fasthttp.MethodPut, path: "/calc/x", body: "y",
			status: fasthttp.StatusBadRequest, msg: "variable y is not set",
		},
		{
			name:   "variable out of range",
			method: fasthttp.MethodPut, path: "/calc/x", body: "10001",
			status: fasthttp.StatusForbidden, msg: "variable value out of range",
		},
		{
			name:   "result out of range",
			setup:  [][3]string{{fasthttp.MethodPut, "/calc/x", "10000"}, {fasthttp.MethodPut, "/calc/expression", "x * 2"}},
			method: fasthttp.MethodGet, path: "/calc/result",
			status: fasthttp.StatusForbidden, msg: "result out of range",
		},
		{
			name:   "undefined variable",
			setup:  [][3]string{{fasthttp.MethodPut, "/calc/expression", "y + 1"}},
			method: fasthttp.MethodGet, path: "/calc/result",
			status: fasthttp.StatusConflict, msg: "Undefined variable: y",
		},
		{
			name:   "divide by zero",
			setup:  [][3]string{{fasthttp.MethodPut, "/calc/expression", "1 / 0"}},
			method: fasthttp.MethodGet, path: "/calc/result",
			status: fasthttp.StatusConflict, msg: "Cannot divide by zero",
		},
		{
			name:   "malformed",
			setup:  [][3]string{{fasthttp.MethodPut, "/calc/expression", "1 +"}},
			method: fasthttp.MethodGet, path: "/calc/result",
			status: fasthttp.StatusConflict, msg: "malformed expression",
		},
		{
			name:   "unknown resource",
			method: fasthttp.MethodPut, path: "/calc/foo", body: "1",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "uppercase variable",
			method: fasthttp.MethodDelete, path: "/calc/X",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "put result",
			method: fasthttp.MethodPut, path: "/calc/result", body: "1",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "get expression",
			method: fasthttp.MethodGet, path: "/calc/expression",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "delete result",
			method: fasthttp.MethodDelete, path: "/calc/result",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "outside prefix",
			method: fasthttp.MethodGet, path: "/other/result",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
		{
			name:   "prefix only",
			method: fasthttp.MethodGet, path: "/calc",
			status: fasthttp.StatusBadRequest, msg: "invalid resource path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t)
			for _, step := range tt.setup {
				resp := c.do(step[0], step[1], step[2])
				require.Less(t, resp.StatusCode(), 300, "setup %s %s", step[0], step[1])
			}

			resp := c.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode())
			assert.Contains(t, string(resp.Body()), tt.msg)
			assert.True(t, strings.HasPrefix(string(resp.Header.ContentType()), "text/plain"))
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	c := newClient(t)

	for _, method := range []string{fasthttp.MethodPost, fasthttp.MethodPatch, fasthttp.MethodHead} {
		resp := c.do(method, "/calc/expression", "1")
		assert.Equal(t, fasthttp.StatusMethodNotAllowed, resp.StatusCode(), method)
		assert.Equal(t, server.Allowed, string(resp.Header.Peek(fasthttp.HeaderAllow)), method)
	}
}

func TestServer_Delete(t *testing.T) {
	c := newClient(t)

	c.do(fasthttp.MethodPut, "/calc/x", "3")
	c.do(fasthttp.MethodPut, "/calc/expression", "x")

	resp := c.do(fasthttp.MethodDelete, "/calc/x", "")
	assert.Equal(t, fasthttp.StatusNoContent, resp.StatusCode())
	resp = c.do(fasthttp.MethodDelete, "/calc/x", "")
	assert.Equal(t, fasthttp.StatusNoContent, resp.StatusCode())

	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusConflict, resp.StatusCode())

	resp = c.do(fasthttp.MethodDelete, "/calc/expression", "")
	assert.Equal(t, fasthttp.StatusNoContent, resp.StatusCode())

	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusConflict, resp.StatusCode())
	assert.Equal(t, "no expression set", string(resp.Body()))
}

func TestServer_VariableCopy(t *testing.T) {
	c := newClient(t)

	c.do(fasthttp.MethodPut, "/calc/a", "5")
	resp := c.do(fasthttp.MethodPut, "/calc/b", "a")
	assert.Equal(t, fasthttp.StatusCreated, resp.StatusCode())

	c.do(fasthttp.MethodPut, "/calc/expression", "a * b")
	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, "25", string(resp.Body()))
}

func TestServer_WithPrefix(t *testing.T) {
	c := newClient(t, server.WithPrefix("/api/v1"))

	resp := c.do(fasthttp.MethodPut, "/api/v1/expression", "6 * 7")
	assert.Equal(t, fasthttp.StatusCreated, resp.StatusCode())

	resp = c.do(fasthttp.MethodGet, "/api/v1/result", "")
	assert.Equal(t, "42", string(resp.Body()))

	resp = c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusBadRequest, resp.StatusCode())
}

type requestRecord struct {
	method string
	route  string
	status int
}

type requestMetrics struct {
	observability.NoopMetrics
	mu       sync.Mutex
	requests []requestRecord
}

func (m *requestMetrics) RecordRequest(_ context.Context, method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, requestRecord{method, route, status})
}

func TestServer_RecordsRequests(t *testing.T) {
	metrics := &requestMetrics{}
	c := newClient(t, server.WithMetrics(metrics))

	c.do(fasthttp.MethodPut, "/calc/expression", "1")
	c.do(fasthttp.MethodPut, "/calc/q", "2")
	c.do(fasthttp.MethodGet, "/calc/result", "")
	c.do(fasthttp.MethodGet, "/calc/nope", "")

	assert.Equal(t, []requestRecord{
		{fasthttp.MethodPut, "expression", fasthttp.StatusCreated},
		{fasthttp.MethodPut, "{name}", fasthttp.StatusCreated},
		{fasthttp.MethodGet, "result", fasthttp.StatusOK},
		{fasthttp.MethodGet, "unknown", fasthttp.StatusBadRequest},
	}, metrics.requests)
}

// brokenStore fails every Load.
type brokenStore struct {
	session.Store
}

func (brokenStore) Load(string) (*session.Session, error) {
	return nil, session.ErrStoreClosed
}

func TestServer_StoreFailureHidesDetail(t *testing.T) {
	srv := server.New(calc.New(brokenStore{Store: session.NewMemoryStore()}))
	c := &client{t: t, handler: srv.Handler()}

	resp := c.do(fasthttp.MethodGet, "/calc/result", "")
	assert.Equal(t, fasthttp.StatusInternalServerError, resp.StatusCode())
	assert.NotContains(t, string(resp.Body()), "session store closed")
}

func TestServer_ServeAndShutdown(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()
	srv := server.New(calc.New(store), server.WithTimeouts(time.Second, time.Second))

	ln := fasthttputil.NewInmemoryListener()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	hc := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPut)
	req.SetRequestURI("http://calc.test/calc/expression")
	req.SetBodyString("2 + 3 * 4")
	require.NoError(t, hc.Do(req, resp))
	assert.Equal(t, fasthttp.StatusCreated, resp.StatusCode())

	id, ok := sessionCookie(resp)
	require.True(t, ok)

	req.Reset()
	resp.Reset()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI("http://calc.test/calc/result")
	req.Header.SetCookie(server.CookieName, id)
	require.NoError(t, hc.Do(req, resp))
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "14", string(resp.Body()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-served)
}

func TestServer_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	spans := observability.NewSpanManager(observability.WithTracerProvider(tp))
	store := session.NewMemoryStore()
	defer store.Close()
	srv := server.New(calc.New(store, calc.WithSpanManager(spans)), server.WithSpanManager(spans))
	c := &client{t: t, handler: srv.Handler()}

	c.do(fasthttp.MethodGet, "/calc/result", "")

	ended := exporter.GetSpans()
	require.Len(t, ended, 2)

	// Children end first.
	op, req := ended[0], ended[1]
	assert.Equal(t, "calc.result", op.Name)
	assert.Equal(t, "calc.http result", req.Name)
	assert.Equal(t, req.SpanContext.SpanID(), op.Parent.SpanID())
	assert.Equal(t, codes.Error, op.Status.Code)
	assert.Equal(t, codes.Error, req.Status.Code)
}

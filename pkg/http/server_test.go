package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "RegimeLab/pkg/logger"
)

type recordedRequest struct {
	route, method string
	status        int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(route, method string, status int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{route, method, status})
}

type testHandler struct{}

type echoRequest struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" default:"3" validate:"gte=1,lte=5"`
}

func (testHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/echo", func(c echo.Context) error {
		var req echoRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, req)
	})
	e.GET("/items/:id", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("no item "+c.Param("id")))
	})
	e.GET("/boom", func(echo.Context) error {
		panic("boom")
	})
}

func newTestServer(rec *fakeRecorder, opts ...ServerOption) *Server {
	opts = append(opts, WithMetrics("/metrics", prometheus.NewRegistry(), rec))
	return NewServer(applogger.NewNop(), testHandler{}, opts...)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_ValidationAndDefaults(t *testing.T) {
	s := newTestServer(&fakeRecorder{})

	rec := serve(s, http.MethodPost, "/echo", `{"name":"spy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Data echoRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, 3, ok.Data.Count)

	rec = serve(s, http.MethodPost, "/echo", `{"count":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	fields := make(map[string]string)
	for _, e := range bad.Data {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", fields["name"])
	assert.Equal(t, "ERR_LTE", fields["count"])

	rec = serve(s, http.MethodPost, "/echo", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AppErrorAndMetrics(t *testing.T) {
	fr := &fakeRecorder{}
	s := newTestServer(fr)

	rec := serve(s, http.MethodGet, "/items/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	require.Len(t, fr.seen, 1)
	assert.Equal(t, recordedRequest{"/items/:id", http.MethodGet, http.StatusNotFound}, fr.seen[0])
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer(&fakeRecorder{})
	rec := serve(s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(&fakeRecorder{})
	rec := serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	s = newTestServer(&fakeRecorder{},
		WithHealthCheck("redis", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("down") }),
	)
	rec = serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "down", body.Checks["clickhouse"])
}

func TestServer_MetricsEndpointAndCORS(t *testing.T) {
	s := newTestServer(&fakeRecorder{})
	rec := serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
	req.Header.Set(echo.HeaderOrigin, "http://dash.local")
	out := httptest.NewRecorder()
	s.Echo().ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, "http://dash.local", out.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, out.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
}

func TestAppError(t *testing.T) {
	base := errors.New("root cause")
	err := ConflictError("busy").WithError(base).WithParam("symbol", "SPY")
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "busy: root cause", err.Error())
	assert.Equal(t, "SPY", err.Params["symbol"])
}

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability/metrics"
)

func TestRequestID_SetsHeaderAndTraceID(t *testing.T) {
	e := echo.New()
	e.Use(NewRequestID())
	var traced string
	e.GET("/", func(c echo.Context) error {
		traced = logger.TraceID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36)
	assert.Equal(t, id, traced)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "client-supplied")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "client-supplied", traced)
}

func TestRequestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf, logger.LogLevelDebug).Module("access")

	e := echo.New()
	e.Use(NewRequestID(), NewRequestLogger(log))
	e.GET("/tracks", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tracks", http.NoBody))
	out := buf.String()
	assert.Contains(t, out, "request")
	assert.Contains(t, out, "/tracks")
	assert.Contains(t, out, "request_id")
}

func TestMetrics_RecordsRouteTemplateAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewHTTPMetrics(reg)
	require.NoError(t, err)

	e := echo.New()
	e.Use(NewMetrics(m))
	e.GET("/predict_all/:race", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "unknown")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/predict_all/monaco", http.NoBody))

	expected := `
# HELP f1predict_http_requests_total Total number of HTTP requests
# TYPE f1predict_http_requests_total counter
f1predict_http_requests_total{method="GET",path="/predict_all/:race",status_code="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "f1predict_http_requests_total"))

	expectedInFlight := `
# HELP f1predict_http_requests_in_flight Number of HTTP requests currently being served
# TYPE f1predict_http_requests_in_flight gauge
f1predict_http_requests_in_flight 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expectedInFlight), "f1predict_http_requests_in_flight"))
}

func TestNewMetrics_NilIsPassThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewMetrics(nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_AllowsOnlyAPIMethods(t *testing.T) {
	e := echo.New()
	e.Use(NewCORS([]string{"https://dash.example"}))
	e.POST("/predict/qualifying", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/predict/qualifying", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET,POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))

	req = httptest.NewRequest(http.MethodOptions, "/predict/qualifying", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestAPIHeaders(t *testing.T) {
	e := echo.New()
	e.Use(NewAPIHeaders())
	e.GET("/health", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"status": "healthy"}) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(echo.HeaderXFrameOptions))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rec.Header().Get(echo.HeaderContentSecurityPolicy))
	assert.Equal(t, "no-referrer", rec.Header().Get(echo.HeaderReferrerPolicy))
	assert.Empty(t, rec.Header().Get(echo.HeaderXXSSProtection))
}

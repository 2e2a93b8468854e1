package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1predict/f1predict/internal/observability/metrics"
)

func gatherFamily(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Weather)
	require.NotNil(t, m.Qualifying)
	require.NotNil(t, m.Prediction)
	require.NotNil(t, m.HTTP)

	// A second set on the same registry must collide.
	_, err = metrics.NewWeatherMetrics(m.Registry())
	assert.Error(t, err)
}

func TestPredictionCounters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Prediction.RecordPrediction("Monaco Grand Prix", metrics.StatusSuccess, 0.02)
	m.Prediction.RecordPrediction("Monaco Grand Prix", metrics.StatusSuccess, 0.03)
	m.Prediction.RecordPrediction("Italian Grand Prix", metrics.StatusError, 0.01)
	m.Prediction.RecordPartial(2)
	m.Prediction.SetModelsLoaded(true)

	mf := gatherFamily(t, m, "f1predict_predictions_total")
	require.NotNil(t, mf)
	assert.Len(t, mf.GetMetric(), 2)

	omitted := gatherFamily(t, m, "f1predict_prediction_omitted_drivers_total")
	require.NotNil(t, omitted)
	assert.InDelta(t, 2.0, omitted.GetMetric()[0].GetCounter().GetValue(), 1e-9)

	loaded := gatherFamily(t, m, "f1predict_models_loaded")
	require.NotNil(t, loaded)
	assert.InDelta(t, 1.0, loaded.GetMetric()[0].GetGauge().GetValue(), 1e-9)
}

func TestWeatherAndQualifyingCollect(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Weather.RecordFetch("openweather", metrics.StatusError, 0.5)
	m.Weather.RecordFallback("timeout")
	m.Weather.RecordResolution("Bahrain Grand Prix", metrics.SourceFallback, 30)
	m.Qualifying.RecordRequest("qualifying", metrics.StatusSuccess, 0.1)
	m.Qualifying.RecordResolution("ergast")
	m.Qualifying.SetBreakerState("ergast", 2)

	// fetchesTotal, fetchDuration, fallbacksTotal, cacheHitsTotal, lastAirTemp, resolutionTotal
	assert.Equal(t, 6, testutil.CollectAndCount(m.Weather))

	expected := `
# HELP f1predict_weather_fallbacks_total Total number of times historical weather replaced a live reading
# TYPE f1predict_weather_fallbacks_total counter
f1predict_weather_fallbacks_total{reason="timeout"} 1
`
	err = testutil.CollectAndCompare(m.Weather, strings.NewReader(expected), "f1predict_weather_fallbacks_total")
	require.NoError(t, err)

	state := gatherFamily(t, m, "f1predict_qualifying_breaker_state")
	require.NotNil(t, state)
	assert.InDelta(t, 2.0, state.GetMetric()[0].GetGauge().GetValue(), 1e-9)
}

func TestHTTPInFlight(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.HTTP.RequestStarted()
	m.HTTP.RequestStarted()
	m.HTTP.RecordRequest(http.MethodGet, "/health", "200", 0.001)

	inflight := gatherFamily(t, m, "f1predict_http_requests_in_flight")
	require.NotNil(t, inflight)
	assert.InDelta(t, 1.0, inflight.GetMetric()[0].GetGauge().GetValue(), 1e-9)
}

func TestHandlerServesExposition(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Qualifying.RecordResolution("baseline")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `f1predict_qualifying_resolutions_total{origin="baseline"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

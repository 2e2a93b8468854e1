package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WeatherMetrics contains Prometheus metrics for weather resolution
type WeatherMetrics struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
	lastAirTemp     *prometheus.GaugeVec
	resolutionTotal *prometheus.CounterVec
}

// NewWeatherMetrics creates and registers new weather metrics
func NewWeatherMetrics(registry prometheus.Registerer) (*WeatherMetrics, error) {
	m := &WeatherMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WeatherMetrics) initMetrics() {
	m.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Total number of live weather fetch attempts",
		},
		[]string{"provider", "status"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_fetch_duration_seconds",
			Help:      "Time taken by live weather fetches",
			// 10ms to ~5s; the provider timeout is 10s
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"provider"},
	)

	m.fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fallbacks_total",
			Help:      "Total number of times historical weather replaced a live reading",
		},
		[]string{"reason"},
	)

	m.cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weather_cache_hits_total",
		Help:      "Total number of weather readings served from the TTL cache",
	})

	m.lastAirTemp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weather_air_temperature_celsius",
			Help:      "Most recent resolved air temperature per circuit",
		},
		[]string{"circuit"},
	)

	m.resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_resolutions_total",
			Help:      "Total number of weather resolutions by source",
		},
		[]string{"source"},
	)
}

// Describe implements the Collector interface
func (m *WeatherMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fetchesTotal.Describe(ch)
	m.fetchDuration.Describe(ch)
	m.fallbacksTotal.Describe(ch)
	m.cacheHitsTotal.Describe(ch)
	m.lastAirTemp.Describe(ch)
	m.resolutionTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *WeatherMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fetchesTotal.Collect(ch)
	m.fetchDuration.Collect(ch)
	m.fallbacksTotal.Collect(ch)
	m.cacheHitsTotal.Collect(ch)
	m.lastAirTemp.Collect(ch)
	m.resolutionTotal.Collect(ch)
}

// RecordFetch records a live fetch attempt and its duration in seconds
func (m *WeatherMetrics) RecordFetch(provider, status string, seconds float64) {
	m.fetchesTotal.WithLabelValues(provider, status).Inc()
	m.fetchDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordFallback records a fallback to historical weather
func (m *WeatherMetrics) RecordFallback(reason string) {
	m.fallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a reading served from cache
func (m *WeatherMetrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordResolution records the source of a resolved reading
func (m *WeatherMetrics) RecordResolution(circuit, source string, airTemp float64) {
	m.resolutionTotal.WithLabelValues(source).Inc()
	m.lastAirTemp.WithLabelValues(circuit).Set(airTemp)
}

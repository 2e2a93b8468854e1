package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QualifyingMetrics contains Prometheus metrics for qualifying resolution
type QualifyingMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	resolutionsTotal *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	unmatchedTotal   prometheus.Counter
}

// NewQualifyingMetrics creates and registers new qualifying metrics
func NewQualifyingMetrics(registry prometheus.Registerer) (*QualifyingMetrics, error) {
	m := &QualifyingMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *QualifyingMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualifying_requests_total",
			Help:      "Total number of Ergast requests by endpoint and status",
		},
		[]string{"endpoint", "status"}, // endpoint: qualifying, sprint_qualifying
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "qualifying_request_duration_seconds",
			Help:      "Time taken by Ergast requests",
			Buckets:   prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10),
		},
		[]string{"endpoint"},
	)

	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualifying_resolutions_total",
			Help:      "Total number of qualifying resolutions by origin",
		},
		[]string{"origin"}, // ergast, sprint_qualifying, baseline
	)

	m.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qualifying_breaker_state",
			Help:      "Ergast circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	m.unmatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "qualifying_unmatched_drivers_total",
		Help:      "Total number of Ergast entries that matched no roster driver",
	})
}

// Describe implements the Collector interface
func (m *QualifyingMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.resolutionsTotal.Describe(ch)
	m.breakerState.Describe(ch)
	m.unmatchedTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *QualifyingMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.resolutionsTotal.Collect(ch)
	m.breakerState.Collect(ch)
	m.unmatchedTotal.Collect(ch)
}

// RecordRequest records an Ergast request and its duration in seconds
func (m *QualifyingMetrics) RecordRequest(endpoint, status string, seconds float64) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordResolution records which origin produced the qualifying order
func (m *QualifyingMetrics) RecordResolution(origin string) {
	m.resolutionsTotal.WithLabelValues(origin).Inc()
}

// SetBreakerState records the breaker state as a gauge value
func (m *QualifyingMetrics) SetBreakerState(breaker string, state float64) {
	m.breakerState.WithLabelValues(breaker).Set(state)
}

// RecordUnmatched records Ergast entries that matched no roster driver
func (m *QualifyingMetrics) RecordUnmatched(n int) {
	m.unmatchedTotal.Add(float64(n))
}

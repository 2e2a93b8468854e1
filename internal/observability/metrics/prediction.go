package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PredictionMetrics contains Prometheus metrics for the prediction pipeline
type PredictionMetrics struct {
	predictionsTotal   *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	partialTotal       prometheus.Counter
	omittedDrivers     prometheus.Counter
	modelsLoaded       prometheus.Gauge
	publishTotal       *prometheus.CounterVec
}

// NewPredictionMetrics creates and registers new prediction metrics
func NewPredictionMetrics(registry prometheus.Registerer) (*PredictionMetrics, error) {
	m := &PredictionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PredictionMetrics) initMetrics() {
	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of prediction requests by circuit and status",
		},
		[]string{"circuit", "status"},
	)

	m.predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end prediction time including external lookups",
			Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"status"},
	)

	m.partialTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_partial_total",
		Help:      "Total number of predictions returned with omitted drivers",
	})

	m.omittedDrivers = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_omitted_drivers_total",
		Help:      "Total number of drivers dropped because of malformed feature rows",
	})

	m.modelsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "models_loaded",
		Help:      "1 when model artifacts are loaded",
	})

	m.publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_publish_total",
			Help:      "Total number of MQTT publications by status",
		},
		[]string{"status"},
	)
}

// Describe implements the Collector interface
func (m *PredictionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.predictionsTotal.Describe(ch)
	m.predictionDuration.Describe(ch)
	m.partialTotal.Describe(ch)
	m.omittedDrivers.Describe(ch)
	m.modelsLoaded.Describe(ch)
	m.publishTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *PredictionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.predictionsTotal.Collect(ch)
	m.predictionDuration.Collect(ch)
	m.partialTotal.Collect(ch)
	m.omittedDrivers.Collect(ch)
	m.modelsLoaded.Collect(ch)
	m.publishTotal.Collect(ch)
}

// RecordPrediction records a prediction request outcome and duration in seconds
func (m *PredictionMetrics) RecordPrediction(circuit, status string, seconds float64) {
	m.predictionsTotal.WithLabelValues(circuit, status).Inc()
	m.predictionDuration.WithLabelValues(status).Observe(seconds)
}

// RecordPartial records a partial result with n omitted drivers
func (m *PredictionMetrics) RecordPartial(n int) {
	m.partialTotal.Inc()
	m.omittedDrivers.Add(float64(n))
}

// SetModelsLoaded records whether artifacts are loaded
func (m *PredictionMetrics) SetModelsLoaded(loaded bool) {
	if loaded {
		m.modelsLoaded.Set(1)
		return
	}
	m.modelsLoaded.Set(0)
}

// RecordPublish records an MQTT publication outcome
func (m *PredictionMetrics) RecordPublish(status string) {
	m.publishTotal.WithLabelValues(status).Inc()
}

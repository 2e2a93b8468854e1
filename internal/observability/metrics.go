// Package observability provides metrics and monitoring for f1predict.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry   *prometheus.Registry
	Weather    *metrics.WeatherMetrics
	Qualifying *metrics.QualifyingMetrics
	Prediction *metrics.PredictionMetrics
	HTTP       *metrics.HTTPMetrics
}

// NewMetrics creates a registry with every collector registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	weatherMetrics, err := metrics.NewWeatherMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather metrics: %w", err)
	}

	qualifyingMetrics, err := metrics.NewQualifyingMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create qualifying metrics: %w", err)
	}

	predictionMetrics, err := metrics.NewPredictionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	return &Metrics{
		registry:   registry,
		Weather:    weatherMetrics,
		Qualifying: qualifyingMetrics,
		Prediction: predictionMetrics,
		HTTP:       httpMetrics,
	}, nil
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      handlerLog{logger.Global().Module("metrics")},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// handlerLog adapts the module logger to promhttp.Logger.
type handlerLog struct {
	log logger.Logger
}

func (h handlerLog) Println(v ...any) {
	h.log.Error("metrics handler error", logger.String("error", fmt.Sprint(v...)))
}

package weather

import (
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/observability/metrics"
)

// NewFromSettings wires the OpenWeather provider when an API key is configured.
// Without a key the service is in permanent fallback.
func NewFromSettings(settings *conf.Settings, client *httpclient.Client, m *metrics.WeatherMetrics) *Service {
	var provider Provider
	if settings.WeatherEnabled() {
		provider = NewOpenWeatherProvider(client, settings.Weather.BaseURL, settings.Weather.APIKey, settings.Weather.Timeout)
	}
	return NewService(provider, Config{
		CacheTTL: settings.Weather.CacheTTL,
		Metrics:  m,
	})
}

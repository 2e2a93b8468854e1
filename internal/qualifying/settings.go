package qualifying

import (
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/observability/metrics"
	"github.com/f1predict/f1predict/internal/season"
)

// NewFromSettings wires an Ergast-backed resolver. An empty base URL disables
// live lookups and every resolution uses the baseline order.
func NewFromSettings(settings *conf.Settings, client *httpclient.Client, catalog *season.Catalog, m *metrics.QualifyingMetrics) *Resolver {
	q := settings.Qualifying
	var fetcher Fetcher
	if q.BaseURL != "" {
		fetcher = NewErgastClient(client, ClientConfig{
			BaseURL:         q.BaseURL,
			Timeout:         q.Timeout,
			RateLimit:       q.RateLimit,
			BreakerFailures: q.BreakerFailures,
			BreakerCooldown: q.BreakerCooldown,
			Metrics:         m,
		})
	}
	return NewResolver(fetcher, catalog, ResolverConfig{
		CacheTTL: q.CacheTTL,
		Metrics:  m,
	})
}

// Package weather resolves race-day weather for a circuit: one live attempt
// against the configured provider, and the circuit's stored historical
// average whenever that attempt fails or no provider is configured.
package weather

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/httpclient"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability/metrics"
	"github.com/f1predict/f1predict/internal/season"
)

// Source tags where a reading came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Condition names
const (
	ConditionClear  = "Clear"
	ConditionCloudy = "Cloudy"
	ConditionRain   = "Rain"
	ConditionStorm  = "Storm"
)

// Fallback reasons reported in logs and metrics
const (
	reasonNoProvider     = "no_api_key"
	reasonTimeout        = "timeout"
	reasonHTTPStatus     = "http_status"
	reasonInvalidPayload = "invalid_payload"
	reasonNetwork        = "network"
)

const fallbackProvider = "historical"

// Reading is a single weather observation in metric units.
type Reading struct {
	AirTemp         float64 `json:"air_temp"`
	TrackTemp       float64 `json:"track_temp"`
	Humidity        float64 `json:"humidity"`
	Condition       string  `json:"condition"`
	RainProbability float64 `json:"rain_probability"`
}

// Result is a resolved reading tagged with its source.
type Result struct {
	Reading
	Source    Source    `json:"source"`
	Provider  string    `json:"provider"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Location is what a provider needs to look up a circuit.
type Location struct {
	City      string
	Latitude  float64
	Longitude float64
}

// HasCoordinates reports whether lat/lon are usable.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Provider represents a weather data provider interface
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (*Reading, error)
}

// Config holds optional Service dependencies.
type Config struct {
	CacheTTL time.Duration // 0 disables caching
	Metrics  *metrics.WeatherMetrics
	Logger   logger.Logger
}

// Service handles weather resolution
type Service struct {
	provider Provider
	cache    *cache.Cache
	metrics  *metrics.WeatherMetrics
	log      logger.Logger
	now      func() time.Time
}

// NewService creates a weather service. A nil provider means every
// resolution uses the historical fallback without any network call.
func NewService(provider Provider, cfg Config) *Service {
	s := &Service{
		provider: provider,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		now:      time.Now,
	}
	if s.log == nil {
		s.log = logger.Global().Module("weather")
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s
}

// Resolve returns live weather for the track or, on any failure, the track's
// historical average. It never returns an error and never retries.
func (s *Service) Resolve(ctx context.Context, track *season.Track) Result {
	if s.provider == nil {
		return s.fallback(track, reasonNoProvider, nil)
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(track.Key); ok {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			s.log.Debug("using cached weather", logger.String("circuit", track.Key))
			return cached.(Result)
		}
	}

	start := time.Now()
	reading, err := s.provider.Fetch(ctx, Location{
		City:      track.City,
		Latitude:  track.Latitude,
		Longitude: track.Longitude,
	})
	elapsed := time.Since(start)

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFetch(s.provider.Name(), metrics.StatusError, elapsed.Seconds())
		}
		return s.fallback(track, classifyFailure(ctx, err), err)
	}
	if s.metrics != nil {
		s.metrics.RecordFetch(s.provider.Name(), metrics.StatusSuccess, elapsed.Seconds())
		s.metrics.RecordResolution(track.Name, metrics.SourceLive, reading.AirTemp)
	}

	result := Result{
		Reading:   *reading,
		Source:    SourceLive,
		Provider:  s.provider.Name(),
		FetchedAt: s.now().UTC(),
	}
	s.log.Info("fetched live weather",
		logger.String("circuit", track.Key),
		logger.Float64("air_temp", reading.AirTemp),
		logger.Float64("track_temp", reading.TrackTemp),
		logger.String("condition", reading.Condition),
		logger.Duration("elapsed", elapsed))

	if s.cache != nil {
		s.cache.SetDefault(track.Key, result)
	}
	return result
}

func (s *Service) fallback(track *season.Track, reason string, cause error) Result {
	fields := []logger.Field{
		logger.String("circuit", track.Key),
		logger.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
		s.log.Warn("live weather unavailable, using historical average", fields...)
	} else {
		s.log.Debug("no weather provider configured, using historical average", fields...)
	}

	h := track.HistoricalWeather
	if s.metrics != nil {
		s.metrics.RecordFallback(reason)
		s.metrics.RecordResolution(track.Name, metrics.SourceFallback, h.AirTemp)
	}
	return Result{
		Reading: Reading{
			AirTemp:         h.AirTemp,
			TrackTemp:       h.TrackTemp,
			Humidity:        h.Humidity,
			Condition:       ConditionClear,
			RainProbability: 0,
		},
		Source:    SourceFallback,
		Provider:  fallbackProvider,
		FetchedAt: s.now().UTC(),
	}
}

func classifyFailure(ctx context.Context, err error) string {
	var statusErr *httpclient.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.IsCategory(err, errors.CategoryTimeout) ||
		ctx.Err() != nil:
		return reasonTimeout
	case errors.As(err, &statusErr):
		return reasonHTTPStatus
	case errors.IsValidation(err) || errors.IsCategory(err, errors.CategoryFileParsing):
		return reasonInvalidPayload
	default:
		return reasonNetwork
	}
}

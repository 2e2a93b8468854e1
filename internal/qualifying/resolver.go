package qualifying

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability/metrics"
	"github.com/f1predict/f1predict/internal/season"
)

// Source tags whether positions came from live data.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Origin names the data set that produced the positions.
type Origin string

const (
	OriginErgast           Origin = "ergast"
	OriginSprintQualifying Origin = "sprint_qualifying"
	OriginBaseline         Origin = "baseline"
)

// DefaultPosition is used for a driver with no baseline value.
const DefaultPosition = 15.0

// Result is a resolved qualifying order keyed by roster driver name.
type Result struct {
	Positions map[string]float64 `json:"positions"`
	Source    Source             `json:"source"`
	Origin    Origin             `json:"origin"`
	Season    int                `json:"season"`
	Round     int                `json:"round"`
}

// Position returns the driver's qualifying position, or DefaultPosition.
func (r Result) Position(driver string) float64 {
	if p, ok := r.Positions[driver]; ok {
		return p
	}
	return DefaultPosition
}

// Fetcher is the live classification source.
type Fetcher interface {
	Qualifying(ctx context.Context, season, round int) ([]Entry, error)
	SprintQualifying(ctx context.Context, season, round int) ([]Entry, error)
}

// ResolverConfig holds optional Resolver dependencies.
type ResolverConfig struct {
	CacheTTL time.Duration // 0 disables caching
	Metrics  *metrics.QualifyingMetrics
	Logger   logger.Logger
}

// Resolver picks the best available qualifying order.
type Resolver struct {
	fetcher Fetcher
	catalog *season.Catalog
	cache   *cache.Cache
	metrics *metrics.QualifyingMetrics
	log     logger.Logger
}

// NewResolver creates a resolver. A nil fetcher always resolves to the baseline.
func NewResolver(fetcher Fetcher, catalog *season.Catalog, cfg ResolverConfig) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		catalog: catalog,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	if r.log == nil {
		r.log = logger.Global().Module("qualifying")
	}
	if cfg.CacheTTL > 0 {
		r.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return r
}

// Resolve tries Ergast qualifying, then sprint qualifying, then the baseline
// ranking. An empty live classification counts as a failure. It never errors.
func (r *Resolver) Resolve(ctx context.Context, seasonYear, round int) Result {
	cacheKey := fmt.Sprintf("%d/%d", seasonYear, round)
	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey); ok {
			r.log.Debug("using cached qualifying", logger.String("key", cacheKey))
			return cached.(Result)
		}
	}

	if r.fetcher != nil {
		attempts := []struct {
			origin Origin
			fetch  func(context.Context, int, int) ([]Entry, error)
		}{
			{OriginErgast, r.fetcher.Qualifying},
			{OriginSprintQualifying, r.fetcher.SprintQualifying},
		}
		for _, attempt := range attempts {
			entries, err := attempt.fetch(ctx, seasonYear, round)
			if err != nil {
				r.log.Warn("qualifying fetch failed",
					logger.String("origin", string(attempt.origin)),
					logger.Int("season", seasonYear),
					logger.Int("round", round),
					logger.Error(err))
				continue
			}
			positions := r.match(entries)
			if len(positions) == 0 {
				r.log.Debug("qualifying classification empty",
					logger.String("origin", string(attempt.origin)),
					logger.Int("round", round))
				continue
			}
			result := Result{
				Positions: r.fillMissing(positions),
				Source:    SourceLive,
				Origin:    attempt.origin,
				Season:    seasonYear,
				Round:     round,
			}
			r.record(result)
			if r.cache != nil {
				r.cache.SetDefault(cacheKey, result)
			}
			return result
		}
	}

	r.log.Info("using baseline qualifying order",
		logger.Int("season", seasonYear),
		logger.Int("round", round))
	result := Result{
		Positions: r.fillMissing(map[string]float64{}),
		Source:    SourceFallback,
		Origin:    OriginBaseline,
		Season:    seasonYear,
		Round:     round,
	}
	r.record(result)
	return result
}

func (r *Resolver) record(result Result) {
	if r.metrics != nil {
		r.metrics.RecordResolution(string(result.Origin))
	}
}

// match maps Ergast entries onto roster driver names.
func (r *Resolver) match(entries []Entry) map[string]float64 {
	positions := make(map[string]float64, len(entries))
	unmatched := 0
	for _, e := range entries {
		driver, ok := MatchDriver(r.catalog, e)
		if !ok {
			unmatched++
			r.log.Debug("unmatched ergast driver",
				logger.String("code", e.Code),
				logger.Int("number", e.Number),
				logger.String("name", e.FullName()))
			continue
		}
		if _, dup := positions[driver.Name]; dup {
			continue
		}
		positions[driver.Name] = float64(e.Position)
	}
	if unmatched > 0 && r.metrics != nil {
		r.metrics.RecordUnmatched(unmatched)
	}
	return positions
}

// fillMissing gives every roster driver absent from positions its baseline value.
func (r *Resolver) fillMissing(positions map[string]float64) map[string]float64 {
	for _, d := range r.catalog.Drivers() {
		if _, ok := positions[d.Name]; ok {
			continue
		}
		baseline := d.BaselineQualifying
		if baseline <= 0 {
			baseline = DefaultPosition
		}
		positions[d.Name] = baseline
	}
	return positions
}

// MatchDriver finds the roster driver for an Ergast entry: by code, then by
// permanent number, then by accent-insensitive full name.
func MatchDriver(catalog *season.Catalog, e Entry) (season.Driver, bool) {
	if e.Code != "" {
		if d, ok := catalog.DriverByAbbreviation(e.Code); ok {
			return d, true
		}
	}
	if e.Number > 0 {
		if d, ok := catalog.DriverByNumber(e.Number); ok {
			return d, true
		}
	}
	if name := e.FullName(); name != "" {
		return catalog.DriverByName(name)
	}
	return season.Driver{}, false
}

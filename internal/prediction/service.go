// Package prediction ranks the roster for a Grand Prix. It resolves weather
// and qualifying (each tagged live or fallback), assembles feature rows,
// scores them with the driver model and derives constructor standings.
package prediction

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/features"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/model"
	"github.com/f1predict/f1predict/internal/observability/metrics"
	"github.com/f1predict/f1predict/internal/qualifying"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/weather"
)

// DefaultPublishTimeout bounds one publication attempt.
const DefaultPublishTimeout = 5 * time.Second

// ErrUnknownTrack is returned for a track name not in the calendar.
var ErrUnknownTrack = errors.NewStd("unknown track")

// WeatherResolver resolves race-day weather. It never fails.
type WeatherResolver interface {
	Resolve(ctx context.Context, track *season.Track) weather.Result
}

// QualifyingResolver resolves the qualifying order. It never fails.
type QualifyingResolver interface {
	Resolve(ctx context.Context, seasonYear, round int) qualifying.Result
}

// Publisher receives every successful prediction.
type Publisher interface {
	Publish(ctx context.Context, p *Prediction) error
}

// Config wires the service's dependencies. Catalog, Bundle, Weather and
// Qualifying are required.
type Config struct {
	Catalog        *season.Catalog
	Bundle         *model.Bundle
	Weather        WeatherResolver
	Qualifying     QualifyingResolver
	History        history.Store // nil means no history
	Publisher      Publisher     // nil disables publication
	Metrics        *metrics.PredictionMetrics
	Logger         logger.Logger
	Season         int
	FormWindow     int
	PartialResults bool
}

// Service produces predictions. It is safe for concurrent use; all state
// besides in-flight publications is immutable after New.
type Service struct {
	cfg     Config
	builder *features.Builder
	log     logger.Logger
	now     func() time.Time

	publishing sync.WaitGroup
}

// New validates cfg and returns a ready service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, configError("season catalog is required")
	case cfg.Bundle == nil || cfg.Bundle.Driver == nil || cfg.Bundle.Constructor == nil || cfg.Bundle.Encoding == nil:
		return nil, errors.New(errors.NewStd("model bundle is incomplete")).
			Component("prediction").
			Category(errors.CategoryModelLoad).
			Build()
	case cfg.Weather == nil || cfg.Qualifying == nil:
		return nil, configError("weather and qualifying resolvers are required")
	}
	if cfg.History == nil {
		cfg.History = history.Nop{}
	}
	if cfg.FormWindow <= 0 {
		cfg.FormWindow = history.DefaultWindow
	}
	if cfg.Season == 0 {
		cfg.Season = cfg.Catalog.Season()
	}
	s := &Service{
		cfg:     cfg,
		builder: features.NewBuilder(cfg.Bundle.Encoding, cfg.Catalog),
		log:     cfg.Logger,
		now:     time.Now,
	}
	if s.log == nil {
		s.log = logger.Global().Module("prediction")
	}
	if cfg.Metrics != nil {
		cfg.Metrics.SetModelsLoaded(true)
	}
	return s, nil
}

func configError(msg string) error {
	return errors.New(errors.NewStd(msg)).
		Component("prediction").
		Category(errors.CategoryConfiguration).
		Build()
}

// ModelVersion reports the loaded model version.
func (s *Service) ModelVersion() string { return s.cfg.Bundle.Version() }

// Predict ranks every roster driver for the named Grand Prix.
func (s *Service) Predict(ctx context.Context, trackName string) (*Prediction, error) {
	start := time.Now()
	track, ok := s.cfg.Catalog.TrackByName(trackName)
	if !ok {
		return nil, errors.Newf("%w: %s", ErrUnknownTrack, trackName).
			Component("prediction").
			Category(errors.CategoryNotFound).
			Context("track", trackName).
			Build()
	}

	p, err := s.predict(ctx, track)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordPrediction(track.Key, status, time.Since(start).Seconds())
	}
	if err != nil {
		s.log.Error("prediction failed", logger.String("race", track.Name), logger.Error(err))
		return nil, err
	}

	s.log.Info("prediction generated",
		logger.String("race", track.Name),
		logger.Int("round", track.Round),
		logger.String("weather_source", string(p.Meta.WeatherSource)),
		logger.String("qualifying_source", string(p.Meta.QualifyingDataSource)),
		logger.Bool("partial", p.Meta.Partial),
		logger.Duration("elapsed", time.Since(start)))

	s.publish(ctx, p)
	return p, nil
}

func (s *Service) predict(ctx context.Context, track season.Track) (*Prediction, error) {
	var w weather.Result
	var q qualifying.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w = s.cfg.Weather.Resolve(gctx, &track)
		return nil
	})
	g.Go(func() error {
		q = s.cfg.Qualifying.Resolve(gctx, s.cfg.Season, track.Round)
		return nil
	})
	_ = g.Wait()

	drivers := s.cfg.Catalog.Drivers()
	driverForms, recentForm := s.driverForms(ctx, drivers)

	enc := s.cfg.Bundle.Encoding
	rows := s.builder.DriverRows(track, w.Reading, q, recentForm)

	var candidates []scored
	var omitted []string
	for i, row := range rows {
		score, err := s.score(s.cfg.Bundle.Driver, row, enc.DriverColumns)
		if err != nil {
			if !s.cfg.PartialResults {
				return nil, errors.New(err).
					Component("prediction").
					Category(errors.CategoryProcessing).
					Context("driver", row.Driver).
					Context("race", track.Name).
					Build()
			}
			s.log.Warn("omitting driver with malformed features",
				logger.String("driver", row.Driver),
				logger.String("race", track.Name),
				logger.Error(err))
			omitted = append(omitted, row.Driver)
			continue
		}
		candidates = append(candidates, scored{
			index:      i,
			score:      score,
			qualifying: row.Values[features.ColQualifyingPosition],
			name:       row.Driver,
		})
	}
	if len(candidates) == 0 {
		return nil, errors.Newf("no driver could be scored for %s", track.Name).
			Component("prediction").
			Category(errors.CategoryProcessing).
			Build()
	}
	if len(omitted) > 0 && s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordPartial(len(omitted))
	}

	rankScores(candidates)
	sortedScores := make([]float64, len(candidates))
	for i, c := range candidates {
		sortedScores[i] = c.score
	}

	pointsPositions := s.cfg.Catalog.PointsPositions()
	results := make([]DriverPrediction, len(candidates))
	teamPoints := make(map[string]int)
	for rank, c := range candidates {
		d := drivers[c.index]
		position := rank + 1
		results[rank] = DriverPrediction{
			Driver:             d.Name,
			Abbreviation:       d.Abbreviation,
			Team:               d.Team,
			PredictedPosition:  position,
			Score:              round3(c.score),
			ProbabilityTop3:    positionProbability(c.score, sortedScores, top3Positions),
			ProbabilityPoints:  positionProbability(c.score, sortedScores, pointsPositions),
			QualifyingPosition: c.qualifying,
			Form:               driverForms[d.Name],
		}
		teamPoints[s.cfg.Catalog.NormalizeTeam(d.Team)] += s.cfg.Catalog.Points(position)
	}

	constructors, err := s.constructors(ctx, track, w.Reading, teamPoints)
	if err != nil {
		return nil, err
	}

	used := FeaturesUsed{
		Columns:   enc.DriverColumns,
		LapTime:   track.AvgLapTime,
		TyreLife:  enc.Defaults.TyreLife,
		LapNumber: enc.Defaults.LapNumber,
		Weather:   w.Reading,
		Drivers:   make(map[string]DriverFeatures, len(rows)),
	}
	for _, row := range rows {
		used.Drivers[row.Driver] = DriverFeatures{
			Team:               row.Team,
			QualifyingPosition: row.Values[features.ColQualifyingPosition],
			RecentForm:         row.Values[features.ColRecentForm],
		}
	}

	return &Prediction{
		Race:        track.Name,
		CircuitKey:  track.Key,
		Season:      s.cfg.Season,
		RoundNumber: track.Round,
		Weather: WeatherInfo{
			AirTemp:         w.AirTemp,
			TrackTemp:       w.TrackTemp,
			Humidity:        w.Humidity,
			Condition:       w.Condition,
			RainProbability: w.RainProbability,
			Source:          w.Source,
			Provider:        w.Provider,
		},
		PredictedDriverResults:      results,
		PredictedConstructorResults: constructors,
		FeaturesUsed:                used,
		Meta: Meta{
			ModelVersion:         s.ModelVersion(),
			DataSource:           DataSourceModel,
			QualifyingDataSource: q.Source,
			QualifyingOrigin:     q.Origin,
			WeatherSource:        w.Source,
			Partial:              len(omitted) > 0,
			OmittedDrivers:       omitted,
			LastUpdated:          s.now().UTC(),
		},
	}, nil
}

// driverForms returns the response form block per driver and the recent
// average finish fed to the model. Drivers without history get the baseline
// form in the response and no model entry, so the builder uses its default.
func (s *Service) driverForms(ctx context.Context, drivers []season.Driver) (map[string]history.DriverForm, map[string]float64) {
	forms := make(map[string]history.DriverForm, len(drivers))
	recent := make(map[string]float64, len(drivers))
	for _, d := range drivers {
		results, err := s.cfg.History.RecentResults(ctx, d.Name, s.cfg.FormWindow)
		if err != nil {
			s.log.Warn("history lookup failed", logger.String("driver", d.Name), logger.Error(err))
		}
		if len(results) == 0 {
			forms[d.Name] = history.BaselineForm(d)
			continue
		}
		form := history.CalculateForm(results)
		forms[d.Name] = form
		recent[d.Name] = form.AvgPosition
	}
	return forms, recent
}

func (s *Service) constructors(ctx context.Context, track season.Track, w weather.Reading, teamPoints map[string]int) ([]ConstructorPrediction, error) {
	teams := s.cfg.Catalog.Teams()
	byKey := make(map[string]season.Team, len(teams))
	for _, t := range teams {
		byKey[t.Key] = t
	}

	enc := s.cfg.Bundle.Encoding
	rows := s.builder.ConstructorRows(track, w)
	standings := make([]teamStanding, 0, len(rows))
	for _, row := range rows {
		expected, err := s.score(s.cfg.Bundle.Constructor, row, enc.ConstructorColumns)
		if err != nil {
			return nil, errors.New(err).
				Component("prediction").
				Category(errors.CategoryProcessing).
				Context("team", row.Team).
				Build()
		}
		standings = append(standings, teamStanding{
			key:      row.Team,
			name:     byKey[row.Team].Name,
			points:   teamPoints[row.Team],
			expected: expected,
		})
	}
	rankTeams(standings)

	out := make([]ConstructorPrediction, len(standings))
	for i, st := range standings {
		form := history.BaselineConstructorForm(byKey[st.key])
		results, err := s.cfg.History.RecentTeamResults(ctx, st.key, s.cfg.FormWindow)
		if err != nil {
			s.log.Warn("history lookup failed", logger.String("team", st.key), logger.Error(err))
		}
		if len(results) > 0 {
			form = history.CalculateConstructorForm(results)
		}
		out[i] = ConstructorPrediction{
			Team:              st.name,
			PredictedPosition: i + 1,
			PredictedPoints:   st.points,
			ExpectedPoints:    round1(max(0, st.expected)),
			Form:              form,
		}
	}
	return out, nil
}

func (s *Service) score(r *model.Regressor, row features.Row, columns []string) (float64, error) {
	if err := row.Validate(); err != nil {
		return 0, err
	}
	return r.Predict(row.Vector(columns))
}

// publish hands the prediction to the publisher in the background. Failures
// are logged and counted, never returned.
func (s *Service) publish(ctx context.Context, p *Prediction) {
	if s.cfg.Publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.publishing.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
		defer cancel()
		status := metrics.StatusSuccess
		if err := s.cfg.Publisher.Publish(ctx, p); err != nil {
			status = metrics.StatusError
			s.log.Warn("prediction publish failed", logger.String("race", p.Race), logger.Error(err))
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordPublish(status)
		}
	})
}

// Close waits for in-flight publications.
func (s *Service) Close() {
	s.publishing.Wait()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

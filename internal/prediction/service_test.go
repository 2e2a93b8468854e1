package prediction

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

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

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubWeather struct{ result weather.Result }

func (s stubWeather) Resolve(context.Context, *season.Track) weather.Result { return s.result }

type stubQualifying struct{ result qualifying.Result }

func (s stubQualifying) Resolve(context.Context, int, int) qualifying.Result { return s.result }

type recordingPublisher struct {
	mu   sync.Mutex
	got  []*Prediction
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, pred *Prediction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, pred)
	if p.fail {
		return errors.NewStd("broker down")
	}
	return nil
}

type stubHistory struct {
	history.Nop
	driver map[string][]history.RaceResult
}

func (h stubHistory) RecentResults(_ context.Context, driver string, _ int) ([]history.RaceResult, error) {
	return h.driver[driver], nil
}

// qualifyingBundle scores each driver by their qualifying position, so the
// ranking follows the grid. Constructors all expect team-power-free 10 points.
func qualifyingBundle(catalog *season.Catalog) *model.Bundle {
	var drivers, teams []string
	for _, d := range catalog.Drivers() {
		drivers = append(drivers, features.DriverCategory(d.Name))
	}
	for _, t := range catalog.Teams() {
		teams = append(teams, t.Key)
	}
	enc := features.NewEncoding("test-1", drivers, teams)

	coef := make([]float64, len(enc.DriverColumns))
	for i, c := range enc.DriverColumns {
		if c == features.ColQualifyingPosition {
			coef[i] = 1
		}
	}
	return &model.Bundle{
		Encoding: enc,
		Driver: &model.Regressor{
			Name: "driver", Version: "test-1", Features: enc.DriverColumns, Coefficients: coef,
		},
		Constructor: &model.Regressor{
			Name: "constructor", Features: enc.ConstructorColumns,
			Coefficients: make([]float64, len(enc.ConstructorColumns)), Intercept: 10,
		},
	}
}

func gridFromBaseline(catalog *season.Catalog) map[string]float64 {
	grid := map[string]float64{}
	for i, d := range catalog.DriversByBaseline() {
		grid[d.Name] = float64(i + 1)
	}
	return grid
}

func newTestService(t *testing.T, mutate func(*Config)) *Service {
	t.Helper()
	catalog := season.Default()
	cfg := Config{
		Catalog: catalog,
		Bundle:  qualifyingBundle(catalog),
		Weather: stubWeather{weather.Result{
			Reading: weather.Reading{AirTemp: 25, TrackTemp: 30, Humidity: 50, Condition: weather.ConditionClear},
			Source:  weather.SourceFallback, Provider: "historical",
		}},
		Qualifying: stubQualifying{qualifying.Result{
			Positions: gridFromBaseline(catalog),
			Source:    qualifying.SourceLive,
			Origin:    qualifying.OriginErgast,
		}},
		Logger: logger.NewWriterLogger(io.Discard, logger.LogLevelDebug).Module("prediction"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPredict_Monaco(t *testing.T) {
	t.Parallel()

	s := newTestService(t, nil)
	p, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.NoError(t, err)

	assert.Equal(t, "Monaco Grand Prix", p.Race)
	assert.Equal(t, "monte_carlo", p.CircuitKey)
	assert.Equal(t, 8, p.RoundNumber)
	assert.Equal(t, 2025, p.Season)
	assert.Equal(t, weather.SourceFallback, p.Weather.Source)
	assert.Equal(t, weather.SourceFallback, p.Meta.WeatherSource)
	assert.Equal(t, qualifying.SourceLive, p.Meta.QualifyingDataSource)
	assert.Equal(t, qualifying.OriginErgast, p.Meta.QualifyingOrigin)
	assert.Equal(t, "test-1", p.Meta.ModelVersion)
	assert.Equal(t, DataSourceModel, p.Meta.DataSource)
	assert.False(t, p.Meta.Partial)
	assert.InDelta(t, 72.0, p.FeaturesUsed.LapTime, 0)

	// Every roster driver exactly once, positions 1..N.
	roster := season.Default().Drivers()
	require.Len(t, p.PredictedDriverResults, len(roster))
	seen := map[string]bool{}
	for i, r := range p.PredictedDriverResults {
		assert.Equal(t, i+1, r.PredictedPosition)
		assert.False(t, seen[r.Driver], "duplicate %s", r.Driver)
		seen[r.Driver] = true
	}

	first := p.PredictedDriverResults[0]
	assert.Equal(t, "Lando Norris", first.Driver)
	assert.Equal(t, "NOR", first.Abbreviation)
	assert.InDelta(t, 0.7, first.ProbabilityTop3, 1e-9)
	assert.InDelta(t, 0.95, first.ProbabilityPoints, 1e-9)
	assert.Equal(t, history.FormSourceBaseline, first.Form.Source)

	last := p.PredictedDriverResults[len(roster)-1]
	assert.InDelta(t, 0.05, last.ProbabilityTop3, 1e-9)
}

func TestPredict_ConstructorPoints(t *testing.T) {
	t.Parallel()

	s := newTestService(t, nil)
	p, err := s.Predict(context.Background(), "monza")
	require.NoError(t, err)

	catalog := season.Default()
	require.Len(t, p.PredictedConstructorResults, len(catalog.Teams()))

	total := 0
	expected := map[string]int{}
	for _, d := range p.PredictedDriverResults {
		team, ok := catalog.Team(d.Team)
		require.True(t, ok)
		expected[team.Name] += catalog.Points(d.PredictedPosition)
	}
	prev := 1 << 30
	for i, c := range p.PredictedConstructorResults {
		assert.Equal(t, i+1, c.PredictedPosition)
		assert.Equal(t, expected[c.Team], c.PredictedPoints, c.Team)
		assert.LessOrEqual(t, c.PredictedPoints, prev)
		assert.InDelta(t, 10.0, c.ExpectedPoints, 1e-9)
		prev = c.PredictedPoints
		total += c.PredictedPoints
	}
	assert.Equal(t, 101, total)
	assert.Equal(t, "McLaren", p.PredictedConstructorResults[0].Team)
}

func TestPredict_EveryTrackRanksWholeGrid(t *testing.T) {
	t.Parallel()

	catalog := season.Default()
	s := newTestService(t, nil)

	for _, track := range catalog.Tracks() {
		t.Run(track.Key, func(t *testing.T) {
			p, err := s.Predict(context.Background(), track.Name)
			require.NoError(t, err)
			assert.Equal(t, track.Round, p.RoundNumber)

			roster := catalog.Drivers()
			require.Len(t, p.PredictedDriverResults, len(roster))
			seen := map[int]bool{}
			teamPoints := map[string]int{}
			for i, d := range p.PredictedDriverResults {
				assert.Equal(t, i+1, d.PredictedPosition, d.Driver)
				assert.False(t, seen[d.PredictedPosition], "duplicate position %d", d.PredictedPosition)
				seen[d.PredictedPosition] = true

				team, ok := catalog.Team(d.Team)
				require.True(t, ok, d.Team)
				teamPoints[team.Name] += catalog.Points(d.PredictedPosition)
			}
			assert.Len(t, seen, len(roster))

			require.Len(t, p.PredictedConstructorResults, len(catalog.Teams()))
			for _, c := range p.PredictedConstructorResults {
				assert.Equal(t, teamPoints[c.Team], c.PredictedPoints, c.Team)
			}
		})
	}
}

func TestPredict_TiesBrokenByQualifyingThenName(t *testing.T) {
	t.Parallel()

	// Constant scores: order must follow the grid, then names.
	s := newTestService(t, func(c *Config) {
		for i := range c.Bundle.Driver.Coefficients {
			c.Bundle.Driver.Coefficients[i] = 0
		}
		grid := gridFromBaseline(c.Catalog)
		grid["Max Verstappen"] = grid["Lando Norris"]
		c.Qualifying = stubQualifying{qualifying.Result{Positions: grid, Source: qualifying.SourceLive}}
	})
	p, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.NoError(t, err)
	assert.Equal(t, "Lando Norris", p.PredictedDriverResults[0].Driver)
	assert.Equal(t, "Max Verstappen", p.PredictedDriverResults[1].Driver)
	for i := 1; i < len(p.PredictedDriverResults); i++ {
		assert.LessOrEqual(t, p.PredictedDriverResults[i-1].QualifyingPosition, p.PredictedDriverResults[i].QualifyingPosition)
	}
}

func TestPredict_UnknownTrack(t *testing.T) {
	t.Parallel()

	s := newTestService(t, nil)
	_, err := s.Predict(context.Background(), "Atlantis Grand Prix")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrack)
	assert.True(t, errors.IsNotFound(err))
}

func malformedGrid(c *Config) {
	grid := gridFromBaseline(c.Catalog)
	grid["Lewis Hamilton"] = 0
	c.Qualifying = stubQualifying{qualifying.Result{Positions: grid, Source: qualifying.SourceLive}}
}

func TestPredict_MalformedRowStrict(t *testing.T) {
	t.Parallel()

	s := newTestService(t, malformedGrid)
	_, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))
	assert.ErrorIs(t, err, features.ErrMalformedRow)
}

func TestPredict_MalformedRowPartial(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	pm, err := metrics.NewPredictionMetrics(reg)
	require.NoError(t, err)

	s := newTestService(t, func(c *Config) {
		malformedGrid(c)
		c.PartialResults = true
		c.Metrics = pm
	})
	p, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.NoError(t, err)

	assert.True(t, p.Meta.Partial)
	assert.Equal(t, []string{"Lewis Hamilton"}, p.Meta.OmittedDrivers)
	n := len(season.Default().Drivers()) - 1
	require.Len(t, p.PredictedDriverResults, n)
	assert.Equal(t, n, p.PredictedDriverResults[n-1].PredictedPosition)

	assert.NoError(t, testutil.CollectAndCompare(pm, strings.NewReader(`
# HELP f1predict_predictions_partial_total Total number of predictions returned with omitted drivers
# TYPE f1predict_predictions_partial_total counter
f1predict_predictions_partial_total 1
`), "f1predict_predictions_partial_total"))
}

func TestPredict_FormFromHistory(t *testing.T) {
	t.Parallel()

	s := newTestService(t, func(c *Config) {
		c.History = stubHistory{driver: map[string][]history.RaceResult{
			"Oscar Piastri": {
				{Position: 4, Grid: 3, Status: history.StatusFinished, Points: 12},
				{Position: 2, Grid: 2, Status: history.StatusFinished, Points: 18},
			},
		}}
	})
	p, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.NoError(t, err)

	for _, r := range p.PredictedDriverResults {
		if r.Driver == "Oscar Piastri" {
			assert.Equal(t, history.FormSourceHistory, r.Form.Source)
			assert.InDelta(t, 3.0, r.Form.AvgPosition, 1e-9)
		}
	}
	assert.InDelta(t, 3.0, p.FeaturesUsed.Drivers["Oscar Piastri"].RecentForm, 1e-9)
	assert.InDelta(t, features.DefaultValues.RecentForm, p.FeaturesUsed.Drivers["Lando Norris"].RecentForm, 0)
}

func TestPredict_Publishes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	pm, err := metrics.NewPredictionMetrics(reg)
	require.NoError(t, err)

	pub := &recordingPublisher{fail: true}
	s := newTestService(t, func(c *Config) {
		c.Publisher = pub
		c.Metrics = pm
	})
	p, err := s.Predict(context.Background(), "Monaco Grand Prix")
	require.NoError(t, err, "publish failures never fail the request")
	s.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.got, 1)
	assert.Same(t, p, pub.got[0])
	assert.NoError(t, testutil.CollectAndCompare(pm, strings.NewReader(`
# HELP f1predict_prediction_publish_total Total number of MQTT publications by status
# TYPE f1predict_prediction_publish_total counter
f1predict_prediction_publish_total{status="error"} 1
`), "f1predict_prediction_publish_total"))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(Config{Catalog: season.Default(), Bundle: &model.Bundle{}})
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestPositionProbability(t *testing.T) {
	t.Parallel()

	scores := []float64{1, 2, 3, 4, 30}
	assert.InDelta(t, 0.7, positionProbability(1, scores, 3), 1e-9)
	assert.InDelta(t, 0.5, positionProbability(3, scores, 3), 1e-9)
	assert.InDelta(t, 0.4, positionProbability(4, scores, 3), 1e-9)
	assert.InDelta(t, 0.05, positionProbability(30, scores, 3), 1e-9)
	assert.InDelta(t, 0.95, positionProbability(-100, scores, 3), 1e-9)
	// n beyond the field uses the last score.
	assert.InDelta(t, 0.5, positionProbability(30, scores, 10), 1e-9)
}

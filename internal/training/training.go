// Package training regenerates the model artifacts from the race_data_*.csv
// history: it aggregates per driver and per constructor, splits the samples
// deterministically, fits both ridge models and writes artifacts and metrics.
package training

import (
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/features"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/model"
	"github.com/f1predict/f1predict/internal/season"
)

// Defaults
const (
	DefaultTestFraction = 0.2
	DefaultSeed         = 42
)

// Targets
const (
	TargetPosition = "Position"
	TargetPoints   = "Points"
)

// Config controls a training run.
type Config struct {
	DataDir      string
	OutputDir    string
	TestFraction float64
	Seed         uint64
	Lambda       float64
	Version      string // defaults to a UTC timestamp
	Logger       logger.Logger
}

// ConfigFromSettings maps training settings onto a Config.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		DataDir:      s.Training.DataDir,
		OutputDir:    s.Training.OutputDir,
		TestFraction: s.Training.TestFraction,
		Seed:         s.Training.Seed,
		Lambda:       s.Training.Lambda,
	}
}

// Report summarizes a finished run.
type Report struct {
	Version            string        `json:"version"`
	Races              int           `json:"races"`
	DriverSamples      int           `json:"driver_samples"`
	ConstructorSamples int           `json:"constructor_samples"`
	Skipped            int           `json:"skipped_rows"`
	Driver             model.Metrics `json:"driver"`
	Constructor        model.Metrics `json:"constructor"`
	Paths              model.Paths   `json:"-"`
	Duration           time.Duration `json:"duration"`
}

type dataset struct {
	x [][]float64
	y []float64
}

// Run trains both models and writes the artifacts to cfg.OutputDir.
func Run(ctx context.Context, cfg Config, catalog *season.Catalog) (*Report, error) {
	start := time.Now()
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("training")
	}
	if cfg.TestFraction < 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = DefaultTestFraction
	}
	if cfg.Lambda == 0 {
		cfg.Lambda = model.DefaultLambda
	}
	if cfg.Version == "" {
		cfg.Version = start.UTC().Format("20060102T150405Z")
	}

	races, err := history.LoadCSVDir(ctx, cfg.DataDir, catalog)
	if err != nil {
		return nil, err
	}
	if len(races) == 0 {
		return nil, errors.Newf("no %s files in %s", history.FilePattern, cfg.DataDir).
			Component("training").
			Category(errors.CategoryFileIO).
			Build()
	}
	log.Info("loaded race data", logger.Int("races", len(races)), logger.String("dir", cfg.DataDir))

	driverSamples := buildDriverSamples(races, catalog, history.DefaultWindow)
	teamSamples := buildTeamSamples(races, catalog)
	driverCats, teamCats := categories(driverSamples, teamSamples)

	enc := features.NewEncoding(cfg.Version, driverCats, teamCats)
	builder := features.NewBuilder(enc, catalog)

	report := &Report{Version: cfg.Version, Races: len(races), Paths: model.PathsIn(cfg.OutputDir)}

	var driverData, teamData dataset
	for _, s := range driverSamples {
		row := builder.DriverRow(s.Driver, s.Team, s.Values)
		if err := row.Validate(); err != nil {
			report.Skipped++
			log.Debug("skipping driver sample", logger.String("race", s.Race.Race), logger.Error(err))
			continue
		}
		driverData.x = append(driverData.x, row.Vector(enc.DriverColumns))
		driverData.y = append(driverData.y, s.Position)
	}
	for _, s := range teamSamples {
		row := builder.ConstructorRow(s.Team, s.Values)
		if err := row.Validate(); err != nil {
			report.Skipped++
			log.Debug("skipping constructor sample", logger.String("race", s.Race.Race), logger.Error(err))
			continue
		}
		teamData.x = append(teamData.x, row.Vector(enc.ConstructorColumns))
		teamData.y = append(teamData.y, s.Points)
	}
	report.DriverSamples = len(driverData.y)
	report.ConstructorSamples = len(teamData.y)
	if report.DriverSamples == 0 || report.ConstructorSamples == 0 {
		return nil, errors.Newf("no usable samples (driver %d, constructor %d)", report.DriverSamples, report.ConstructorSamples).
			Component("training").
			Category(errors.CategoryProcessing).
			Build()
	}

	var driverModel, teamModel *model.Regressor
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		driverModel, report.Driver, err = fitAndEvaluate(driverData, enc.DriverColumns, model.FitOptions{
			Name: "driver", Version: cfg.Version, Target: TargetPosition,
			Numeric: enc.DriverNumeric, Lambda: cfg.Lambda,
		}, cfg)
		return err
	})
	g.Go(func() error {
		var err error
		teamModel, report.Constructor, err = fitAndEvaluate(teamData, enc.ConstructorColumns, model.FitOptions{
			Name: "constructor", Version: cfg.Version, Target: TargetPoints,
			Numeric: enc.ConstructorNumeric, Lambda: cfg.Lambda,
		}, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := enc.Save(report.Paths.Encoding); err != nil {
		return nil, err
	}
	if err := driverModel.Save(report.Paths.Driver); err != nil {
		return nil, err
	}
	if err := teamModel.Save(report.Paths.Constructor); err != nil {
		return nil, err
	}
	if err := model.SaveMetrics(filepath.Join(cfg.OutputDir, model.DriverMetricsFile), report.Driver); err != nil {
		return nil, err
	}
	if err := model.SaveMetrics(filepath.Join(cfg.OutputDir, model.ConstructorMetricsFile), report.Constructor); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	log.Info("training complete",
		logger.String("version", cfg.Version),
		logger.Int("driver_samples", report.DriverSamples),
		logger.Int("constructor_samples", report.ConstructorSamples),
		logger.Float64("driver_mae", report.Driver.MAE),
		logger.Float64("constructor_mae", report.Constructor.MAE),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func fitAndEvaluate(data dataset, columns []string, opts model.FitOptions, cfg Config) (*model.Regressor, model.Metrics, error) {
	train, test := split(len(data.y), cfg.TestFraction, cfg.Seed)
	trainX, trainY := pick(data, train)
	r, err := model.Fit(trainX, trainY, columns, opts)
	if err != nil {
		return nil, model.Metrics{}, err
	}
	testX, testY := pick(data, test)
	m, err := model.Evaluate(r, testX, testY)
	if err != nil {
		return nil, model.Metrics{}, err
	}
	return r, m, nil
}

// split shuffles 0..n-1 with a PCG source and holds out frac of it. With
// fewer than two samples everything is used for both fitting and evaluation.
func split(n int, frac float64, seed uint64) (train, test []int) {
	idx := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	nTest := int(math.Round(float64(n) * frac))
	if n < 2 || nTest == 0 {
		return idx, idx
	}
	nTest = min(nTest, n-1)
	return idx[nTest:], idx[:nTest]
}

func pick(data dataset, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = data.x[j]
		y[i] = data.y[j]
	}
	return x, y
}

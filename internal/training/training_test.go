package training

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1predict/f1predict/internal/features"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/model"
	"github.com/f1predict/f1predict/internal/season"
)

var fixtureDrivers = []struct{ code, team string }{
	{"NOR", "McLaren"},
	{"PIA", "McLaren"},
	{"VER", "Red Bull Racing"},
	{"LEC", "Ferrari"},
	{"HAM", "Ferrari"},
}

// writeFixtures writes one race file per circuit; finishing order rotates
// by race and the last driver retires in the second race.
func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	circuits := []string{"melbourne", "shanghai", "suzuka", "monte_carlo", "monza"}
	for r, circuit := range circuits {
		var b strings.Builder
		b.WriteString("Driver,DriverNumber,Team,LapNumber,LapTime,Compound,TyreLife,TrackStatus,Position,QualifyingPosition,AirTemp,TrackTemp,Humidity\n")
		for i, d := range fixtureDrivers {
			pos := (i+r)%len(fixtureDrivers) + 1
			position := fmt.Sprint(pos)
			if r == 1 && i == len(fixtureDrivers)-1 {
				position = ""
			}
			for lap := 1; lap <= 3; lap++ {
				lapTime := 80 + float64(r)*2 + float64(pos)*0.3 + float64(lap)*0.1
				fmt.Fprintf(&b, "%s,0,%s,%d,%.3f,MEDIUM,%d,1,%s,%d,%d,%d,%d\n",
					d.code, d.team, lap, lapTime, lap+5, position, pos, 20+r, 30+r, 50+r)
			}
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "race_data_"+circuit+"_2025.csv"), []byte(b.String()), 0o600))
	}
}

func testConfig(t *testing.T, dataDir string) Config {
	t.Helper()
	return Config{
		DataDir:      dataDir,
		OutputDir:    filepath.Join(t.TempDir(), "models"),
		TestFraction: 0.2,
		Seed:         42,
		Lambda:       1,
		Version:      "test-v1",
		Logger:       logger.NewWriterLogger(io.Discard, logger.LogLevelDebug).Module("training"),
	}
}

func TestRun_WritesLoadableBundle(t *testing.T) {
	t.Parallel()

	data := t.TempDir()
	writeFixtures(t, data)
	cfg := testConfig(t, data)

	report, err := Run(context.Background(), cfg, season.Default())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Races)
	assert.Equal(t, 24, report.DriverSamples, "one DNF is excluded")
	assert.Equal(t, 15, report.ConstructorSamples)
	assert.Equal(t, "test-v1", report.Version)
	assert.Positive(t, report.Driver.Samples)

	bundle, err := model.LoadBundle(model.PathsIn(cfg.OutputDir))
	require.NoError(t, err)
	assert.Equal(t, "test-v1", bundle.Version())
	assert.Contains(t, bundle.Encoding.Drivers, "Lando_Norris")
	assert.Contains(t, bundle.Encoding.Teams, "Red_Bull")
	assert.Equal(t, TargetPosition, bundle.Driver.Target)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, model.DriverMetricsFile))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, model.ConstructorMetricsFile))
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	data := t.TempDir()
	writeFixtures(t, data)

	first, err := Run(context.Background(), testConfig(t, data), season.Default())
	require.NoError(t, err)
	second, err := Run(context.Background(), testConfig(t, data), season.Default())
	require.NoError(t, err)

	a, err := model.Load(first.Paths.Driver)
	require.NoError(t, err)
	b, err := model.Load(second.Paths.Driver)
	require.NoError(t, err)
	assert.Equal(t, a.Coefficients, b.Coefficients)
	assert.InDelta(t, first.Driver.MAE, second.Driver.MAE, 0)
}

func TestRun_NoData(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), testConfig(t, t.TempDir()), season.Default())
	assert.Error(t, err)
}

func TestBuildDriverSamples_RecentForm(t *testing.T) {
	t.Parallel()

	data := t.TempDir()
	writeFixtures(t, data)
	catalog := season.Default()
	races, err := history.LoadCSVDir(context.Background(), data, catalog)
	require.NoError(t, err)

	samples := buildDriverSamples(races, catalog, history.DefaultWindow)
	var norris []driverSample
	for _, s := range samples {
		if s.Driver == "Lando Norris" {
			norris = append(norris, s)
		}
	}
	require.Len(t, norris, 5)
	assert.InDelta(t, history.DefaultFormPosition, norris[0].Values[features.ColRecentForm], 0, "no history before the first race")
	// Norris finishes 1, 2, 3, ... so his form before race 3 is mean(1, 2).
	assert.InDelta(t, 1.5, norris[2].Values[features.ColRecentForm], 1e-9)
	assert.InDelta(t, 3.0, norris[2].Position, 0)
	assert.InDelta(t, 3.0, norris[0].Values[features.ColLapNumber], 0)
	assert.InDelta(t, 7.0, norris[0].Values[features.ColTyreLife], 1e-9)
	assert.InDelta(t, 1.0, norris[0].Values[features.ColQualifyingPosition], 0)
}

func TestBuildTeamSamples_Points(t *testing.T) {
	t.Parallel()

	data := t.TempDir()
	writeFixtures(t, data)
	catalog := season.Default()
	races, err := history.LoadCSVDir(context.Background(), data, catalog)
	require.NoError(t, err)

	samples := buildTeamSamples(races, catalog)
	require.NotEmpty(t, samples)
	first := samples[0]
	assert.Equal(t, "McLaren", first.Team)
	// Race one: Norris P1 and Piastri P2.
	assert.InDelta(t, 43.0, first.Points, 0)
}

func TestSplit(t *testing.T) {
	t.Parallel()

	train, test := split(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
	again, againTest := split(10, 0.2, 42)
	assert.Equal(t, train, again)
	assert.Equal(t, test, againTest)

	seen := map[int]bool{}
	for _, i := range append(train, test...) {
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train, test = split(1, 0.2, 42)
	assert.Equal(t, []int{0}, train)
	assert.Equal(t, train, test)
}

package history

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/season"
)

const lapHeader = "Driver,DriverNumber,Team,LapNumber,LapTime,Compound,TyreLife,TrackStatus,IsPersonalBest,Position,PitInTime,PitOutTime,QualifyingPosition,AirTemp,TrackTemp,Humidity\n"

// writeRace writes a two-lap race file; finishers maps driver code to finishing position (0 = DNF).
func writeRace(t *testing.T, dir, name string, finishers map[string]int, teams map[string]string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(lapHeader)
	for code, pos := range finishers {
		position := ""
		if pos > 0 {
			position = itoa(pos)
		}
		team := teams[code]
		b.WriteString(code + ",1," + team + ",1,0 days 00:01:35.000000,SOFT,1,1,False," + position + ",,,5,25,35,50\n")
		b.WriteString(code + ",1," + team + ",2,92.5,SOFT,2,1,True," + position + ",,,5,25,35,50\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o600))
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

var testTeams = map[string]string{
	"NOR": "McLaren",
	"PIA": "McLaren",
	"VER": "Red Bull",
}

func TestParseLapTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"92.5", 92.5},
		{"0 days 00:01:32.500000", 92.5},
		{"1:32.5", 92.5},
		{"1m32.5s", 92.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseLapTime(tt.in), 1e-9, tt.in)
	}
	assert.True(t, math.IsNaN(ParseLapTime("")))
	assert.True(t, math.IsNaN(ParseLapTime("fast")))
}

func TestReadLaps(t *testing.T) {
	t.Parallel()

	csv := lapHeader +
		"VER,1,Red Bull,1,0 days 00:01:35.000000,soft,3,1,False,2,,,1,26.0,38.0,45\n" +
		"HAM,44,Ferrari,1,95.2,MEDIUM,3,1,True,,,,6,26.0,38.0,45\n"
	laps, err := ReadLaps(strings.NewReader(csv), season.Default())
	require.NoError(t, err)
	require.Len(t, laps, 2)

	assert.Equal(t, "Max Verstappen", laps[0].Driver)
	assert.Equal(t, "VER", laps[0].DriverCode)
	assert.Equal(t, "Red_Bull", laps[0].Team)
	assert.Equal(t, "SOFT", laps[0].Compound)
	assert.InDelta(t, 95.0, laps[0].LapTime, 1e-9)
	assert.InDelta(t, 2.0, laps[0].Position, 1e-9)
	assert.True(t, math.IsNaN(laps[1].Position))
	assert.True(t, laps[1].IsPersonalBest)
}

func TestReadLaps_MissingColumn(t *testing.T) {
	t.Parallel()

	_, err := ReadLaps(strings.NewReader("Driver,Team,LapNumber\nVER,Red Bull,1\n"), season.Default())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
	assert.Contains(t, err.Error(), "LapTime")
}

func TestRaceKeyFromFile(t *testing.T) {
	t.Parallel()

	catalog := season.Default()
	tests := []struct {
		file string
		want RaceKey
	}{
		{"race_data_monte_carlo_2024.csv", RaceKey{Season: 2024, Round: 8, Race: "Monaco Grand Prix"}},
		{"race_data_Monaco_2023.csv", RaceKey{Season: 2023, Round: 8, Race: "Monaco Grand Prix"}},
		{"race_data_Nowhere_2022.csv", RaceKey{Season: 2022, Race: "Nowhere"}},
		{"race_data_misc.csv", RaceKey{Race: "misc"}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, RaceKeyFromFile(tt.file, catalog))
		})
	}
}

func TestFinishingLaps(t *testing.T) {
	t.Parallel()

	laps := []LapRow{
		{Driver: "A", LapNumber: 1},
		{Driver: "B", LapNumber: 1},
		{Driver: "A", LapNumber: 3},
		{Driver: "A", LapNumber: 2},
	}
	out := FinishingLaps(laps)
	require.Len(t, out, 2)
	assert.InDelta(t, 3.0, out[0].LapNumber, 0)
	assert.Equal(t, "B", out[1].Driver)
}

func TestLoadCSVDir_OrderAndResults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRace(t, dir, "race_data_monza_2024.csv", map[string]int{"NOR": 2, "PIA": 1, "VER": 0}, testTeams)
	writeRace(t, dir, "race_data_melbourne_2024.csv", map[string]int{"NOR": 1, "PIA": 3, "VER": 2}, testTeams)
	writeRace(t, dir, "race_data_melbourne_2025.csv", map[string]int{"NOR": 4, "PIA": 3, "VER": 1}, testTeams)

	catalog := season.Default()
	races, err := LoadCSVDir(context.Background(), dir, catalog)
	require.NoError(t, err)
	require.Len(t, races, 3)
	assert.Equal(t, "Australian Grand Prix", races[0].Key.Race)
	assert.Equal(t, 2024, races[0].Key.Season)
	assert.Equal(t, "Italian Grand Prix (Monza)", races[1].Key.Race)
	assert.Equal(t, 2025, races[2].Key.Season)

	results := races[1].Results(catalog)
	require.Len(t, results, 3)
	byDriver := map[string]RaceResult{}
	for _, r := range results {
		byDriver[r.Driver] = r
	}
	assert.Equal(t, StatusDNF, byDriver["Max Verstappen"].Status)
	assert.InDelta(t, 25.0, byDriver["Oscar Piastri"].Points, 0)
	assert.Equal(t, 5, byDriver["Lando Norris"].Grid)
}

func TestLoadCSVDir_Empty(t *testing.T) {
	t.Parallel()

	races, err := LoadCSVDir(context.Background(), filepath.Join(t.TempDir(), "missing"), season.Default())
	require.NoError(t, err)
	assert.Empty(t, races)
}

func TestCSVStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRace(t, dir, "race_data_melbourne_2025.csv", map[string]int{"NOR": 1, "PIA": 2, "VER": 3}, testTeams)
	writeRace(t, dir, "race_data_shanghai_2025.csv", map[string]int{"NOR": 2, "PIA": 1, "VER": 0}, testTeams)
	writeRace(t, dir, "race_data_suzuka_2025.csv", map[string]int{"NOR": 3, "PIA": 4, "VER": 1}, testTeams)

	ctx := context.Background()
	store, err := NewCSVStore(ctx, dir, season.Default())
	require.NoError(t, err)
	defer store.Close()

	recent, err := store.RecentResults(ctx, "Lando Norris", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].Round)
	assert.Equal(t, 3, recent[1].Round)

	team, err := store.RecentTeamResults(ctx, "McLaren", 2)
	require.NoError(t, err)
	assert.Len(t, team, 4)

	races, err := store.Races(ctx)
	require.NoError(t, err)
	assert.Len(t, races, 3)

	none, err := store.RecentResults(ctx, "Nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Len(t, store.AllResults(), 9)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	results := []RaceResult{
		{Season: 2025, Round: 1, Race: "Australian Grand Prix", Driver: "Lando Norris", Team: "McLaren", Position: 1, Status: StatusFinished, Points: 25},
		{Season: 2025, Round: 1, Race: "Australian Grand Prix", Driver: "Oscar Piastri", Team: "McLaren", Position: 9, Status: StatusFinished, Points: 2},
		{Season: 2025, Round: 2, Race: "Chinese Grand Prix", Driver: "Lando Norris", Team: "McLaren", Position: 2, Status: StatusFinished, Points: 18},
		{Season: 2025, Round: 2, Race: "Chinese Grand Prix", Driver: "Oscar Piastri", Team: "McLaren", Position: 1, Status: StatusFinished, Points: 25},
		{Season: 2025, Round: 3, Race: "Japanese Grand Prix", Driver: "Lando Norris", Team: "McLaren", Position: 2, Status: StatusFinished, Points: 18},
	}
	n, err := store.Import(ctx, results)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// Re-import updates in place.
	results[0].Position = 3
	results[0].Points = 15
	_, err = store.Import(ctx, results[:1])
	require.NoError(t, err)

	recent, err := store.RecentResults(ctx, "Lando Norris", 5)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 1, recent[0].Round, "oldest first")
	assert.Equal(t, 3, recent[0].Position)

	team, err := store.RecentTeamResults(ctx, "McLaren", 2)
	require.NoError(t, err)
	require.Len(t, team, 3)
	assert.Equal(t, 2, team[0].Round)

	races, err := store.Races(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RaceKey{
		{2025, 1, "Australian Grand Prix"},
		{2025, 2, "Chinese Grand Prix"},
		{2025, 3, "Japanese Grand Prix"},
	}, races)
}

func TestOpenDB_ClosesPoolWhenMigrationFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	setup, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	// a view squatting on the table name makes CREATE TABLE fail
	require.NoError(t, setup.Exec("CREATE VIEW race_results AS SELECT 1 AS id").Error)
	sqlDB, err := setup.DB()
	require.NoError(t, err)

	store, err := openDB(sqlite.New(sqlite.Config{Conn: sqlDB}), "sqlite", path)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.ErrorContains(t, sqlDB.Ping(), "database is closed")
}

func TestMySQLConfig_DSN(t *testing.T) {
	t.Parallel()

	cfg := MySQLConfig{Host: "db.internal", Port: 3306, Username: "f1", Password: "p@ss:word", Database: "history"}
	dsn := cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "f1:p@ss:word@tcp(db.internal:3306)/history?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), &conf.HistorySettings{Backend: "mongo"}, season.Default())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCalculateForm(t *testing.T) {
	t.Parallel()

	t.Run("empty defaults to mid-field", func(t *testing.T) {
		form := CalculateForm(nil)
		assert.InDelta(t, 10.0, form.AvgPosition, 0)
		assert.InDelta(t, 10.0, form.AvgQualifying, 0)
		assert.Equal(t, TrendStable, form.Trend)
	})

	t.Run("aggregates", func(t *testing.T) {
		results := []RaceResult{
			{Position: 8, Grid: 9, Status: StatusFinished, Points: 4},
			{Position: 6, Grid: 7, Status: StatusFinished, Points: 8},
			{Status: StatusDNF, Grid: 4},
			{Position: 3, Grid: 2, Status: StatusFinished, Points: 15},
			{Position: 2, Grid: 3, Status: StatusFinished, Points: 18},
		}
		form := CalculateForm(results)
		assert.InDelta(t, 4.8, form.AvgPosition, 1e-9)
		assert.InDelta(t, 5.0, form.AvgQualifying, 1e-9)
		assert.InDelta(t, 45.0, form.PointsLastN, 1e-9)
		assert.Equal(t, 1, form.DNFCount)
		assert.Equal(t, 2, form.Podiums)
		assert.Equal(t, TrendImproving, form.Trend)
	})

	t.Run("declining", func(t *testing.T) {
		results := []RaceResult{
			{Position: 1, Status: StatusFinished},
			{Position: 2, Status: StatusFinished},
			{Position: 9, Status: StatusFinished},
			{Position: 11, Status: StatusFinished},
		}
		assert.Equal(t, TrendDeclining, CalculateForm(results).Trend)
	})

	t.Run("two races are stable", func(t *testing.T) {
		results := []RaceResult{
			{Position: 15, Status: StatusFinished},
			{Position: 1, Status: StatusFinished},
		}
		assert.Equal(t, TrendStable, CalculateForm(results).Trend)
	})
}

func TestBaselineForm(t *testing.T) {
	t.Parallel()

	nor, ok := season.Default().DriverByAbbreviation("NOR")
	require.True(t, ok)
	form := BaselineForm(nor)
	assert.InDelta(t, 3.0, form.AvgPosition, 0)
	assert.InDelta(t, 52.0, form.PointsLastN, 0)
	assert.Equal(t, 1, form.Podiums)
	assert.Equal(t, FormSourceBaseline, form.Source)

	bor, ok := season.Default().DriverByAbbreviation("BOR")
	require.True(t, ok)
	form = BaselineForm(bor)
	assert.InDelta(t, 0.0, form.PointsLastN, 0)
	assert.Equal(t, 0, form.Podiums)
}

func TestConstructorForm(t *testing.T) {
	t.Parallel()

	form := CalculateConstructorForm([]RaceResult{
		{Position: 1, Status: StatusFinished, Points: 25},
		{Position: 4, Status: StatusFinished, Points: 12},
		{Status: StatusDNF},
		{Position: 3, Status: StatusFinished, Points: 15},
	})
	assert.InDelta(t, 2.7, form.AvgPosition, 1e-9)
	assert.InDelta(t, 52.0, form.PointsLastN, 1e-9)
	assert.InDelta(t, 0.75, form.ReliabilityRate, 1e-9)
	assert.Equal(t, 1, form.BestResult)

	team, ok := season.Default().Team("McLaren")
	require.True(t, ok)
	baseline := BaselineConstructorForm(team)
	assert.InDelta(t, 2.0, baseline.AvgPosition, 1e-9)
	assert.InDelta(t, 45.0, baseline.PointsLastN, 1e-9)
	assert.InDelta(t, 0.95, baseline.ReliabilityRate, 1e-9)
	assert.Equal(t, 1, baseline.BestResult)
}

func TestNop(t *testing.T) {
	t.Parallel()

	var store Store = Nop{}
	results, err := store.RecentResults(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, store.Close())
}

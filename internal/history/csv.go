package history

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/season"
)

// FilePattern matches the per-race lap files.
const FilePattern = "race_data_*.csv"

// Required CSV columns. The rest are optional and read as NaN when absent.
var requiredColumns = []string{"Driver", "Team", "LapNumber", "LapTime", "Position"}

// LapRow is one lap of one driver as exported by the data collector.
type LapRow struct {
	Driver             string // roster name when the code or name is known
	DriverCode         string // raw Driver column
	DriverNumber       int
	Team               string // normalized team key
	LapNumber          float64
	LapTime            float64 // seconds
	Compound           string
	TyreLife           float64
	TrackStatus        string
	IsPersonalBest     bool
	Position           float64 // finishing position, NaN when not classified
	PitInTime          string
	PitOutTime         string
	QualifyingPosition float64
	AirTemp            float64
	TrackTemp          float64
	Humidity           float64
}

// RaceData is the lap data of one race file.
type RaceData struct {
	Key  RaceKey
	File string
	Laps []LapRow
}

// LoadCSVDir reads every race_data_*.csv in dir in parallel and returns the
// races in chronological order. A missing or empty directory yields no races.
func LoadCSVDir(ctx context.Context, dir string, catalog *season.Catalog) ([]RaceData, error) {
	files, err := filepath.Glob(filepath.Join(dir, FilePattern))
	if err != nil {
		return nil, errors.New(err).
			Component("history").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	slices.Sort(files)

	races := make([]RaceData, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			race, err := loadRaceFile(path, catalog)
			if err != nil {
				return err
			}
			races[i] = race
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(races, func(a, b RaceData) int {
		switch {
		case a.Key.Less(b.Key):
			return -1
		case b.Key.Less(a.Key):
			return 1
		default:
			return strings.Compare(a.File, b.File)
		}
	})
	return races, nil
}

func loadRaceFile(path string, catalog *season.Catalog) (RaceData, error) {
	f, err := os.Open(path)
	if err != nil {
		return RaceData{}, errors.New(err).
			Component("history").
			Category(errors.CategoryFileIO).
			Context("file", filepath.Base(path)).
			Build()
	}
	defer f.Close()

	laps, err := ReadLaps(f, catalog)
	if err != nil {
		return RaceData{}, errors.New(err).
			Component("history").
			Category(errors.CategoryFileParsing).
			Context("file", filepath.Base(path)).
			Build()
	}
	return RaceData{
		Key:  RaceKeyFromFile(path, catalog),
		File: filepath.Base(path),
		Laps: laps,
	}, nil
}

// RaceKeyFromFile derives season, round and race name from
// race_data_<circuit>_<year>.csv. The round comes from the catalog.
func RaceKeyFromFile(path string, catalog *season.Catalog) RaceKey {
	base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "race_data_"), ".csv")
	key := RaceKey{Race: base}
	if i := strings.LastIndex(base, "_"); i > 0 {
		if year, err := strconv.Atoi(base[i+1:]); err == nil && year > 1900 {
			key.Season = year
			key.Race = base[:i]
		}
	}
	if catalog != nil {
		if track, ok := lookupTrack(catalog, key.Race); ok {
			key.Round = track.Round
			key.Race = track.Name
		}
	}
	return key
}

func lookupTrack(catalog *season.Catalog, slug string) (season.Track, bool) {
	if t, ok := catalog.TrackByKey(strings.ToLower(slug)); ok {
		return t, true
	}
	name := strings.ReplaceAll(slug, "_", " ")
	if t, ok := catalog.TrackByName(name); ok {
		return t, true
	}
	return catalog.TrackByName(name + " Grand Prix")
}

// ReadLaps parses a lap CSV with a header row.
func ReadLaps(r io.Reader, catalog *season.Catalog) ([]LapRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New(err).
			Component("history").
			Category(errors.CategoryFileParsing).
			Context("operation", "read_header").
			Build()
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, errors.Newf("missing required column %q", col).
				Component("history").
				Category(errors.CategoryFileParsing).
				Build()
		}
	}

	var laps []LapRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(err).
				Component("history").
				Category(errors.CategoryFileParsing).
				Context("line", line).
				Build()
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := LapRow{
			DriverCode:         field("Driver"),
			DriverNumber:       int(parseFloat(field("DriverNumber"))),
			LapNumber:          parseFloat(field("LapNumber")),
			LapTime:            ParseLapTime(field("LapTime")),
			Compound:           strings.ToUpper(field("Compound")),
			TyreLife:           parseFloat(field("TyreLife")),
			TrackStatus:        field("TrackStatus"),
			IsPersonalBest:     parseBool(field("IsPersonalBest")),
			Position:           parseFloat(field("Position")),
			PitInTime:          field("PitInTime"),
			PitOutTime:         field("PitOutTime"),
			QualifyingPosition: parseFloat(field("QualifyingPosition")),
			AirTemp:            parseFloat(field("AirTemp")),
			TrackTemp:          parseFloat(field("TrackTemp")),
			Humidity:           parseFloat(field("Humidity")),
		}
		if row.DriverCode == "" {
			continue
		}
		row.Driver = resolveDriver(catalog, row.DriverCode, row.DriverNumber)
		row.Team = field("Team")
		if catalog != nil {
			row.Team = catalog.NormalizeTeam(row.Team)
		}
		laps = append(laps, row)
	}
	return laps, nil
}

func resolveDriver(catalog *season.Catalog, code string, number int) string {
	if catalog == nil {
		return code
	}
	if d, ok := catalog.DriverByAbbreviation(code); ok {
		return d.Name
	}
	if d, ok := catalog.DriverByName(code); ok {
		return d.Name
	}
	if number > 0 {
		if d, ok := catalog.DriverByNumber(number); ok {
			return d.Name
		}
	}
	return code
}

// ParseLapTime accepts seconds ("92.5"), pandas timedeltas
// ("0 days 00:01:32.500000"), clock times ("1:32.5") and Go durations.
func ParseLapTime(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if i := strings.Index(s, "days"); i >= 0 {
		days := parseFloat(strings.TrimSpace(s[:i]))
		if math.IsNaN(days) {
			days = 0
		}
		return days*86400 + parseClock(strings.TrimSpace(s[i+len("days"):]))
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d.Seconds()
	}
	return math.NaN()
}

// parseClock parses [hh:]mm:ss[.fff].
func parseClock(s string) float64 {
	parts := strings.Split(s, ":")
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return math.NaN()
		}
		total = total*60 + v
	}
	return total
}

func parseFloat(s string) float64 {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// FinishingLaps keeps the highest-numbered lap per driver, in first-seen driver order.
func FinishingLaps(laps []LapRow) []LapRow {
	index := make(map[string]int)
	var out []LapRow
	for _, lap := range laps {
		i, ok := index[lap.Driver]
		if !ok {
			index[lap.Driver] = len(out)
			out = append(out, lap)
			continue
		}
		if math.IsNaN(out[i].LapNumber) || lap.LapNumber >= out[i].LapNumber {
			out[i] = lap
		}
	}
	return out
}

// Results converts a race's finishing laps into race results.
func (r RaceData) Results(catalog *season.Catalog) []RaceResult {
	finishing := FinishingLaps(r.Laps)
	results := make([]RaceResult, 0, len(finishing))
	for _, lap := range finishing {
		res := RaceResult{
			Season: r.Key.Season,
			Round:  r.Key.Round,
			Race:   r.Key.Race,
			Driver: lap.Driver,
			Team:   lap.Team,
			Status: StatusDNF,
		}
		if !math.IsNaN(lap.Position) && lap.Position > 0 {
			res.Position = int(lap.Position)
			res.Status = StatusFinished
			if catalog != nil {
				res.Points = float64(catalog.Points(res.Position))
			}
		}
		if !math.IsNaN(lap.QualifyingPosition) && lap.QualifyingPosition > 0 {
			res.Grid = int(lap.QualifyingPosition)
		}
		results = append(results, res)
	}
	return results
}

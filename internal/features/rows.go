package features

import (
	"math"
	"slices"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/qualifying"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/weather"
)

// MaxQualifyingPosition bounds a valid grid slot.
const MaxQualifyingPosition = 30

// ErrMalformedRow marks a row that cannot be scored.
var ErrMalformedRow = errors.NewStd("malformed feature row")

// Row is one model input: numeric values plus the one-hot columns that are set.
type Row struct {
	Driver string             `json:"driver,omitempty"`
	Team   string             `json:"team"`
	Values map[string]float64 `json:"values"`
}

// Vector returns the row's values in column order. Columns the row does not
// set, including one-hot columns of other categories, are zero.
func (r Row) Vector(columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, c := range columns {
		out[i] = r.Values[c]
	}
	return out
}

// Validate rejects non-finite values, a non-positive lap time and grid slots
// outside 1..MaxQualifyingPosition.
func (r Row) Validate() error {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := r.Values[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return r.malformed("%s is not finite", k)
		}
	}
	if v, ok := r.Values[ColLapTime]; ok && v <= 0 {
		return r.malformed("%s must be positive, got %g", ColLapTime, v)
	}
	if v, ok := r.Values[ColQualifyingPosition]; ok && (v < 1 || v > MaxQualifyingPosition) {
		return r.malformed("%s %g out of range", ColQualifyingPosition, v)
	}
	return nil
}

func (r Row) malformed(format string, args ...any) error {
	return errors.Newf("%w: "+format, append([]any{ErrMalformedRow}, args...)...).
		Component("features").
		Category(errors.CategoryValidation).
		Context("driver", r.Driver).
		Context("team", r.Team).
		Build()
}

// Builder assembles rows against a fixed encoding.
type Builder struct {
	enc     *Encoding
	catalog *season.Catalog
	drivers map[string]struct{}
	teams   map[string]struct{}
}

// NewBuilder returns a builder for enc. catalog supplies the roster and team keys.
func NewBuilder(enc *Encoding, catalog *season.Catalog) *Builder {
	b := &Builder{
		enc:     enc,
		catalog: catalog,
		drivers: make(map[string]struct{}, len(enc.Drivers)),
		teams:   make(map[string]struct{}, len(enc.Teams)),
	}
	for _, d := range enc.Drivers {
		b.drivers[d] = struct{}{}
	}
	for _, t := range enc.Teams {
		b.teams[t] = struct{}{}
	}
	return b
}

// Encoding returns the builder's encoding.
func (b *Builder) Encoding() *Encoding { return b.enc }

// DriverRow builds a driver row from numeric values. Unknown driver or team
// categories get no one-hot column.
func (b *Builder) DriverRow(driver, team string, numeric map[string]float64) Row {
	row := Row{Driver: driver, Team: team, Values: make(map[string]float64, len(numeric)+2)}
	for k, v := range numeric {
		row.Values[k] = v
	}
	if cat := DriverCategory(driver); b.knownDriver(cat) {
		row.Values[b.enc.driverPrefix()+cat] = 1
	}
	if b.knownTeam(team) {
		row.Values[b.enc.teamPrefix()+team] = 1
	}
	return row
}

// ConstructorRow builds a constructor row from numeric values.
func (b *Builder) ConstructorRow(team string, numeric map[string]float64) Row {
	row := Row{Team: team, Values: make(map[string]float64, len(numeric)+1)}
	for k, v := range numeric {
		row.Values[k] = v
	}
	if b.knownTeam(team) {
		row.Values[b.enc.teamPrefix()+team] = 1
	}
	return row
}

// DriverRows builds one row per roster driver, in roster order. forms holds
// each driver's recent average finishing position; missing drivers get the
// mid-field default.
func (b *Builder) DriverRows(track season.Track, w weather.Reading, q qualifying.Result, forms map[string]float64) []Row {
	drivers := b.catalog.Drivers()
	rows := make([]Row, 0, len(drivers))
	for _, d := range drivers {
		form, ok := forms[d.Name]
		if !ok {
			form = b.enc.Defaults.RecentForm
		}
		rows = append(rows, b.DriverRow(d.Name, b.catalog.NormalizeTeam(d.Team), map[string]float64{
			ColLapTime:            track.AvgLapTime,
			ColTyreLife:           b.enc.Defaults.TyreLife,
			ColLapNumber:          b.enc.Defaults.LapNumber,
			ColAirTemp:            w.AirTemp,
			ColTrackTemp:          w.TrackTemp,
			ColHumidity:           w.Humidity,
			ColQualifyingPosition: q.Position(d.Name),
			ColRecentForm:         form,
		}))
	}
	return rows
}

// ConstructorRows builds one row per constructor, in catalog order.
func (b *Builder) ConstructorRows(track season.Track, w weather.Reading) []Row {
	teams := b.catalog.Teams()
	rows := make([]Row, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, b.ConstructorRow(t.Key, map[string]float64{
			ColLapTime:   track.AvgLapTime,
			ColAirTemp:   w.AirTemp,
			ColTrackTemp: w.TrackTemp,
			ColHumidity:  w.Humidity,
		}))
	}
	return rows
}

func (b *Builder) knownDriver(cat string) bool {
	_, ok := b.drivers[cat]
	return ok
}

func (b *Builder) knownTeam(team string) bool {
	_, ok := b.teams[team]
	return ok
}

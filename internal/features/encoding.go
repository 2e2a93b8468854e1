// Package features turns catalog, weather, qualifying and form inputs into
// the numeric rows the regressors consume. Column order and the known
// categories are fixed by the Encoding written at training time.
package features

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/f1predict/f1predict/internal/errors"
)

// Numeric columns
const (
	ColLapTime            = "LapTime"
	ColTyreLife           = "TyreLife"
	ColLapNumber          = "LapNumber"
	ColAirTemp            = "AirTemp"
	ColTrackTemp          = "TrackTemp"
	ColHumidity           = "Humidity"
	ColQualifyingPosition = "QualifyingPosition"
	ColRecentForm         = "RecentForm"
)

// Categorical prefixes
const (
	DriverPrefix = "Driver_"
	TeamPrefix   = "Team_"
)

// EncodingFile is the artifact name of the feature-encoding config.
const EncodingFile = "feature_encoding.json"

// DriverNumeric are the pass-through numeric columns of the driver model.
var DriverNumeric = []string{
	ColLapTime, ColTyreLife, ColLapNumber,
	ColAirTemp, ColTrackTemp, ColHumidity,
	ColQualifyingPosition, ColRecentForm,
}

// ConstructorNumeric are the numeric columns of the constructor model.
var ConstructorNumeric = []string{ColLapTime, ColAirTemp, ColTrackTemp, ColHumidity}

// Defaults fill inputs that are unknown before a race.
type Defaults struct {
	TyreLife           float64 `json:"tyre_life"`
	LapNumber          float64 `json:"lap_number"`
	RecentForm         float64 `json:"recent_form"`
	QualifyingPosition float64 `json:"qualifying_position"`
}

// DefaultValues are the inference defaults for fields with no live source.
var DefaultValues = Defaults{
	TyreLife:           10,
	LapNumber:          50,
	RecentForm:         10.0,
	QualifyingPosition: 15,
}

// Encoding is the feature-encoding config shared by training and inference.
type Encoding struct {
	Version            string   `json:"version"`
	DriverColumns      []string `json:"driver_columns"`
	ConstructorColumns []string `json:"constructor_columns"`
	DriverNumeric      []string `json:"driver_numeric"`
	ConstructorNumeric []string `json:"constructor_numeric"`
	DriverPrefix       string   `json:"driver_prefix"`
	TeamPrefix         string   `json:"team_prefix"`
	Drivers            []string `json:"drivers"` // known driver categories
	Teams              []string `json:"teams"`   // known team categories
	Defaults           Defaults `json:"defaults"`
}

// NewEncoding builds the encoding for the given driver and team categories.
// Categories are deduplicated and sorted so the column order is stable.
func NewEncoding(version string, drivers, teams []string) *Encoding {
	drivers = uniqueSorted(drivers)
	teams = uniqueSorted(teams)

	e := &Encoding{
		Version:            version,
		DriverNumeric:      slices.Clone(DriverNumeric),
		ConstructorNumeric: slices.Clone(ConstructorNumeric),
		DriverPrefix:       DriverPrefix,
		TeamPrefix:         TeamPrefix,
		Drivers:            drivers,
		Teams:              teams,
		Defaults:           DefaultValues,
	}

	e.DriverColumns = slices.Clone(e.DriverNumeric)
	for _, d := range drivers {
		e.DriverColumns = append(e.DriverColumns, DriverPrefix+d)
	}
	for _, t := range teams {
		e.DriverColumns = append(e.DriverColumns, TeamPrefix+t)
	}

	e.ConstructorColumns = slices.Clone(e.ConstructorNumeric)
	for _, t := range teams {
		e.ConstructorColumns = append(e.ConstructorColumns, TeamPrefix+t)
	}
	return e
}

// DriverCategory is the one-hot category of a driver name.
func DriverCategory(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Validate checks the encoding is internally consistent.
func (e *Encoding) Validate() error {
	if len(e.DriverColumns) == 0 || len(e.ConstructorColumns) == 0 {
		return encodingError("encoding has no columns")
	}
	for _, cols := range [][]string{e.DriverColumns, e.ConstructorColumns} {
		seen := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			if _, dup := seen[c]; dup {
				return encodingError("duplicate column " + c)
			}
			seen[c] = struct{}{}
		}
	}
	for _, c := range e.DriverNumeric {
		if !slices.Contains(e.DriverColumns, c) {
			return encodingError("numeric column " + c + " missing from driver columns")
		}
	}
	for _, c := range e.ConstructorNumeric {
		if !slices.Contains(e.ConstructorColumns, c) {
			return encodingError("numeric column " + c + " missing from constructor columns")
		}
	}
	return nil
}

func (e *Encoding) driverPrefix() string {
	if e.DriverPrefix == "" {
		return DriverPrefix
	}
	return e.DriverPrefix
}

func (e *Encoding) teamPrefix() string {
	if e.TeamPrefix == "" {
		return TeamPrefix
	}
	return e.TeamPrefix
}

// LoadEncoding reads and validates an encoding artifact.
func LoadEncoding(path string) (*Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("features").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Build()
	}
	var e Encoding
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.New(err).
			Component("features").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Context("operation", "decode").
			Build()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Save writes the encoding as indented JSON, creating the directory.
func (e *Encoding) Save(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return errors.New(err).Component("features").Category(errors.CategoryProcessing).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).Component("features").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).Component("features").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return nil
}

func encodingError(msg string) error {
	return errors.New(errors.NewStd(msg)).
		Component("features").
		Category(errors.CategoryModelLoad).
		Build()
}

func uniqueSorted(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

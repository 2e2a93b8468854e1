// Package season holds the immutable season catalog: circuits, the driver
// roster, constructors and the points table. The catalog is parsed once from
// an embedded YAML document and never mutated; accessors hand out copies.
package season

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/f1predict/f1predict/internal/errors"
)

//go:embed season_2025.yaml
var defaultCatalog []byte

// Climate is a circuit's stored average race-day weather.
type Climate struct {
	AirTemp   float64 `yaml:"air_temp"`
	TrackTemp float64 `yaml:"track_temp"`
	Humidity  float64 `yaml:"humidity"`
}

// Track is a Grand Prix circuit in the season calendar.
type Track struct {
	Name              string  `yaml:"name"`
	Key               string  `yaml:"key"`
	Round             int     `yaml:"round"`
	City              string  `yaml:"city"`
	Latitude          float64 `yaml:"lat"`
	Longitude         float64 `yaml:"lon"`
	AvgLapTime        float64 `yaml:"lap_time"` // seconds
	Type              string  `yaml:"type"`
	Corners           int     `yaml:"corners"`
	LengthKm          float64 `yaml:"length_km"`
	ClimateGroup      string  `yaml:"climate"`
	HistoricalWeather Climate `yaml:"-"`
}

// Driver is a roster entry.
type Driver struct {
	Name               string  `yaml:"name"`
	Abbreviation       string  `yaml:"code"`
	Number             int     `yaml:"number"`
	Team               string  `yaml:"team"`
	Nationality        string  `yaml:"nationality"`
	BaselineQualifying float64 `yaml:"baseline"`
	ChampionshipPoints int     `yaml:"points"`
}

// Team is a constructor. Key is the normalized name used by feature encodings.
type Team struct {
	Name         string   `yaml:"name"`
	Key          string   `yaml:"key"`
	Color        string   `yaml:"color"`
	PowerRanking float64  `yaml:"power"`
	Aliases      []string `yaml:"aliases"`
}

type document struct {
	Season   int                `yaml:"season"`
	Points   []int              `yaml:"points"`
	Teams    []Team             `yaml:"teams"`
	Drivers  []Driver           `yaml:"drivers"`
	Climates map[string]Climate `yaml:"climates"`
	Tracks   []Track            `yaml:"tracks"`
}

// Catalog is the immutable season data set. It is safe for concurrent use.
type Catalog struct {
	season  int
	points  []int
	tracks  []Track // sorted by round
	drivers []Driver
	teams   []Team

	trackByName  map[string]int
	trackByKey   map[string]int
	driverByCode map[string]int
	driverByNum  map[int]int
	driverByName map[string]int
	teamByAlias  map[string]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once.
// It panics if the embedded document is invalid, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(bytes.NewReader(defaultCatalog))
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded season catalog is invalid: %v", defaultErr))
	}
	return defaultCat
}

// Load parses and validates a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.New(err).
			Component("season").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_catalog").
			Build()
	}
	return newCatalog(&doc)
}

func newCatalog(doc *document) (*Catalog, error) {
	c := &Catalog{
		season:       doc.Season,
		points:       slices.Clone(doc.Points),
		drivers:      doc.Drivers,
		teams:        doc.Teams,
		trackByName:  make(map[string]int),
		trackByKey:   make(map[string]int),
		driverByCode: make(map[string]int),
		driverByNum:  make(map[int]int),
		driverByName: make(map[string]int),
		teamByAlias:  make(map[string]int),
	}

	var problems []string
	addProblem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.points) == 0 {
		addProblem("points table is empty")
	}
	if len(doc.Tracks) == 0 {
		addProblem("no tracks defined")
	}
	if len(doc.Drivers) == 0 {
		addProblem("no drivers defined")
	}

	for i, team := range c.teams {
		if team.Key == "" {
			addProblem("team %q has no key", team.Name)
		}
		for _, name := range append([]string{team.Name, team.Key}, team.Aliases...) {
			folded := Fold(name)
			if prev, ok := c.teamByAlias[folded]; ok && prev != i {
				addProblem("team name %q is ambiguous", name)
			}
			c.teamByAlias[folded] = i
		}
	}

	for i, d := range c.drivers {
		if _, ok := c.teamByAlias[Fold(d.Team)]; !ok {
			addProblem("driver %q references unknown team %q", d.Name, d.Team)
		}
		if _, dup := c.driverByCode[d.Abbreviation]; dup || d.Abbreviation == "" {
			addProblem("driver %q has missing or duplicate abbreviation %q", d.Name, d.Abbreviation)
		}
		if _, dup := c.driverByNum[d.Number]; dup {
			addProblem("driver %q has duplicate number %d", d.Name, d.Number)
		}
		if _, dup := c.driverByName[Fold(d.Name)]; dup {
			addProblem("duplicate driver %q", d.Name)
		}
		c.driverByCode[d.Abbreviation] = i
		c.driverByNum[d.Number] = i
		c.driverByName[Fold(d.Name)] = i
	}

	c.tracks = slices.Clone(doc.Tracks)
	slices.SortFunc(c.tracks, func(a, b Track) int { return a.Round - b.Round })
	rounds := make(map[int]bool)
	for i := range c.tracks {
		t := &c.tracks[i]
		climate, ok := doc.Climates[t.ClimateGroup]
		if !ok {
			addProblem("track %q references unknown climate %q", t.Name, t.ClimateGroup)
		}
		t.HistoricalWeather = climate

		if rounds[t.Round] {
			addProblem("duplicate round %d", t.Round)
		}
		rounds[t.Round] = true
		if _, dup := c.trackByKey[t.Key]; dup || t.Key == "" {
			addProblem("track %q has missing or duplicate key %q", t.Name, t.Key)
		}
		if _, dup := c.trackByName[Fold(t.Name)]; dup {
			addProblem("duplicate track %q", t.Name)
		}
		c.trackByKey[t.Key] = i
		c.trackByName[Fold(t.Name)] = i
	}

	if len(problems) > 0 {
		return nil, errors.Newf("invalid season catalog: %s", strings.Join(problems, "; ")).
			Component("season").
			Category(errors.CategoryValidation).
			Build()
	}
	return c, nil
}

// Season returns the championship year the catalog describes.
func (c *Catalog) Season() int { return c.season }

// TrackByName finds a track by its Grand Prix name, case and accent insensitive.
// The circuit key is accepted as well.
func (c *Catalog) TrackByName(name string) (Track, bool) {
	if i, ok := c.trackByName[Fold(name)]; ok {
		return c.tracks[i], true
	}
	return c.TrackByKey(strings.TrimSpace(name))
}

// TrackByKey finds a track by circuit key, e.g. "monte_carlo".
func (c *Catalog) TrackByKey(key string) (Track, bool) {
	if i, ok := c.trackByKey[key]; ok {
		return c.tracks[i], true
	}
	return Track{}, false
}

// Tracks returns all tracks sorted by round.
func (c *Catalog) Tracks() []Track {
	return slices.Clone(c.tracks)
}

// Drivers returns the roster in catalog order.
func (c *Catalog) Drivers() []Driver {
	return slices.Clone(c.drivers)
}

// DriversByBaseline returns the roster sorted by baseline qualifying, best first.
// Equal baselines keep roster order.
func (c *Catalog) DriversByBaseline() []Driver {
	drivers := c.Drivers()
	slices.SortStableFunc(drivers, func(a, b Driver) int {
		switch {
		case a.BaselineQualifying < b.BaselineQualifying:
			return -1
		case a.BaselineQualifying > b.BaselineQualifying:
			return 1
		}
		return 0
	})
	return drivers
}

// DriverByAbbreviation looks up a driver by three-letter code.
func (c *Catalog) DriverByAbbreviation(code string) (Driver, bool) {
	if i, ok := c.driverByCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return c.drivers[i], true
	}
	return Driver{}, false
}

// DriverByNumber looks up a driver by permanent car number.
func (c *Catalog) DriverByNumber(number int) (Driver, bool) {
	if i, ok := c.driverByNum[number]; ok {
		return c.drivers[i], true
	}
	return Driver{}, false
}

// DriverByName looks up a driver by full name, ignoring case and accents.
func (c *Catalog) DriverByName(name string) (Driver, bool) {
	if i, ok := c.driverByName[Fold(name)]; ok {
		return c.drivers[i], true
	}
	return Driver{}, false
}

// Teams returns the constructors in catalog order.
func (c *Catalog) Teams() []Team {
	teams := slices.Clone(c.teams)
	for i := range teams {
		teams[i].Aliases = slices.Clone(teams[i].Aliases)
	}
	return teams
}

// Team finds a constructor by display name, key or alias.
func (c *Catalog) Team(name string) (Team, bool) {
	if i, ok := c.teamByAlias[Fold(name)]; ok {
		t := c.teams[i]
		t.Aliases = slices.Clone(t.Aliases)
		return t, true
	}
	return Team{}, false
}

// NormalizeTeam maps any known spelling of a constructor to its key.
// Unknown names have spaces replaced by underscores.
func (c *Catalog) NormalizeTeam(name string) string {
	if i, ok := c.teamByAlias[Fold(name)]; ok {
		return c.teams[i].Key
	}
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Points returns championship points for a finishing position; 0 outside the table.
func (c *Catalog) Points(position int) int {
	if position < 1 || position > len(c.points) {
		return 0
	}
	return c.points[position-1]
}

// PointsPositions is the number of positions that score points.
func (c *Catalog) PointsPositions() int {
	return len(c.points)
}

// Fold lowercases s and strips diacritics so "Hülkenberg" matches "Hulkenberg".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

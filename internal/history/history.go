// Package history provides race-history lookups and the recent-form
// aggregates derived from them. Missing history is never an error for
// callers: empty results turn into mid-field defaults.
package history

import (
	"cmp"
	"context"
	"slices"
)

// Finishing statuses
const (
	StatusFinished = "Finished"
	StatusDNF      = "DNF"
)

// RaceResult is one driver's classified result in one race.
type RaceResult struct {
	Season   int     `json:"season"`
	Round    int     `json:"round"`
	Race     string  `json:"race"`
	Driver   string  `json:"driver"` // roster name when known
	Team     string  `json:"team"`   // normalized team key
	Position int     `json:"position"`
	Grid     int     `json:"grid"`
	Status   string  `json:"status"`
	Points   float64 `json:"points"`
}

// Classified reports whether the driver was classified at the finish.
func (r RaceResult) Classified() bool {
	return r.Position > 0 && r.Status == StatusFinished
}

// RaceKey identifies a race in the history.
type RaceKey struct {
	Season int    `json:"season"`
	Round  int    `json:"round"`
	Race   string `json:"race"`
}

// Less orders races chronologically: season, then round, then name.
func (k RaceKey) Less(o RaceKey) bool {
	if k.Season != o.Season {
		return k.Season < o.Season
	}
	if k.Round != o.Round {
		return k.Round < o.Round
	}
	return k.Race < o.Race
}

// Store is the read side of the race history. Results are returned oldest first.
type Store interface {
	RecentResults(ctx context.Context, driver string, n int) ([]RaceResult, error)
	RecentTeamResults(ctx context.Context, team string, n int) ([]RaceResult, error)
	Races(ctx context.Context) ([]RaceKey, error)
	Close() error
}

// Nop is an empty history; every form falls back to defaults.
type Nop struct{}

func (Nop) RecentResults(context.Context, string, int) ([]RaceResult, error)     { return nil, nil }
func (Nop) RecentTeamResults(context.Context, string, int) ([]RaceResult, error) { return nil, nil }
func (Nop) Races(context.Context) ([]RaceKey, error)                              { return nil, nil }
func (Nop) Close() error                                                          { return nil }

// lastRaces keeps the results belonging to the last n distinct races of a
// chronologically ordered slice.
func lastRaces(results []RaceResult, n int) []RaceResult {
	if n <= 0 || len(results) == 0 {
		return nil
	}
	seen := 0
	start := len(results)
	var prev RaceKey
	for i := len(results) - 1; i >= 0; i-- {
		key := RaceKey{results[i].Season, results[i].Round, results[i].Race}
		if i == len(results)-1 || key != prev {
			if seen == n {
				break
			}
			seen++
			prev = key
		}
		start = i
	}
	out := make([]RaceResult, len(results)-start)
	copy(out, results[start:])
	return out
}

// sortResults orders results chronologically, then by position and driver.
func sortResults(results []RaceResult) {
	slices.SortStableFunc(results, func(a, b RaceResult) int {
		ka := RaceKey{a.Season, a.Round, a.Race}
		kb := RaceKey{b.Season, b.Round, b.Race}
		switch {
		case ka.Less(kb):
			return -1
		case kb.Less(ka):
			return 1
		}
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.Driver, b.Driver))
	})
}

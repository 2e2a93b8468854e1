package history

import (
	"context"

	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/season"
)

// CSVStore serves history from the race_data_*.csv files loaded at startup.
// It is immutable after construction and safe for concurrent use.
type CSVStore struct {
	races    []RaceKey
	byDriver map[string][]RaceResult
	byTeam   map[string][]RaceResult
}

// NewCSVStore loads every race file in dir.
func NewCSVStore(ctx context.Context, dir string, catalog *season.Catalog) (*CSVStore, error) {
	races, err := LoadCSVDir(ctx, dir, catalog)
	if err != nil {
		return nil, err
	}
	s := newCSVStore(races, catalog)
	logger.Global().Module("history").Info("loaded race history",
		logger.String("dir", dir),
		logger.Int("races", len(s.races)),
		logger.Int("drivers", len(s.byDriver)))
	return s, nil
}

func newCSVStore(races []RaceData, catalog *season.Catalog) *CSVStore {
	s := &CSVStore{
		byDriver: make(map[string][]RaceResult),
		byTeam:   make(map[string][]RaceResult),
	}
	for _, race := range races {
		s.races = append(s.races, race.Key)
		for _, res := range race.Results(catalog) {
			s.byDriver[res.Driver] = append(s.byDriver[res.Driver], res)
			s.byTeam[res.Team] = append(s.byTeam[res.Team], res)
		}
	}
	return s
}

// RecentResults returns the driver's last n results, oldest first.
func (s *CSVStore) RecentResults(_ context.Context, driver string, n int) ([]RaceResult, error) {
	results := s.byDriver[driver]
	if n <= 0 || len(results) == 0 {
		return nil, nil
	}
	start := max(0, len(results)-n)
	out := make([]RaceResult, len(results)-start)
	copy(out, results[start:])
	return out, nil
}

// RecentTeamResults returns the team's results over its last n races, oldest first.
func (s *CSVStore) RecentTeamResults(_ context.Context, team string, n int) ([]RaceResult, error) {
	return lastRaces(s.byTeam[team], n), nil
}

// Races returns every loaded race in chronological order.
func (s *CSVStore) Races(context.Context) ([]RaceKey, error) {
	out := make([]RaceKey, len(s.races))
	copy(out, s.races)
	return out, nil
}

// AllResults returns every result in chronological order, for import.
func (s *CSVStore) AllResults() []RaceResult {
	var out []RaceResult
	for _, results := range s.byDriver {
		out = append(out, results...)
	}
	sortResults(out)
	return out
}

// Close implements Store.
func (s *CSVStore) Close() error { return nil }

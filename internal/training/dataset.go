package training

import (
	"math"
	"slices"

	"github.com/f1predict/f1predict/internal/features"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/season"
)

// driverSample is one driver's aggregated race with its target.
type driverSample struct {
	Race     history.RaceKey
	Driver   string
	Team     string
	Values   map[string]float64
	Position float64
}

// teamSample is one constructor's aggregated race with its target.
type teamSample struct {
	Race   history.RaceKey
	Team   string
	Values map[string]float64
	Points float64
}

type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	a.sum += v
	a.count++
}

func (a *accumulator) mean(fallback float64) float64 {
	if a.count == 0 {
		return fallback
	}
	return a.sum / float64(a.count)
}

// lapStats aggregates a group of laps: means of lap time, tyre life and
// weather, maximum lap number and the first known qualifying position.
type lapStats struct {
	lapTime, tyreLife, airTemp, trackTemp, humidity accumulator

	maxLap     float64
	qualifying float64
}

func newLapStats() *lapStats {
	return &lapStats{maxLap: math.NaN(), qualifying: math.NaN()}
}

func (s *lapStats) add(lap history.LapRow) {
	s.lapTime.add(lap.LapTime)
	s.tyreLife.add(lap.TyreLife)
	s.airTemp.add(lap.AirTemp)
	s.trackTemp.add(lap.TrackTemp)
	s.humidity.add(lap.Humidity)
	if !math.IsNaN(lap.LapNumber) && (math.IsNaN(s.maxLap) || lap.LapNumber > s.maxLap) {
		s.maxLap = lap.LapNumber
	}
	if math.IsNaN(s.qualifying) && !math.IsNaN(lap.QualifyingPosition) && lap.QualifyingPosition > 0 {
		s.qualifying = lap.QualifyingPosition
	}
}

// buildDriverSamples aggregates every classified driver per race. RecentForm
// is the driver's average finish over up to window previous races.
func buildDriverSamples(races []history.RaceData, catalog *season.Catalog, window int) []driverSample {
	previous := make(map[string][]history.RaceResult)
	var samples []driverSample

	for _, race := range races {
		stats := make(map[string]*lapStats)
		var order []string
		for _, lap := range race.Laps {
			st, ok := stats[lap.Driver]
			if !ok {
				st = newLapStats()
				stats[lap.Driver] = st
				order = append(order, lap.Driver)
			}
			st.add(lap)
		}

		results := race.Results(catalog)
		byDriver := make(map[string]history.RaceResult, len(results))
		teams := make(map[string]string, len(results))
		for _, r := range results {
			byDriver[r.Driver] = r
			teams[r.Driver] = r.Team
		}

		for _, driver := range order {
			res := byDriver[driver]
			if !res.Classified() {
				continue
			}
			st := stats[driver]
			form := history.CalculateForm(previous[driver]).AvgPosition
			qualifying := st.qualifying
			if math.IsNaN(qualifying) {
				qualifying = features.DefaultValues.QualifyingPosition
			}
			lapNumber := st.maxLap
			if math.IsNaN(lapNumber) {
				lapNumber = features.DefaultValues.LapNumber
			}
			samples = append(samples, driverSample{
				Race:   race.Key,
				Driver: driver,
				Team:   teams[driver],
				Values: map[string]float64{
					features.ColLapTime:            st.lapTime.mean(math.NaN()),
					features.ColTyreLife:           st.tyreLife.mean(features.DefaultValues.TyreLife),
					features.ColLapNumber:          lapNumber,
					features.ColAirTemp:            st.airTemp.mean(math.NaN()),
					features.ColTrackTemp:          st.trackTemp.mean(math.NaN()),
					features.ColHumidity:           st.humidity.mean(math.NaN()),
					features.ColQualifyingPosition: qualifying,
					features.ColRecentForm:         form,
				},
				Position: float64(res.Position),
			})
		}

		// Form only sees races strictly before the one being sampled.
		for _, r := range results {
			hist := append(previous[r.Driver], r)
			if len(hist) > window {
				hist = hist[len(hist)-window:]
			}
			previous[r.Driver] = hist
		}
	}
	return samples
}

// buildTeamSamples aggregates each constructor per race; the target is the
// sum of its drivers' points.
func buildTeamSamples(races []history.RaceData, catalog *season.Catalog) []teamSample {
	var samples []teamSample
	for _, race := range races {
		stats := make(map[string]*lapStats)
		var order []string
		for _, lap := range race.Laps {
			if lap.Team == "" {
				continue
			}
			st, ok := stats[lap.Team]
			if !ok {
				st = newLapStats()
				stats[lap.Team] = st
				order = append(order, lap.Team)
			}
			st.add(lap)
		}

		points := make(map[string]float64)
		for _, r := range race.Results(catalog) {
			points[r.Team] += r.Points
		}

		for _, team := range order {
			st := stats[team]
			samples = append(samples, teamSample{
				Race: race.Key,
				Team: team,
				Values: map[string]float64{
					features.ColLapTime:   st.lapTime.mean(math.NaN()),
					features.ColAirTemp:   st.airTemp.mean(math.NaN()),
					features.ColTrackTemp: st.trackTemp.mean(math.NaN()),
					features.ColHumidity:  st.humidity.mean(math.NaN()),
				},
				Points: points[team],
			})
		}
	}
	return samples
}

// categories collects the driver and team categories seen in the samples.
func categories(drivers []driverSample, teams []teamSample) ([]string, []string) {
	var d, t []string
	for _, s := range drivers {
		d = append(d, features.DriverCategory(s.Driver))
		t = append(t, s.Team)
	}
	for _, s := range teams {
		t = append(t, s.Team)
	}
	slices.Sort(d)
	slices.Sort(t)
	return slices.Compact(d), slices.Compact(t)
}

package history

import (
	"math"

	"github.com/f1predict/f1predict/internal/season"
)

// Form defaults
const (
	// DefaultFormPosition is the mid-field placeholder used without history.
	DefaultFormPosition = 10.0
	// DefaultWindow is the number of races in the rolling form window.
	DefaultWindow = 5

	defaultBaseline     = 12.0
	defaultBestResult   = 20
	trendThreshold      = 1.0
	trendMinRaces       = 3
	podiumPositions     = 3
	baselinePointsFloor = 15
	baselinePointsScale = 4
)

// Trend values
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Form sources
const (
	FormSourceHistory  = "history"
	FormSourceBaseline = "baseline"
)

// DriverForm summarizes a driver's recent races.
type DriverForm struct {
	AvgPosition   float64 `json:"avg_position"`
	AvgQualifying float64 `json:"avg_qualifying"`
	PointsLastN   float64 `json:"points_last_n"`
	DNFCount      int     `json:"dnf_count"`
	Podiums       int     `json:"podiums"`
	Trend         string  `json:"trend"`
	Races         int     `json:"races"`
	Source        string  `json:"source"`
}

// ConstructorForm summarizes a team's recent races.
type ConstructorForm struct {
	AvgPosition     float64 `json:"avg_position"`
	PointsLastN     float64 `json:"points_last_n"`
	ReliabilityRate float64 `json:"reliability_rate"`
	BestResult      int     `json:"best_result"`
	Source          string  `json:"source"`
}

// CalculateForm aggregates results given oldest first. Empty input yields
// the mid-field default of 10.0 for both averages.
func CalculateForm(results []RaceResult) DriverForm {
	form := DriverForm{
		AvgPosition:   DefaultFormPosition,
		AvgQualifying: DefaultFormPosition,
		Trend:         TrendStable,
		Races:         len(results),
		Source:        FormSourceHistory,
	}

	var positions []float64
	var grids []float64
	for _, r := range results {
		form.PointsLastN += r.Points
		if r.Classified() {
			positions = append(positions, float64(r.Position))
			if r.Position <= podiumPositions {
				form.Podiums++
			}
		} else {
			form.DNFCount++
		}
		if r.Grid > 0 {
			grids = append(grids, float64(r.Grid))
		}
	}

	if len(positions) > 0 {
		form.AvgPosition = round1(mean(positions))
	}
	if len(grids) > 0 {
		form.AvgQualifying = round1(mean(grids))
	}
	form.Trend = trend(positions)
	return form
}

// trend compares the last two finishes against the earlier ones.
func trend(positions []float64) string {
	if len(positions) < trendMinRaces {
		return TrendStable
	}
	recent := mean(positions[len(positions)-2:])
	older := mean(positions[:len(positions)-2])
	switch {
	case recent < older-trendThreshold:
		return TrendImproving
	case recent > older+trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// BaselineForm estimates form from the roster's baseline qualifying value.
func BaselineForm(driver season.Driver) DriverForm {
	baseline := driver.BaselineQualifying
	if baseline <= 0 {
		baseline = defaultBaseline
	}
	podiums := 0
	if baseline <= 4 {
		podiums = 1
	}
	return DriverForm{
		AvgPosition:   baseline + 1,
		AvgQualifying: baseline,
		PointsLastN:   float64(max(0, (baselinePointsFloor-int(math.Floor(baseline)))*baselinePointsScale)),
		Podiums:       podiums,
		Trend:         TrendStable,
		Source:        FormSourceBaseline,
	}
}

// CalculateConstructorForm aggregates a team's results given oldest first.
func CalculateConstructorForm(results []RaceResult) ConstructorForm {
	form := ConstructorForm{
		AvgPosition:     DefaultFormPosition,
		ReliabilityRate: 1,
		BestResult:      defaultBestResult,
		Source:          FormSourceHistory,
	}
	if len(results) == 0 {
		return form
	}

	var positions []float64
	dnfs := 0
	for _, r := range results {
		form.PointsLastN += r.Points
		if r.Classified() {
			positions = append(positions, float64(r.Position))
			form.BestResult = min(form.BestResult, r.Position)
		} else {
			dnfs++
		}
	}
	if len(positions) > 0 {
		form.AvgPosition = round1(mean(positions))
	}
	form.ReliabilityRate = round2(1 - float64(dnfs)/float64(len(results)))
	return form
}

// BaselineConstructorForm estimates form from the team's power ranking.
func BaselineConstructorForm(team season.Team) ConstructorForm {
	power := team.PowerRanking
	if power <= 0 {
		power = 0.5
	}
	est := 2 + (1-power)*8
	return ConstructorForm{
		AvgPosition:     round1(est),
		PointsLastN:     float64(int((1 - est/20) * 50)),
		ReliabilityRate: round2(0.85 + power*0.1),
		BestResult:      max(1, int(est-2)),
		Source:          FormSourceBaseline,
	}
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

package prediction

import (
	"cmp"
	"math"
	"slices"
)

// Probability heuristic bounds
const (
	probabilityBase   = 0.5
	probabilityMax    = 0.45 // added to the base at most
	probabilityFloor  = 0.05
	probabilityDivide = 10.0 // score margin per 1.0 of probability
	top3Positions     = 3
)

type scored struct {
	index      int // roster index
	score      float64
	qualifying float64
	name       string
}

// rankScores orders drivers by score ascending, breaking ties by qualifying
// position and then name. The result is a strict total order.
func rankScores(s []scored) {
	slices.SortStableFunc(s, func(a, b scored) int {
		return cmp.Or(
			cmp.Compare(a.score, b.score),
			cmp.Compare(a.qualifying, b.qualifying),
			cmp.Compare(a.name, b.name),
		)
	})
}

// positionProbability estimates the chance of finishing within the top n
// from the distance between score and the n-th best score. Lower scores are
// better.
func positionProbability(score float64, sortedScores []float64, n int) float64 {
	if len(sortedScores) == 0 || n <= 0 {
		return probabilityFloor
	}
	threshold := sortedScores[min(n, len(sortedScores))-1]
	var p float64
	if score <= threshold {
		p = probabilityBase + min(probabilityMax, (threshold-score)/probabilityDivide)
	} else {
		p = max(probabilityFloor, probabilityBase-(score-threshold)/probabilityDivide)
	}
	return math.Round(p*100) / 100
}

type teamStanding struct {
	key      string
	name     string
	points   int
	expected float64
}

// rankTeams orders constructors by points descending, then expected points
// descending, then name.
func rankTeams(t []teamStanding) {
	slices.SortStableFunc(t, func(a, b teamStanding) int {
		return cmp.Or(
			cmp.Compare(b.points, a.points),
			cmp.Compare(b.expected, a.expected),
			cmp.Compare(a.name, b.name),
		)
	})
}

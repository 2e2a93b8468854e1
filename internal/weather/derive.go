package weather

import (
	"math"
	"strings"
)

const (
	trackTempOffset = 8.0
	minTrackTemp    = 10.0
	maxTrackTemp    = 60.0
)

// EstimateTrackTemp estimates tarmac temperature from air temperature and
// cloud cover percentage. Full cloud halves the sun-driven offset.
func EstimateTrackTemp(airTemp float64, cloudCover int) float64 {
	cloudFactor := 1.0 - float64(cloudCover)/200.0
	track := airTemp + trackTempOffset*cloudFactor
	return round1(math.Max(minTrackTemp, math.Min(maxTrackTemp, track)))
}

// ParseCondition maps a provider condition group to Clear, Cloudy, Rain or Storm.
func ParseCondition(main string) string {
	m := strings.ToLower(main)
	switch {
	case strings.Contains(m, "rain") || strings.Contains(m, "drizzle"):
		return ConditionRain
	case strings.Contains(m, "cloud"):
		return ConditionCloudy
	case strings.Contains(m, "thunder") || strings.Contains(m, "storm"):
		return ConditionStorm
	default:
		return ConditionClear
	}
}

// RainProbability is a coarse estimate from the presence of a rain block and cloud cover.
func RainProbability(raining bool, cloudCover int) float64 {
	switch {
	case raining:
		return 0.8
	case cloudCover > 80:
		return 0.3
	case cloudCover > 50:
		return 0.15
	default:
		return 0.05
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

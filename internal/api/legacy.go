package api

import "github.com/f1predict/f1predict/internal/prediction"

// LegacyWeather is the weather block older frontends read.
type LegacyWeather struct {
	AirTemp   float64 `json:"AirTemp"`
	TrackTemp float64 `json:"TrackTemp"`
	Humidity  float64 `json:"Humidity"`
}

// LegacyDriver is a driver entry in the legacy response.
type LegacyDriver struct {
	Driver            string `json:"driver"`
	Team              string `json:"team"`
	EstimatedPosition int    `json:"estimated_position"`
}

// LegacyConstructor is a constructor entry in the legacy response.
type LegacyConstructor struct {
	Team              string `json:"team"`
	EstimatedPosition int    `json:"estimated_position"`
}

// LegacyPrediction keeps the full prediction fields but replaces weather and
// result lists with their legacy shapes and adds qualifying_source.
type LegacyPrediction struct {
	Race                        string                  `json:"race"`
	CircuitKey                  string                  `json:"circuit_key"`
	Season                      int                     `json:"season"`
	RoundNumber                 int                     `json:"round_number"`
	Weather                     LegacyWeather           `json:"weather"`
	PredictedDriverResults      []LegacyDriver          `json:"predicted_driver_results"`
	PredictedConstructorResults []LegacyConstructor     `json:"predicted_constructor_results"`
	FeaturesUsed                prediction.FeaturesUsed `json:"features_used"`
	Meta                        prediction.Meta         `json:"meta"`
	QualifyingSource            string                  `json:"qualifying_source"`
}

func newLegacyPrediction(p *prediction.Prediction) *LegacyPrediction {
	out := &LegacyPrediction{
		Race:        p.Race,
		CircuitKey:  p.CircuitKey,
		Season:      p.Season,
		RoundNumber: p.RoundNumber,
		Weather: LegacyWeather{
			AirTemp:   p.Weather.AirTemp,
			TrackTemp: p.Weather.TrackTemp,
			Humidity:  p.Weather.Humidity,
		},
		PredictedDriverResults:      make([]LegacyDriver, 0, len(p.PredictedDriverResults)),
		PredictedConstructorResults: make([]LegacyConstructor, 0, len(p.PredictedConstructorResults)),
		FeaturesUsed:                p.FeaturesUsed,
		Meta:                        p.Meta,
		QualifyingSource:            string(p.Meta.QualifyingDataSource),
	}
	for _, d := range p.PredictedDriverResults {
		out.PredictedDriverResults = append(out.PredictedDriverResults, LegacyDriver{
			Driver:            d.Driver,
			Team:              d.Team,
			EstimatedPosition: d.PredictedPosition,
		})
	}
	for _, c := range p.PredictedConstructorResults {
		out.PredictedConstructorResults = append(out.PredictedConstructorResults, LegacyConstructor{
			Team:              c.Team,
			EstimatedPosition: c.PredictedPosition,
		})
	}
	return out
}

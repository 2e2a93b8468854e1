package prediction

import (
	"time"

	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/qualifying"
	"github.com/f1predict/f1predict/internal/weather"
)

// DataSourceModel marks predictions scored by the trained regressors.
const DataSourceModel = "model"

// WeatherInfo is the weather block of a prediction.
type WeatherInfo struct {
	AirTemp         float64        `json:"AirTemp"`
	TrackTemp       float64        `json:"TrackTemp"`
	Humidity        float64        `json:"Humidity"`
	Condition       string         `json:"condition"`
	RainProbability float64        `json:"rain_probability"`
	Source          weather.Source `json:"source"`
	Provider        string         `json:"provider,omitempty"`
}

// DriverPrediction is one ranked driver.
type DriverPrediction struct {
	Driver             string             `json:"driver"`
	Abbreviation       string             `json:"abbreviation"`
	Team               string             `json:"team"`
	PredictedPosition  int                `json:"predicted_position"`
	Score              float64            `json:"score"`
	ProbabilityTop3    float64            `json:"probability_top3"`
	ProbabilityPoints  float64            `json:"probability_points"`
	QualifyingPosition float64            `json:"qualifying_position"`
	Form               history.DriverForm `json:"form"`
}

// ConstructorPrediction is one ranked constructor.
type ConstructorPrediction struct {
	Team              string                  `json:"team"`
	PredictedPosition int                     `json:"predicted_position"`
	PredictedPoints   int                     `json:"predicted_points"`
	ExpectedPoints    float64                 `json:"expected_points"`
	Form              history.ConstructorForm `json:"form"`
}

// DriverFeatures records the per-driver inputs that went into a score.
type DriverFeatures struct {
	Team               string  `json:"team"`
	QualifyingPosition float64 `json:"qualifying_position"`
	RecentForm         float64 `json:"recent_form"`
}

// FeaturesUsed exposes the model inputs for transparency.
type FeaturesUsed struct {
	Columns   []string                  `json:"columns"`
	LapTime   float64                   `json:"lap_time"`
	TyreLife  float64                   `json:"tyre_life"`
	LapNumber float64                   `json:"lap_number"`
	Weather   weather.Reading           `json:"weather"`
	Drivers   map[string]DriverFeatures `json:"drivers"`
}

// Meta describes where the prediction's inputs came from.
type Meta struct {
	ModelVersion         string            `json:"model_version"`
	DataSource           string            `json:"data_source"`
	QualifyingDataSource qualifying.Source `json:"qualifying_data_source"`
	QualifyingOrigin     qualifying.Origin `json:"qualifying_origin"`
	WeatherSource        weather.Source    `json:"weather_source"`
	Partial              bool              `json:"partial"`
	OmittedDrivers       []string          `json:"omitted_drivers,omitempty"`
	LastUpdated          time.Time         `json:"last_updated"`
}

// Prediction is the full response for one Grand Prix.
type Prediction struct {
	Race                        string                  `json:"race"`
	CircuitKey                  string                  `json:"circuit_key"`
	Season                      int                     `json:"season"`
	RoundNumber                 int                     `json:"round_number"`
	Weather                     WeatherInfo             `json:"weather"`
	PredictedDriverResults      []DriverPrediction      `json:"predicted_driver_results"`
	PredictedConstructorResults []ConstructorPrediction `json:"predicted_constructor_results"`
	FeaturesUsed                FeaturesUsed            `json:"features_used"`
	Meta                        Meta                    `json:"meta"`
}

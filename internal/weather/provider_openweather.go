package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/httpclient"
)

const (
	// RequestTimeout bounds the single live attempt.
	RequestTimeout = 10 * time.Second

	providerOpenWeather = "openweather"

	minAirTemp = -50.0
	maxAirTemp = 60.0
)

// OpenWeatherResponse represents the structure of weather data returned by the OpenWeather API
type OpenWeatherResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Rain map[string]float64 `json:"rain,omitempty"`
	Dt   int64              `json:"dt"`
	Name string             `json:"name"`
}

// OpenWeatherProvider fetches current conditions from OpenWeatherMap.
type OpenWeatherProvider struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewOpenWeatherProvider creates a new OpenWeather provider. A zero timeout uses RequestTimeout.
func NewOpenWeatherProvider(client *httpclient.Client, baseURL, apiKey string, timeout time.Duration) *OpenWeatherProvider {
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	return &OpenWeatherProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// Name implements Provider.
func (p *OpenWeatherProvider) Name() string { return providerOpenWeather }

// Fetch implements Provider for OpenWeatherProvider
func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc Location) (*Reading, error) {
	if p.apiKey == "" {
		return nil, newWeatherError(errors.NewStd("OpenWeather API key not configured"),
			errors.CategoryConfiguration, "fetch_weather")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.requestURL(loc)
	var payload OpenWeatherResponse
	if err := p.client.GetJSON(ctx, endpoint, &payload); err != nil {
		category := errors.CategoryNetwork
		var statusErr *httpclient.StatusError
		switch {
		case errors.As(err, &statusErr):
			category = errors.CategoryHTTP
		case ctx.Err() != nil:
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("weather").
			Category(category).
			Context("operation", "fetch_weather").
			Context("provider", providerOpenWeather).
			NetworkContext(p.baseURL, p.timeout).
			Build()
	}

	return parseOpenWeather(&payload)
}

func (p *OpenWeatherProvider) requestURL(loc Location) string {
	q := url.Values{}
	if loc.HasCoordinates() {
		q.Set("lat", fmt.Sprintf("%.4f", loc.Latitude))
		q.Set("lon", fmt.Sprintf("%.4f", loc.Longitude))
	} else {
		q.Set("q", loc.City)
	}
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")
	return p.baseURL + "/weather?" + q.Encode()
}

// parseOpenWeather validates the payload and derives the track-side reading.
func parseOpenWeather(data *OpenWeatherResponse) (*Reading, error) {
	if data.Main == nil {
		return nil, newWeatherError(errors.NewStd("response has no main block"),
			errors.CategoryValidation, "parse_weather")
	}
	temp := data.Main.Temp
	if math.IsNaN(temp) || temp < minAirTemp || temp > maxAirTemp {
		return nil, errors.Newf("temperature out of range: %.1f", temp).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("operation", "parse_weather").
			Context("temperature", temp).
			Build()
	}
	if data.Main.Humidity < 0 || data.Main.Humidity > 100 {
		return nil, errors.Newf("humidity out of range: %.0f", data.Main.Humidity).
			Component("weather").
			Category(errors.CategoryValidation).
			Context("operation", "parse_weather").
			Context("humidity", data.Main.Humidity).
			Build()
	}

	mainCondition := ""
	if len(data.Weather) > 0 {
		mainCondition = data.Weather[0].Main
	}

	return &Reading{
		AirTemp:         round1(temp),
		TrackTemp:       EstimateTrackTemp(temp, data.Clouds.All),
		Humidity:        data.Main.Humidity,
		Condition:       ParseCondition(mainCondition),
		RainProbability: RainProbability(data.Rain != nil, data.Clouds.All),
	}, nil
}

// newWeatherError creates a standardized weather error with common fields
func newWeatherError(err error, category errors.ErrorCategory, operation string) error {
	return errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", operation).
		Context("provider", providerOpenWeather).
		Build()
}

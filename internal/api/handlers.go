package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/prediction"
	"github.com/f1predict/f1predict/internal/season"
)

// PredictionRequest is the body of POST /predict/qualifying.
type PredictionRequest struct {
	TrackName string `json:"track_name" validate:"required,max=100"`
}

// TrackInfo is one entry of GET /tracks.
type TrackInfo struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	City      string `json:"city"`
	Round2025 int    `json:"round_2025"`
}

// TracksResponse is the body of GET /tracks.
type TracksResponse struct {
	Tracks []TrackInfo `json:"tracks"`
	Count  int         `json:"count"`
}

// DriverInfo is one entry of GET /drivers.
type DriverInfo struct {
	Name               string  `json:"name"`
	Abbreviation       string  `json:"abbreviation"`
	Number             int     `json:"number"`
	Team               string  `json:"team"`
	Nationality        string  `json:"nationality"`
	BaselineQualifying float64 `json:"baseline_qualifying"`
}

// DriversResponse is the body of GET /drivers.
type DriversResponse struct {
	Drivers []DriverInfo `json:"drivers"`
	Count   int          `json:"count"`
	Season  int          `json:"season"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Environment   string  `json:"environment"`
	ModelsLoaded  bool    `json:"models_loaded"`
	ModelVersion  string  `json:"model_version,omitempty"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
}

func (s *Server) root(c echo.Context) error {
	links := map[string]string{
		"health":             "/health",
		"tracks":             "/tracks",
		"drivers":            "/drivers",
		"predict_qualifying": "POST /predict/qualifying",
		"predict_all":        "/predict_all/{race}",
	}
	if s.metricsEndpointEnabled() {
		links["metrics"] = "/metrics"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"name":          s.config.Name,
		"version":       s.build.GetVersion(),
		"documentation": "POST /predict/qualifying with {\"track_name\": \"Monaco Grand Prix\"}",
		"health":        "/health",
		"links":         links,
	})
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Version:       s.build.GetVersion(),
		Environment:   s.config.Environment,
		ModelsLoaded:  s.predictor != nil,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if s.predictor != nil {
		resp.ModelVersion = s.predictor.ModelVersion()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listTracks(c echo.Context) error {
	tracks := s.catalog.Tracks()
	resp := TracksResponse{Tracks: make([]TrackInfo, 0, len(tracks)), Count: len(tracks)}
	for _, t := range tracks {
		resp.Tracks = append(resp.Tracks, TrackInfo{
			Name:      t.Name,
			Key:       t.Key,
			City:      t.City,
			Round2025: t.Round,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listDrivers(c echo.Context) error {
	drivers := s.catalog.DriversByBaseline()
	resp := DriversResponse{
		Drivers: make([]DriverInfo, 0, len(drivers)),
		Count:   len(drivers),
		Season:  s.catalog.Season(),
	}
	for _, d := range drivers {
		resp.Drivers = append(resp.Drivers, DriverInfo{
			Name:               d.Name,
			Abbreviation:       d.Abbreviation,
			Number:             d.Number,
			Team:               d.Team,
			Nationality:        d.Nationality,
			BaselineQualifying: d.BaselineQualifying,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) predictQualifying(c echo.Context) error {
	var req PredictionRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, CodeValidationError, "Invalid request data",
			http.StatusUnprocessableEntity, map[string]any{"errors": []FieldError{{Message: bindMessage(err)}}})
	}
	if fieldErrs := validateRequest(&req); fieldErrs != nil {
		return s.HandleError(c, nil, CodeValidationError, "Invalid request data",
			http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrs})
	}
	if s.predictor == nil {
		return s.unavailable(c)
	}

	s.log.WithContext(c.Request().Context()).Info("prediction request", logger.String("track", req.TrackName))

	result, err := s.predictor.Predict(c.Request().Context(), req.TrackName)
	if err != nil {
		if errors.Is(err, prediction.ErrUnknownTrack) {
			return s.HandleError(c, err, CodeInvalidInput, "Unknown track: "+req.TrackName,
				http.StatusBadRequest, map[string]any{"available": "/tracks"})
		}
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// predictAllLegacy serves GET /predict_all/:race. The race segment may be a
// Grand Prix name, a circuit key or a name with underscores for spaces.
func (s *Server) predictAllLegacy(c echo.Context) error {
	raw := c.Param("race")
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}

	track, ok := s.lookupTrack(name)
	if !ok {
		return s.HandleError(c, prediction.ErrUnknownTrack, CodeNotFound, "Unknown track: "+name,
			http.StatusNotFound, map[string]any{"available": "/tracks"})
	}
	if s.predictor == nil {
		return s.unavailable(c)
	}

	result, err := s.predictor.Predict(c.Request().Context(), track.Name)
	if err != nil {
		if errors.Is(err, prediction.ErrUnknownTrack) {
			return s.HandleError(c, err, CodeNotFound, "Unknown track: "+name, http.StatusNotFound, nil)
		}
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, newLegacyPrediction(result))
}

func (s *Server) lookupTrack(name string) (season.Track, bool) {
	if t, ok := s.catalog.TrackByName(name); ok {
		return t, true
	}
	return s.catalog.TrackByName(strings.ReplaceAll(name, "_", " "))
}

func (s *Server) unavailable(c echo.Context) error {
	return s.HandleError(c, nil, CodeServiceUnavailable, "Prediction service not initialized",
		http.StatusServiceUnavailable, nil)
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return "request body could not be decoded"
}

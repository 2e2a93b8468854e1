// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/f1predict/f1predict/internal/logger"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateLoggingSettings,
		validateWebServerSettings,
		validateWeatherSettings,
		validateQualifyingSettings,
		validateHistorySettings,
		validatePredictionSettings,
		validateTrainingSettings,
		validateMQTTSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	if err := validateEnvEnvironment(s.Main.Environment); err != nil {
		return fmt.Errorf("main.environment: %w", err)
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	var errs []string
	if !logger.ValidLevel(s.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a valid level", s.Logging.Level))
	}
	for module, level := range s.Logging.ModuleLevels {
		if !logger.ValidLevel(level) {
			errs = append(errs, fmt.Sprintf("logging.modulelevels.%s %q is not a valid level", module, level))
		}
	}
	if s.Logging.File.Enabled && s.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when file logging is enabled")
	}
	return joinErrs(errs)
}

func validateWebServerSettings(s *Settings) error {
	var errs []string
	if s.WebServer.Port < 1 || s.WebServer.Port > 65535 {
		errs = append(errs, fmt.Sprintf("webserver.port must be between 1 and 65535, got %d", s.WebServer.Port))
	}
	if s.WebServer.ShutdownTimeout <= 0 {
		errs = append(errs, "webserver.shutdowntimeout must be positive")
	}
	return joinErrs(errs)
}

func validateWeatherSettings(s *Settings) error {
	var errs []string
	if err := validateEnvURL(s.Weather.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("weather.baseurl: %v", err))
	}
	if s.Weather.Timeout <= 0 {
		errs = append(errs, "weather.timeout must be positive")
	}
	if s.Weather.CacheTTL < 0 {
		errs = append(errs, "weather.cachettl must not be negative")
	}
	return joinErrs(errs)
}

func validateQualifyingSettings(s *Settings) error {
	var errs []string
	if err := validateEnvURL(s.Qualifying.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("qualifying.baseurl: %v", err))
	}
	if s.Qualifying.Timeout <= 0 {
		errs = append(errs, "qualifying.timeout must be positive")
	}
	if s.Qualifying.RateLimit < 0 {
		errs = append(errs, "qualifying.ratelimit must not be negative")
	}
	if s.Qualifying.BreakerFailures == 0 {
		errs = append(errs, "qualifying.breakerfailures must be at least 1")
	}
	return joinErrs(errs)
}

func validateHistorySettings(s *Settings) error {
	if err := validateEnvHistoryBackend(s.History.Backend); err != nil {
		return fmt.Errorf("history.backend: %w", err)
	}
	switch s.History.Backend {
	case HistoryBackendSQLite:
		if s.History.DBPath == "" {
			return fmt.Errorf("history.dbpath is required for the sqlite backend")
		}
	case HistoryBackendMySQL:
		m := s.History.MySQL
		if m.Host == "" || m.Database == "" {
			return fmt.Errorf("history.mysql.host and history.mysql.database are required for the mysql backend")
		}
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("history.mysql.port must be between 1 and 65535, got %d", m.Port)
		}
	}
	return nil
}

func validatePredictionSettings(s *Settings) error {
	var errs []string
	if s.Prediction.Season < 1950 || s.Prediction.Season > 2100 {
		errs = append(errs, fmt.Sprintf("prediction.season must be between 1950 and 2100, got %d", s.Prediction.Season))
	}
	if s.Prediction.RecentRaces < 1 {
		errs = append(errs, "prediction.recentraces must be at least 1")
	}
	return joinErrs(errs)
}

func validateTrainingSettings(s *Settings) error {
	var errs []string
	if s.Training.TestFraction <= 0 || s.Training.TestFraction >= 1 {
		errs = append(errs, fmt.Sprintf("training.testfraction must be in (0, 1), got %g", s.Training.TestFraction))
	}
	if s.Training.Lambda < 0 {
		errs = append(errs, "training.lambda must not be negative")
	}
	return joinErrs(errs)
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q is not a valid broker URL", s.MQTT.Broker))
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when MQTT is enabled")
	}
	return joinErrs(errs)
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

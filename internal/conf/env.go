// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/f1predict/f1predict/internal/logger"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"main.environment", "APP_ENV", validateEnvEnvironment},
		{"logging.level", "LOG_LEVEL", validateEnvLogLevel},

		{"weather.apikey", "OPENWEATHER_API_KEY", nil},
		{"weather.baseurl", "OPENWEATHER_BASE_URL", validateEnvURL},
		{"qualifying.baseurl", "ERGAST_BASE_URL", validateEnvURL},

		{"webserver.port", "F1P_PORT", validateEnvPort},
		{"model.dir", "F1P_MODEL_DIR", validateEnvNonEmpty},
		{"history.backend", "F1P_HISTORY_BACKEND", validateEnvHistoryBackend},
		{"history.datadir", "F1P_HISTORY_DIR", validateEnvNonEmpty},
		{"history.mysql.host", "F1P_MYSQL_HOST", validateEnvNonEmpty},
		{"history.mysql.password", "F1P_MYSQL_PASSWORD", nil},
		{"prediction.season", "F1P_SEASON", validateEnvSeason},
		{"prediction.partialresults", "F1P_PARTIAL_RESULTS", validateEnvBool},

		{"mqtt.broker", "F1P_MQTT_BROKER", validateEnvURL},
		{"sentry.dsn", "SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %w", err)
	}
	return nil
}

func validateEnvEnvironment(value string) error {
	switch value {
	case EnvDevelopment, EnvProduction, EnvTesting:
		return nil
	}
	return fmt.Errorf("must be one of: %s, %s, %s", EnvDevelopment, EnvProduction, EnvTesting)
}

func validateEnvLogLevel(value string) error {
	if !logger.ValidLevel(value) {
		return fmt.Errorf("must be one of: trace, debug, info, warn, error")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvSeason(value string) error {
	season, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid season: %w", err)
	}
	if season < 1950 || season > 2100 {
		return fmt.Errorf("season must be between 1950 and 2100, got %d", season)
	}
	return nil
}

func validateEnvHistoryBackend(value string) error {
	switch value {
	case HistoryBackendCSV, HistoryBackendSQLite, HistoryBackendMySQL:
		return nil
	}
	return fmt.Errorf("must be one of: %s, %s, %s", HistoryBackendCSV, HistoryBackendSQLite, HistoryBackendMySQL)
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host")
	}
	return nil
}

func validateEnvNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

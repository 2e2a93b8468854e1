package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool with spaces", validateEnvBool, " 1 ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"env production", validateEnvEnvironment, "production", false},
		{"env staging", validateEnvEnvironment, "staging", true},
		{"log level warn", validateEnvLogLevel, "warn", false},
		{"log level loud", validateEnvLogLevel, "loud", true},
		{"port ok", validateEnvPort, "8000", false},
		{"port zero", validateEnvPort, "0", true},
		{"port text", validateEnvPort, "http", true},
		{"season ok", validateEnvSeason, "2025", false},
		{"season ancient", validateEnvSeason, "1900", true},
		{"backend csv", validateEnvHistoryBackend, "csv", false},
		{"backend mysql", validateEnvHistoryBackend, "mysql", false},
		{"backend postgres", validateEnvHistoryBackend, "postgres", true},
		{"url ok", validateEnvURL, "https://ergast.com/api/f1", false},
		{"url no scheme", validateEnvURL, "ergast.com/api", true},
		{"mqtt url", validateEnvURL, "tcp://broker:1883", false},
		{"non empty blank", validateEnvNonEmpty, "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvBindingsCoverDocumentedVariables(t *testing.T) {
	t.Parallel()

	want := []string{
		"APP_ENV", "LOG_LEVEL", "OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL", "ERGAST_BASE_URL",
		"F1P_PORT", "F1P_MODEL_DIR", "F1P_HISTORY_BACKEND", "F1P_HISTORY_DIR", "F1P_SEASON",
		"F1P_PARTIAL_RESULTS", "F1P_MQTT_BROKER", "SENTRY_DSN",
	}

	got := make(map[string]string)
	for _, b := range getEnvBindings() {
		got[b.EnvVar] = b.ConfigKey
	}
	for _, env := range want {
		require.Contains(t, got, env)
	}
	assert.Equal(t, "weather.apikey", got["OPENWEATHER_API_KEY"])
}

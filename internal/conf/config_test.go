package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateViper resets global viper state and points config discovery at an empty directory.
func isolateViper(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	isolateViper(t)

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, settings.Main.Environment)
	assert.Equal(t, 8000, settings.WebServer.Port)
	assert.Equal(t, 10*time.Second, settings.Weather.Timeout)
	assert.Equal(t, 3*time.Second, settings.Qualifying.Timeout)
	assert.Equal(t, DefaultErgastURL, settings.Qualifying.BaseURL)
	assert.Equal(t, time.Duration(0), settings.Weather.CacheTTL, "cross-request caching is off by default")
	assert.Equal(t, 2025, settings.Prediction.Season)
	assert.False(t, settings.Prediction.PartialResults)
	assert.Equal(t, uint64(42), settings.Training.Seed)
	assert.Equal(t, filepath.Join("models", DriverModelFile), settings.Model.DriverPath)
	assert.False(t, settings.WeatherEnabled())
	assert.Empty(t, ConfigFileUsed())
	assert.Same(t, settings, GetSettings())
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := isolateViper(t)

	yaml := `
main:
  environment: production
webserver:
  port: 9100
weather:
  apikey: from-file
  timeout: 5s
model:
  dir: /srv/models
  driverpath: /srv/custom/driver.json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	settings, err := Load()
	require.NoError(t, err)

	assert.True(t, settings.IsProduction())
	assert.Equal(t, 9100, settings.WebServer.Port)
	assert.Equal(t, 5*time.Second, settings.Weather.Timeout)
	assert.True(t, settings.WeatherEnabled())
	assert.Equal(t, "/srv/custom/driver.json", settings.Model.DriverPath)
	assert.Equal(t, filepath.Join("/srv/models", ConstructorModelFile), settings.Model.ConstructorPath)
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	dir := isolateViper(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("webserver:\n  port: 9100\n"), 0o600))

	t.Setenv("F1P_PORT", "9200")
	t.Setenv("OPENWEATHER_API_KEY", "env-key")
	t.Setenv("F1P_PARTIAL_RESULTS", "true")
	t.Setenv("F1P_HISTORY_BACKEND", "sqlite")
	t.Setenv("APP_ENV", "testing")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9200, settings.WebServer.Port)
	assert.Equal(t, "env-key", settings.Weather.APIKey)
	assert.True(t, settings.Prediction.PartialResults)
	assert.Equal(t, HistoryBackendSQLite, settings.History.Backend)
	assert.Equal(t, EnvTesting, settings.Main.Environment)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	isolateViper(t)
	t.Setenv("F1P_PORT", "70000")
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "F1P_PORT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoadRejectsMalformedConfigFile(t *testing.T) {
	dir := isolateViper(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("webserver: [unclosed"), 0o600))

	_, err := Load()
	require.Error(t, err)
}

func TestLoggingConfigFromSettings(t *testing.T) {
	s := &Settings{
		Debug: true,
		Logging: LoggingSettings{
			Level:   "info",
			Console: true,
			File:    FileLogSettings{Enabled: true, Path: "logs/x.log", MaxSize: 5},
		},
	}

	cfg := s.LoggingConfig()
	assert.Equal(t, "debug", cfg.DefaultLevel, "debug flag raises the level")
	require.NotNil(t, cfg.FileOutput)
	assert.Equal(t, "logs/x.log", cfg.FileOutput.Path)
	assert.Equal(t, 5, cfg.FileOutput.MaxSize)
}

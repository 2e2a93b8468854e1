// conf/config.go settings tree and loading for f1predict
package conf

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment names accepted in main.environment
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// History backends
const (
	HistoryBackendCSV    = "csv"
	HistoryBackendSQLite = "sqlite"
	HistoryBackendMySQL  = "mysql"
)

// MainSettings identifies the running instance
type MainSettings struct {
	Name        string // instance name shown in /health and logs
	Environment string // development, production or testing
}

// FileLogSettings controls the rotating JSON log file
type FileLogSettings struct {
	Enabled    bool
	Path       string
	MaxSize    int // MB before rotation
	MaxAge     int // days to keep rotated files
	MaxBackups int
	Compress   bool
}

// LoggingSettings controls console and file logging
type LoggingSettings struct {
	Level        string            // trace, debug, info, warn, error
	Console      bool              // human readable console output
	File         FileLogSettings   // JSON file output
	ModuleLevels map[string]string // per-module overrides
}

// WebServerSettings contains HTTP server settings
type WebServerSettings struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string   // echo body limit, e.g. "64K"
	AllowOrigins    []string // CORS origins
}

// WeatherSettings configures the OpenWeather provider
type WeatherSettings struct {
	APIKey   string        // empty means permanent fallback
	BaseURL  string        // OpenWeather API root
	Timeout  time.Duration // single attempt timeout
	CacheTTL time.Duration // 0 disables cross-request caching
}

// QualifyingSettings configures the Ergast client
type QualifyingSettings struct {
	BaseURL         string
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 = unlimited
	BreakerFailures uint32  // consecutive failures before the breaker opens
	BreakerCooldown time.Duration
	CacheTTL        time.Duration // 0 disables cross-request caching
}

// ModelSettings points at the trained artifacts
type ModelSettings struct {
	Dir             string
	DriverPath      string // defaults to <dir>/driver_model.json
	ConstructorPath string // defaults to <dir>/constructor_model.json
	EncodingPath    string // defaults to <dir>/feature_encoding.json
	Version         string // reported in prediction meta when the artifact has none
}

// HistorySettings selects the race-history store
type HistorySettings struct {
	Backend string // csv, sqlite or mysql
	DataDir string // directory of race_data_*.csv files
	DBPath  string // sqlite database path
	MySQL   MySQLSettings
}

// MySQLSettings addresses a shared history database
type MySQLSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// PredictionSettings controls the prediction service
type PredictionSettings struct {
	Season         int  // season whose catalog and Ergast data are used
	RecentRaces    int  // form window
	PartialResults bool // drop malformed drivers instead of failing the request
}

// TrainingSettings controls the training pipeline
type TrainingSettings struct {
	DataDir      string
	OutputDir    string
	TestFraction float64
	Seed         uint64
	Lambda       float64 // ridge penalty
}

// MQTTSettings contains settings for prediction publication
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
}

// SentrySettings contains settings for error telemetry
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// MetricsSettings toggles the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool
}

// Settings contains all configuration options for f1predict
type Settings struct {
	Debug bool

	Main       MainSettings
	Logging    LoggingSettings
	WebServer  WebServerSettings
	Weather    WeatherSettings
	Qualifying QualifyingSettings
	Model      ModelSettings
	History    HistorySettings
	Prediction PredictionSettings
	Training   TrainingSettings
	MQTT       MQTTSettings
	Sentry     SentrySettings
	Metrics    MetricsSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the optional config file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	settings.applyDerivedPaths()

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, reads config.yaml if one exists and binds environment variables.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range ConfigSearchPaths() {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	return configureEnvironmentVariables()
}

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the config file viper read, or "".
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// IsProduction reports whether the instance runs in production.
func (s *Settings) IsProduction() bool {
	return s.Main.Environment == EnvProduction
}

// WeatherEnabled reports whether live weather lookups are possible.
func (s *Settings) WeatherEnabled() bool {
	return s.Weather.APIKey != ""
}

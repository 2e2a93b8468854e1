// conf/defaults.go default values for settings
package conf

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default artifact file names inside model.dir
const (
	DriverModelFile       = "driver_model.json"
	ConstructorModelFile  = "constructor_model.json"
	FeatureEncodingFile   = "feature_encoding.json"
	DefaultOpenWeatherURL = "http://api.openweathermap.org/data/2.5"
	DefaultErgastURL      = "https://ergast.com/api/f1"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "F1 Race Predictor API")
	viper.SetDefault("main.environment", EnvDevelopment)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.console", true)
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/f1predict.log")
	viper.SetDefault("logging.file.maxsize", 100)
	viper.SetDefault("logging.file.maxage", 30)
	viper.SetDefault("logging.file.maxbackups", 10)
	viper.SetDefault("logging.file.compress", false)

	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", 8000)
	viper.SetDefault("webserver.readtimeout", 30*time.Second)
	viper.SetDefault("webserver.writetimeout", 30*time.Second)
	viper.SetDefault("webserver.shutdowntimeout", 10*time.Second)
	viper.SetDefault("webserver.bodylimit", "64K")
	viper.SetDefault("webserver.alloworigins", []string{"*"})

	viper.SetDefault("weather.apikey", "")
	viper.SetDefault("weather.baseurl", DefaultOpenWeatherURL)
	viper.SetDefault("weather.timeout", 10*time.Second)
	viper.SetDefault("weather.cachettl", time.Duration(0))

	viper.SetDefault("qualifying.baseurl", DefaultErgastURL)
	viper.SetDefault("qualifying.timeout", 3*time.Second)
	viper.SetDefault("qualifying.ratelimit", 4.0)
	viper.SetDefault("qualifying.breakerfailures", 3)
	viper.SetDefault("qualifying.breakercooldown", 60*time.Second)
	viper.SetDefault("qualifying.cachettl", time.Duration(0))

	viper.SetDefault("model.dir", "models")
	viper.SetDefault("model.version", "1.0.0")

	viper.SetDefault("history.backend", HistoryBackendCSV)
	viper.SetDefault("history.datadir", "data")
	viper.SetDefault("history.dbpath", "data/history.db")
	viper.SetDefault("history.mysql.host", "localhost")
	viper.SetDefault("history.mysql.port", 3306)
	viper.SetDefault("history.mysql.username", "f1predict")
	viper.SetDefault("history.mysql.password", "")
	viper.SetDefault("history.mysql.database", "f1predict")

	viper.SetDefault("prediction.season", 2025)
	viper.SetDefault("prediction.recentraces", 5)
	viper.SetDefault("prediction.partialresults", false)

	viper.SetDefault("training.datadir", "data")
	viper.SetDefault("training.outputdir", "models")
	viper.SetDefault("training.testfraction", 0.2)
	viper.SetDefault("training.seed", 42)
	viper.SetDefault("training.lambda", 1.0)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.topic", "f1predict/predictions")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("metrics.enabled", true)
}

// applyDerivedPaths fills artifact paths that were left empty from model.dir.
func (s *Settings) applyDerivedPaths() {
	if s.Model.DriverPath == "" {
		s.Model.DriverPath = filepath.Join(s.Model.Dir, DriverModelFile)
	}
	if s.Model.ConstructorPath == "" {
		s.Model.ConstructorPath = filepath.Join(s.Model.Dir, ConstructorModelFile)
	}
	if s.Model.EncodingPath == "" {
		s.Model.EncodingPath = filepath.Join(s.Model.Dir, FeatureEncodingFile)
	}
}

// SetModelDir points every artifact path at dir.
func (s *Settings) SetModelDir(dir string) {
	s.Model.Dir = dir
	s.Model.DriverPath = ""
	s.Model.ConstructorPath = ""
	s.Model.EncodingPath = ""
	s.applyDerivedPaths()
}

package conf

import (
	"os"
	"path/filepath"

	"github.com/f1predict/f1predict/internal/logger"
)

// ConfigSearchPaths returns the directories searched for config.yaml, in order.
func ConfigSearchPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "f1predict"))
	}
	return append(paths, "/etc/f1predict")
}

// LoggingConfig converts logging settings into the logger package configuration.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	level := s.Logging.Level
	if s.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: s.Logging.Console, Level: level},
		ModuleLevels: s.Logging.ModuleLevels,
	}
	if s.Logging.File.Enabled {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:    true,
			Path:       s.Logging.File.Path,
			MaxSize:    s.Logging.File.MaxSize,
			MaxAge:     s.Logging.File.MaxAge,
			MaxBackups: s.Logging.File.MaxBackups,
			Compress:   s.Logging.File.Compress,
			Level:      level,
		}
	}
	return cfg
}

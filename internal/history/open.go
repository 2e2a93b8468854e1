package history

import (
	"context"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/season"
)

// Open returns the configured history store.
func Open(ctx context.Context, settings *conf.HistorySettings, catalog *season.Catalog) (Store, error) {
	switch settings.Backend {
	case "", conf.HistoryBackendCSV:
		return NewCSVStore(ctx, settings.DataDir, catalog)
	case conf.HistoryBackendSQLite:
		return OpenSQLite(settings.DBPath)
	case conf.HistoryBackendMySQL:
		return OpenMySQL(MySQLConfigFrom(settings.MySQL))
	default:
		return nil, errors.Newf("unknown history backend %q", settings.Backend).
			Component("history").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// MySQLConfigFrom maps history.mysql settings onto a MySQLConfig.
func MySQLConfigFrom(m conf.MySQLSettings) MySQLConfig {
	return MySQLConfig{
		Host:     m.Host,
		Port:     m.Port,
		Username: m.Username,
		Password: m.Password,
		Database: m.Database,
	}
}

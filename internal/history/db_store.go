package history

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
)

// DefaultSlowQueryThreshold marks queries logged as slow.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

const importBatchSize = 200

// raceResultRecord is the persisted form of RaceResult.
type raceResultRecord struct {
	ID        uint    `gorm:"primaryKey"`
	Season    int     `gorm:"uniqueIndex:idx_race_driver;index:idx_race_order,priority:1"`
	Round     int     `gorm:"uniqueIndex:idx_race_driver;index:idx_race_order,priority:2"`
	Race      string  `gorm:"uniqueIndex:idx_race_driver;size:128"`
	Driver    string  `gorm:"uniqueIndex:idx_race_driver;index;size:128"`
	Team      string  `gorm:"index;size:64"`
	Position  int
	Grid      int
	Status    string `gorm:"size:32"`
	Points    float64
	UpdatedAt time.Time
}

func (raceResultRecord) TableName() string { return "race_results" }

func (r raceResultRecord) toResult() RaceResult {
	return RaceResult{
		Season:   r.Season,
		Round:    r.Round,
		Race:     r.Race,
		Driver:   r.Driver,
		Team:     r.Team,
		Position: r.Position,
		Grid:     r.Grid,
		Status:   r.Status,
		Points:   r.Points,
	}
}

// DBStore keeps race history in a SQL database through GORM. SQLite serves
// single-node deployments, MySQL a shared history.
type DBStore struct {
	db  *gorm.DB
	log logger.Logger
}

// MySQLConfig addresses a MySQL history database.
type MySQLConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// DSN returns the driver connection string.
func (c MySQLConfig) DSN() string {
	cfg := gomysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenSQLite opens (and migrates) the history database at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*DBStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(err).
				Component("history").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	store, err := openDB(sqlite.Open(path), "sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		if sqlDB, err := store.db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return store, nil
}

// OpenMySQL connects to (and migrates) a MySQL history database.
func OpenMySQL(cfg MySQLConfig) (*DBStore, error) {
	return openDB(mysql.Open(cfg.DSN()), "mysql", cfg.Host+"/"+cfg.Database)
}

func openDB(dialector gorm.Dialector, driver, target string) (*DBStore, error) {
	log := logger.Global().Module("history")

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("history").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("driver", driver).
			Context("target", target).
			Build()
	}

	if err := db.AutoMigrate(&raceResultRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, errors.New(err).
			Component("history").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("driver", driver).
			Build()
	}

	log.Info("opened history database", logger.String("driver", driver), logger.String("target", target))
	return &DBStore{db: db, log: log}, nil
}

// Import upserts results keyed by season, round, race and driver.
func (s *DBStore) Import(ctx context.Context, results []RaceResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}
	records := make([]raceResultRecord, 0, len(results))
	for _, r := range results {
		records = append(records, raceResultRecord{
			Season:   r.Season,
			Round:    r.Round,
			Race:     r.Race,
			Driver:   r.Driver,
			Team:     r.Team,
			Position: r.Position,
			Grid:     r.Grid,
			Status:   r.Status,
			Points:   r.Points,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "season"}, {Name: "round"}, {Name: "race"}, {Name: "driver"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"team", "position", "grid", "status", "points", "updated_at",
			}),
		}).CreateInBatches(records, importBatchSize).Error
	})
	if err != nil {
		return 0, errors.New(err).
			Component("history").
			Category(errors.CategoryDatabase).
			Context("operation", "import").
			Context("records", len(records)).
			Build()
	}
	s.log.Info("imported race results", logger.Int("records", len(records)))
	return len(records), nil
}

// RecentResults returns the driver's last n results, oldest first.
func (s *DBStore) RecentResults(ctx context.Context, driver string, n int) ([]RaceResult, error) {
	if n <= 0 {
		return nil, nil
	}
	var records []raceResultRecord
	err := s.db.WithContext(ctx).
		Where("driver = ?", driver).
		Order("season DESC, round DESC, race DESC").
		Limit(n).
		Find(&records).Error
	if err != nil {
		return nil, s.queryError(err, "recent_results")
	}
	return toResultsOldestFirst(records), nil
}

// RecentTeamResults returns the team's results over its last n races, oldest first.
func (s *DBStore) RecentTeamResults(ctx context.Context, team string, n int) ([]RaceResult, error) {
	if n <= 0 {
		return nil, nil
	}
	var races []RaceKey
	err := s.db.WithContext(ctx).
		Model(&raceResultRecord{}).
		Distinct("season", "round", "race").
		Where("team = ?", team).
		Order("season DESC, round DESC, race DESC").
		Limit(n).
		Scan(&races).Error
	if err != nil {
		return nil, s.queryError(err, "recent_team_races")
	}
	if len(races) == 0 {
		return nil, nil
	}

	oldest := races[len(races)-1]
	var records []raceResultRecord
	err = s.db.WithContext(ctx).
		Where("team = ?", team).
		Where("season > ? OR (season = ? AND (round > ? OR (round = ? AND race >= ?)))",
			oldest.Season, oldest.Season, oldest.Round, oldest.Round, oldest.Race).
		Order("season DESC, round DESC, race DESC, position ASC").
		Find(&records).Error
	if err != nil {
		return nil, s.queryError(err, "recent_team_results")
	}
	results := toResultsOldestFirst(records)
	sortResults(results)
	return results, nil
}

// Races returns every stored race in chronological order.
func (s *DBStore) Races(ctx context.Context) ([]RaceKey, error) {
	var races []RaceKey
	err := s.db.WithContext(ctx).
		Model(&raceResultRecord{}).
		Distinct("season", "round", "race").
		Order("season ASC, round ASC, race ASC").
		Scan(&races).Error
	if err != nil {
		return nil, s.queryError(err, "races")
	}
	return races, nil
}

// Close closes the underlying connection pool.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *DBStore) queryError(err error, operation string) error {
	return errors.New(err).
		Component("history").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

func toResultsOldestFirst(records []raceResultRecord) []RaceResult {
	out := make([]RaceResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.toResult())
	}
	slices.Reverse(out)
	return out
}

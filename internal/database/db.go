package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains database connection options.
type Config struct {
	Driver string
	Path   string // SQLite file; empty or ":memory:" keeps the store in memory
	DSN    string // Optional DSN override

	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Options  map[string]string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres", "postgresql":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLite grants cascade from roles and menus only with foreign keys on, and the
// migration claim relies on writers waiting out a held lock instead of failing.
var sqliteDefaults = map[string]string{
	"_foreign_keys": "1",
	"_busy_timeout": "5000",
}

func openSQLite(cfg Config) (*gorm.DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if cfg.DSN == "" && !inMemory(path) {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create %s: %w", dir, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(buildSQLiteDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return db, nil
}

func buildSQLiteDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	path := strings.TrimSpace(cfg.Path)
	options := make(map[string]string, len(sqliteDefaults)+len(cfg.Options)+1)
	for key, value := range sqliteDefaults {
		options[key] = value
	}
	if inMemory(path) {
		path = ":memory:"
		options["cache"] = "shared"
		delete(options, "_busy_timeout")
	} else {
		options["_journal_mode"] = "WAL"
	}
	for key, value := range cfg.Options {
		options[key] = value
	}

	return "file:" + filepath.ToSlash(path) + "?" + strings.Join(sortedPairs(options, "%s=%s"), "&")
}

func inMemory(path string) bool {
	return path == "" || strings.EqualFold(path, ":memory:")
}

// AutoMigrateAndSeed convenience helper used during local set-up.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return nil
}

// Ping verifies the underlying connection is reachable.
func Ping(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

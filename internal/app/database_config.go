package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/database"
	"github.com/charlesng35/menuguard/pkg/logger"
)

// Connection converts the application database configuration into database.Config.
func (c DatabaseConfig) Connection() database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var auth DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	return dbCfg
}

// OpenDatabase connects, migrates the schema and, when Seed is set, inserts the default
// roles and catalog.
func OpenDatabase(c DatabaseConfig) (*gorm.DB, error) {
	dbCfg := c.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrate := database.AutoMigrate
	if c.Seed {
		migrate = database.AutoMigrateAndSeed
	}
	if err := migrate(db); err != nil {
		CloseDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", dbCfg.Driver),
		zap.Bool("seeded", c.Seed),
	)
	return db, nil
}

// CloseDatabase closes the underlying connection pool, logging failures.
func CloseDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	log := logger.WithModule("database")

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

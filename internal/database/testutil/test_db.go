package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/database"
	"github.com/charlesng35/menuguard/internal/models"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate   bool
	seedData      bool
	legacyColumns bool
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithSeedData ensures migrations are applied and default seed data inserted.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.seedData = true
	}
}

// WithLegacyColumns migrates the schema and re-adds the deprecated can_create_data and
// can_edit_own columns to the permissions table.
func WithLegacyColumns() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.legacyColumns = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests, applying optional
// migrations/seed data. The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	if cfg.seedData {
		require.NoError(t, database.AutoMigrateAndSeed(db))
	} else if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	if cfg.legacyColumns {
		AddLegacyColumns(t, db)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// AddLegacyColumns restores the pre-consolidation permissions shape.
func AddLegacyColumns(t *testing.T, db *gorm.DB) {
	t.Helper()

	migrator := db.Migrator()
	for _, field := range []string{"CanCreateData", "CanEditOwn"} {
		if migrator.HasColumn(&models.LegacyPermission{}, field) {
			continue
		}
		require.NoError(t, migrator.AddColumn(&models.LegacyPermission{}, field))
	}
}

// SetLegacyFlags writes the deprecated flags of a single grant.
func SetLegacyFlags(t *testing.T, db *gorm.DB, roleID, menuID uint, createData, editOwn bool) {
	t.Helper()

	err := db.Model(&models.LegacyPermission{}).
		Where("role_id = ? AND menu_id = ?", roleID, menuID).
		UpdateColumns(map[string]any{
			models.LegacyColumnCreateData: createData,
			models.LegacyColumnEditOwn:    editOwn,
		}).Error
	require.NoError(t, err)
}

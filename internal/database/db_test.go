package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(db))
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))

	var roleCount, headerCount, pageCount, grantCount int64
	require.NoError(t, db.Model(&models.Role{}).Count(&roleCount).Error)
	require.NoError(t, db.Model(&models.MenuEntry{}).Where("level = ?", models.LevelCategory).Count(&headerCount).Error)
	require.NoError(t, db.Model(&models.MenuEntry{}).Where("level = ?", models.LevelPage).Count(&pageCount).Error)
	require.NoError(t, db.Model(&models.Permission{}).Count(&grantCount).Error)

	require.EqualValues(t, 3, roleCount)
	require.EqualValues(t, len(defaultCatalog), headerCount)
	require.Positive(t, pageCount)
	require.Equal(t, pageCount, grantCount, "admin is granted every seeded page")

	// Seeding twice must not duplicate anything.
	require.NoError(t, SeedData(db))
	var again int64
	require.NoError(t, db.Model(&models.MenuEntry{}).Count(&again).Error)
	require.Equal(t, headerCount+pageCount, again)
}

func TestSeededPagesLinkToTheirHeader(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))

	var pages []models.MenuEntry
	require.NoError(t, db.Where("level = ?", models.LevelPage).Find(&pages).Error)
	for _, page := range pages {
		require.NotNil(t, page.ParentID, page.Page)

		var parent models.MenuEntry
		require.NoError(t, db.First(&parent, *page.ParentID).Error)
		require.Equal(t, models.LevelCategory, parent.Level)
		require.Equal(t, page.Category, parent.Category)
	}
}

func TestDeletingRoleOrMenuCascadesGrants(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	role := models.Role{Code: "ops", Name: "Ops", Active: true}
	require.NoError(t, db.Create(&role).Error)
	other := models.Role{Code: "audit", Name: "Audit", Active: true}
	require.NoError(t, db.Create(&other).Error)

	menu := models.MenuEntry{Category: "Ops", Page: "Tasks", URL: "/ops/tasks", Level: models.LevelPage, Enabled: true}
	require.NoError(t, db.Create(&menu).Error)

	require.NoError(t, db.Create(&models.Permission{RoleID: role.ID, MenuID: menu.ID}).Error)
	require.NoError(t, db.Create(&models.Permission{RoleID: other.ID, MenuID: menu.ID}).Error)

	require.NoError(t, db.Delete(&role).Error)
	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, db.Delete(&menu).Error)
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.Zero(t, count)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

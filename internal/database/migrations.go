package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.MenuEntry{},
		&models.Permission{},
		&models.MigrationRun{},
		&models.MigrationLock{},
		&models.CacheEntry{},
	)
}

type seedPage struct {
	page  string
	url   string
	order int
}

type seedCategory struct {
	category string
	order    int
	pages    []seedPage
}

var defaultCatalog = []seedCategory{
	{
		category: "Admin",
		order:    100,
		pages: []seedPage{
			{page: "Users", url: "/admin/users", order: 110},
			{page: "Roles", url: "/admin/roles", order: 120},
			{page: "Menus", url: "/admin/menus", order: 130},
		},
	},
	{
		category: "Operations",
		order:    200,
		pages: []seedPage{
			{page: "Tasks", url: "/ops/tasks", order: 210},
			{page: "Assets", url: "/ops/assets", order: 220},
			{page: "Incidents", url: "/ops/incidents", order: 230},
		},
	},
	{
		category: "Finance",
		order:    300,
		pages: []seedPage{
			{page: "Investments", url: "/finance/investments", order: 310},
		},
	},
}

// SeedData populates default roles, the menu catalog and grants for the admin role.
// Existing rows are left as they are.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{Code: "admin", Name: "Administrator", Active: true},
		{Code: "staff", Name: "Staff", Active: true},
		{Code: "viewer", Name: "Viewer", Active: true},
	}

	for i := range roles {
		if err := db.Where(models.Role{Code: roles[i].Code}).Attrs(roles[i]).FirstOrCreate(&roles[i]).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", roles[i].Code, err)
		}
	}
	admin := roles[0]

	for _, cat := range defaultCatalog {
		header := models.MenuEntry{
			Category: cat.category,
			Level:    models.LevelCategory,
			Enabled:  true,
			Order:    cat.order,
		}
		if err := db.Where("category = ? AND level = ?", cat.category, models.LevelCategory).
			Attrs(header).FirstOrCreate(&header).Error; err != nil {
			return fmt.Errorf("seed category %s: %w", cat.category, err)
		}

		for _, p := range cat.pages {
			parentID := header.ID
			page := models.MenuEntry{
				ParentID: &parentID,
				Category: cat.category,
				Page:     p.page,
				URL:      p.url,
				Level:    models.LevelPage,
				Enabled:  true,
				Order:    p.order,
			}
			if err := db.Where("category = ? AND level = ? AND page = ?", cat.category, models.LevelPage, p.page).
				Attrs(page).FirstOrCreate(&page).Error; err != nil {
				return fmt.Errorf("seed page %s/%s: %w", cat.category, p.page, err)
			}

			grant := models.Permission{
				RoleID: admin.ID,
				MenuID: page.ID,
				PermissionBits: models.PermissionBits{
					CanRead:         true,
					CanWrite:        true,
					CanFull:         true,
					CanViewCategory: true,
					CanReadData:     true,
					CanManageOwn:    true,
					CanEditOthers:   true,
				},
			}
			if err := db.Where(models.Permission{RoleID: admin.ID, MenuID: page.ID}).
				Attrs(grant).FirstOrCreate(&models.Permission{}).Error; err != nil {
				return fmt.Errorf("seed grant %s/%s: %w", cat.category, p.page, err)
			}
		}
	}

	return nil
}

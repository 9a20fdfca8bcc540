package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
)

// MenuCatalog reads and maintains the menu tree.
type MenuCatalog struct {
	db *gorm.DB
}

// NewMenuCatalog constructs a catalog backed by the provided database.
func NewMenuCatalog(db *gorm.DB) (*MenuCatalog, error) {
	if db == nil {
		return nil, errNilDB
	}
	return &MenuCatalog{db: db}, nil
}

// ListEnabledMenus returns every enabled entry in display order.
func (c *MenuCatalog) ListEnabledMenus(ctx context.Context) ([]models.MenuEntry, error) {
	var menus []models.MenuEntry
	if err := c.db.WithContext(ensureContext(ctx)).
		Where("enabled = ?", true).
		Order("sort_order ASC").Order("id ASC").
		Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("menu catalog: list enabled: %w", err)
	}
	return menus, nil
}

// ListMenus returns every entry, enabled or not, in display order.
func (c *MenuCatalog) ListMenus(ctx context.Context) ([]models.MenuEntry, error) {
	var menus []models.MenuEntry
	if err := c.db.WithContext(ensureContext(ctx)).
		Order("sort_order ASC").Order("id ASC").
		Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("menu catalog: list: %w", err)
	}
	return menus, nil
}

// GetMenu loads a single entry.
func (c *MenuCatalog) GetMenu(ctx context.Context, id uint) (*models.MenuEntry, error) {
	var menu models.MenuEntry
	if err := c.db.WithContext(ensureContext(ctx)).First(&menu, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMenuNotFound
		}
		return nil, fmt.Errorf("menu catalog: get %d: %w", id, err)
	}
	return &menu, nil
}

// GetMenuByURL loads the single entry carrying url. A url shared by several entries
// yields ErrDuplicateURL.
func (c *MenuCatalog) GetMenuByURL(ctx context.Context, url string) (*models.MenuEntry, error) {
	var menus []models.MenuEntry
	if err := c.db.WithContext(ensureContext(ctx)).
		Where("url = ?", url).
		Order("id ASC").
		Limit(2).
		Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("menu catalog: get by url %q: %w", url, err)
	}
	switch len(menus) {
	case 0:
		return nil, ErrMenuNotFound
	case 1:
		return &menus[0], nil
	default:
		return nil, ErrDuplicateURL
	}
}

// CreateMenu inserts a new entry.
func (c *MenuCatalog) CreateMenu(ctx context.Context, menu *models.MenuEntry) error {
	if err := c.db.WithContext(ensureContext(ctx)).Create(menu).Error; err != nil {
		return fmt.Errorf("menu catalog: create: %w", err)
	}
	return nil
}

// SetEnabled toggles whether the entry may appear in resolved capability maps.
func (c *MenuCatalog) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	res := c.db.WithContext(ensureContext(ctx)).
		Model(&models.MenuEntry{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if res.Error != nil {
		return fmt.Errorf("menu catalog: set enabled %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMenuNotFound
	}
	return nil
}

// DeleteMenu removes an entry; its grants are removed by the foreign key cascade.
func (c *MenuCatalog) DeleteMenu(ctx context.Context, id uint) error {
	res := c.db.WithContext(ensureContext(ctx)).Delete(&models.MenuEntry{}, id)
	if res.Error != nil {
		return fmt.Errorf("menu catalog: delete %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMenuNotFound
	}
	return nil
}

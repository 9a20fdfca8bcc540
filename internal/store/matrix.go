package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/menuguard/internal/models"
)

var bitColumns = []string{
	"can_read",
	"can_write",
	"can_full",
	"can_view_category",
	"can_read_data",
	"can_manage_own",
	"can_edit_others",
}

// PermissionMatrix gives access to the sparse (role, menu) grant rows.
type PermissionMatrix struct {
	db *gorm.DB
}

// NewPermissionMatrix constructs a matrix backed by the provided database.
func NewPermissionMatrix(db *gorm.DB) (*PermissionMatrix, error) {
	if db == nil {
		return nil, errNilDB
	}
	return &PermissionMatrix{db: db}, nil
}

// ListForRole returns every grant row of the role, ordered by menu id.
func (m *PermissionMatrix) ListForRole(ctx context.Context, roleID uint) ([]models.Permission, error) {
	var rows []models.Permission
	if err := m.db.WithContext(ensureContext(ctx)).
		Where("role_id = ?", roleID).
		Order("menu_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("permission matrix: list role %d: %w", roleID, err)
	}
	return rows, nil
}

// Get loads the grant row for a single (role, menu) pair.
func (m *PermissionMatrix) Get(ctx context.Context, roleID, menuID uint) (*models.Permission, error) {
	var row models.Permission
	if err := m.db.WithContext(ensureContext(ctx)).
		Where("role_id = ? AND menu_id = ?", roleID, menuID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("permission matrix: get %d/%d: %w", roleID, menuID, err)
	}
	return &row, nil
}

// Grant writes the bit-set for the (role, menu) pair, replacing any previous bits.
func (m *PermissionMatrix) Grant(ctx context.Context, roleID, menuID uint, bits models.PermissionBits) error {
	row := models.Permission{RoleID: roleID, MenuID: menuID, PermissionBits: bits}
	if err := m.db.WithContext(ensureContext(ctx)).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_id"}, {Name: "menu_id"}},
			DoUpdates: clause.AssignmentColumns(bitColumns),
		}).Create(&row).Error; err != nil {
		return fmt.Errorf("permission matrix: grant %d/%d: %w", roleID, menuID, err)
	}
	return nil
}

// Revoke deletes the grant row. It reports whether a row existed.
func (m *PermissionMatrix) Revoke(ctx context.Context, roleID, menuID uint) (bool, error) {
	res := m.db.WithContext(ensureContext(ctx)).
		Where("role_id = ? AND menu_id = ?", roleID, menuID).
		Delete(&models.Permission{})
	if res.Error != nil {
		return false, fmt.Errorf("permission matrix: revoke %d/%d: %w", roleID, menuID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

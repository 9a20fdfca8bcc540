package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
)

// RoleStore reads and maintains role identities.
type RoleStore struct {
	db *gorm.DB
}

// NewRoleStore constructs a role store backed by the provided database.
func NewRoleStore(db *gorm.DB) (*RoleStore, error) {
	if db == nil {
		return nil, errNilDB
	}
	return &RoleStore{db: db}, nil
}

// GetRole loads a role by id, returning ErrRoleNotFound when it does not exist.
func (s *RoleStore) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := s.db.WithContext(ensureContext(ctx)).First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("role store: get %d: %w", id, err)
	}
	return &role, nil
}

// GetRoleByCode loads a role by its unique code.
func (s *RoleStore) GetRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	var role models.Role
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("code = ?", strings.TrimSpace(code)).
		First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("role store: get %q: %w", code, err)
	}
	return &role, nil
}

// ListRoles returns all roles ordered by code.
func (s *RoleStore) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.WithContext(ensureContext(ctx)).Order("code ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role store: list: %w", err)
	}
	return roles, nil
}

// CreateRole inserts a new role.
func (s *RoleStore) CreateRole(ctx context.Context, role *models.Role) error {
	if err := s.db.WithContext(ensureContext(ctx)).Create(role).Error; err != nil {
		return fmt.Errorf("role store: create: %w", err)
	}
	return nil
}

// SetActive activates or deactivates a role.
func (s *RoleStore) SetActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Role{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("role store: set active %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes a role; its grants are removed by the foreign key cascade.
func (s *RoleStore) DeleteRole(ctx context.Context, id uint) error {
	res := s.db.WithContext(ensureContext(ctx)).Delete(&models.Role{}, id)
	if res.Error != nil {
		return fmt.Errorf("role store: delete %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// RoleIDs returns the id of every role.
func (s *RoleStore) RoleIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Role{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("role store: list ids: %w", err)
	}
	return ids, nil
}

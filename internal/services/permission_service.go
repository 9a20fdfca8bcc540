package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/catalog"
	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/store"
	apperrors "github.com/charlesng35/menuguard/pkg/errors"
	"github.com/charlesng35/menuguard/pkg/logger"
	"github.com/charlesng35/menuguard/pkg/validator"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrMenuNotFound indicates the requested menu entry does not exist.
	ErrMenuNotFound = apperrors.New("MENU_NOT_FOUND", "Menu entry not found", http.StatusNotFound)
	// ErrGrantNotFound indicates the role holds no grant on the menu entry.
	ErrGrantNotFound = apperrors.New("GRANT_NOT_FOUND", "Permission grant not found", http.StatusNotFound)
)

// CapabilityInvalidator drops cached capability maps.
type CapabilityInvalidator interface {
	Invalidate(ctx context.Context, roleIDs ...uint) error
}

// PermissionService administers roles, menu entries and the grants between them. Every
// change invalidates the cached capability maps it can affect.
type PermissionService struct {
	roles       *store.RoleStore
	menus       *store.MenuCatalog
	matrix      *store.PermissionMatrix
	invalidator CapabilityInvalidator
	log         *zap.Logger
}

// NewPermissionService constructs the service. invalidator may be nil when resolution is
// not cached.
func NewPermissionService(db *gorm.DB, invalidator CapabilityInvalidator) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	roles, err := store.NewRoleStore(db)
	if err != nil {
		return nil, err
	}
	menus, err := store.NewMenuCatalog(db)
	if err != nil {
		return nil, err
	}
	matrix, err := store.NewPermissionMatrix(db)
	if err != nil {
		return nil, err
	}
	return &PermissionService{
		roles:       roles,
		menus:       menus,
		matrix:      matrix,
		invalidator: invalidator,
		log:         logger.WithModule("permission_service"),
	}, nil
}

// CreateRoleInput describes the payload accepted by CreateRole.
type CreateRoleInput struct {
	Code   string `json:"code" validate:"required,role_code"`
	Name   string `json:"name" validate:"required,max=128"`
	Active *bool  `json:"active"`
}

// CreateRole registers a new role. Roles are active unless stated otherwise.
func (s *PermissionService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	role := &models.Role{
		Code:   input.Code,
		Name:   input.Name,
		Active: input.Active == nil || *input.Active,
	}
	if err := s.roles.CreateRole(ctx, role); err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict.WithMessage("role code already exists")
		}
		return nil, fmt.Errorf("permission service: create role: %w", err)
	}

	s.log.Info("role created", zap.Uint("role_id", role.ID), zap.String("code", role.Code))
	return role, nil
}

// ListRoles returns every role.
func (s *PermissionService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.roles.ListRoles(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("permission service: list roles: %w", err)
	}
	return roles, nil
}

// SetRoleActive activates or deactivates a role. An inactive role resolves to an empty map.
func (s *PermissionService) SetRoleActive(ctx context.Context, roleID uint, active bool) error {
	ctx = ensureContext(ctx)

	if err := s.roles.SetActive(ctx, roleID, active); err != nil {
		return mapStoreError(err)
	}

	s.log.Info("role activation changed", zap.Uint("role_id", roleID), zap.Bool("active", active))
	s.invalidate(ctx, roleID)
	return nil
}

// DeleteRole removes a role together with its grants.
func (s *PermissionService) DeleteRole(ctx context.Context, roleID uint) error {
	ctx = ensureContext(ctx)

	if err := s.roles.DeleteRole(ctx, roleID); err != nil {
		return mapStoreError(err)
	}

	s.log.Info("role deleted", zap.Uint("role_id", roleID))
	s.invalidate(ctx, roleID)
	return nil
}

// CreateMenuInput describes the payload accepted by CreateMenu.
type CreateMenuInput struct {
	ParentID *uint  `json:"parent_id"`
	Category string `json:"category" validate:"required,max=128"`
	Page     string `json:"page" validate:"max=128"`
	URL      string `json:"url" validate:"max=512,menu_url"`
	Level    int    `json:"level" validate:"oneof=0 1"`
	Enabled  *bool  `json:"enabled"`
	Order    int    `json:"order"`
}

// CreateMenu adds an entry to the catalog. A parent, when given, must be a header of the
// same category. Entries are enabled unless stated otherwise.
func (s *PermissionService) CreateMenu(ctx context.Context, input CreateMenuInput) (*models.MenuEntry, error) {
	ctx = ensureContext(ctx)

	input.Category = strings.TrimSpace(input.Category)
	input.Page = strings.TrimSpace(input.Page)
	input.URL = strings.TrimSpace(input.URL)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	menu := &models.MenuEntry{
		ParentID: input.ParentID,
		Category: input.Category,
		Page:     input.Page,
		URL:      input.URL,
		Level:    models.MenuLevel(input.Level),
		Enabled:  input.Enabled == nil || *input.Enabled,
		Order:    input.Order,
	}

	if menu.ParentID != nil {
		if menu.Level != models.LevelPage {
			return nil, apperrors.NewBadRequest("only page entries may have a parent")
		}
		parent, err := s.menus.GetMenu(ctx, *menu.ParentID)
		if err != nil {
			if errors.Is(err, store.ErrMenuNotFound) {
				return nil, apperrors.NewBadRequest("parent menu entry does not exist")
			}
			return nil, fmt.Errorf("permission service: load parent: %w", err)
		}
		if !parent.IsCategory() {
			return nil, apperrors.NewBadRequest("parent must be a category entry")
		}
		if parent.Category != menu.Category {
			return nil, apperrors.NewBadRequest("parent belongs to a different category")
		}
	}

	if err := s.menus.CreateMenu(ctx, menu); err != nil {
		return nil, fmt.Errorf("permission service: create menu: %w", err)
	}

	s.log.Info("menu entry created",
		zap.Uint("menu_id", menu.ID),
		zap.String("category", menu.Category),
		zap.String("url", menu.URL),
	)
	// A new url may collide with an existing one, which changes every role's map.
	s.invalidateAll(ctx)
	return menu, nil
}

// ListMenus returns the whole catalog, disabled entries included.
func (s *PermissionService) ListMenus(ctx context.Context) ([]models.MenuEntry, error) {
	menus, err := s.menus.ListMenus(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("permission service: list menus: %w", err)
	}
	return menus, nil
}

// MenuTree groups the whole catalog into categories with their leaf pages in display order.
func (s *PermissionService) MenuTree(ctx context.Context) ([]catalog.Category, error) {
	menus, err := s.menus.ListMenus(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("permission service: list menus: %w", err)
	}
	return catalog.Group(menus), nil
}

// SetMenuEnabled shows or hides an entry for every role.
func (s *PermissionService) SetMenuEnabled(ctx context.Context, menuID uint, enabled bool) error {
	ctx = ensureContext(ctx)

	if err := s.menus.SetEnabled(ctx, menuID, enabled); err != nil {
		return mapStoreError(err)
	}

	s.log.Info("menu entry toggled", zap.Uint("menu_id", menuID), zap.Bool("enabled", enabled))
	s.invalidateAll(ctx)
	return nil
}

// DeleteMenu removes an entry together with its grants.
func (s *PermissionService) DeleteMenu(ctx context.Context, menuID uint) error {
	ctx = ensureContext(ctx)

	if err := s.menus.DeleteMenu(ctx, menuID); err != nil {
		return mapStoreError(err)
	}

	s.log.Info("menu entry deleted", zap.Uint("menu_id", menuID))
	s.invalidateAll(ctx)
	return nil
}

// Grant sets the bits of the role at the menu entry, replacing any previous grant.
func (s *PermissionService) Grant(ctx context.Context, roleID, menuID uint, bits models.PermissionBits) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	if _, err := s.roles.GetRole(ctx, roleID); err != nil {
		return nil, mapStoreError(err)
	}
	if _, err := s.menus.GetMenu(ctx, menuID); err != nil {
		return nil, mapStoreError(err)
	}

	if err := s.matrix.Grant(ctx, roleID, menuID, bits); err != nil {
		return nil, fmt.Errorf("permission service: grant: %w", err)
	}

	s.log.Info("permission granted",
		zap.Uint("role_id", roleID),
		zap.Uint("menu_id", menuID),
		zap.Any("bits", bits),
	)
	s.invalidate(ctx, roleID)
	return &models.Permission{RoleID: roleID, MenuID: menuID, PermissionBits: bits}, nil
}

// GetGrant returns the stored grant of the role at the menu entry.
func (s *PermissionService) GetGrant(ctx context.Context, roleID, menuID uint) (*models.Permission, error) {
	grant, err := s.matrix.Get(ensureContext(ctx), roleID, menuID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return grant, nil
}

// Revoke removes the grant of the role at the menu entry, restoring default deny.
func (s *PermissionService) Revoke(ctx context.Context, roleID, menuID uint) error {
	ctx = ensureContext(ctx)

	existed, err := s.matrix.Revoke(ctx, roleID, menuID)
	if err != nil {
		return fmt.Errorf("permission service: revoke: %w", err)
	}
	if !existed {
		return ErrGrantNotFound
	}

	s.log.Info("permission revoked", zap.Uint("role_id", roleID), zap.Uint("menu_id", menuID))
	s.invalidate(ctx, roleID)
	return nil
}

// ValidateCatalog checks the parent linkage and url uniqueness of the catalog. It returns
// no issues for a consistent catalog.
func (s *PermissionService) ValidateCatalog(ctx context.Context) ([]*catalog.Issue, error) {
	menus, err := s.menus.ListMenus(ensureContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("permission service: list menus: %w", err)
	}
	return catalog.Issues(catalog.Validate(menus)), nil
}

func (s *PermissionService) invalidate(ctx context.Context, roleIDs ...uint) {
	if s.invalidator == nil || len(roleIDs) == 0 {
		return
	}
	if err := s.invalidator.Invalidate(ctx, roleIDs...); err != nil {
		s.log.Warn("capability cache invalidation failed", zap.Uints("role_ids", roleIDs), zap.Error(err))
	}
}

func (s *PermissionService) invalidateAll(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	ids, err := s.roles.RoleIDs(ctx)
	if err != nil {
		s.log.Warn("capability cache invalidation skipped", zap.Error(err))
		return
	}
	s.invalidate(ctx, ids...)
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrRoleNotFound):
		return ErrRoleNotFound
	case errors.Is(err, store.ErrMenuNotFound):
		return ErrMenuNotFound
	case errors.Is(err, store.ErrGrantNotFound):
		return ErrGrantNotFound
	default:
		return err
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

package permissions

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/store"
)

// RoleReader loads a role by id and returns store.ErrRoleNotFound when it is missing.
type RoleReader interface {
	GetRole(ctx context.Context, id uint) (*models.Role, error)
}

// MenuReader lists enabled menu entries.
type MenuReader interface {
	ListEnabledMenus(ctx context.Context) ([]models.MenuEntry, error)
}

// GrantReader lists the grant rows of a role.
type GrantReader interface {
	ListForRole(ctx context.Context, roleID uint) ([]models.Permission, error)
}

// CapabilityResolver produces capability maps for roles.
type CapabilityResolver interface {
	ResolvePermissions(ctx context.Context, roleID uint) (*CapabilityMap, error)
}

// Resolver loads the three inputs of Resolve and applies it. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	roles  RoleReader
	menus  MenuReader
	grants GrantReader
}

// NewResolver constructs a resolver from its readers.
func NewResolver(roles RoleReader, menus MenuReader, grants GrantReader) (*Resolver, error) {
	if roles == nil || menus == nil || grants == nil {
		return nil, errors.New("permission resolver: role, menu and grant readers are required")
	}
	return &Resolver{roles: roles, menus: menus, grants: grants}, nil
}

// NewResolverFromDB wires a resolver to the gorm-backed stores.
func NewResolverFromDB(db *gorm.DB) (*Resolver, error) {
	roles, err := store.NewRoleStore(db)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}
	menus, err := store.NewMenuCatalog(db)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}
	grants, err := store.NewPermissionMatrix(db)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}
	return NewResolver(roles, menus, grants)
}

// ResolvePermissions returns the capability map of the role. A missing or inactive role
// yields an empty map with a nil error; read failures yield ErrResolutionFailed.
func (r *Resolver) ResolvePermissions(ctx context.Context, roleID uint) (*CapabilityMap, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		role   *models.Role
		menus  []models.MenuEntry
		grants []models.Permission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := r.roles.GetRole(gctx, roleID)
		if errors.Is(err, store.ErrRoleNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load role %d: %w", roleID, err)
		}
		role = loaded
		return nil
	})
	g.Go(func() error {
		loaded, err := r.menus.ListEnabledMenus(gctx)
		if err != nil {
			return fmt.Errorf("load menus: %w", err)
		}
		menus = loaded
		return nil
	})
	g.Go(func() error {
		loaded, err := r.grants.ListForRole(gctx, roleID)
		if err != nil {
			return fmt.Errorf("load grants of role %d: %w", roleID, err)
		}
		grants = loaded
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}

	if role == nil {
		return emptyMap(roleID, DenyRoleNotFound), nil
	}
	return Resolve(role, menus, grants)
}

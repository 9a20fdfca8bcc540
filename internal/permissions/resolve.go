package permissions

import (
	"fmt"

	"github.com/charlesng35/menuguard/internal/catalog"
	"github.com/charlesng35/menuguard/internal/models"
)

// Resolve turns a role, the enabled menu entries and the role's grant rows into a
// capability map. It reads nothing else, so equal inputs give equal maps.
//
// A nil role or an inactive role yields an empty map. Grants for entries missing from
// menus, or for disabled entries, are dropped. A category without an enabled header is
// never visible, though its granted leaves still resolve. Grants belonging to another role, repeated
// grants for one entry and granted entries with an unknown level fail with
// ErrResolutionFailed.
func Resolve(role *models.Role, menus []models.MenuEntry, grants []models.Permission) (*CapabilityMap, error) {
	if role == nil {
		return emptyMap(0, DenyRoleNotFound), nil
	}
	if !role.Active {
		return emptyMap(role.ID, DenyRoleInactive), nil
	}

	byMenu := make(map[uint]models.PermissionBits, len(grants))
	for _, grant := range grants {
		if grant.RoleID != role.ID {
			return nil, fmt.Errorf("%w: grant for menu %d belongs to role %d, not %d",
				ErrResolutionFailed, grant.MenuID, grant.RoleID, role.ID)
		}
		if _, dup := byMenu[grant.MenuID]; dup {
			return nil, fmt.Errorf("%w: role %d has more than one grant for menu %d",
				ErrResolutionFailed, role.ID, grant.MenuID)
		}
		byMenu[grant.MenuID] = grant.PermissionBits
	}

	enabled := make([]models.MenuEntry, 0, len(menus))
	headers := make(map[string]bool)
	for _, menu := range menus {
		if !menu.Enabled {
			continue
		}
		enabled = append(enabled, menu)
		if menu.Level == models.LevelCategory {
			headers[menu.Category] = true
		}
	}
	catalog.Sort(enabled)

	out := emptyMap(role.ID, DenyNone)
	out.DuplicateURLs = catalog.DuplicateURLs(enabled)

	for _, menu := range enabled {
		bits, granted := byMenu[menu.ID]
		if !granted {
			continue
		}
		if !menu.Level.Valid() {
			return nil, fmt.Errorf("%w: menu %d has level %d", ErrResolutionFailed, menu.ID, menu.Level)
		}

		capability := newCapability(menu, bits)
		out.ByMenu[menu.ID] = capability

		if menu.URL != "" {
			if _, taken := out.ByURL[menu.URL]; !taken {
				out.ByURL[menu.URL] = capability
			}
		}

		if headers[menu.Category] {
			out.Categories[menu.Category] = out.Categories[menu.Category] || bits.CanViewCategory
		}

		if menu.Level == models.LevelPage {
			out.Pages[menu.Category] = append(out.Pages[menu.Category], menu.ID)
		}
	}

	return out, nil
}

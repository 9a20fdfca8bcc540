package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/menuguard/internal/models"
)

func activeRole(id uint) *models.Role {
	return &models.Role{ID: id, Code: "r", Name: "R", Active: true}
}

func header(id uint, category string, order int) models.MenuEntry {
	return models.MenuEntry{ID: id, Category: category, Level: models.LevelCategory, Enabled: true, Order: order}
}

func page(id uint, category, url string, order int) models.MenuEntry {
	return models.MenuEntry{ID: id, Category: category, Page: url, URL: url, Level: models.LevelPage, Enabled: true, Order: order}
}

func grant(roleID, menuID uint, bits models.PermissionBits) models.Permission {
	return models.Permission{RoleID: roleID, MenuID: menuID, PermissionBits: bits}
}

func TestResolveDefaultDeny(t *testing.T) {
	menus := []models.MenuEntry{
		header(1, "Admin", 10),
		page(2, "Admin", "/admin/users", 20),
		page(3, "Admin", "/admin/roles", 30),
	}
	grants := []models.Permission{grant(7, 2, models.PermissionBits{CanReadData: true})}

	m, err := Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	_, err = m.CheckMenu(MenuByID(3))
	require.ErrorIs(t, err, ErrNotGranted)
	for _, action := range []Action{ActionViewCategory, ActionRead, ActionCreate, ActionManageOwn, ActionEditOthers, ActionDelete} {
		require.False(t, m.Allows(MenuByID(3), action), action)
		require.False(t, m.Allows(MenuByID(1), action), action)
	}
	require.False(t, m.IsCategoryVisible("Admin"))
}

func TestResolveInactiveRoleIsEmpty(t *testing.T) {
	role := activeRole(7)
	role.Active = false
	menus := []models.MenuEntry{header(1, "Admin", 10), page(2, "Admin", "/admin/users", 20)}
	grants := []models.Permission{
		grant(7, 1, models.PermissionBits{CanViewCategory: true}),
		grant(7, 2, models.PermissionBits{CanViewCategory: true, CanReadData: true, CanManageOwn: true, CanEditOthers: true}),
	}

	m, err := Resolve(role, menus, grants)
	require.NoError(t, err)
	require.Equal(t, DenyRoleInactive, m.Denied)
	require.Zero(t, m.Len())
	require.Empty(t, m.ByURL)
	require.False(t, m.IsCategoryVisible("Admin"))
}

func TestResolveNilRole(t *testing.T) {
	m, err := Resolve(nil, []models.MenuEntry{header(1, "Admin", 10)}, nil)
	require.NoError(t, err)
	require.Equal(t, DenyRoleNotFound, m.Denied)
	require.Zero(t, m.Len())
}

func TestResolveExcludesDisabledMenus(t *testing.T) {
	disabled := page(3, "Admin", "/admin/roles", 30)
	disabled.Enabled = false
	menus := []models.MenuEntry{header(1, "Admin", 10), page(2, "Admin", "/admin/users", 20), disabled}
	grants := []models.Permission{
		grant(7, 2, models.PermissionBits{CanReadData: true}),
		grant(7, 3, models.PermissionBits{CanViewCategory: true, CanReadData: true, CanManageOwn: true}),
	}

	m, err := Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)
	require.Contains(t, m.ByMenu, uint(2))
	require.NotContains(t, m.ByMenu, uint(3))
	require.NotContains(t, m.ByURL, "/admin/roles")
	// The disabled entry's can_view_category does not leak into the category.
	require.False(t, m.IsCategoryVisible("Admin"))
}

func TestResolveCategoryVisibilityIsOrOfEntries(t *testing.T) {
	menus := []models.MenuEntry{
		header(1, "Admin", 10),
		page(2, "Admin", "/admin/users", 20),
		page(3, "Admin", "/admin/roles", 30),
		header(4, "Finance", 40),
		page(5, "Finance", "/finance/investments", 50),
	}

	t.Run("leaf grant makes category visible", func(t *testing.T) {
		grants := []models.Permission{
			grant(7, 1, models.PermissionBits{}),
			grant(7, 2, models.PermissionBits{}),
			grant(7, 3, models.PermissionBits{CanViewCategory: true}),
			grant(7, 5, models.PermissionBits{CanReadData: true}),
		}
		m, err := Resolve(activeRole(7), menus, grants)
		require.NoError(t, err)
		require.True(t, m.IsCategoryVisible("Admin"))
		require.False(t, m.IsCategoryVisible("Finance"))
		require.False(t, m.IsCategoryVisible("Unknown"))
	})

	t.Run("header grant alone makes category visible", func(t *testing.T) {
		grants := []models.Permission{grant(7, 4, models.PermissionBits{CanViewCategory: true})}
		m, err := Resolve(activeRole(7), menus, grants)
		require.NoError(t, err)
		require.True(t, m.IsCategoryVisible("Finance"))
		require.False(t, m.IsCategoryVisible("Admin"))
	})
}

func TestResolveCategoryNeedsEnabledHeader(t *testing.T) {
	hidden := header(1, "Admin", 10)
	hidden.Enabled = false
	menus := []models.MenuEntry{
		hidden,
		page(2, "Admin", "/admin/users", 20),
		page(3, "Reports", "/reports/daily", 30),
	}
	grants := []models.Permission{
		grant(7, 2, models.PermissionBits{CanViewCategory: true, CanReadData: true}),
		grant(7, 3, models.PermissionBits{CanViewCategory: true, CanReadData: true}),
	}

	m, err := Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)
	require.False(t, m.IsCategoryVisible("Admin"))
	require.False(t, m.IsCategoryVisible("Reports"))
	require.NotContains(t, m.Categories, "Admin")
	require.NotContains(t, m.Categories, "Reports")

	require.True(t, m.Allows(MenuByID(2), ActionRead))
	require.True(t, m.Allows(MenuByURL("/reports/daily"), ActionRead))
	require.Equal(t, []uint{3}, m.Pages["Reports"])

	menus[0].Enabled = true
	m, err = Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)
	require.True(t, m.IsCategoryVisible("Admin"))
	require.False(t, m.IsCategoryVisible("Reports"))
}

func TestResolveDerivedSignals(t *testing.T) {
	cases := []struct {
		name       string
		manageOwn  bool
		editOthers bool
		wantCreate bool
		wantDelete bool
	}{
		{name: "none", wantCreate: false, wantDelete: false},
		{name: "manage own", manageOwn: true, wantCreate: true, wantDelete: true},
		{name: "edit others", editOthers: true, wantCreate: false, wantDelete: true},
		{name: "both", manageOwn: true, editOthers: true, wantCreate: true, wantDelete: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			menus := []models.MenuEntry{page(2, "Admin", "/admin/users", 20)}
			grants := []models.Permission{grant(7, 2, models.PermissionBits{CanManageOwn: tc.manageOwn, CanEditOthers: tc.editOthers})}

			m, err := Resolve(activeRole(7), menus, grants)
			require.NoError(t, err)

			capability, err := m.CheckMenu(MenuByID(2))
			require.NoError(t, err)
			require.Equal(t, tc.wantCreate, capability.CanCreate)
			require.Equal(t, tc.wantDelete, capability.CanDelete)
			require.Equal(t, tc.wantCreate, capability.Allows(ActionCreate))
			require.Equal(t, tc.wantDelete, capability.Allows(ActionDelete))
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	menus := []models.MenuEntry{
		page(5, "Finance", "/finance/investments", 50),
		header(1, "Admin", 10),
		page(3, "Admin", "/admin/roles", 30),
		header(4, "Finance", 40),
		page(2, "Admin", "/admin/users", 30),
	}
	grants := []models.Permission{
		grant(7, 5, models.PermissionBits{CanReadData: true}),
		grant(7, 2, models.PermissionBits{CanViewCategory: true}),
		grant(7, 3, models.PermissionBits{CanManageOwn: true}),
	}

	first, err := Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)

	reversedMenus := make([]models.MenuEntry, len(menus))
	for i := range menus {
		reversedMenus[len(menus)-1-i] = menus[i]
	}
	reversedGrants := []models.Permission{grants[2], grants[1], grants[0]}

	second, err := Resolve(activeRole(7), reversedMenus, reversedGrants)
	require.NoError(t, err)
	require.Equal(t, first, second)
	// Equal sort keys fall back to the menu id.
	require.Equal(t, []uint{2, 3}, first.Pages["Admin"])
	require.Equal(t, []uint{5}, first.Pages["Finance"])
}

func TestResolveDuplicateURLsFailClosed(t *testing.T) {
	menus := []models.MenuEntry{
		page(2, "Admin", "/admin/users", 20),
		page(3, "Admin", "/admin/users", 30),
	}
	grants := []models.Permission{
		grant(7, 2, models.PermissionBits{CanReadData: true}),
		grant(7, 3, models.PermissionBits{CanReadData: true, CanEditOthers: true}),
	}

	m, err := Resolve(activeRole(7), menus, grants)
	require.NoError(t, err)
	require.Equal(t, []string{"/admin/users"}, m.DuplicateURLs)
	require.Equal(t, uint(2), m.ByURL["/admin/users"].MenuID)

	_, err = m.CheckMenu(MenuByURL("/admin/users"))
	require.ErrorIs(t, err, ErrAmbiguousURL)
	require.False(t, m.Allows(MenuByURL("/admin/users"), ActionRead))

	capability, err := m.CheckMenu(MenuByID(3))
	require.NoError(t, err)
	require.True(t, capability.CanEditOthers)
}

func TestResolveRejectsInconsistentGrants(t *testing.T) {
	menus := []models.MenuEntry{page(2, "Admin", "/admin/users", 20)}

	t.Run("grant of another role", func(t *testing.T) {
		_, err := Resolve(activeRole(7), menus, []models.Permission{grant(8, 2, models.PermissionBits{})})
		require.ErrorIs(t, err, ErrResolutionFailed)
	})

	t.Run("duplicate grant", func(t *testing.T) {
		_, err := Resolve(activeRole(7), menus, []models.Permission{
			grant(7, 2, models.PermissionBits{}),
			grant(7, 2, models.PermissionBits{CanReadData: true}),
		})
		require.ErrorIs(t, err, ErrResolutionFailed)
	})

	t.Run("granted entry with unknown level", func(t *testing.T) {
		broken := page(2, "Admin", "/admin/users", 20)
		broken.Level = 5
		_, err := Resolve(activeRole(7), []models.MenuEntry{broken}, []models.Permission{grant(7, 2, models.PermissionBits{})})
		require.ErrorIs(t, err, ErrResolutionFailed)
	})

	t.Run("ungranted entry with unknown level is ignored", func(t *testing.T) {
		broken := page(3, "Admin", "/admin/other", 30)
		broken.Level = 5
		m, err := Resolve(activeRole(7), append([]models.MenuEntry{broken}, menus...), []models.Permission{grant(7, 2, models.PermissionBits{})})
		require.NoError(t, err)
		require.Equal(t, 1, m.Len())
	})
}

func TestParseAction(t *testing.T) {
	action, err := ParseAction(" Edit_Others ")
	require.NoError(t, err)
	require.Equal(t, ActionEditOthers, action)

	_, err = ParseAction("approve")
	require.Error(t, err)
}

package permissions

import (
	"fmt"
	"strings"

	"github.com/charlesng35/menuguard/internal/models"
)

// Action names a capability consumers check against a resolved menu.
type Action string

const (
	ActionViewCategory Action = "view_category"
	ActionRead         Action = "read"
	ActionCreate       Action = "create"
	ActionManageOwn    Action = "manage_own"
	ActionEditOthers   Action = "edit_others"
	ActionDelete       Action = "delete"
)

// ParseAction maps a textual action to an Action.
func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case ActionViewCategory, ActionRead, ActionCreate, ActionManageOwn, ActionEditOthers, ActionDelete:
		return action, nil
	default:
		return "", fmt.Errorf("permissions: unknown action %q", value)
	}
}

// Capability is the resolved view of one granted, enabled menu entry.
type Capability struct {
	MenuID uint   `json:"menu_id"`
	URL    string `json:"url"`

	models.PermissionBits

	// Derived signals. Consumers use these instead of recombining bits.
	CanCreate bool `json:"can_create"`
	CanDelete bool `json:"can_delete"`

	MenuPage     string           `json:"menu_page"`
	MenuCategory string           `json:"menu_category"`
	MenuLevel    models.MenuLevel `json:"menu_level"`
}

func newCapability(menu models.MenuEntry, bits models.PermissionBits) Capability {
	return Capability{
		MenuID:         menu.ID,
		URL:            menu.URL,
		PermissionBits: bits,
		CanCreate:      bits.CanManageOwn,
		CanDelete:      bits.CanManageOwn || bits.CanEditOthers,
		MenuPage:       menu.Page,
		MenuCategory:   menu.Category,
		MenuLevel:      menu.Level,
	}
}

// Allows reports whether the capability permits the action.
func (c Capability) Allows(action Action) bool {
	switch action {
	case ActionViewCategory:
		return c.CanViewCategory
	case ActionRead:
		return c.CanReadData
	case ActionCreate:
		return c.CanCreate
	case ActionManageOwn:
		return c.CanManageOwn
	case ActionEditOthers:
		return c.CanEditOthers
	case ActionDelete:
		return c.CanDelete
	default:
		return false
	}
}

// DenyReason explains why a map is empty by decision rather than by lack of grants.
type DenyReason string

const (
	DenyNone         DenyReason = ""
	DenyRoleNotFound DenyReason = "role_not_found"
	DenyRoleInactive DenyReason = "role_inactive"
)

// CapabilityMap is everything a role may do across the enabled menu entries it holds
// grants for, plus indexes derived from it.
type CapabilityMap struct {
	RoleID uint       `json:"role_id"`
	Denied DenyReason `json:"denied,omitempty"`

	// ByMenu is authoritative for enforcement.
	ByMenu map[uint]Capability `json:"by_menu"`
	// ByURL is a display convenience. A url listed in DuplicateURLs keeps whichever
	// entry came first in display order.
	ByURL         map[string]Capability `json:"by_url"`
	DuplicateURLs []string              `json:"duplicate_urls,omitempty"`

	// Categories holds the visibility of every category that has a resolved entry.
	Categories map[string]bool `json:"categories"`
	// Pages lists granted leaf page ids per category in display order.
	Pages map[string][]uint `json:"pages"`
}

func emptyMap(roleID uint, reason DenyReason) *CapabilityMap {
	return &CapabilityMap{
		RoleID:     roleID,
		Denied:     reason,
		ByMenu:     map[uint]Capability{},
		ByURL:      map[string]Capability{},
		Categories: map[string]bool{},
		Pages:      map[string][]uint{},
	}
}

// Len returns the number of resolved menu entries.
func (m *CapabilityMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ByMenu)
}

// IsCategoryVisible reports whether the category header should be shown. A category is
// visible when it has an enabled header and any resolved entry in it, header or leaf,
// grants can_view_category. Orphaned leaves keep their capabilities but never surface a
// category on their own; catalog.Validate reports them.
func (m *CapabilityMap) IsCategoryVisible(category string) bool {
	if m == nil {
		return false
	}
	return m.Categories[category]
}

// MenuRef identifies a menu entry by id or by url.
type MenuRef struct {
	ID  uint
	URL string
}

// MenuByID references a menu entry by its id.
func MenuByID(id uint) MenuRef {
	return MenuRef{ID: id}
}

// MenuByURL references a menu entry by its url.
func MenuByURL(url string) MenuRef {
	return MenuRef{URL: url}
}

func (r MenuRef) String() string {
	if r.ID != 0 {
		return fmt.Sprintf("menu %d", r.ID)
	}
	return fmt.Sprintf("menu %q", r.URL)
}

// CheckMenu returns the capability for the referenced entry, or ErrNotGranted when
// the role holds no grant for it. Url lookups fail closed with ErrAmbiguousURL when
// the url is carried by more than one enabled entry.
func (m *CapabilityMap) CheckMenu(ref MenuRef) (Capability, error) {
	if m == nil {
		return Capability{}, fmt.Errorf("%w: %s", ErrNotGranted, ref)
	}

	if ref.ID != 0 {
		capability, ok := m.ByMenu[ref.ID]
		if !ok {
			return Capability{}, fmt.Errorf("%w: %s", ErrNotGranted, ref)
		}
		return capability, nil
	}

	url := strings.TrimSpace(ref.URL)
	if url == "" {
		return Capability{}, fmt.Errorf("%w: empty reference", ErrNotGranted)
	}
	for _, dup := range m.DuplicateURLs {
		if dup == url {
			return Capability{}, fmt.Errorf("%w: %q", ErrAmbiguousURL, url)
		}
	}
	capability, ok := m.ByURL[url]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrNotGranted, ref)
	}
	return capability, nil
}

// Allows is shorthand for CheckMenu followed by Capability.Allows; any lookup error
// denies.
func (m *CapabilityMap) Allows(ref MenuRef, action Action) bool {
	capability, err := m.CheckMenu(ref)
	if err != nil {
		return false
	}
	return capability.Allows(action)
}

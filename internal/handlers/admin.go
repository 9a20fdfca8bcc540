package handlers

import (
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/models"
	"github.com/charlesng35/menuguard/internal/services"
	"github.com/charlesng35/menuguard/pkg/response"
)

// AdminHandler administers roles, the menu catalog, grants and the migration.
type AdminHandler struct {
	perms      *services.PermissionService
	migrations *services.MigrationService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(perms *services.PermissionService, migrations *services.MigrationService) (*AdminHandler, error) {
	if perms == nil || migrations == nil {
		return nil, stdErrors.New("admin handler: permission and migration services are required")
	}
	return &AdminHandler{perms: perms, migrations: migrations}, nil
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// GET /api/admin/roles
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.perms.ListRoles(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// POST /api/admin/roles
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var req services.CreateRoleInput
	if !bindAndValidate(c, &req) {
		return
	}
	role, err := h.perms.CreateRole(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/admin/roles/:id
func (h *AdminHandler) SetRoleActive(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req activeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.perms.SetRoleActive(requestContext(c), roleID, *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": roleID, "active": *req.Active})
}

// DELETE /api/admin/roles/:id
func (h *AdminHandler) DeleteRole(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.perms.DeleteRole(requestContext(c), roleID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/admin/menus
func (h *AdminHandler) ListMenus(c *gin.Context) {
	menus, err := h.perms.ListMenus(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menus)
}

// POST /api/admin/menus
func (h *AdminHandler) CreateMenu(c *gin.Context) {
	var req services.CreateMenuInput
	if !bindAndValidate(c, &req) {
		return
	}
	menu, err := h.perms.CreateMenu(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, menu)
}

// MenuTree returns the catalog grouped by category.
//
// GET /api/admin/menus/tree
func (h *AdminHandler) MenuTree(c *gin.Context) {
	tree, err := h.perms.MenuTree(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// PATCH /api/admin/menus/:id
func (h *AdminHandler) SetMenuEnabled(c *gin.Context) {
	menuID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req enabledRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.perms.SetMenuEnabled(requestContext(c), menuID, *req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": menuID, "enabled": *req.Enabled})
}

// DELETE /api/admin/menus/:id
func (h *AdminHandler) DeleteMenu(c *gin.Context) {
	menuID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.perms.DeleteMenu(requestContext(c), menuID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ValidateMenus reports parent linkage and url problems in the catalog.
//
// GET /api/admin/menus/validate
func (h *AdminHandler) ValidateMenus(c *gin.Context) {
	issues, err := h.perms.ValidateCatalog(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// GET /api/admin/roles/:id/menus/:menuId
func (h *AdminHandler) GetGrant(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	menuID, ok := parseIDParam(c, "menuId")
	if !ok {
		return
	}
	grant, err := h.perms.GetGrant(requestContext(c), roleID, menuID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

// Grant replaces the bits of a role at a menu entry.
//
// PUT /api/admin/roles/:id/menus/:menuId
func (h *AdminHandler) Grant(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	menuID, ok := parseIDParam(c, "menuId")
	if !ok {
		return
	}
	var bits models.PermissionBits
	if !bindAndValidate(c, &bits) {
		return
	}
	grant, err := h.perms.Grant(requestContext(c), roleID, menuID, bits)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

// Revoke removes the grant of a role at a menu entry.
//
// DELETE /api/admin/roles/:id/menus/:menuId
func (h *AdminHandler) Revoke(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	menuID, ok := parseIDParam(c, "menuId")
	if !ok {
		return
	}
	if err := h.perms.Revoke(requestContext(c), roleID, menuID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Migrate runs the can_manage_own consolidation.
//
// POST /api/admin/permissions/migrate
func (h *AdminHandler) Migrate(c *gin.Context) {
	result, err := h.migrations.Run(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// MigrationStatus reports pending rows and the last recorded run.
//
// GET /api/admin/permissions/migrate
func (h *AdminHandler) MigrationStatus(c *gin.Context) {
	ctx := requestContext(c)
	pending, err := h.migrations.Pending(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	last, err := h.migrations.LastRun(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"pending":  pending,
		"last_run": last,
	})
}

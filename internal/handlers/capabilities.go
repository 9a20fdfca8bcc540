package handlers

import (
	stdErrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/middleware"
	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/pkg/errors"
	"github.com/charlesng35/menuguard/pkg/response"
)

// CapabilityHandler exposes resolved capability maps.
type CapabilityHandler struct {
	resolver permissions.CapabilityResolver
}

// NewCapabilityHandler constructs the handler.
func NewCapabilityHandler(resolver permissions.CapabilityResolver) (*CapabilityHandler, error) {
	if resolver == nil {
		return nil, stdErrors.New("capability handler: resolver is required")
	}
	return &CapabilityHandler{resolver: resolver}, nil
}

// Mine returns the capability map of the calling role.
//
// GET /api/me/capabilities
func (h *CapabilityHandler) Mine(c *gin.Context) {
	m, err := middleware.Capabilities(c, h.resolver)
	if err != nil {
		respondResolutionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, m)
}

// Get returns the capability map of a role.
//
// GET /api/roles/:id/capabilities
func (h *CapabilityHandler) Get(c *gin.Context) {
	m, ok := h.resolve(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, m)
}

// Category reports whether a category header is visible to a role.
//
// GET /api/roles/:id/categories/:category
func (h *CapabilityHandler) Category(c *gin.Context) {
	m, ok := h.resolve(c)
	if !ok {
		return
	}
	category := c.Param("category")
	pages := m.Pages[category]
	if pages == nil {
		pages = []uint{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"category": category,
		"visible":  m.IsCategoryVisible(category),
		"pages":    pages,
	})
}

// Check returns the capability of a role at one menu entry, looked up by menu_id or,
// advisorily, by url. An optional action query parameter adds an allowed flag.
//
// GET /api/roles/:id/menus/check?menu_id=|url=[&action=]
func (h *CapabilityHandler) Check(c *gin.Context) {
	ref, ok := menuRefFromQuery(c)
	if !ok {
		return
	}

	var action permissions.Action
	if raw := strings.TrimSpace(c.Query("action")); raw != "" {
		parsed, err := permissions.ParseAction(raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest(err.Error()))
			return
		}
		action = parsed
	}

	m, ok := h.resolve(c)
	if !ok {
		return
	}

	capability, err := m.CheckMenu(ref)
	switch {
	case stdErrors.Is(err, permissions.ErrAmbiguousURL):
		response.Error(c, errors.ErrAmbiguousMenu.WithInternal(err))
		return
	case stdErrors.Is(err, permissions.ErrNotGranted):
		response.Error(c, errors.ErrForbidden.WithInternal(err))
		return
	case err != nil:
		response.Error(c, err)
		return
	}

	payload := gin.H{"capability": capability}
	if action != "" {
		payload["action"] = action
		payload["allowed"] = capability.Allows(action)
	}
	response.Success(c, http.StatusOK, payload)
}

func (h *CapabilityHandler) resolve(c *gin.Context) (*permissions.CapabilityMap, bool) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	m, err := h.resolver.ResolvePermissions(requestContext(c), roleID)
	if err != nil {
		respondResolutionError(c, err)
		return nil, false
	}
	return m, true
}

func respondResolutionError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stdErrors.As(err, &appErr) {
		response.Error(c, appErr)
		return
	}
	response.Error(c, errors.ErrServiceUnavailable.WithInternal(err))
}

func menuRefFromQuery(c *gin.Context) (permissions.MenuRef, bool) {
	if raw := strings.TrimSpace(c.Query("menu_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			response.Error(c, errors.NewBadRequest("menu_id must be a positive number"))
			return permissions.MenuRef{}, false
		}
		return permissions.MenuByID(uint(id)), true
	}
	if url := strings.TrimSpace(c.Query("url")); url != "" {
		return permissions.MenuByURL(url), true
	}
	response.Error(c, errors.NewBadRequest("menu_id or url is required"))
	return permissions.MenuRef{}, false
}

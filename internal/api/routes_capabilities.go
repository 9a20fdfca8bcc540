package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/handlers"
	"github.com/charlesng35/menuguard/internal/permissions"
)

func registerCapabilityRoutes(api *gin.RouterGroup, h *handlers.CapabilityHandler, guard adminGuard) {
	roles := api.Group("/roles/:id", guard.require(permissions.ActionRead))
	{
		roles.GET("/capabilities", h.Get)
		roles.GET("/categories/:category", h.Category)
		roles.GET("/menus/check", h.Check)
	}
}

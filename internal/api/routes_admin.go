package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/internal/handlers"
	"github.com/charlesng35/menuguard/internal/permissions"
)

func registerAdminRoutes(api *gin.RouterGroup, h *handlers.AdminHandler, guard adminGuard) {
	admin := api.Group("/admin")

	read := guard.require(permissions.ActionRead)
	create := guard.require(permissions.ActionCreate)
	edit := guard.require(permissions.ActionEditOthers)
	remove := guard.require(permissions.ActionDelete)

	roles := admin.Group("/roles")
	{
		roles.GET("", read, h.ListRoles)
		roles.POST("", create, h.CreateRole)
		roles.PATCH("/:id", edit, h.SetRoleActive)
		roles.DELETE("/:id", remove, h.DeleteRole)
		roles.GET("/:id/menus/:menuId", read, h.GetGrant)
		roles.PUT("/:id/menus/:menuId", edit, h.Grant)
		roles.DELETE("/:id/menus/:menuId", edit, h.Revoke)
	}

	menus := admin.Group("/menus")
	{
		menus.GET("", read, h.ListMenus)
		menus.GET("/tree", read, h.MenuTree)
		menus.GET("/validate", read, h.ValidateMenus)
		menus.POST("", create, h.CreateMenu)
		menus.PATCH("/:id", edit, h.SetMenuEnabled)
		menus.DELETE("/:id", remove, h.DeleteMenu)
	}

	migrate := admin.Group("/permissions/migrate")
	{
		migrate.GET("", read, h.MigrationStatus)
		migrate.POST("", edit, h.Migrate)
	}
}

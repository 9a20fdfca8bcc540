package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/handlers"
	"github.com/charlesng35/menuguard/internal/middleware"
	"github.com/charlesng35/menuguard/internal/monitoring"
	"github.com/charlesng35/menuguard/internal/monitoring/checks"
	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/internal/services"
	"github.com/charlesng35/menuguard/pkg/logger"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	DB          *gorm.DB
	Resolver    permissions.CapabilityResolver
	Permissions *services.PermissionService
	Migrations  *services.MigrationService

	// RoleHeader names the header carrying the caller's role id.
	RoleHeader string
	// AdminMenuID is the menu entry guarding role inspection and the admin API. When zero
	// those routes are not mounted.
	AdminMenuID uint

	// Health holds the readiness probes. When nil only the database is probed.
	Health *monitoring.Checker

	MetricsEnabled  bool
	MetricsEndpoint string
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if deps.Resolver == nil {
		return nil, errors.New("api: capability resolver must be provided")
	}
	if deps.Permissions == nil || deps.Migrations == nil {
		return nil, errors.New("api: permission and migration services must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	health := deps.Health
	if health == nil {
		health = monitoring.NewChecker(checks.Database(deps.DB, 0))
	}
	registerHealthRoutes(r, health)

	if deps.MetricsEnabled {
		endpoint := strings.TrimSpace(deps.MetricsEndpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.RoleIdentity(deps.RoleHeader))

	capabilityHandler, err := handlers.NewCapabilityHandler(deps.Resolver)
	if err != nil {
		return nil, err
	}
	api.GET("/me/capabilities", capabilityHandler.Mine)

	if deps.AdminMenuID == 0 {
		logger.WithModule("api").Warn("admin menu not configured; role inspection and admin routes disabled")
	} else {
		adminHandler, err := handlers.NewAdminHandler(deps.Permissions, deps.Migrations)
		if err != nil {
			return nil, err
		}
		guard := adminGuard{resolver: deps.Resolver, menuID: deps.AdminMenuID}
		registerCapabilityRoutes(api, capabilityHandler, guard)
		registerAdminRoutes(api, adminHandler, guard)
		logger.WithModule("api").Info("admin routes mounted", zap.Uint("menu_id", deps.AdminMenuID))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// adminGuard builds RequireMenu checks against the admin menu entry.
type adminGuard struct {
	resolver permissions.CapabilityResolver
	menuID   uint
}

func (g adminGuard) require(action permissions.Action) gin.HandlerFunc {
	return middleware.RequireMenu(g.resolver, g.menuID, action)
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/pkg/errors"
	"github.com/charlesng35/menuguard/pkg/logger"
	"github.com/charlesng35/menuguard/pkg/metrics"
	"github.com/charlesng35/menuguard/pkg/response"
)

// RequireMenu lets the request through only when the caller's role may perform action
// on the menu entry. Enforcement is always by menu id. A failed resolution denies with
// 503 rather than falling back to an empty map.
func RequireMenu(resolver permissions.CapabilityResolver, menuID uint, action permissions.Action) gin.HandlerFunc {
	label := string(action)
	return func(c *gin.Context) {
		roleID, ok := RoleID(c)
		if !ok {
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		capabilities, err := Capabilities(c, resolver)
		if err != nil {
			metrics.MenuChecks.WithLabelValues(label, "error").Inc()
			logger.WithModule("route_guard").Error("capability resolution failed",
				zap.Uint("role_id", roleID),
				zap.Uint("menu_id", menuID),
				zap.Error(err),
			)
			response.Abort(c, errors.ErrServiceUnavailable.WithInternal(err))
			return
		}

		if !capabilities.Allows(permissions.MenuByID(menuID), action) {
			metrics.MenuChecks.WithLabelValues(label, "deny").Inc()
			response.Abort(c, errors.ErrForbidden)
			return
		}

		metrics.MenuChecks.WithLabelValues(label, "allow").Inc()
		c.Next()
	}
}

// Capabilities returns the caller's capability map, resolving it once per request.
func Capabilities(c *gin.Context, resolver permissions.CapabilityResolver) (*permissions.CapabilityMap, error) {
	if v, ok := c.Get(CtxCapabilitiesKey); ok {
		if m, ok := v.(*permissions.CapabilityMap); ok {
			return m, nil
		}
	}

	roleID, ok := RoleID(c)
	if !ok {
		return nil, errors.ErrUnauthorized
	}
	m, err := resolver.ResolvePermissions(c.Request.Context(), roleID)
	if err != nil {
		return nil, err
	}
	c.Set(CtxCapabilitiesKey, m)
	return m, nil
}

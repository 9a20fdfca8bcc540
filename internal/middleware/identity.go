package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/menuguard/pkg/errors"
	"github.com/charlesng35/menuguard/pkg/response"
)

const (
	// DefaultRoleHeader carries the role id set by the upstream authenticating proxy.
	DefaultRoleHeader = "X-Role-ID"

	// CtxRoleIDKey holds the caller's role id.
	CtxRoleIDKey = "role_id"
	// CtxCapabilitiesKey holds the caller's resolved capability map.
	CtxCapabilitiesKey = "capabilities"
)

// RoleIdentity reads the caller's role id from header. Authentication happens upstream;
// this only trusts what the proxy forwarded. Requests without a valid id get 401.
func RoleIdentity(header string) gin.HandlerFunc {
	if strings.TrimSpace(header) == "" {
		header = DefaultRoleHeader
	}
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(header))
		id, err := strconv.ParseUint(raw, 10, 64)
		if raw == "" || err != nil || id == 0 {
			response.Abort(c, errors.ErrUnauthorized)
			return
		}
		c.Set(CtxRoleIDKey, uint(id))
		c.Next()
	}
}

// RoleID returns the role id stored by RoleIdentity.
func RoleID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CtxRoleIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

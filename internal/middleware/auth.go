package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Operator identity headers set by the upstream auth layer. Session
// management itself is outside this service.
const (
	roleHeader     = "X-User-Role"
	operatorHeader = "X-User-Id"

	roleSuperAdmin = "super_admin"
)

const operatorKey = "operator_id"

// RequireSuperAdmin gates the manual-approval and remote-command endpoints.
func RequireSuperAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(roleHeader) != roleSuperAdmin {
				return echo.NewHTTPError(http.StatusUnauthorized, "super admin required")
			}
			c.Set(operatorKey, c.Request().Header.Get(operatorHeader))
			return next(c)
		}
	}
}

// OperatorID returns the acting operator for audit fields, or "operator"
// when the auth layer did not pass one.
func OperatorID(c echo.Context) string {
	if id, ok := c.Get(operatorKey).(string); ok && id != "" {
		return id
	}
	return "operator"
}

// Package middleware carries the request-level guards shared by the admin
// routes: session verification and permission enforcement.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/auth"
)

const actorContextKey = "actor"

// Session returns a middleware that verifies the Bearer session token and
// stores the resolved Actor in the request context.  Requests without a
// valid session are rejected with 401 before reaching any handler.
func Session(m *auth.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			actor, err := m.VerifyToken(c.Request().Context(), strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

// ActorFrom retrieves the Actor stored by Session.  The boolean is false
// when the middleware did not run on this route.
func ActorFrom(c echo.Context) (auth.Actor, bool) {
	actor, ok := c.Get(actorContextKey).(auth.Actor)
	return actor, ok
}

// RequirePermission returns a middleware that rejects callers whose role
// lacks the given permission.  It complements the checks inside the engine
// for routes that do not go through it, such as user management.
func RequirePermission(table auth.PermissionTable, perm auth.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no session"})
			}
			if !table.Allows(actor.Role, perm) {
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":               "forbidden",
					"required_permission": perm,
				})
			}
			return next(c)
		}
	}
}

// Package authecho adapts the authentication gate to echo.
package authecho

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goalgrid/authgate"
)

// ContextKey is the echo context key under which the principal is stored.
const ContextKey = "authgate.principal"

// Middleware wraps the gate's CheckJWT as an echo.MiddlewareFunc. On
// rejection the gate's error handler has already written the response, so
// the echo chain simply stops.
func Middleware(gate *authgate.Middleware) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var handlerErr error
			admitted := false

			var pass http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
				admitted = true
				c.SetRequest(r)
				if p, ok := authgate.FromContext(r.Context()); ok {
					c.Set(ContextKey, p)
				}
				handlerErr = next(c)
			}

			gate.CheckJWT(pass).ServeHTTP(c.Response(), c.Request())

			if !admitted {
				return nil
			}
			return handlerErr
		}
	}
}

// RequireRole stops requests whose principal does not carry the expected
// role, with the same 401/403 distinction as the net/http guard.
func RequireRole(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Principal(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   authgate.Reason(authgate.ErrUnauthenticated),
					"message": "Authentication is required.",
				})
			}
			if p.Role != expected {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error":   authgate.Reason(authgate.ErrInsufficientRole),
					"message": "You do not have permission to perform this action.",
				})
			}
			return next(c)
		}
	}
}

// Principal retrieves the principal from the echo context, falling back to
// the request context.
func Principal(c echo.Context) (*authgate.Principal, bool) {
	if p, ok := c.Get(ContextKey).(*authgate.Principal); ok {
		return p, true
	}
	return authgate.FromContext(c.Request().Context())
}

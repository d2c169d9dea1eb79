// Package authgin adapts the authentication gate to gin.
package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goalgrid/authgate"
)

// ContextKey is the gin context key under which the principal is stored.
const ContextKey = "authgate.principal"

// Middleware wraps the gate's CheckJWT for a gin router. On rejection the
// gate's error handler writes the response and the gin chain is aborted.
func Middleware(gate *authgate.Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		admitted := false
		var pass http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			admitted = true
			c.Request = r
			if p, ok := authgate.FromContext(r.Context()); ok {
				c.Set(ContextKey, p)
			}
			c.Next()
		}

		gate.CheckJWT(pass).ServeHTTP(c.Writer, c.Request)

		if !admitted {
			c.Abort()
		}
	}
}

// RequireRole aborts requests whose principal does not carry the expected
// role, with the same 401/403 distinction as the net/http guard.
func RequireRole(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authgate.Reason(authgate.ErrUnauthenticated),
				"message": "Authentication is required.",
			})
			return
		}
		if p.Role != expected {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   authgate.Reason(authgate.ErrInsufficientRole),
				"message": "You do not have permission to perform this action.",
			})
			return
		}
		c.Next()
	}
}

// Principal retrieves the principal from the gin context, falling back to
// the request context.
func Principal(c *gin.Context) (*authgate.Principal, bool) {
	if v, exists := c.Get(ContextKey); exists {
		if p, ok := v.(*authgate.Principal); ok {
			return p, true
		}
	}
	return authgate.FromContext(c.Request.Context())
}

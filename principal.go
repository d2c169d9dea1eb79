package authgate

import (
	"context"
	"net/http"

	"github.com/goalgrid/authgate/identity"
)

// Principal is the verified, request-scoped representation of the caller.
// It is only ever constructed from a token that passed full signature and
// claim validation, and it is never persisted.
type Principal struct {
	// ID is the token subject.
	ID string

	// Email as asserted by the provider. May be empty.
	Email string

	// Role is the provider-assigned role claim.
	Role string

	// Claims is the closed bag of the token's private claims. Handlers
	// that need a provider-specific claim read it here instead of the
	// principal growing new fields.
	Claims map[string]interface{}

	// User is the synced local record. Nil when syncing is disabled or
	// failed for this request; the caller is still authenticated.
	User *identity.User
}

// contextKey is unexported so only this package can create principal keys.
type contextKey int

const principalKey contextKey = iota

// NewContext returns a context carrying the principal.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the principal attached by the middleware. The
// second return value is false for unauthenticated requests.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// HasPrincipal reports whether the request is authenticated.
func HasPrincipal(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// GuardOption configures RequireRole.
type GuardOption func(*guard)

type guard struct {
	errorHandler ErrorHandler
	metrics      Metrics
}

// WithGuardErrorHandler overrides the guard's rejection writer.
func WithGuardErrorHandler(h ErrorHandler) GuardOption {
	return func(g *guard) {
		if h != nil {
			g.errorHandler = h
		}
	}
}

// WithGuardMetrics records guard denials.
func WithGuardMetrics(m Metrics) GuardOption {
	return func(g *guard) {
		if m != nil {
			g.metrics = m
		}
	}
}

// RequireRole returns authorization middleware that only admits requests
// whose principal carries exactly the expected role. An absent principal is
// reported as unauthenticated (401); a present principal with a different
// role as insufficient permission (403). The two conditions are distinct on
// the wire so clients know whether to authenticate or to stop asking.
func RequireRole(expected string, opts ...GuardOption) func(http.Handler) http.Handler {
	g := &guard{
		errorHandler: DefaultErrorHandler,
		metrics:      &NoopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				g.metrics.IncCounter(MetricGuardDenials, map[string]string{"reason": reasonUnauthenticated})
				g.errorHandler(w, r, ErrUnauthenticated)
				return
			}
			if p.Role != expected {
				g.metrics.IncCounter(MetricGuardDenials, map[string]string{"reason": reasonInsufficientRole})
				g.errorHandler(w, r, ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package authgate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goalgrid/authgate/identity"
	"github.com/goalgrid/authgate/internal/provider"
	"github.com/goalgrid/authgate/keyset"
	"github.com/goalgrid/authgate/trust"
	"github.com/goalgrid/authgate/verifier"
)

// TokenVerifier validates a raw token and returns the decoded result.
// *verifier.Verifier satisfies this.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*verifier.Token, error)
}

// IdentitySyncer ensures a local user record for a verified subject.
// *identity.Synchronizer satisfies this.
type IdentitySyncer interface {
	Ensure(ctx context.Context, subject, email, displayNameHint string) (*identity.User, error)
}

// Middleware is the authentication gate. It extracts the bearer token,
// verifies it, best-effort syncs the local identity, and attaches the
// Principal for downstream handlers.
type Middleware struct {
	config       *trust.Config
	verifier     TokenVerifier
	synchronizer IdentitySyncer
	extractor    TokenExtractor
	errorHandler ErrorHandler
	logger       Logger
	metrics      Metrics
	tracer       Tracer

	credentialsOptional bool
	excluded            func(r *http.Request) bool
}

// New constructs the middleware. WithTrustConfig and WithVerifier are
// required; see FromConfig for the one-call assembly of the whole core.
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if m.config == nil {
		return nil, fmt.Errorf("trust config is required (use WithTrustConfig)")
	}
	if m.verifier == nil {
		return nil, fmt.Errorf("verifier is required (use WithVerifier)")
	}

	if m.extractor == nil {
		m.extractor = AuthHeaderTokenExtractor
	}
	if m.errorHandler == nil {
		m.errorHandler = DefaultErrorHandler
	}
	if m.logger == nil {
		m.logger = NopLogger{}
	}
	if m.metrics == nil {
		m.metrics = &NoopMetrics{}
	}
	if m.tracer == nil {
		m.tracer = &NoopTracer{}
	}
	return m, nil
}

// FromConfig assembles the full verification core from a trust
// configuration: the provider client, the signing key cache, the verifier,
// and (when store is non-nil) the identity synchronizer. Additional options
// are applied on top.
func FromConfig(cfg *trust.Config, store identity.Store, opts ...Option) (*Middleware, error) {
	if cfg == nil {
		return nil, fmt.Errorf("trust config is required")
	}
	cfg.ApplyDefaults()

	verifierOpts := []verifier.Option{
		verifier.WithIssuer(cfg.IssuerURL),
		verifier.WithClockSkew(cfg.ClockSkew),
		verifier.WithKnownRoles(cfg.KnownRoles...),
	}
	if len(cfg.Audience) > 0 {
		verifierOpts = append(verifierOpts, verifier.WithAudience(cfg.Audience...))
	}
	if cfg.SharedSecret != "" {
		verifierOpts = append(verifierOpts, verifier.WithSharedSecret([]byte(cfg.SharedSecret)))
	}

	var client *provider.Client
	if cfg.JWKSURL != "" || cfg.AdminURL != "" {
		client = provider.NewClient(cfg)
	}
	if cfg.JWKSURL != "" {
		cache, err := keyset.New(client,
			keyset.WithTTL(cfg.CacheTTL),
			keyset.WithFetchTimeout(cfg.FetchTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("building key cache: %w", err)
		}
		verifierOpts = append(verifierOpts, verifier.WithKeyResolver(cache))
	}

	v, err := verifier.New(verifierOpts...)
	if err != nil {
		return nil, fmt.Errorf("building verifier: %w", err)
	}

	assembled := []Option{WithTrustConfig(cfg), WithVerifier(v)}
	if store != nil {
		syncOpts := []identity.SyncOption{}
		if client != nil && cfg.AdminURL != "" {
			syncOpts = append(syncOpts, identity.WithLookup(
				func(ctx context.Context, subject string) (string, string, error) {
					p, err := client.LookupSubject(ctx, subject)
					return p.Email, p.DisplayName, err
				}))
		}
		sync, err := identity.NewSynchronizer(store, syncOpts...)
		if err != nil {
			return nil, fmt.Errorf("building synchronizer: %w", err)
		}
		assembled = append(assembled, WithSynchronizer(sync))
	}

	return New(append(assembled, opts...)...)
}

// Authenticate verifies a raw token and produces the Principal, including
// the best-effort identity sync. It is transport-agnostic: CheckJWT and
// the framework adapters build on it.
func (m *Middleware) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if ok, issues := m.config.Validate(); !ok {
		m.logger.Errorf("trust configuration invalid: %v", issues)
		stringers := make([]fmt.Stringer, len(issues))
		for i, issue := range issues {
			stringers[i] = issue
		}
		return nil, &configError{issues: stringers}
	}

	if token == "" {
		return nil, ErrNoToken
	}

	start := time.Now()
	decoded, err := m.verifier.Verify(ctx, token)
	m.metrics.ObserveHistogram(MetricVerificationDuration, time.Since(start).Seconds(), nil)
	if err != nil {
		rejected := &rejectionError{details: err}
		m.metrics.IncCounter(MetricVerifications, map[string]string{"outcome": Reason(rejected)})
		return nil, rejected
	}
	m.metrics.IncCounter(MetricVerifications, map[string]string{"outcome": "accepted"})

	p := &Principal{
		ID:     decoded.Subject,
		Email:  decoded.Email,
		Role:   decoded.Role,
		Claims: decoded.Claims,
	}

	if m.synchronizer != nil {
		user, err := m.synchronizer.Ensure(ctx, decoded.Subject, decoded.Email, displayNameHint(decoded))
		if err != nil {
			// Verification and local persistence are independent concerns:
			// the caller stays authenticated, just without a local record.
			m.metrics.IncCounter(MetricSyncFailures, nil)
			m.logger.Warnf("%v for subject %s: %v", ErrSyncFailed, decoded.Subject, err)
		} else {
			p.User = user
		}
	}

	return p, nil
}

// CheckJWT wraps next with the authentication gate.
func (m *Middleware) CheckJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.excluded != nil && m.excluded(r) {
			m.logger.Debugf("skipping verification for excluded path %s", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		span := m.tracer.StartSpan("authgate.verify")
		defer span.Finish()
		span.SetTag("http.method", r.Method)
		span.SetTag("http.path", r.URL.Path)

		token, err := m.extractor(r)
		if err != nil {
			// The extractor had an error, the token was not merely absent.
			span.SetTag("outcome", reasonInvalidRequest)
			m.logger.Errorf("failed to extract token: %v", err)
			m.errorHandler(w, r, &rejectionError{details: err})
			return
		}

		if token == "" && m.credentialsOptional {
			span.SetTag("outcome", "anonymous")
			m.logger.Debugf("no credentials provided, continuing without principal")
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.Authenticate(r.Context(), token)
		if err != nil {
			span.SetTag("outcome", Reason(err))
			m.logger.Warnf("request rejected: %v", err)
			m.errorHandler(w, r, err)
			return
		}

		span.SetTag("outcome", "accepted")
		span.SetTag("principal.role", p.Role)
		next.ServeHTTP(w, r.Clone(NewContext(r.Context(), p)))
	})
}

// displayNameHint prefers explicit name claims the provider may set.
func displayNameHint(t *verifier.Token) string {
	for _, claim := range []string{"name", "full_name", "preferred_username"} {
		if v, ok := t.Claims[claim]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

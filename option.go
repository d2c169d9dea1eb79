package authgate

import (
	"errors"
	"net/http"

	"github.com/goalgrid/authgate/trust"
)

// Option configures the Middleware. Options return errors so invalid
// configuration is caught at construction.
type Option func(*Middleware) error

// WithTrustConfig sets the trust parameters (REQUIRED). The config is
// re-checked structurally on every request; an invalid config fails every
// request closed with service-unavailable rather than ever letting an
// unverified token through.
func WithTrustConfig(cfg *trust.Config) Option {
	return func(m *Middleware) error {
		if cfg == nil {
			return errors.New("trust config cannot be nil")
		}
		m.config = cfg
		return nil
	}
}

// WithVerifier sets the token verifier (REQUIRED).
func WithVerifier(v TokenVerifier) Option {
	return func(m *Middleware) error {
		if v == nil {
			return errors.New("verifier cannot be nil")
		}
		m.verifier = v
		return nil
	}
}

// WithSynchronizer enables the best-effort local identity sync.
func WithSynchronizer(s IdentitySyncer) Option {
	return func(m *Middleware) error {
		if s == nil {
			return errors.New("synchronizer cannot be nil")
		}
		m.synchronizer = s
		return nil
	}
}

// WithTokenExtractor sets how the token is pulled from the request.
//
// Default: AuthHeaderTokenExtractor.
func WithTokenExtractor(e TokenExtractor) Option {
	return func(m *Middleware) error {
		if e == nil {
			return errors.New("token extractor cannot be nil")
		}
		m.extractor = e
		return nil
	}
}

// WithErrorHandler sets the rejection writer.
//
// Default: DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Middleware) error {
		if h == nil {
			return errors.New("error handler cannot be nil")
		}
		m.errorHandler = h
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(m *Middleware) error {
		if l == nil {
			return errors.New("logger cannot be nil")
		}
		m.logger = l
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(m *Middleware) error {
		if metrics == nil {
			return errors.New("metrics cannot be nil")
		}
		m.metrics = metrics
		return nil
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(m *Middleware) error {
		if t == nil {
			return errors.New("tracer cannot be nil")
		}
		m.tracer = t
		return nil
	}
}

// WithCredentialsOptional allows requests without a token through,
// unauthenticated. A token that is present is still fully verified.
//
// Default: false (credentials required).
func WithCredentialsOptional(value bool) Option {
	return func(m *Middleware) error {
		m.credentialsOptional = value
		return nil
	}
}

// WithExcludedPaths skips verification entirely for exact path matches,
// e.g. health endpoints.
func WithExcludedPaths(paths []string) Option {
	return func(m *Middleware) error {
		if len(paths) == 0 {
			return errors.New("excluded paths cannot be empty")
		}
		set := make(map[string]struct{}, len(paths))
		for _, p := range paths {
			set[p] = struct{}{}
		}
		m.excluded = func(r *http.Request) bool {
			_, ok := set[r.URL.Path]
			return ok
		}
		return nil
	}
}

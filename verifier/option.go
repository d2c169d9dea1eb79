package verifier

import (
	"errors"
	"time"
)

// Option configures a Verifier.
type Option func(*Verifier) error

// WithIssuer sets the expected iss claim. Required.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) error {
		if issuer == "" {
			return errors.New("issuer cannot be empty")
		}
		v.issuer = issuer
		return nil
	}
}

// WithSharedSecret enables the HS256 verification path.
func WithSharedSecret(secret []byte) Option {
	return func(v *Verifier) error {
		if len(secret) == 0 {
			return errors.New("shared secret cannot be empty")
		}
		v.secret = secret
		return nil
	}
}

// WithKeyResolver enables the RS256 verification path.
func WithKeyResolver(resolver KeyResolver) Option {
	return func(v *Verifier) error {
		if resolver == nil {
			return errors.New("key resolver cannot be nil")
		}
		v.keys = resolver
		return nil
	}
}

// WithAudience sets the accepted aud values. The token must carry at least
// one of them. An empty call is rejected; omit the option to disable
// audience checking.
func WithAudience(audience ...string) Option {
	return func(v *Verifier) error {
		if len(audience) == 0 {
			return errors.New("audience cannot be empty")
		}
		v.audience = audience
		return nil
	}
}

// WithClockSkew sets the tolerance applied to time-based claims.
//
// Default: 60 seconds.
func WithClockSkew(skew time.Duration) Option {
	return func(v *Verifier) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		v.clockSkew = skew
		return nil
	}
}

// WithKnownRoles sets the role allow-list. Roles outside the list are
// accepted but logged.
func WithKnownRoles(roles ...string) Option {
	return func(v *Verifier) error {
		v.knownRoles = make(map[string]struct{}, len(roles))
		for _, r := range roles {
			v.knownRoles[r] = struct{}{}
		}
		return nil
	}
}

// WithLogger sets an optional logger for observability flags.
func WithLogger(logger Logger) Option {
	return func(v *Verifier) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		v.logger = logger
		return nil
	}
}

// WithClock overrides the time source. Only useful in tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		v.clock = now
		return nil
	}
}

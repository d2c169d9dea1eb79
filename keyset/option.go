package keyset

import (
	"errors"
	"time"
)

// Option configures a Cache. Options return errors so invalid values are
// caught at construction rather than at resolve time.
type Option func(*Cache) error

// WithTTL sets how long a fetched key set stays valid.
//
// Default: 10 minutes, matching the provider's publishing cadence.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return errors.New("ttl must be positive")
		}
		c.ttl = ttl
		return nil
	}
}

// WithFetchTimeout bounds a single outbound fetch so a hanging provider
// endpoint cannot stall request handling.
//
// Default: 5 seconds.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		c.fetchTimeout = d
		return nil
	}
}

// WithLogger sets an optional logger for refresh and stale-serve events.
func WithLogger(logger Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithClock overrides the time source. Only useful in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		c.now = now
		return nil
	}
}

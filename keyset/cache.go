// Package keyset caches the identity provider's signing keys. A Cache owns
// one key set: it is fetched on demand, kept for a fixed TTL, replaced
// wholesale on refresh, and retained as a stale fallback when a refresh
// fails. All state lives on the Cache; there are no package-level globals,
// so independent instances can coexist and be tested in isolation.
package keyset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ErrKeyNotFound is returned when the requested kid is absent from the
// current key set. The provider is authoritative for the set it just
// published, so this is terminal for the token that referenced the kid.
var ErrKeyNotFound = errors.New("signing key not found in key set")

// Fetcher retrieves a fresh key set from the provider.
// *provider.Client satisfies this.
type Fetcher interface {
	FetchKeySet(ctx context.Context) (jwk.Set, error)
}

// Logger is the minimal logging surface the cache needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Cache resolves signing keys by kid, fetching from the provider only when
// the cached set is missing or expired.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       Logger
	now          func() time.Time

	// mu guards the current entry; readers never observe a partial set
	// because the set is swapped as a single reference.
	mu        sync.RWMutex
	keys      jwk.Set
	expiresAt time.Time

	// fetchMu serializes outbound fetches: under a miss storm exactly one
	// fetch is in flight and the other resolvers wait for its result.
	fetchMu sync.Mutex
}

// New builds a Cache around the given fetcher.
func New(fetcher Fetcher, opts ...Option) (*Cache, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}

	c := &Cache{
		fetcher:      fetcher,
		ttl:          10 * time.Minute,
		fetchTimeout: 5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return c, nil
}

// Resolve returns the verification key for kid. A populated, unexpired
// cache is consulted directly; otherwise one fetch is performed (shared by
// all concurrent callers) and the cache replaced. A failed fetch falls back
// to the previous set when one exists rather than invalidating keys that
// are still cryptographically valid.
func (c *Cache) Resolve(ctx context.Context, kid string) (jwk.Key, error) {
	if set, ok := c.current(); ok {
		return lookup(set, kid)
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// Another resolver may have completed the fetch while we waited.
	if set, ok := c.current(); ok {
		return lookup(set, kid)
	}

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	fresh, err := c.fetcher.FetchKeySet(fctx)
	if err != nil {
		c.mu.RLock()
		stale := c.keys
		c.mu.RUnlock()
		if stale != nil {
			if c.logger != nil {
				c.logger.Warnf("key-set refresh failed, serving stale set: %v", err)
			}
			if key, ok := stale.LookupKeyID(kid); ok {
				return key, nil
			}
		}
		return nil, fmt.Errorf("fetching key set: %w", err)
	}

	c.mu.Lock()
	c.keys = fresh
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debugf("key set refreshed, %d key(s), next refresh after %s", fresh.Len(), c.ttl)
	}

	return lookup(fresh, kid)
}

// Warm populates the cache eagerly so the first request does not pay the
// fetch. Optional; Resolve fetches lazily either way.
func (c *Cache) Warm(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if _, ok := c.current(); ok {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	fresh, err := c.fetcher.FetchKeySet(fctx)
	if err != nil {
		return fmt.Errorf("warming key set: %w", err)
	}

	c.mu.Lock()
	c.keys = fresh
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

// Len reports how many keys the current set holds, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil {
		return 0
	}
	return c.keys.Len()
}

// current returns the cached set if it is populated and unexpired.
func (c *Cache) current() (jwk.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.keys, true
}

func lookup(set jwk.Set, kid string) (jwk.Key, error) {
	if key, ok := set.LookupKeyID(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

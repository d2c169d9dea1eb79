// Package trust holds the trust parameters for token verification: who the
// issuer is, how its signatures can be checked, and the tolerances applied
// while checking them. A Config is immutable once handed to the middleware;
// Validate performs structural checks only and never touches the network, so
// it is cheap enough to gate every request.
package trust

import (
	"net/url"
	"time"
)

// Defaults applied by ApplyDefaults when the corresponding field is zero.
const (
	DefaultClockSkew    = 60 * time.Second
	DefaultCacheTTL     = 10 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// DefaultKnownRoles is the role allow-list used when Config.KnownRoles is
// empty. Tokens carrying a role outside the list are still accepted; the
// unknown value is only flagged for observability.
func DefaultKnownRoles() []string {
	return []string{"authenticated", "service_role", "admin"}
}

// Config is the set of trust parameters for the verification core.
//
// Either SharedSecret or JWKSURL must be present. When JWKSURL is set,
// ProviderAPIKey must be set as well: the provider requires an API-key
// header on every key-set fetch.
type Config struct {
	// IssuerURL is the expected iss claim, e.g. "https://id.goalgrid.dev/auth/v1".
	IssuerURL string `mapstructure:"issuer_url" validate:"omitempty,url"`

	// SharedSecret verifies HS256 tokens. Optional.
	SharedSecret string `mapstructure:"shared_secret"`

	// JWKSURL is the provider endpoint publishing the RS256 key set. Optional.
	JWKSURL string `mapstructure:"jwks_url" validate:"omitempty,url"`

	// ProviderAPIKey is sent as the "apikey" header on outbound provider
	// calls. Required whenever JWKSURL or AdminURL is set.
	ProviderAPIKey string `mapstructure:"provider_api_key"`

	// AdminURL is the base URL of the provider's administrative API, used
	// for the optional profile lookup by subject. Optional.
	AdminURL string `mapstructure:"admin_url" validate:"omitempty,url"`

	// Audience lists accepted aud values. Empty disables audience checking;
	// the provider is not consistent about publishing one.
	Audience []string `mapstructure:"audience"`

	// ClockSkew is the tolerance applied to exp/nbf/iat.
	ClockSkew time.Duration `mapstructure:"clock_skew"`

	// CacheTTL is how long a fetched key set stays valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// FetchTimeout bounds a single key-set fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// KnownRoles is the role allow-list used for observability flagging.
	KnownRoles []string `mapstructure:"known_roles"`
}

// FieldIssue describes one missing or malformed configuration field.
type FieldIssue struct {
	Field  string
	Reason string
}

func (i FieldIssue) String() string {
	return i.Field + ": " + i.Reason
}

// ApplyDefaults fills zero-valued tolerances and the role allow-list.
// It returns the receiver for chaining.
func (c *Config) ApplyDefaults() *Config {
	if c.ClockSkew == 0 {
		c.ClockSkew = DefaultClockSkew
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if len(c.KnownRoles) == 0 {
		c.KnownRoles = DefaultKnownRoles()
	}
	return c
}

// Validate reports whether verification can run at all. On failure the
// second return value enumerates every missing or malformed field, not just
// the first one found. Validate performs no I/O.
func (c *Config) Validate() (bool, []FieldIssue) {
	var issues []FieldIssue

	switch {
	case c.IssuerURL == "":
		issues = append(issues, FieldIssue{"issuer_url", "missing"})
	default:
		if u, err := url.Parse(c.IssuerURL); err != nil || !isHTTPURL(u) {
			issues = append(issues, FieldIssue{"issuer_url", "not an absolute http(s) URL"})
		}
	}

	if c.SharedSecret == "" && c.JWKSURL == "" {
		issues = append(issues, FieldIssue{"shared_secret/jwks_url", "neither a shared secret nor a key-set URL is configured"})
	}

	if c.JWKSURL != "" {
		if u, err := url.Parse(c.JWKSURL); err != nil || !isHTTPURL(u) {
			issues = append(issues, FieldIssue{"jwks_url", "not an absolute http(s) URL"})
		}
		if c.ProviderAPIKey == "" {
			issues = append(issues, FieldIssue{"provider_api_key", "required when jwks_url is set"})
		}
	}

	if c.AdminURL != "" && c.ProviderAPIKey == "" {
		issues = append(issues, FieldIssue{"provider_api_key", "required when admin_url is set"})
	}

	if c.ClockSkew < 0 {
		issues = append(issues, FieldIssue{"clock_skew", "must not be negative"})
	}
	if c.CacheTTL < 0 {
		issues = append(issues, FieldIssue{"cache_ttl", "must not be negative"})
	}
	if c.FetchTimeout < 0 {
		issues = append(issues, FieldIssue{"fetch_timeout", "must not be negative"})
	}

	return len(issues) == 0, issues
}

func isHTTPURL(u *url.URL) bool {
	return u != nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

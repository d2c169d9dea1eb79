// Package provider is the HTTP client for the identity provider: the
// authenticated key-set fetch and the administrative profile lookup. Both
// endpoints require the provider API key, sent as the "apikey" header.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/goalgrid/authgate/trust"
)

// Response bodies are tiny; a JWKS document is typically under 10KB.
const maxBodyBytes = 1 << 20

// Client talks to the identity provider.
type Client struct {
	jwksURL  string
	adminURL string
	apiKey   string
	http     *http.Client
}

// NewClient builds a provider client from the trust configuration.
// The HTTP client timeout is the configured fetch timeout; callers may
// additionally bound individual calls through the context.
func NewClient(cfg *trust.Config) *Client {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = trust.DefaultFetchTimeout
	}
	return &Client{
		jwksURL:  cfg.JWKSURL,
		adminURL: strings.TrimRight(cfg.AdminURL, "/"),
		apiKey:   cfg.ProviderAPIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// FetchKeySet retrieves and parses the provider's published JWKS.
func (c *Client) FetchKeySet(ctx context.Context) (jwk.Set, error) {
	if c.jwksURL == "" {
		return nil, fmt.Errorf("no key-set URL configured")
	}

	body, err := c.get(ctx, c.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetching key set: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing key set: %w", err)
	}
	return set, nil
}

// Profile is the subset of the provider's administrative user record the
// synchronizer cares about.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
}

// adminUser mirrors the provider's admin API response shape.
type adminUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
}

// LookupSubject fetches canonical profile fields for a subject from the
// provider's administrative API. Used when a token carries no email claim.
func (c *Client) LookupSubject(ctx context.Context, subject string) (Profile, error) {
	if c.adminURL == "" {
		return Profile{}, fmt.Errorf("no admin URL configured")
	}

	body, err := c.get(ctx, c.adminURL+"/admin/users/"+url.PathEscape(subject))
	if err != nil {
		return Profile{}, fmt.Errorf("looking up subject %q: %w", subject, err)
	}

	var u adminUser
	if err := json.Unmarshal(body, &u); err != nil {
		return Profile{}, fmt.Errorf("decoding admin user: %w", err)
	}

	name := u.UserMetadata.FullName
	if name == "" {
		name = u.UserMetadata.Name
	}
	return Profile{ID: u.ID, Email: u.Email, DisplayName: name}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

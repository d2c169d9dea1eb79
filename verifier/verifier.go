// Package verifier checks bearer tokens: it decodes the header, dispatches
// to the right verification path for the declared algorithm, verifies the
// signature and registered claims, and produces a Token for the principal
// layer. Verification is deterministic for a given token and key state, so
// nothing in this package retries; refreshing keys is the cache's concern.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// KeyResolver provides the public key for a kid. *keyset.Cache satisfies
// this.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (jwk.Key, error)
}

// Logger is the minimal logging surface the verifier needs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Token is the decoded, fully verified token. It is request-scoped: built
// fresh per verification and never cached.
type Token struct {
	Subject   string
	Email     string
	Role      string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time

	// Claims holds the token's private claims. Principal code exposes this
	// as a closed bag rather than spreading claims onto the principal.
	Claims map[string]interface{}
}

// Verifier validates tokens against one issuer. Exactly two signature
// algorithms are accepted: HS256 against the shared secret and RS256
// against the resolver's key set.
type Verifier struct {
	issuer     string
	secret     []byte      // HS256 path; nil when not configured
	keys       KeyResolver // RS256 path; nil when not configured
	audience   []string    // empty disables audience checking
	clockSkew  time.Duration
	knownRoles map[string]struct{}
	logger     Logger
	clock      func() time.Time
}

// New builds a Verifier. WithIssuer and at least one of WithSharedSecret or
// WithKeyResolver are required.
func New(opts ...Option) (*Verifier, error) {
	v := &Verifier{
		clockSkew: 60 * time.Second,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if v.issuer == "" {
		return nil, errors.New("issuer is required (use WithIssuer)")
	}
	if v.secret == nil && v.keys == nil {
		return nil, errors.New("a shared secret or key resolver is required")
	}
	return v, nil
}

// Verify runs the full verification sequence on a raw compact token. On
// success it returns the decoded Token; on failure the error carries a
// Reason retrievable with ReasonOf.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Token, error) {
	alg, kid, err := peekHeader(raw)
	if err != nil {
		return nil, reject(ReasonMalformed, err)
	}

	var key interface{}
	switch alg {
	case jwa.HS256:
		if len(v.secret) == 0 {
			return nil, reject(ReasonSecretNotConfigured, errors.New("token declares HS256 but no shared secret is configured"))
		}
		key = v.secret
	case jwa.RS256:
		if v.keys == nil {
			return nil, reject(ReasonKeyUnavailable, errors.New("token declares RS256 but no key set is configured"))
		}
		resolved, err := v.keys.Resolve(ctx, kid)
		if err != nil {
			return nil, reject(ReasonKeyUnavailable, err)
		}
		key = resolved
	default:
		return nil, reject(ReasonUnsupportedAlgorithm, fmt.Errorf("algorithm %q is not accepted", alg))
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(alg, key),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithRequiredClaim("exp"),
		jwt.WithAcceptableSkew(v.clockSkew),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, reject(ReasonExpired, err)
		}
		return nil, reject(ReasonSignatureInvalid, err)
	}

	if len(v.audience) > 0 && !audienceAccepted(tok.Audience(), v.audience) {
		return nil, reject(ReasonSignatureInvalid, fmt.Errorf("audience %v not accepted", tok.Audience()))
	}

	subject := tok.Subject()
	if subject == "" {
		return nil, reject(ReasonMissingSubject, errors.New("subject claim is empty"))
	}

	role := stringClaim(tok, "role")
	if role == "" {
		return nil, reject(ReasonMissingRole, errors.New("role claim is empty"))
	}
	if _, known := v.knownRoles[role]; !known && len(v.knownRoles) > 0 && v.logger != nil {
		// The provider may introduce roles before our allow-list catches
		// up; flag but accept.
		v.logger.Warnf("token for subject %s carries unrecognized role %q", subject, role)
	}

	return &Token{
		Subject:   subject,
		Email:     stringClaim(tok, "email"),
		Role:      role,
		Issuer:    tok.Issuer(),
		Audience:  tok.Audience(),
		ExpiresAt: tok.Expiration(),
		IssuedAt:  tok.IssuedAt(),
		Claims:    tok.PrivateClaims(),
	}, nil
}

// peekHeader reads the declared algorithm and kid without verifying the
// signature.
func peekHeader(raw string) (jwa.SignatureAlgorithm, string, error) {
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return "", "", fmt.Errorf("parsing token structure: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", "", errors.New("token has no signature")
	}
	hdr := sigs[0].ProtectedHeaders()
	return hdr.Algorithm(), hdr.KeyID(), nil
}

func audienceAccepted(actual, accepted []string) bool {
	for _, want := range accepted {
		for _, got := range actual {
			if got == want {
				return true
			}
		}
	}
	return false
}

func stringClaim(tok jwt.Token, name string) string {
	val, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return s
}

package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalgrid/authgate/identity"
	"github.com/goalgrid/authgate/trust"
	"github.com/goalgrid/authgate/verifier"
)

const (
	testIssuer = "https://project.supabase.test/auth/v1"
	testSecret = "super-secret-jwt-key-with-enough-entropy"
)

func validConfig() *trust.Config {
	cfg := &trust.Config{
		IssuerURL:    testIssuer,
		SharedSecret: testSecret,
	}
	cfg.ApplyDefaults()
	return cfg
}

func signToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("user-1").
		Expiration(time.Now().Add(time.Hour)).
		IssuedAt(time.Now()).
		Claim("email", "ada@example.com").
		Claim("role", "authenticated")
	if mutate != nil {
		mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func newTestMiddleware(t *testing.T, opts ...Option) *Middleware {
	t.Helper()
	cfg := validConfig()
	v, err := verifier.New(
		verifier.WithIssuer(cfg.IssuerURL),
		verifier.WithSharedSecret([]byte(cfg.SharedSecret)),
	)
	require.NoError(t, err)

	m, err := New(append([]Option{WithTrustConfig(cfg), WithVerifier(v)}, opts...)...)
	require.NoError(t, err)
	return m
}

// echoPrincipal writes the attached principal back as JSON.
var echoPrincipal = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, ok := FromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"anonymous":true}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    p.ID,
		"email": p.Email,
		"role":  p.Role,
	})
})

func doRequest(t *testing.T, handler http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func Test_CheckJWT(t *testing.T) {
	t.Run("a valid token reaches the handler with its principal", func(t *testing.T) {
		m := newTestMiddleware(t)
		rec := doRequest(t, m.CheckJWT(echoPrincipal), signToken(t, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "user-1", body["id"])
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "authenticated", body["role"])
	})

	t.Run("a missing token is a 401 with no_token", func(t *testing.T) {
		m := newTestMiddleware(t)
		rec := doRequest(t, m.CheckJWT(echoPrincipal), "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "no_token", decodeBody(t, rec)["error"])
	})

	t.Run("an expired token is a 401 with token_expired", func(t *testing.T) {
		m := newTestMiddleware(t)
		token := signToken(t, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-5 * time.Minute))
		})
		rec := doRequest(t, m.CheckJWT(echoPrincipal), token)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token_expired", decodeBody(t, rec)["error"])
	})

	t.Run("a garbage token is a 401 with malformed_token", func(t *testing.T) {
		m := newTestMiddleware(t)
		rec := doRequest(t, m.CheckJWT(echoPrincipal), "garbage")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "malformed_token", decodeBody(t, rec)["error"])
	})

	t.Run("a malformed Authorization header is a 401", func(t *testing.T) {
		m := newTestMiddleware(t)
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		m.CheckJWT(echoPrincipal).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("an invalid configuration fails every request with 503", func(t *testing.T) {
		cfg := &trust.Config{SharedSecret: testSecret} // no issuer
		cfg.ApplyDefaults()
		v, err := verifier.New(
			verifier.WithIssuer(testIssuer),
			verifier.WithSharedSecret([]byte(testSecret)),
		)
		require.NoError(t, err)
		m, err := New(WithTrustConfig(cfg), WithVerifier(v))
		require.NoError(t, err)

		rec := doRequest(t, m.CheckJWT(echoPrincipal), signToken(t, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "config_invalid", decodeBody(t, rec)["error"])
	})

	t.Run("optional credentials let anonymous requests through", func(t *testing.T) {
		m := newTestMiddleware(t, WithCredentialsOptional(true))

		rec := doRequest(t, m.CheckJWT(echoPrincipal), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["anonymous"])
	})

	t.Run("optional credentials still verify a supplied token", func(t *testing.T) {
		m := newTestMiddleware(t, WithCredentialsOptional(true))

		rec := doRequest(t, m.CheckJWT(echoPrincipal), "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("excluded paths skip verification entirely", func(t *testing.T) {
		m := newTestMiddleware(t, WithExcludedPaths([]string{"/healthz"}))

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		m.CheckJWT(echoPrincipal).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["anonymous"])

		rec = doRequest(t, m.CheckJWT(echoPrincipal), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// stubSyncer records what the middleware asked it to sync.
type stubSyncer struct {
	calls int
	user  *identity.User
	err   error

	subject string
	email   string
	hint    string
}

func (s *stubSyncer) Ensure(_ context.Context, subject, email, hint string) (*identity.User, error) {
	s.calls++
	s.subject, s.email, s.hint = subject, email, hint
	return s.user, s.err
}

func Test_Authenticate_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("the synced user rides on the principal", func(t *testing.T) {
		syncer := &stubSyncer{user: &identity.User{ID: "local-1", Subject: "user-1"}}
		m := newTestMiddleware(t, WithSynchronizer(syncer))

		p, err := m.Authenticate(ctx, signToken(t, nil))
		require.NoError(t, err)
		require.NotNil(t, p.User)
		assert.Equal(t, "local-1", p.User.ID)
		assert.Equal(t, 1, syncer.calls)
		assert.Equal(t, "user-1", syncer.subject)
		assert.Equal(t, "ada@example.com", syncer.email)
	})

	t.Run("a sync failure does not reject the request", func(t *testing.T) {
		syncer := &stubSyncer{err: errors.New("database down")}
		m := newTestMiddleware(t, WithSynchronizer(syncer))

		p, err := m.Authenticate(ctx, signToken(t, nil))
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.ID)
		assert.Nil(t, p.User)
	})

	t.Run("the display name hint comes from the name claim", func(t *testing.T) {
		syncer := &stubSyncer{}
		m := newTestMiddleware(t, WithSynchronizer(syncer))

		token := signToken(t, func(b *jwt.Builder) { b.Claim("name", "Ada Lovelace") })
		_, err := m.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", syncer.hint)
	})
}

func Test_Authenticate_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("rejections match the root sentinels", func(t *testing.T) {
		m := newTestMiddleware(t)

		_, err := m.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrNoToken)

		_, err = m.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.Equal(t, "malformed_token", Reason(err))
	})

	t.Run("a broken config maps to ErrConfigInvalid", func(t *testing.T) {
		cfg := &trust.Config{}
		cfg.ApplyDefaults()
		v, err := verifier.New(
			verifier.WithIssuer(testIssuer),
			verifier.WithSharedSecret([]byte(testSecret)),
		)
		require.NoError(t, err)
		m, err := New(WithTrustConfig(cfg), WithVerifier(v))
		require.NoError(t, err)

		_, err = m.Authenticate(ctx, signToken(t, nil))
		assert.ErrorIs(t, err, ErrConfigInvalid)
		assert.Equal(t, "config_invalid", Reason(err))
	})
}

func Test_New(t *testing.T) {
	t.Run("it requires a trust config", func(t *testing.T) {
		v, err := verifier.New(
			verifier.WithIssuer(testIssuer),
			verifier.WithSharedSecret([]byte(testSecret)),
		)
		require.NoError(t, err)
		_, err = New(WithVerifier(v))
		assert.Error(t, err)
	})

	t.Run("it requires a verifier", func(t *testing.T) {
		_, err := New(WithTrustConfig(validConfig()))
		assert.Error(t, err)
	})
}

func Test_FromConfig(t *testing.T) {
	t.Run("a secret-only config assembles a working gate", func(t *testing.T) {
		m, err := FromConfig(validConfig(), nil)
		require.NoError(t, err)

		rec := doRequest(t, m.CheckJWT(echoPrincipal), signToken(t, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("a nil config is rejected", func(t *testing.T) {
		_, err := FromConfig(nil, nil)
		assert.Error(t, err)
	})
}

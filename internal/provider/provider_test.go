package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalgrid/authgate/trust"
)

func testJWKS(t *testing.T) []byte {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(priv)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "key-1"))
	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	payload, err := json.Marshal(set)
	require.NoError(t, err)
	return payload
}

func Test_FetchKeySet(t *testing.T) {
	t.Run("it sends the API key and parses the key set", func(t *testing.T) {
		jwks := testJWKS(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "anon-key", r.Header.Get("apikey"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(jwks)
		}))
		defer server.Close()

		client := NewClient(&trust.Config{
			JWKSURL:        server.URL + "/auth/v1/jwks",
			ProviderAPIKey: "anon-key",
			FetchTimeout:   time.Second,
		})

		set, err := client.FetchKeySet(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())

		key, ok := set.LookupKeyID("key-1")
		require.True(t, ok)
		assert.Equal(t, "key-1", key.KeyID())
	})

	t.Run("a non-200 response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := NewClient(&trust.Config{
			JWKSURL:        server.URL,
			ProviderAPIKey: "wrong-key",
		})

		_, err := client.FetchKeySet(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("a garbage body is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		client := NewClient(&trust.Config{JWKSURL: server.URL, ProviderAPIKey: "k"})

		_, err := client.FetchKeySet(context.Background())
		assert.Error(t, err)
	})

	t.Run("it honors the context deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer server.Close()

		client := NewClient(&trust.Config{JWKSURL: server.URL, ProviderAPIKey: "k"})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := client.FetchKeySet(ctx)
		assert.Error(t, err)
	})

	t.Run("it fails without a key-set URL", func(t *testing.T) {
		client := NewClient(&trust.Config{})
		_, err := client.FetchKeySet(context.Background())
		assert.Error(t, err)
	})
}

func Test_LookupSubject(t *testing.T) {
	t.Run("it fetches the admin user record", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/admin/users/user-1", r.URL.Path)
			assert.Equal(t, "service-key", r.Header.Get("apikey"))
			_, _ = w.Write([]byte(`{
				"id": "user-1",
				"email": "ada@example.com",
				"user_metadata": {"full_name": "Ada Lovelace"}
			}`))
		}))
		defer server.Close()

		client := NewClient(&trust.Config{
			AdminURL:       server.URL + "/auth/v1",
			ProviderAPIKey: "service-key",
		})

		profile, err := client.LookupSubject(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", profile.ID)
		assert.Equal(t, "ada@example.com", profile.Email)
		assert.Equal(t, "Ada Lovelace", profile.DisplayName)
	})

	t.Run("it falls back to the short name field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"u","email":"e@x.io","user_metadata":{"name":"E"}}`))
		}))
		defer server.Close()

		client := NewClient(&trust.Config{AdminURL: server.URL, ProviderAPIKey: "k"})

		profile, err := client.LookupSubject(context.Background(), "u")
		require.NoError(t, err)
		assert.Equal(t, "E", profile.DisplayName)
	})

	t.Run("it fails without an admin URL", func(t *testing.T) {
		client := NewClient(&trust.Config{})
		_, err := client.LookupSubject(context.Background(), "u")
		assert.Error(t, err)
	})
}

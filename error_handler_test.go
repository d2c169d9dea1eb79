package authgate

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalgrid/authgate/verifier"
)

func Test_DefaultErrorHandler(t *testing.T) {
	handle := func(t *testing.T, err error) (*httptest.ResponseRecorder, errorBody) {
		t.Helper()
		rec := httptest.NewRecorder()
		DefaultErrorHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec, body
	}

	rejection := func(reason verifier.Reason) error {
		return &rejectionError{details: &verifier.RejectionError{
			Reason: reason,
			Err:    errors.New("details"),
		}}
	}

	t.Run("config problems are 503", func(t *testing.T) {
		rec, body := handle(t, &configError{})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "config_invalid", body.Error)
	})

	t.Run("a missing secret is reported as a config problem", func(t *testing.T) {
		rec, body := handle(t, rejection(verifier.ReasonSecretNotConfigured))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "config_invalid", body.Error)
	})

	t.Run("a missing token is 401 with a challenge", func(t *testing.T) {
		rec, body := handle(t, ErrNoToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "no_token", body.Error)
		assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("an expired token tells the client to refresh", func(t *testing.T) {
		rec, body := handle(t, rejection(verifier.ReasonExpired))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token_expired", body.Error)
		assert.Contains(t, body.Message, "Refresh")
	})

	t.Run("verification failures are 401 with their reason", func(t *testing.T) {
		for _, reason := range []verifier.Reason{
			verifier.ReasonMalformed,
			verifier.ReasonUnsupportedAlgorithm,
			verifier.ReasonKeyUnavailable,
			verifier.ReasonSignatureInvalid,
			verifier.ReasonMissingSubject,
			verifier.ReasonMissingRole,
		} {
			rec, body := handle(t, rejection(reason))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "reason %s", reason)
			assert.Equal(t, string(reason), body.Error, "reason %s", reason)
		}
	})

	t.Run("a role denial is 403 without a challenge", func(t *testing.T) {
		rec, body := handle(t, ErrInsufficientRole)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient_role", body.Error)
		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("an unrecognized error is a 500", func(t *testing.T) {
		rec, body := handle(t, errors.New("wat"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal_error", body.Error)
	})

	t.Run("responses are JSON", func(t *testing.T) {
		rec, _ := handle(t, ErrNoToken)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
}

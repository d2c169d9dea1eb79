package authgate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/goalgrid/authgate/verifier"
)

// ErrorHandler is called when a request is rejected. The default handler
// maps the error taxonomy onto response codes: 503 when the configuration
// is invalid (verification cannot run at all), 401 for missing or failed
// tokens, 403 when the role guard denies. Custom handlers MUST preserve
// this mapping for the errors they recognize or clients lose the ability
// to distinguish "re-authenticate" from "retry later".
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DefaultErrorHandler writes a structured JSON rejection. The error field
// carries the machine-readable reason; the message tells the client what
// to do about it.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) (int, errorBody) {
	reason := Reason(err)

	switch {
	case errors.Is(err, ErrConfigInvalid):
		return http.StatusServiceUnavailable, errorBody{reason, "Authentication is not configured. Try again later."}
	case errors.Is(err, ErrNoToken):
		return http.StatusUnauthorized, errorBody{reason, "A bearer token is required."}
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{reason, "Authentication is required."}
	case errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden, errorBody{reason, "You do not have permission to perform this action."}
	}

	if r, ok := verifier.ReasonOf(err); ok {
		switch r {
		case verifier.ReasonExpired:
			return http.StatusUnauthorized, errorBody{reason, "The token has expired. Refresh it and retry."}
		case verifier.ReasonSecretNotConfigured:
			// A missing secret is a deployment defect, not a bad token.
			return http.StatusServiceUnavailable, errorBody{reasonConfigInvalid, "Authentication is not configured. Try again later."}
		case verifier.ReasonKeyUnavailable:
			return http.StatusUnauthorized, errorBody{reason, "The token's signing key is unavailable. Re-authenticate."}
		default:
			return http.StatusUnauthorized, errorBody{reason, "The token is invalid. Re-authenticate."}
		}
	}

	if errors.Is(err, ErrTokenInvalid) {
		return http.StatusUnauthorized, errorBody{reason, "The token is invalid. Re-authenticate."}
	}

	return http.StatusInternalServerError, errorBody{reason, "Something went wrong while checking the token."}
}

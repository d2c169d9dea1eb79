package verifier

import (
	"errors"
)

// Reason is a machine-readable rejection code. Reasons are distinct enough
// for a client to decide between refreshing the token (ReasonExpired) and
// re-authenticating entirely.
type Reason string

const (
	ReasonMalformed            Reason = "malformed_token"
	ReasonUnsupportedAlgorithm Reason = "unsupported_algorithm"
	ReasonKeyUnavailable       Reason = "key_unavailable"
	ReasonSignatureInvalid     Reason = "signature_invalid"
	ReasonExpired              Reason = "token_expired"
	ReasonMissingSubject       Reason = "missing_subject"
	ReasonMissingRole          Reason = "missing_role"

	// ReasonSecretNotConfigured means the token declared the shared-secret
	// algorithm but no secret is configured. This is a deployment problem,
	// not a caller problem, and maps to service-unavailable upstream.
	ReasonSecretNotConfigured Reason = "secret_not_configured"
)

// RejectionError is a failed verification. It wraps the underlying cause so
// callers can still use errors.Is/As on it.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Err }

// ReasonOf extracts the rejection reason from an error returned by Verify.
func ReasonOf(err error) (Reason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

func reject(reason Reason, cause error) error {
	return &RejectionError{Reason: reason, Err: cause}
}

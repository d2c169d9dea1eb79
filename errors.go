package authgate

import (
	"errors"
	"fmt"

	"github.com/goalgrid/authgate/verifier"
)

var (
	// ErrConfigInvalid is returned when the trust configuration fails its
	// structural checks. This is a terminal state: every request fails
	// closed with service-unavailable until the configuration is fixed.
	ErrConfigInvalid = errors.New("trust configuration invalid")

	// ErrNoToken is returned when no bearer token accompanies the request.
	ErrNoToken = errors.New("bearer token missing")

	// ErrTokenInvalid is returned when a presented token fails
	// verification. It wraps a verifier rejection carrying the specific
	// reason.
	ErrTokenInvalid = errors.New("bearer token invalid")

	// ErrUnauthenticated is raised by the role guard when no principal is
	// attached to the request.
	ErrUnauthenticated = errors.New("no authenticated principal")

	// ErrInsufficientRole is raised by the role guard after successful
	// authentication when the principal's role does not match.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrSyncFailed marks a failed local identity sync. It is never
	// returned to callers: the middleware logs it and proceeds with a
	// principal lacking a local user reference.
	ErrSyncFailed = errors.New("local identity sync failed")
)

// configError wraps ErrConfigInvalid with the enumerated field issues.
type configError struct {
	issues []fmt.Stringer
}

func (e *configError) Error() string {
	msg := ErrConfigInvalid.Error()
	for _, issue := range e.issues {
		msg += "; " + issue.String()
	}
	return msg
}

func (e *configError) Is(target error) bool { return target == ErrConfigInvalid }

// rejectionError wraps a verification failure with the concrete error
// ErrTokenInvalid. Is and Unwrap give callers everything they need, so the
// type stays unexported.
type rejectionError struct {
	details error
}

func (e *rejectionError) Is(target error) bool { return target == ErrTokenInvalid }

func (e *rejectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTokenInvalid, e.details)
}

func (e *rejectionError) Unwrap() error { return e.details }

// Reason codes used in responses for errors raised outside the verifier.
const (
	reasonConfigInvalid    = "config_invalid"
	reasonNoToken          = "no_token"
	reasonInvalidRequest   = "invalid_request"
	reasonUnauthenticated  = "unauthenticated"
	reasonInsufficientRole = "insufficient_role"
)

// Reason returns the machine-readable rejection code for an error produced
// by the middleware or the role guard.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrConfigInvalid):
		return reasonConfigInvalid
	case errors.Is(err, ErrNoToken):
		return reasonNoToken
	case errors.Is(err, ErrInsufficientRole):
		return reasonInsufficientRole
	case errors.Is(err, ErrUnauthenticated):
		return reasonUnauthenticated
	}
	if r, ok := verifier.ReasonOf(err); ok {
		return string(r)
	}
	if errors.Is(err, ErrTokenInvalid) {
		return "invalid_token"
	}
	return "internal_error"
}

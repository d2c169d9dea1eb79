package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the synchronizer needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// LookupFunc fetches canonical profile fields for a subject from the
// provider, used when a token carries no email claim. Best effort; an error
// just means the sync proceeds with what the token supplied.
type LookupFunc func(ctx context.Context, subject string) (email, displayName string, err error)

// Synchronizer keeps local user records in step with verified identities.
type Synchronizer struct {
	store  Store
	lookup LookupFunc
	logger Logger
	now    func() time.Time
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer) error

// WithLookup sets the optional provider profile lookup.
func WithLookup(fn LookupFunc) SyncOption {
	return func(s *Synchronizer) error {
		if fn == nil {
			return errors.New("lookup cannot be nil")
		}
		s.lookup = fn
		return nil
	}
}

// WithLogger sets an optional logger.
func WithLogger(logger Logger) SyncOption {
	return func(s *Synchronizer) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithClock overrides the time source. Only useful in tests.
func WithClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// NewSynchronizer builds a Synchronizer over the given store.
func NewSynchronizer(store Store, opts ...SyncOption) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	s := &Synchronizer{store: store, now: time.Now}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return s, nil
}

// Ensure makes sure a local user exists for subject and reflects the given
// profile. It is idempotent: called twice with identical inputs the second
// call performs no write, and a changed field updates only that field's
// row via a single diff-driven update.
func (s *Synchronizer) Ensure(ctx context.Context, subject, email, displayNameHint string) (*User, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}

	if email == "" && s.lookup != nil {
		lookedUpEmail, lookedUpName, err := s.lookup(ctx, subject)
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("provider profile lookup for %s failed: %v", subject, err)
			}
		} else {
			email = lookedUpEmail
			if displayNameHint == "" {
				displayNameHint = lookedUpName
			}
		}
	}

	existing, err := s.store.BySubject(ctx, subject)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.create(ctx, subject, email, displayNameHint)
	case err != nil:
		return nil, fmt.Errorf("loading user %q: %w", subject, err)
	}

	changed := false
	if email != "" && existing.Email != email {
		existing.Email = email
		changed = true
	}
	if displayNameHint != "" && existing.DisplayName != displayNameHint {
		existing.DisplayName = displayNameHint
		changed = true
	}
	if !changed {
		return existing, nil
	}

	existing.UpdatedAt = s.now()
	if err := s.store.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("updating user %q: %w", subject, err)
	}
	if s.logger != nil {
		s.logger.Debugf("updated local user for subject %s", subject)
	}
	return existing, nil
}

func (s *Synchronizer) create(ctx context.Context, subject, email, displayName string) (*User, error) {
	if displayName == "" {
		displayName = fallbackDisplayName(email, subject)
	}

	now := s.now()
	u := &User{
		ID:          uuid.NewString(),
		Subject:     subject,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user %q: %w", subject, err)
	}
	if s.logger != nil {
		s.logger.Debugf("created local user for subject %s", subject)
	}
	return u, nil
}

// fallbackDisplayName prefers the local part of the email, then the subject.
func fallbackDisplayName(email, subject string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return subject
}

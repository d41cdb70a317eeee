// Package auth exposes the authenticated principal under whose namespace
// remote records are stored.
package auth

import "errors"

// ErrNotAuthenticated is returned when a remote operation is attempted
// with no authenticated principal. Operations must fail with this error
// rather than silently no-op: proceeding would write to the wrong account
// or none at all.
var ErrNotAuthenticated = errors.New("no authenticated principal")

// Provider reports the current authenticated principal ID.
type Provider interface {
	// CurrentPrincipal returns the principal's UID, or
	// ErrNotAuthenticated when no one is signed in.
	CurrentPrincipal() (string, error)
}

// Static is a Provider with a fixed principal, used when the UID comes
// from configuration (single-user device) and in tests.
type Static struct {
	UID string
}

// CurrentPrincipal implements Provider.
func (s Static) CurrentPrincipal() (string, error) {
	if s.UID == "" {
		return "", ErrNotAuthenticated
	}
	return s.UID, nil
}

// None is a Provider that is never authenticated.
type None struct{}

// CurrentPrincipal implements Provider.
func (None) CurrentPrincipal() (string, error) {
	return "", ErrNotAuthenticated
}

package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors. They are the stable contract HTTP handlers and clients
// map onto wire codes.
var (
	// ErrProfileNotFound is returned when no profile exists for a principal.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when registering an already-known principal
	// with a conflicting email.
	ErrProfileExists = errors.New("profile already exists")

	// ErrFirstLogin is returned by a verify against a profile with no bound
	// device. The client reacts by recording its fingerprint.
	ErrFirstLogin = errors.New("first login: no device recorded")

	// ErrDeviceMismatch is returned when a bound profile is presented with a
	// different fingerprint. Recoverable only by an admin device reset.
	ErrDeviceMismatch = errors.New("account locked to another device")

	// ErrAccessRevoked is returned for any operation against a revoked
	// profile. Recoverable only by an admin reinstate.
	ErrAccessRevoked = errors.New("access revoked")

	// ErrAccessExpired is returned when the profile's expiry has passed.
	// Recoverable by an admin re-dating the profile.
	ErrAccessExpired = errors.New("access expired")

	// ErrNotPaid is returned for content operations on an unpaid profile.
	ErrNotPaid = errors.New("content not paid for")

	// ErrInvalidToken is returned when the presented session token does not
	// match the current one.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrInvalidInput is returned for structurally invalid arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Kind is one of the sentinels above; Msg may add human-readable context and
// must never include token material.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsNotFound reports whether err represents ErrProfileNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrProfileNotFound) }

// IsFirstLogin reports whether err represents ErrFirstLogin.
func IsFirstLogin(err error) bool { return errors.Is(err, ErrFirstLogin) }

// IsDeviceMismatch reports whether err represents ErrDeviceMismatch.
func IsDeviceMismatch(err error) bool { return errors.Is(err, ErrDeviceMismatch) }

// IsRevoked reports whether err represents ErrAccessRevoked.
func IsRevoked(err error) bool { return errors.Is(err, ErrAccessRevoked) }

// IsExpired reports whether err represents ErrAccessExpired.
func IsExpired(err error) bool { return errors.Is(err, ErrAccessExpired) }

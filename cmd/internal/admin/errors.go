package admin

import "errors"

// Public, stable errors for callers.
var (
	// ErrInvalidCredentials is returned for a failed admin login. Retry is
	// permitted (subject to throttling at the API edge).
	ErrInvalidCredentials = errors.New("invalid admin credentials")

	// ErrNotAuthorized is the generic fail-closed error for every override
	// attempted without a valid admin token. It deliberately reveals
	// nothing about profiles.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotConfigured is returned when no admin credentials are configured
	// at all; the override surface is then disabled.
	ErrNotConfigured = errors.New("admin credentials not configured")
)

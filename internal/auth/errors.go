package auth

import "errors"

var (
	// ErrDenied is returned by a Verifier when the authority rejects the
	// credentials or does not know the user.
	ErrDenied = errors.New("authentication denied by authority")

	// ErrUserNotFound is returned when a user cannot be found in the
	// database or directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrMultipleUsersFound is returned when a directory query expected
	// one user but found multiple. This typically indicates a
	// misconfigured search filter or duplicate entries.
	ErrMultipleUsersFound = errors.New("multiple users found")

	// ErrUserAccountDisabled is returned when attempting to authenticate
	// a disabled account through the local fallback.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrInvalidPassword is returned when the provided password is
	// incorrect during local fallback authentication.
	ErrInvalidPassword = errors.New("invalid password")
)

// Denial reasons carried by Result for ordinary authentication failures.
// They mirror the wiki's login screen message keys.
const (
	ReasonNoUsername    = "nousername"
	ReasonNoPassword    = "nopassword"
	ReasonDenied        = "denied"
	ReasonPAMDisabled   = "pamdisabled"
	ReasonWrongPassword = "wrongpassword"
)

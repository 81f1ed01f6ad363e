package auth

import (
	"context"

	"github.com/plandes/pamauth/internal/usersync"
)

// Verifier is the external authority credential check. Implementations are
// expected to honor the context deadline the coordinator derives from the
// configured timeout; the coordinator itself enforces nothing.
type Verifier interface {
	// Verify checks the credentials and returns the authority's identity
	// for the user. A rejection is reported as ErrDenied, not as an
	// internal error.
	Verify(ctx context.Context, username, password string) (*usersync.Identity, error)

	// Lookup fetches the identity attributes without a credential check,
	// used for trusted (SSO-asserted) authentication. An unknown user is
	// reported as ErrUserNotFound.
	Lookup(ctx context.Context, username string) (*usersync.Identity, error)
}

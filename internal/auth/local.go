package auth

import (
	"fmt"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/usersync"
)

// LocalProvider is the legacy local-credential check used as a last resort
// when the authority rejects an explicit login and the pam_trylocal
// preference is enabled.
type LocalProvider struct {
	store usersync.Store
}

// NewLocalProvider creates a local fallback provider over the profile store.
func NewLocalProvider(store usersync.Store) *LocalProvider {
	return &LocalProvider{store: store}
}

// Authenticate checks the password against the locally stored Argon2id hash
// of the profile named after the username.
func (p *LocalProvider) Authenticate(wiki, username, password string) (*models.Profile, error) {
	profile, err := p.store.Get(wiki, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for local authentication: %w", err)
	}

	if profile.IsNew() {
		return nil, ErrUserNotFound
	}

	if !profile.Active {
		return nil, ErrUserAccountDisabled
	}

	if !profile.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return profile, nil
}

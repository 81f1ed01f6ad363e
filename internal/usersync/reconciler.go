// Package usersync reconciles external identities with local wiki profiles:
// it locates the profile matching an authority-reported username, allocates
// a collision-free name for new identities and creates or updates the
// record from the authority's attributes.
package usersync

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
)

const (
	createComment = "Created user profile from PAM server"
	syncComment   = "Synchronized user profile with PAM server"
)

// Store is the profile persistence collaborator. Get returns an unsaved
// empty profile when no record exists so callers can test IsNew.
type Store interface {
	Get(wiki, name string) (*models.Profile, error)
	// SearchByUsername matches the stored external username
	// case-insensitively within a wiki.
	SearchByUsername(wiki, username string) ([]*models.Profile, error)
	Create(wiki, name string, attributes models.AttributeMap) (*models.Profile, error)
	Save(profile *models.Profile, comment string) error
}

// Reconciler finds, allocates and synchronizes local profiles.
type Reconciler struct {
	store Store
}

// New creates a reconciler over the given profile store.
func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Locate returns the existing profile for an external username, or nil when
// none exists. A supplied candidate name is tried first as a fast path and
// used only if its stored username matches case-insensitively. When the
// authoritative search yields several profiles the first result is used and
// the anomaly logged; result order is whatever the store returns.
func (r *Reconciler) Locate(wiki, candidate, username string) (*models.Profile, error) {
	if candidate != "" {
		profile, err := r.store.Get(wiki, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to load candidate profile %q: %w", candidate, err)
		}

		if !profile.IsNew() && strings.EqualFold(profile.Username, username) {
			return profile, nil
		}
	}

	matches, err := r.store.SearchByUsername(wiki, username)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles for username %q: %w", username, err)
	}

	if len(matches) > 1 {
		log.Error().Str("wiki", wiki).Str("username", username).Int("matches", len(matches)).
			Msg("more than one profile carries this PAM username, using the first")
	}

	if len(matches) > 0 {
		return matches[0], nil
	}

	return nil, nil
}

// AvailableProfile returns an unpersisted profile whose name does not exist
// yet in the wiki, trying base, base_1, base_2, ... until a free name is
// found.
func (r *Reconciler) AvailableProfile(wiki, base string) (*models.Profile, error) {
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}

		profile, err := r.store.Get(wiki, name)
		if err != nil {
			return nil, fmt.Errorf("failed to probe profile name %q: %w", name, err)
		}

		if profile.IsNew() {
			return profile, nil
		}
	}
}

// Sync creates or updates the local profile for an identity. A nil profile
// triggers name allocation from the external username; a new profile is
// created from the mapped attributes and stamped with the external
// username/uid pair. An existing profile is re-synchronized only when the
// pam_update_user preference is enabled or the credentials were freshly
// verified (reverified); update failures are logged, not returned, since
// the user is authenticated regardless.
func (r *Reconciler) Sync(cfg *prefs.Prefs, wiki string, profile *models.Profile,
	identity *Identity, reverified bool,
) (*models.Profile, error) {
	if profile != nil && !profile.IsNew() && !cfg.UpdateUser() && !reverified {
		return profile, nil
	}

	if profile == nil {
		var err error

		profile, err = r.AvailableProfile(wiki, identity.Username)
		if err != nil {
			return nil, err
		}
	}

	if profile.IsNew() {
		created, err := r.create(cfg, wiki, profile.Name, identity)
		if err != nil {
			return nil, err
		}

		return created, nil
	}

	if err := r.update(cfg, profile, identity); err != nil {
		log.Error().Err(err).Str("wiki", wiki).Str("profile", profile.Name).
			Msg("failed to synchronize profile with PAM attributes")
	}

	return profile, nil
}

// create persists a brand new profile. If the store's create call fails but
// the profile exists afterwards anyway, the failure is logged and the
// profile kept; if the profile is absent, the original create error is
// surfaced, or a SyncError when the store reported none.
func (r *Reconciler) create(cfg *prefs.Prefs, wiki, name string, identity *Identity) (*models.Profile, error) {
	attributes := mapAttributes(cfg, nil, identity.Attributes)

	log.Debug().Str("wiki", wiki).Str("profile", name).Str("username", identity.Username).
		Msg("creating new profile from PAM attributes")

	_, createErr := r.store.Create(wiki, name, attributes)

	created, err := r.store.Get(wiki, name)
	if err != nil {
		return nil, fmt.Errorf("failed to reload created profile %q: %w", name, err)
	}

	if created.IsNew() {
		if createErr != nil {
			return nil, createErr
		}

		return nil, &SyncError{
			Message: fmt.Sprintf("profile %q has not been created for unknown reason", name),
		}
	}

	if createErr != nil {
		// The create call crashed after the record appeared, let the
		// user in and keep a trace.
		log.Error().Err(createErr).Str("wiki", wiki).Str("profile", name).
			Msg("unexpected error after profile creation")
	}

	created.Active = true

	stampExternal(created, identity.Username, identity.UID)

	if err := r.store.Save(created, createComment); err != nil {
		return nil, fmt.Errorf("failed to stamp created profile %q: %w", name, err)
	}

	return created, nil
}

// update applies the mapped attributes onto a clone of the stored ones and
// persists only when the clone differs or the stamped username/uid changed.
func (r *Reconciler) update(cfg *prefs.Prefs, profile *models.Profile, identity *Identity) error {
	clone := profile.Attributes.Clone()
	mapAttributes(cfg, clone, identity.Attributes)

	needsUpdate := !clone.Equal(profile.Attributes)
	if needsUpdate {
		profile.Attributes = clone
	}

	needsUpdate = stampExternal(profile, identity.Username, identity.UID) || needsUpdate

	log.Debug().Str("profile", profile.Name).Bool("needsUpdate", needsUpdate).
		Msg("synchronizing existing profile with PAM attributes")

	if !needsUpdate {
		return nil
	}

	return r.store.Save(profile, syncComment)
}

// stampExternal records the external username/uid pair on the profile,
// comparing case-insensitively, and reports whether anything changed.
func stampExternal(profile *models.Profile, username, uid string) bool {
	changed := false

	if !strings.EqualFold(profile.Username, username) {
		profile.Username = username
		changed = true
	}

	if !strings.EqualFold(profile.UID, uid) {
		profile.UID = uid
		changed = true
	}

	return changed
}

// mapAttributes applies the configured user mapping onto dst, taking values
// from the authority attributes. A nil dst allocates a fresh map.
func mapAttributes(cfg *prefs.Prefs, dst models.AttributeMap, attributes map[string]string) models.AttributeMap {
	if dst == nil {
		dst = make(models.AttributeMap)
	}

	for _, mapping := range cfg.UserMappings() {
		if value, ok := attributes[mapping.Value]; ok {
			dst[mapping.Key] = value
		}
	}

	return dst
}

// Package models contains database model definitions.
package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AttributeMap holds the generic, externally sourced attributes of a
// profile (full name, email, group memberships and whatever else the
// authority reports). It is persisted as a single JSON column.
type AttributeMap map[string]string

// Clone returns an independent copy of the map. A nil receiver clones to an
// empty, non-nil map so callers can write to the result.
func (m AttributeMap) Clone() AttributeMap {
	out := make(AttributeMap, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// Equal reports whether both maps contain exactly the same entries.
func (m AttributeMap) Equal(other AttributeMap) bool {
	if len(m) != len(other) {
		return false
	}

	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}

	return true
}

// Profile represents a local wiki user record reconciled from an external
// authority. At most one profile should carry a given external username or
// uid within a wiki; the reconciler resolves violations deterministically.
type Profile struct {
	// ID is the unique identifier for the profile.
	ID uint64 `gorm:"primaryKey"`
	// Wiki is the tenant scope the profile belongs to.
	Wiki string `gorm:"size:100;not null;uniqueIndex:idx_profiles_wiki_name,priority:1"`
	// Name is the local profile name ("jdoe", "jdoe_1", ...), unique per wiki.
	Name string `gorm:"size:100;not null;uniqueIndex:idx_profiles_wiki_name,priority:2"`
	// Active indicates whether the profile can log in.
	Active bool
	// Username is the external authority's login name, stored case-preserving.
	Username string `gorm:"size:255"`
	// UID is the authority-assigned immutable identifier.
	UID string `gorm:"column:uid;size:255"`
	// Password is the Argon2id hash used only by the legacy local fallback.
	Password string `gorm:"size:255"`
	// Attributes are the mapped external attributes.
	Attributes AttributeMap `gorm:"serializer:json"`
	// CreatedAt is the timestamp when the profile was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the profile was last updated (managed by GORM).
	UpdatedAt time.Time
}

// IsNew reports whether the profile has never been persisted.
func (p *Profile) IsNew() bool {
	return p.ID == 0
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the profile's stored
// hash. Returns false for profiles without a local password.
func (p *Profile) VerifyPassword(password string) bool {
	if p.Password == "" {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, p.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}

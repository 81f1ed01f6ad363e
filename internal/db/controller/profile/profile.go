// Package profile provides the GORM-backed profile store used by the
// reconciler.
package profile

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/plandes/pamauth/internal/db/models"
)

const whereWikiAndName = "wiki = ? AND name = ?"

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// Controller implements profile persistence on a GORM database. It
// satisfies the reconciler's Store interface.
type Controller struct {
	db *gorm.DB
}

// New creates a profile controller.
func New(db *gorm.DB) *Controller {
	return &Controller{db: db}
}

// Get loads a profile by wiki and name. When no record exists an unsaved
// empty profile carrying the wiki and name is returned, so callers decide
// via IsNew.
func (c *Controller) Get(wiki, name string) (*models.Profile, error) {
	if c.db == nil {
		return nil, ErrDBNil
	}

	var p models.Profile

	err := c.db.Where(whereWikiAndName, wiki, name).First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Profile{Wiki: wiki, Name: name}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return &p, nil
}

// SearchByUsername returns every profile in the wiki whose stored external
// username matches case-insensitively. No ordering is imposed beyond what
// the database returns.
func (c *Controller) SearchByUsername(wiki, username string) ([]*models.Profile, error) {
	if c.db == nil {
		return nil, ErrDBNil
	}

	var profiles []*models.Profile

	err := c.db.Where("wiki = ? AND LOWER(username) = LOWER(?)", wiki, username).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}

	return profiles, nil
}

// Create persists a new active profile with the given attributes.
func (c *Controller) Create(wiki, name string, attributes models.AttributeMap) (*models.Profile, error) {
	if c.db == nil {
		return nil, ErrDBNil
	}

	p := models.Profile{
		Wiki:       wiki,
		Name:       name,
		Active:     true,
		Attributes: attributes,
	}

	if err := c.db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return &p, nil
}

// Save persists changes to an existing profile. The comment is kept as an
// audit trace in the log.
func (c *Controller) Save(p *models.Profile, comment string) error {
	if c.db == nil {
		return ErrDBNil
	}

	if err := c.db.Save(p).Error; err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	log.Debug().Str("wiki", p.Wiki).Str("profile", p.Name).Str("comment", comment).
		Msg("profile saved")

	return nil
}

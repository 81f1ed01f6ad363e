// Package setting provides CRUD operations for wiki-scoped settings and
// the preference source adapter built on them.
package setting

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
)

const wikiNameQueryPattern = "wiki = ? AND name = ?"

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned when attempting to create/update a setting with an empty name.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a setting by wiki and name.
func Get(db *gorm.DB, wiki, name string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting
	result := db.Where(wikiNameQueryPattern, wiki, name).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, result.Error
	}

	return &setting, nil
}

// GetAll retrieves all settings of a wiki.
func GetAll(db *gorm.DB, wiki string) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var settings []models.Setting
	result := db.Where("wiki = ?", wiki).Find(&settings)
	if result.Error != nil {
		return nil, result.Error
	}

	return settings, nil
}

// Set creates or updates a setting by wiki and name (upsert operation).
func Set(db *gorm.DB, wiki, name, value string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting
	result := db.Where(wikiNameQueryPattern, wiki, name).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		setting = models.Setting{Wiki: wiki, Name: name, Value: value}

		if err := db.Create(&setting).Error; err != nil {
			return nil, err
		}

		return &setting, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	setting.Value = value
	if err := db.Save(&setting).Error; err != nil {
		return nil, err
	}

	return &setting, nil
}

// Delete deletes a setting by wiki and name.
func Delete(db *gorm.DB, wiki, name string) error {
	if db == nil {
		return ErrDBNil
	}
	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.Where(wikiNameQueryPattern, wiki, name).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// Source adapts the settings of one wiki to the preference resolver. A
// lookup failure other than not-found is logged and treated as absent so
// resolution can continue with the file scope.
type Source struct {
	db   *gorm.DB
	wiki string
}

// NewSource creates a preference source over a wiki's persisted settings.
func NewSource(db *gorm.DB, wiki string) *Source {
	return &Source{db: db, wiki: wiki}
}

var _ prefs.Source = (*Source)(nil)

// Get implements prefs.Source.
func (s *Source) Get(key string) (string, bool) {
	setting, err := Get(s.db, s.wiki, key)
	if err != nil {
		if !errors.Is(err, ErrSettingNotFound) {
			log.Warn().Err(err).Str("wiki", s.wiki).Str("setting", key).
				Msg("failed to read wiki setting")
		}

		return "", false
	}

	return setting.Value, true
}

package daemon

import (
	"gorm.io/gorm"

	"github.com/plandes/pamauth/internal/config"
	"github.com/plandes/pamauth/internal/db/models"
)

func seed(cfg *config.Config, db *gorm.DB) {
	// Enable the authenticator for the served wiki on a fresh database.

	var count int64
	db.Model(&models.Setting{}).Count(&count)
	if count == 0 {
		db.Create(
			&models.Setting{
				Wiki:  cfg.Wiki.ID,
				Name:  "pam",
				Value: "1",
			},
		)
	}
}

// Package daemon assembles the service: database, directory verifier,
// coordinator and the web surface.
package daemon

import (
	"fmt"
	"time"

	sessionmysql "github.com/gofiber/storage/mysql/v2"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/plandes/pamauth/internal/auth"
	"github.com/plandes/pamauth/internal/config"
	"github.com/plandes/pamauth/internal/db/controller/profile"
	"github.com/plandes/pamauth/internal/db/controller/setting"
	"github.com/plandes/pamauth/internal/db/dsn"
	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
	"github.com/plandes/pamauth/internal/usersync"
	"github.com/plandes/pamauth/internal/web"
	"github.com/plandes/pamauth/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService web.Service
}

// Start starts the Daemon's web service and blocks until a shutdown
// signal has been handled.
func (d *Daemon) Start() error {
	go func() {
		if err := d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port)); err != nil {
			log.Error().Err(err).Msg("web service stopped")
		}
	}()

	d.webService.WaitShutdown()

	return nil
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := openDatabase(cfg)

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Setting{},
	); err != nil {
		panic("failed to migrate database")
	}

	seed(cfg, db)

	// Initialize fiber session store
	sessionStorage := sessionmysql.New(sessionmysql.Config{
		ConnectionURI: dsn.Create(cfg),
		Table:         "sessions",
	})

	session.Init(sessionStorage)

	coord := newCoordinator(cfg, db)

	return &Daemon{
		cfg:        cfg,
		webService: *web.New(cfg, coord),
	}
}

func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.Type {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	return db
}

func newCoordinator(cfg *config.Config, db *gorm.DB) *auth.Coordinator {
	store := profile.New(db)

	verifier, err := auth.NewLDAPVerifier(&auth.LDAPConfig{
		Enabled:          cfg.PAM.LDAP.Enabled,
		Host:             cfg.PAM.LDAP.Host,
		Port:             cfg.PAM.LDAP.Port,
		UseSSL:           cfg.PAM.LDAP.UseSSL,
		UseTLS:           cfg.PAM.LDAP.UseTLS,
		SkipVerify:       cfg.PAM.LDAP.SkipVerify,
		BindDN:           cfg.PAM.LDAP.BindDN,
		BindPassword:     cfg.PAM.LDAP.BindPassword,
		BaseDN:           cfg.PAM.LDAP.BaseDN,
		UserFilter:       cfg.PAM.LDAP.UserFilter,
		UsernameAttr:     cfg.PAM.LDAP.UsernameAttr,
		UIDAttr:          cfg.PAM.LDAP.UIDAttr,
		Timeout:          time.Duration(cfg.PAM.LDAP.Timeout) * time.Second,
		SearchAttributes: cfg.PAM.LDAP.SearchAttributes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create LDAP verifier")
	}

	return auth.NewCoordinator(auth.Options{
		Verifier:   verifier,
		Reconciler: usersync.New(store),
		Local:      auth.NewLocalProvider(store),
		WikiSource: func(wiki string) prefs.Source {
			return setting.NewSource(db, wiki)
		},
		FileSource: prefs.MapSource(cfg.PAM.Settings),
		MainWiki:   cfg.Wiki.Main,
		SuperAdmin: auth.SuperAdmin{
			Username:     cfg.PAM.SuperAdmin.Username,
			PasswordHash: cfg.PAM.SuperAdmin.PasswordHash,
		},
	})
}

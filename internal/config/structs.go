package config

import (
	"time"

	"github.com/plandes/pamauth/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Wiki      Wiki
	PAM       PAM
}

// Wiki identifies the tenant scopes the service authenticates for.
type Wiki struct {
	ID   string // identifier of the wiki served by this instance
	Main string // identifier of the designated main wiki
}

// PAM holds the file-scoped authenticator configuration.
type PAM struct {
	// HTTPHeader names the request header carrying the asserted remote
	// user; empty means the request's remote user is used instead.
	HTTPHeader string
	// Settings are the file-scoped preference defaults, keyed by their
	// file-scoped names ("pam", "pam.timeout", "pam.trylocal", ...).
	Settings map[string]string
	// SuperAdmin is the superadministrator account checked without the
	// external authority.
	SuperAdmin SuperAdmin
	// LDAP configures the directory authority.
	LDAP LDAP
}

// SuperAdmin credentials; the password is stored as an Argon2id hash.
type SuperAdmin struct {
	Username     string
	PasswordHash string
}

// LDAP mirrors the verifier's connection settings.
type LDAP struct {
	Enabled          bool
	Host             string
	Port             int
	UseSSL           bool
	UseTLS           bool
	SkipVerify       bool
	BindDN           string
	BindPassword     string
	BaseDN           string
	UserFilter       string
	UsernameAttr     string
	UIDAttr          string
	Timeout          int // seconds
	SearchAttributes []string
}

// DB implements database connection settings.
type DB struct {
	Type     string // "mysql" or "postgres"
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Extras   string // extra DSN parameters
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool    // use clean path middleware to allow multi slash requests
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrEmptyWikiID error if config wiki.id is empty.
	ErrEmptyWikiID = errors.New("toml config wiki.id can not be empty")

	// ErrEmptyLDAPHost error if LDAP is enabled without a host.
	ErrEmptyLDAPHost = errors.New("toml config pam.ldap.host can not be empty when ldap is enabled")
)

package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/usersync"
)

// ErrLDAPDisabled is returned when the LDAP authority is disabled via configuration.
var ErrLDAPDisabled = errors.New("ldap authority is disabled")

// LDAPConfig holds LDAP/Active Directory configuration for the directory
// authority.
type LDAPConfig struct {
	// Enabled indicates if the LDAP authority is enabled.
	Enabled bool
	// Host is the LDAP server hostname or IP address.
	Host string
	// Port is the LDAP server port (typically 389 for LDAP, 636 for LDAPS).
	Port int
	// UseSSL enables LDAPS (LDAP over SSL/TLS) on port 636.
	UseSSL bool
	// UseTLS enables StartTLS to upgrade an LDAP connection to TLS.
	UseTLS bool
	// SkipVerify skips TLS certificate verification (insecure, for testing only).
	SkipVerify bool
	// BindDN is the distinguished name to bind with for performing searches.
	BindDN string
	// BindPassword is the password for the bind DN.
	BindPassword string
	// BaseDN is the base distinguished name for user searches.
	BaseDN string
	// UserFilter is the LDAP filter for finding users (e.g., "(uid={username})").
	// The {username} placeholder is replaced with the actual username.
	UserFilter string
	// UsernameAttr is the LDAP attribute containing the username (e.g., "uid", "sAMAccountName").
	UsernameAttr string
	// UIDAttr is the LDAP attribute carrying the immutable numeric
	// identifier stamped on profiles (e.g., "uidNumber").
	UIDAttr string
	// Timeout is the connection timeout used when the caller's context
	// carries no deadline.
	Timeout time.Duration
	// SearchAttributes are additional LDAP attributes to retrieve and
	// report as identity attributes.
	SearchAttributes []string
}

// LDAPVerifier implements the Verifier contract against an LDAP directory.
type LDAPVerifier struct {
	config *LDAPConfig
}

// NewLDAPVerifier creates a new LDAP verifier.
func NewLDAPVerifier(config *LDAPConfig) (*LDAPVerifier, error) {
	if !config.Enabled {
		return nil, ErrLDAPDisabled
	}

	// Set defaults
	if config.UsernameAttr == "" {
		config.UsernameAttr = "uid"
	}

	if config.UIDAttr == "" {
		config.UIDAttr = "uidNumber"
	}

	if config.UserFilter == "" {
		config.UserFilter = "(uid={username})"
	}

	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &LDAPVerifier{config: config}, nil
}

// Connect establishes a connection to the LDAP server. The context deadline
// bounds all operations on the returned connection.
func (v *LDAPVerifier) Connect(ctx context.Context) (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(v.config.Host, strconv.Itoa(v.config.Port))

	var ldapURL string
	if v.config.UseSSL {
		ldapURL = "ldaps://" + hostPort
	} else {
		ldapURL = "ldap://" + hostPort
	}

	var tlsConfig *tls.Config
	if v.config.UseSSL || v.config.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: v.config.SkipVerify, //nolint:gosec // skipping verifying tls is ok
			ServerName:         v.config.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	// Upgrade to TLS if requested (for non-SSL connections)
	if !v.config.UseSSL && v.config.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	timeout := v.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if timeout > 0 {
		conn.SetTimeout(timeout)
	}

	return conn, nil
}

// Verify authenticates the user against the directory and returns the
// identity built from the matched entry. A failed bind with the user's
// credentials is reported as ErrDenied.
func (v *LDAPVerifier) Verify(ctx context.Context, username, password string) (*usersync.Identity, error) {
	conn, err := v.Connect(ctx)
	if err != nil {
		return nil, err
	}

	defer closeConn(conn)

	if err := v.bindService(conn); err != nil {
		return nil, err
	}

	entry, err := v.searchUserEntry(conn, username)
	if err != nil {
		return nil, err
	}

	if err := conn.Bind(entry.DN, password); err != nil {
		log.Debug().Str("username", username).Msg("LDAP bind rejected the credentials")

		return nil, ErrDenied
	}

	return v.identityFromEntry(username, entry), nil
}

// Lookup fetches the identity without a credential check, for trusted
// authentication.
func (v *LDAPVerifier) Lookup(ctx context.Context, username string) (*usersync.Identity, error) {
	conn, err := v.Connect(ctx)
	if err != nil {
		return nil, err
	}

	defer closeConn(conn)

	if err := v.bindService(conn); err != nil {
		return nil, err
	}

	entry, err := v.searchUserEntry(conn, username)
	if err != nil {
		return nil, err
	}

	return v.identityFromEntry(username, entry), nil
}

// bindService binds with the configured service account (if provided) to
// perform user searches.
func (v *LDAPVerifier) bindService(conn *ldap.Conn) error {
	if v.config.BindDN == "" {
		return nil
	}

	if err := conn.Bind(v.config.BindDN, v.config.BindPassword); err != nil {
		return fmt.Errorf("failed to bind with service account: %w", err)
	}

	return nil
}

// searchUserEntry searches LDAP for the given username and returns a single entry.
func (v *LDAPVerifier) searchUserEntry(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	userFilter := strings.ReplaceAll(v.config.UserFilter, "{username}", ldap.EscapeFilter(username))

	attributes := append([]string{
		v.config.UsernameAttr,
		v.config.UIDAttr,
		"dn",
	}, v.config.SearchAttributes...)

	searchRequest := ldap.NewSearchRequest(
		v.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // Size limit
		int(v.config.Timeout/time.Second),
		false,
		userFilter,
		attributes,
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch len(searchResult.Entries) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return searchResult.Entries[0], nil
	default:
		return nil, ErrMultipleUsersFound
	}
}

// identityFromEntry normalizes an LDAP entry into an identity. The login
// name falls back to the requested username when the directory entry does
// not carry one.
func (v *LDAPVerifier) identityFromEntry(username string, entry *ldap.Entry) *usersync.Identity {
	name := entry.GetAttributeValue(v.config.UsernameAttr)
	if name == "" {
		name = username
	}

	attributes := make(map[string]string, len(v.config.SearchAttributes))
	for _, attr := range v.config.SearchAttributes {
		if value := entry.GetAttributeValue(attr); value != "" {
			attributes[attr] = value
		}
	}

	return &usersync.Identity{
		UID:        entry.GetAttributeValue(v.config.UIDAttr),
		Username:   name,
		Attributes: attributes,
	}
}

func closeConn(conn *ldap.Conn) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close LDAP connection")
	}
}

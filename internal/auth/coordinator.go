package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
	"github.com/plandes/pamauth/internal/usersync"
)

// SuperAdmin is the configured superadministrator account. It bypasses the
// external authority entirely.
type SuperAdmin struct {
	Username     string
	PasswordHash string
}

// Options wires the coordinator's collaborators.
type Options struct {
	Verifier   Verifier
	Reconciler *usersync.Reconciler
	// Local is the legacy credential fallback; may be nil when the
	// deployment has no local passwords.
	Local *LocalProvider
	// WikiSource builds the wiki-scoped preference source for a wiki.
	WikiSource func(wiki string) prefs.Source
	// FileSource is the file-scoped preference source.
	FileSource prefs.Source
	// MainWiki is the designated main tenant scope retried after a
	// failed explicit login in another wiki.
	MainWiki   string
	SuperAdmin SuperAdmin
}

// Coordinator drives one authentication attempt end to end: session cache
// short-circuit, per-identity single-flight, input validation, authority
// verification, profile reconciliation and principal construction.
type Coordinator struct {
	opts  Options
	locks *lockRegistry
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		opts:  opts,
		locks: newLockRegistry(),
	}
}

// checkSession returns the cached principal when the session's stored raw
// token equals the presented one.
func checkSession(sess SessionCache, remoteUser string) *Record {
	record := sess.Record()

	if record != nil && record.RemoteUser == remoteUser {
		return record
	}

	return nil
}

// CheckAuthSSO authenticates a trusted remote user asserted by an upstream
// system. An empty remote user means "not logged in" and is passed through
// silently. Concurrent calls for the same token collapse into a single
// authority call; the established principal is cached in the session
// together with the token it was derived from.
func (c *Coordinator) CheckAuthSSO(ctx context.Context, sess SessionCache, wiki, remoteUser string) Result {
	if remoteUser == "" {
		return Denied("")
	}

	log.Debug().Str("remoteUser", remoteUser).Msg("REMOTE_USER asserted")

	if record := checkSession(sess, remoteUser); record != nil {
		return Authenticated(record.Principal.Compact(wiki))
	}

	release := c.locks.acquire(remoteUser)
	defer release()

	// Another request may have finished authenticating this token while
	// we waited for the lock.
	if record := checkSession(sess, remoteUser); record != nil {
		return Authenticated(record.Principal.Compact(wiki))
	}

	result := c.pamAuthenticate(ctx, wiki, remoteUser, "", true, false)
	if result.OK() {
		// The session keeps the global form; the caller gets the
		// wiki-local one, like on a cache hit.
		sess.SetRecord(&Record{Principal: result.Principal, RemoteUser: remoteUser})

		return Authenticated(result.Principal.Compact(wiki))
	}

	return result
}

// Authenticate performs an explicit username/password login: validation,
// superadmin short-circuit, authority check with main-wiki retry and the
// optional legacy local fallback. Ordinary failures come back as a denial,
// never as an error. Unlike CheckAuthSSO it takes no per-token lock, so
// concurrent explicit logins for the same user may race the reconciler; the
// profile store's per-wiki unique name constraint bounds the outcome.
func (c *Coordinator) Authenticate(ctx context.Context, wiki, userID, password string) Result {
	log.Trace().Msg("starting PAM authentication")

	if userID == "" {
		log.Debug().Msg("PAM authentication failed: login empty")

		return Denied(ReasonNoUsername)
	}

	if strings.TrimSpace(password) == "" {
		log.Debug().Msg("PAM authentication failed: password null or empty")

		return Denied(ReasonNoPassword)
	}

	if c.isSuperAdmin(userID) {
		return c.authenticateSuperAdmin(password)
	}

	result := c.pamAuthenticate(ctx, wiki, userID, password, false, true)

	if !result.OK() {
		result = c.localAuthenticate(wiki, userID, password, result)
	}

	if result.OK() {
		log.Debug().Str("principal", result.Principal.Name).Msg("PAM authentication succeeded")
	} else {
		log.Debug().Str("userID", userID).Msg("PAM authentication failed")
	}

	return result
}

// pamAuthenticate tries the caller's wiki first and retries once against
// the main wiki on any failure, per-attempt failures logged at debug level.
func (c *Coordinator) pamAuthenticate(ctx context.Context, wiki, userID, password string,
	trusted, compact bool,
) Result {
	result := c.authenticateInWiki(ctx, wiki, userID, password, trusted, compact)
	if result.OK() {
		return result
	}

	logAttempt(result, "local wiki PAM authentication failed")

	if wiki == c.opts.MainWiki || c.opts.MainWiki == "" {
		return result
	}

	result = c.authenticateInWiki(ctx, c.opts.MainWiki, userID, password, trusted, false)
	if !result.OK() {
		logAttempt(result, "main wiki PAM authentication failed")
	}

	return result
}

// authenticateInWiki runs the full per-wiki attempt: preference snapshot
// with token-derived overlay, enabled gate, authority call, reconciliation
// and principal construction.
func (c *Coordinator) authenticateInWiki(ctx context.Context, wiki, userID, password string,
	trusted, compact bool,
) Result {
	userName := strings.TrimSpace(userID)

	cfg := prefs.New(c.opts.WikiSource(wiki), c.opts.FileSource)
	cfg.ParseRemoteUser(userName)

	if !cfg.Enabled() {
		log.Debug().Str("wiki", wiki).Msg("PAM authentication failed: PAM not active")

		return Denied(ReasonPAMDisabled)
	}

	login := cfg.Param(prefs.UIDKey, userName)

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	var (
		identity *usersync.Identity
		err      error
	)

	if trusted {
		// The credential is asserted by the upstream system and never
		// re-verified.
		identity, err = c.opts.Verifier.Lookup(vctx, login)
	} else {
		identity, err = c.opts.Verifier.Verify(vctx, login, password)
	}

	if err != nil {
		if errors.Is(err, ErrDenied) || errors.Is(err, ErrUserNotFound) {
			log.Debug().Err(err).Str("login", login).Msg("authority rejected the user")

			return Denied(ReasonWrongPassword)
		}

		return Failed(err)
	}

	if identity.Username == "" {
		identity.Username = login
	}

	if identity.UID == "" {
		identity.UID = identity.Username
	}

	profile, err := c.opts.Reconciler.Locate(wiki, "", identity.Username)
	if err != nil {
		return Failed(err)
	}

	profile, err = c.opts.Reconciler.Sync(cfg, wiki, profile, identity, !trusted)
	if err != nil {
		return Failed(err)
	}

	name := profile.Name
	if !compact {
		name = wiki + ":" + name
	}

	return Authenticated(Principal{Name: name})
}

// localAuthenticate is the legacy last-resort credential check, attempted
// only when the pam_trylocal preference enables it.
func (c *Coordinator) localAuthenticate(wiki, userID, password string, prior Result) Result {
	if c.opts.Local == nil {
		return prior
	}

	cfg := prefs.New(c.opts.WikiSource(wiki), c.opts.FileSource)
	if !cfg.TryLocal() {
		return prior
	}

	log.Debug().Msg("trying authentication against the local profile store")

	profile, err := c.opts.Local.Authenticate(wiki, strings.TrimSpace(userID), password)
	if err != nil {
		log.Debug().Err(err).Msg("local fallback authentication failed")

		return prior
	}

	return Authenticated(Principal{Name: profile.Name})
}

func (c *Coordinator) isSuperAdmin(userID string) bool {
	return c.opts.SuperAdmin.Username != "" &&
		strings.EqualFold(strings.TrimSpace(userID), c.opts.SuperAdmin.Username)
}

// authenticateSuperAdmin checks the dedicated superadministrator
// credentials, bypassing the authority entirely.
func (c *Coordinator) authenticateSuperAdmin(password string) Result {
	admin := models.Profile{Password: c.opts.SuperAdmin.PasswordHash}

	if !admin.VerifyPassword(password) {
		log.Debug().Msg("superadmin authentication failed")

		return Denied(ReasonWrongPassword)
	}

	return Authenticated(Principal{Name: c.opts.SuperAdmin.Username})
}

func logAttempt(result Result, msg string) {
	event := log.Debug()
	if result.Err != nil {
		event = event.Err(result.Err)
	} else {
		event = event.Str("reason", result.Reason)
	}

	event.Msg(msg)
}

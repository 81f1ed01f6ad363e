package prefs

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// UIDKey is the overlay preference carrying the effective login name
	// derived from the raw remote user.
	UIDKey = "pam_uid"

	remoteUserParserKey  = "pam_remoteUserParser"
	remoteUserMappingKey = "pam_remoteUserMapping."
)

// Enabled reports whether PAM authentication is turned on at all.
func (p *Prefs) Enabled() bool {
	return p.ParamWithFileKey("pam", "pam", "0") == "1"
}

// Timeout returns the maximum time the external authority call may take.
// The value is configured in milliseconds (pam_timeout, default 1000);
// enforcing it is the verifier's responsibility.
func (p *Prefs) Timeout() time.Duration {
	return time.Duration(p.IntParam("pam_timeout", 1000)) * time.Millisecond
}

// TryLocal reports whether the legacy local-credential fallback is enabled.
func (p *Prefs) TryLocal() bool {
	return p.BoolParam("pam_trylocal")
}

// UpdateUser reports whether existing profiles are re-synchronized on every
// successful authentication.
func (p *Prefs) UpdateUser() bool {
	return p.BoolParam("pam_update_user")
}

// UserMappings returns the local-field=external-attribute mapping applied
// when creating or updating a profile.
func (p *Prefs) UserMappings() []MapEntry {
	return p.MapParam("pam_userMapping", DefaultSeparator, nil, false)
}

// RemoteUserPattern compiles the configured remote-user parser expression.
// Returns nil when none is configured; a broken expression is logged as a
// configuration problem and treated as absent.
func (p *Prefs) RemoteUserPattern() *regexp.Regexp {
	param := p.Param(remoteUserParserKey, "")
	if param == "" {
		return nil
	}

	pattern, err := regexp.Compile(param)
	if err != nil {
		log.Warn().Err(err).Str("pattern", param).
			Msg("invalid pam_remoteUserParser expression, ignoring")
		return nil
	}

	return pattern
}

// RemoteUserGroupKeys returns the preference names a capture group of the
// remote-user expression fans out to (pam_remoteUserMapping.<group>).
func (p *Prefs) RemoteUserGroupKeys(group int) []string {
	return p.ListParam(remoteUserMappingKey+strconv.Itoa(group), DefaultSeparator, nil)
}

// RemoteUserTranslation returns the value translation table for a
// destination preference (pam_remoteUserMapping.<name>), keyed by the
// lower-cased raw group value.
func (p *Prefs) RemoteUserTranslation(name string) []MapEntry {
	return p.MapParam(remoteUserMappingKey+name, MapSeparator, nil, true)
}

// ParseRemoteUser decomposes the raw identity token into the derived
// overlay. Without a configured expression the overlay carries only the
// trimmed token as the uid. With one, a match with no capture groups
// replaces the uid wholesale; capture groups fan out to their configured
// destination preferences after passing through the per-destination value
// translation table. A non-matching token leaves the seeded uid untouched.
func (p *Prefs) ParseRemoteUser(remoteUser string) {
	p.SetOverlay(UIDKey, strings.TrimSpace(remoteUser))

	pattern := p.RemoteUserPattern()
	if pattern == nil {
		return
	}

	match := pattern.FindStringSubmatch(remoteUser)
	if match == nil {
		log.Debug().Str("remoteUser", remoteUser).Str("pattern", pattern.String()).
			Msg("remote user does not match the configured parser")
		return
	}

	if pattern.NumSubexp() == 0 {
		p.SetOverlay(UIDKey, match[0])
		return
	}

	for group := 1; group <= pattern.NumSubexp(); group++ {
		value := match[group]

		for _, key := range p.RemoteUserGroupKeys(group) {
			translated := value

			if conv, ok := Lookup(p.RemoteUserTranslation(key), strings.ToLower(value)); ok {
				translated = conv
			}

			p.SetOverlay(key, translated)
		}
	}
}

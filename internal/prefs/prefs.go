// Package prefs implements layered preference resolution for the PAM
// authenticator. A preference named pam_<x> is looked up, in order, in the
// per-request overlay derived from the raw identity token, the wiki-scoped
// persisted settings, the file-scoped configuration (under the key pam.<x>),
// an injected "final" map and finally the caller's default.
package prefs

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// PrefPrefix is the preference name prefix in wiki-scoped settings.
	PrefPrefix = "pam_"

	// FilePrefix is the preference name prefix in the configuration file.
	FilePrefix = "pam."

	// DefaultSeparator separates elements of list-valued preferences.
	DefaultSeparator = ','

	// MapSeparator separates elements of map-valued preferences.
	MapSeparator = '|'
)

// Source is a read-only string key/value configuration source.
type Source interface {
	// Get returns the value for key and whether it is present.
	Get(key string) (string, bool)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(key string) (string, bool)

// Get implements Source.
func (f SourceFunc) Get(key string) (string, bool) { return f(key) }

// MapSource is a Source backed by a plain map, used for file-scoped
// configuration and in tests.
type MapSource map[string]string

// Get implements Source.
func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Prefs resolves preferences for a single authentication attempt. It is
// constructed fresh per attempt and not safe for concurrent use; the overlay
// and final maps are private to the attempt.
type Prefs struct {
	wiki    Source
	file    Source
	overlay map[string]string
	final   map[string]string
}

// New creates a preference resolver over the given wiki-scoped and
// file-scoped sources. Either source may be nil.
func New(wiki, file Source) *Prefs {
	return &Prefs{
		wiki:    wiki,
		file:    file,
		overlay: make(map[string]string),
		final:   make(map[string]string),
	}
}

// SetOverlay stores a value derived from the raw identity token. Overlay
// values outrank every other source.
func (p *Prefs) SetOverlay(name, value string) {
	p.overlay[name] = value
}

// SetFinal injects a value consulted after the overlay and both persisted
// sources but before the caller's default. Specialized authenticators use
// this to fill gaps left by normal resolution.
func (p *Prefs) SetFinal(name, value string) {
	p.final[name] = value
}

// FileKey returns the file-scoped key for a preference name, replacing the
// leading pam_ prefix with pam. ("pam_timeout" -> "pam.timeout").
func FileKey(name string) string {
	if strings.HasPrefix(name, PrefPrefix) {
		return FilePrefix + name[len(PrefPrefix):]
	}

	return name
}

// resolve walks the layered sources and reports whether any of them carries
// the preference. An empty wiki-scoped value counts as unset and is replaced
// wholesale by the file-scope lookup; when that scope carries no entry either,
// the preference stays unset so the caller's default applies.
func (p *Prefs) resolve(name, fileKey string) (string, bool) {
	if v, ok := p.overlay[name]; ok {
		return v, true
	}

	var (
		param string
		found bool
	)

	if p.wiki != nil {
		param, found = p.wiki.Get(name)
	}

	if !found || param == "" {
		param, found = "", false

		if p.file != nil {
			param, found = p.file.Get(fileKey)
		}
	}

	if !found || param == "" {
		if v, ok := p.final[name]; ok {
			return v, true
		}
	}

	return param, found
}

// Param resolves a preference with the default file-scoped key transform.
func (p *Prefs) Param(name, def string) string {
	return p.ParamWithFileKey(name, FileKey(name), def)
}

// ParamWithFileKey resolves a preference, trying the token-derived overlay,
// the wiki-scoped setting named name, the file-scoped setting named fileKey,
// the injected final values and finally def.
func (p *Prefs) ParamWithFileKey(name, fileKey, def string) string {
	if v, found := p.resolve(name, fileKey); found {
		return v
	}

	return def
}

// IntParam resolves a preference as an integer, returning def when the
// value does not parse.
func (p *Prefs) IntParam(name string, def int64) int64 {
	str := p.Param(name, strconv.FormatInt(def, 10))

	value, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return def
	}

	return value
}

// BoolParam resolves a flag preference. Only the literal "1" enables a flag;
// any other value, including absence, disables it.
func (p *Prefs) BoolParam(name string) bool {
	return p.Param(name, "0") == "1"
}

// ListParam resolves a preference as a separator-delimited list. An overlay
// or file-scoped setting that is explicitly empty resolves to an empty list,
// not def; an empty wiki-scoped setting counts as unset.
func (p *Prefs) ListParam(name string, separator byte, def []string) []string {
	str, found := p.resolve(name, FileKey(name))
	if !found {
		return def
	}

	if str == "" {
		return []string{}
	}

	return SplitParam(str, separator)
}

// MapEntry is a single ordered key/value pair of a map-valued preference.
type MapEntry struct {
	Key   string
	Value string
}

// Lookup returns the first entry with the given key.
func Lookup(entries []MapEntry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}

	return "", false
}

// MapParam resolves a preference as an ordered key=value map. Each list
// element is split on its first '='; elements without one are logged and
// dropped. When forceLowerCaseKey is set, keys are stored lower-cased.
func (p *Prefs) MapParam(name string, separator byte, def []MapEntry, forceLowerCaseKey bool) []MapEntry {
	list := p.ListParam(name, separator, nil)
	if list == nil {
		return def
	}

	entries := make([]MapEntry, 0, len(list))

	for _, field := range list {
		index := strings.IndexByte(field, '=')
		if index == -1 {
			log.Warn().Str("preference", name).Str("entry", field).
				Msg("malformed map entry in PAM configuration, skipping")
			continue
		}

		key := field[:index]
		if forceLowerCaseKey {
			key = strings.ToLower(key)
		}

		entries = append(entries, MapEntry{Key: key, Value: field[index+1:]})
	}

	return entries
}

// SplitParam splits text on the delimiter honoring backslash escapes: a
// backslash makes the following character literal, so an escaped delimiter
// joins two tokens. Empty tokens are skipped and a trailing backslash is
// dropped.
func SplitParam(text string, delimiter byte) []string {
	var (
		tokens  []string
		sb      strings.Builder
		escaped bool
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]

		switch {
		case escaped:
			sb.WriteByte(ch)

			escaped = false
		case ch == delimiter:
			if sb.Len() > 0 {
				tokens = append(tokens, sb.String())
				sb.Reset()
			}
		case ch == '\\':
			escaped = true
		default:
			sb.WriteByte(ch)
		}
	}

	if sb.Len() > 0 {
		tokens = append(tokens, sb.String())
	}

	return tokens
}

// JoinParam is the inverse of SplitParam: it escapes backslashes and the
// delimiter in each token and joins them.
func JoinParam(tokens []string, delimiter byte) string {
	var sb strings.Builder

	for i, token := range tokens {
		if i > 0 {
			sb.WriteByte(delimiter)
		}

		for j := 0; j < len(token); j++ {
			if token[j] == '\\' || token[j] == delimiter {
				sb.WriteByte('\\')
			}

			sb.WriteByte(token[j])
		}
	}

	return sb.String()
}

package prefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	assert.False(t, New(nil, nil).Enabled())
	assert.True(t, New(MapSource{"pam": "1"}, nil).Enabled())
	assert.True(t, New(nil, MapSource{"pam": "1"}).Enabled())
	assert.False(t, New(MapSource{"pam": "0"}, MapSource{"pam": "1"}).Enabled())
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, time.Second, New(nil, nil).Timeout())
	assert.Equal(t, 2500*time.Millisecond,
		New(MapSource{"pam_timeout": "2500"}, nil).Timeout())
}

func TestParseRemoteUser_NoParser(t *testing.T) {
	p := New(nil, nil)
	p.ParseRemoteUser("  jdoe  ")

	assert.Equal(t, "jdoe", p.Param(UIDKey, ""))
}

func TestParseRemoteUser_NoGroups(t *testing.T) {
	p := New(MapSource{"pam_remoteUserParser": "[a-z]+"}, nil)
	p.ParseRemoteUser("jdoe42")

	// whole match replaces the uid
	assert.Equal(t, "jdoe", p.Param(UIDKey, ""))
}

func TestParseRemoteUser_Groups(t *testing.T) {
	wiki := MapSource{
		"pam_remoteUserParser":           `(.+)@(.+)`,
		"pam_remoteUserMapping.1":        "pam_uid",
		"pam_remoteUserMapping.2":        "pam_server,pam_wiki",
		"pam_remoteUserMapping.pam_wiki": "dev.example.org=devwiki|prod.example.org=mainwiki",
	}

	p := New(wiki, nil)
	p.ParseRemoteUser("jdoe@DEV.example.org")

	assert.Equal(t, "jdoe", p.Param(UIDKey, ""))
	// untranslated destination carries the raw group value
	assert.Equal(t, "DEV.example.org", p.Param("pam_server", ""))
	// translation table is keyed by the lower-cased group value
	assert.Equal(t, "devwiki", p.Param("pam_wiki", ""))
}

func TestParseRemoteUser_NoMatchKeepsSeededUID(t *testing.T) {
	p := New(MapSource{
		"pam_remoteUserParser":    `(.+)@(.+)`,
		"pam_remoteUserMapping.1": "pam_uid",
	}, nil)

	p.ParseRemoteUser("jdoe")

	assert.Equal(t, "jdoe", p.Param(UIDKey, ""))
	assert.Equal(t, "", p.Param("pam_server", ""))
}

func TestParseRemoteUser_BrokenParserIgnored(t *testing.T) {
	p := New(MapSource{"pam_remoteUserParser": "("}, nil)
	p.ParseRemoteUser("jdoe")

	assert.Nil(t, p.RemoteUserPattern())
	assert.Equal(t, "jdoe", p.Param(UIDKey, ""))
}

func TestUserMappings(t *testing.T) {
	p := New(MapSource{
		"pam_userMapping": "first_name=givenName,last_name=sn",
	}, nil)

	assert.Equal(t, []MapEntry{
		{Key: "first_name", Value: "givenName"},
		{Key: "last_name", Value: "sn"},
	}, p.UserMappings())
}

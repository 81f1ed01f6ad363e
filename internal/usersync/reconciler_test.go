package usersync

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
)

// fakeStore is an in-memory Store keyed by wiki:name.
type fakeStore struct {
	profiles  map[string]*models.Profile
	nextID    uint64
	saves     int
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]*models.Profile)}
}

func (s *fakeStore) key(wiki, name string) string { return wiki + ":" + name }

func (s *fakeStore) Get(wiki, name string) (*models.Profile, error) {
	if p, ok := s.profiles[s.key(wiki, name)]; ok {
		return p, nil
	}

	return &models.Profile{Wiki: wiki, Name: name}, nil
}

func (s *fakeStore) SearchByUsername(wiki, username string) ([]*models.Profile, error) {
	var matches []*models.Profile

	for _, p := range s.profiles {
		if p.Wiki == wiki && strings.EqualFold(p.Username, username) {
			matches = append(matches, p)
		}
	}

	return matches, nil
}

func (s *fakeStore) Create(wiki, name string, attributes models.AttributeMap) (*models.Profile, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}

	s.nextID++
	p := &models.Profile{
		ID:         s.nextID,
		Wiki:       wiki,
		Name:       name,
		Active:     true,
		Attributes: attributes,
	}
	s.profiles[s.key(wiki, name)] = p

	return p, nil
}

func (s *fakeStore) Save(profile *models.Profile, _ string) error {
	s.saves++
	s.profiles[s.key(profile.Wiki, profile.Name)] = profile

	return nil
}

func (s *fakeStore) put(p *models.Profile) {
	s.nextID++
	p.ID = s.nextID
	s.profiles[s.key(p.Wiki, p.Name)] = p
}

func syncPrefs(values map[string]string) *prefs.Prefs {
	return prefs.New(prefs.MapSource(values), nil)
}

func TestLocate_FastPath(t *testing.T) {
	store := newFakeStore()
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe", Username: "JDoe"})

	r := New(store)

	// candidate matches case-insensitively
	profile, err := r.Locate("xwiki", "jdoe", "jdoe")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "jdoe", profile.Name)
}

func TestLocate_CandidateUsernameMismatchFallsBackToSearch(t *testing.T) {
	store := newFakeStore()
	// candidate name is taken by somebody else
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe", Username: "other"})
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe_1", Username: "jdoe"})

	r := New(store)

	profile, err := r.Locate("xwiki", "jdoe", "jdoe")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "jdoe_1", profile.Name)
}

func TestLocate_NoMatch(t *testing.T) {
	r := New(newFakeStore())

	profile, err := r.Locate("xwiki", "", "jdoe")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestLocate_MultipleMatchesUsesFirst(t *testing.T) {
	store := newFakeStore()
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe", Username: "jdoe"})
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe_1", Username: "jdoe"})

	r := New(store)

	profile, err := r.Locate("xwiki", "", "jdoe")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "jdoe", profile.Username)
}

func TestAvailableProfile_Collision(t *testing.T) {
	store := newFakeStore()
	store.put(&models.Profile{Wiki: "xwiki", Name: "alice", Username: "somebody"})
	store.put(&models.Profile{Wiki: "xwiki", Name: "alice_1", Username: "somebody else"})

	r := New(store)

	profile, err := r.AvailableProfile("xwiki", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_2", profile.Name)
	assert.True(t, profile.IsNew())
}

func TestSync_CreatesNewProfile(t *testing.T) {
	store := newFakeStore()
	r := New(store)

	cfg := syncPrefs(map[string]string{
		"pam_userMapping": "first_name=givenName,last_name=sn",
	})
	identity := &Identity{
		UID:      "1001",
		Username: "jdoe",
		Attributes: map[string]string{
			"givenName": "John",
			"sn":        "Doe",
		},
	}

	profile, err := r.Sync(cfg, "xwiki", nil, identity, true)
	require.NoError(t, err)
	require.NotNil(t, profile)

	assert.Equal(t, "jdoe", profile.Name)
	assert.Equal(t, "jdoe", profile.Username)
	assert.Equal(t, "1001", profile.UID)
	assert.True(t, profile.Active)
	assert.Equal(t, "John", profile.Attributes["first_name"])
	assert.Equal(t, "Doe", profile.Attributes["last_name"])
}

func TestSync_AllocatesSuffixOnCollision(t *testing.T) {
	store := newFakeStore()
	store.put(&models.Profile{Wiki: "xwiki", Name: "jdoe", Username: "unrelated"})

	r := New(store)

	profile, err := r.Sync(syncPrefs(nil), "xwiki", nil,
		&Identity{UID: "1001", Username: "jdoe"}, true)
	require.NoError(t, err)
	assert.Equal(t, "jdoe_1", profile.Name)
	assert.Equal(t, "jdoe", profile.Username)
}

func TestSync_CreateFailureSurfaced(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("insert failed")

	r := New(store)

	_, err := r.Sync(syncPrefs(nil), "xwiki", nil,
		&Identity{UID: "1001", Username: "jdoe"}, true)
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert failed")
}

func TestSync_SkipsExistingWithoutUpdateFlag(t *testing.T) {
	store := newFakeStore()
	existing := &models.Profile{Wiki: "xwiki", Name: "jdoe", Username: "jdoe", UID: "1001"}
	store.put(existing)

	r := New(store)

	// not reverified, pam_update_user unset: no store interaction
	profile, err := r.Sync(syncPrefs(nil), "xwiki", existing,
		&Identity{UID: "1001", Username: "jdoe"}, false)
	require.NoError(t, err)
	assert.Same(t, existing, profile)
	assert.Zero(t, store.saves)
}

func TestSync_UpdatesChangedAttributes(t *testing.T) {
	store := newFakeStore()
	existing := &models.Profile{
		Wiki: "xwiki", Name: "jdoe", Username: "jdoe", UID: "1001",
		Attributes: models.AttributeMap{"first_name": "Jon"},
	}
	store.put(existing)

	r := New(store)

	cfg := syncPrefs(map[string]string{"pam_userMapping": "first_name=givenName"})

	profile, err := r.Sync(cfg, "xwiki", existing,
		&Identity{UID: "1001", Username: "jdoe", Attributes: map[string]string{"givenName": "John"}},
		true)
	require.NoError(t, err)
	assert.Equal(t, "John", profile.Attributes["first_name"])
	assert.Equal(t, 1, store.saves)
}

func TestSync_NoSaveWhenNothingChanged(t *testing.T) {
	store := newFakeStore()
	existing := &models.Profile{
		Wiki: "xwiki", Name: "jdoe", Username: "jdoe", UID: "1001",
		Attributes: models.AttributeMap{"first_name": "John"},
	}
	store.put(existing)

	r := New(store)

	cfg := syncPrefs(map[string]string{"pam_userMapping": "first_name=givenName"})

	_, err := r.Sync(cfg, "xwiki", existing,
		&Identity{UID: "1001", Username: "jdoe", Attributes: map[string]string{"givenName": "John"}},
		true)
	require.NoError(t, err)
	assert.Zero(t, store.saves, "identical attributes must not trigger a save")
}

func TestStampExternal_CaseInsensitive(t *testing.T) {
	profile := &models.Profile{Username: "JDoe", UID: "1001"}

	assert.False(t, stampExternal(profile, "jdoe", "1001"))
	assert.Equal(t, "JDoe", profile.Username, "case-only difference leaves the stored value")

	assert.True(t, stampExternal(profile, "jdoe2", "1001"))
	assert.Equal(t, "jdoe2", profile.Username)
}

func TestSyncError(t *testing.T) {
	cause := errors.New("boom")
	err := &SyncError{Message: "sync failed", Cause: cause}

	assert.ErrorContains(t, err, "sync failed")
	assert.ErrorIs(t, err, cause)
}

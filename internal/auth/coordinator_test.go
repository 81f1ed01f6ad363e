package auth

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plandes/pamauth/internal/db/models"
	"github.com/plandes/pamauth/internal/prefs"
	"github.com/plandes/pamauth/internal/usersync"
)

// fakeVerifier counts authority calls and answers from a fixed user table.
type fakeVerifier struct {
	mu      sync.Mutex
	users   map[string]string // username -> password
	lookups int
	verifys int
	err     error
}

func (v *fakeVerifier) Verify(_ context.Context, username, password string) (*usersync.Identity, error) {
	v.mu.Lock()
	v.verifys++
	v.mu.Unlock()

	if v.err != nil {
		return nil, v.err
	}

	stored, ok := v.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}

	if stored != password {
		return nil, ErrDenied
	}

	return &usersync.Identity{UID: "1001", Username: username}, nil
}

func (v *fakeVerifier) Lookup(_ context.Context, username string) (*usersync.Identity, error) {
	v.mu.Lock()
	v.lookups++
	v.mu.Unlock()

	if v.err != nil {
		return nil, v.err
	}

	if _, ok := v.users[username]; !ok {
		return nil, ErrUserNotFound
	}

	return &usersync.Identity{UID: "1001", Username: username}, nil
}

func (v *fakeVerifier) lookupCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.lookups
}

// fakeProfileStore is a minimal in-memory usersync.Store.
type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	nextID   uint64
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[string]*models.Profile)}
}

func (s *fakeProfileStore) key(wiki, name string) string { return wiki + ":" + name }

func (s *fakeProfileStore) Get(wiki, name string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[s.key(wiki, name)]; ok {
		return p, nil
	}

	return &models.Profile{Wiki: wiki, Name: name}, nil
}

func (s *fakeProfileStore) SearchByUsername(wiki, username string) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*models.Profile

	for _, p := range s.profiles {
		if p.Wiki == wiki && strings.EqualFold(p.Username, username) {
			matches = append(matches, p)
		}
	}

	return matches, nil
}

func (s *fakeProfileStore) Create(wiki, name string, attributes models.AttributeMap) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

func (s *fakeProfileStore) Save(profile *models.Profile, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[s.key(profile.Wiki, profile.Name)] = profile

	return nil
}

func (s *fakeProfileStore) put(p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	s.profiles[s.key(p.Wiki, p.Name)] = p
}

// fakeSession is a single-session in-memory cache.
type fakeSession struct {
	mu     sync.Mutex
	record *Record
}

func (s *fakeSession) Record() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record
}

func (s *fakeSession) SetRecord(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = record
}

type fixture struct {
	coord    *Coordinator
	verifier *fakeVerifier
	store    *fakeProfileStore
	settings map[string]map[string]string // wiki -> settings
}

func newFixture(mainWiki string) *fixture {
	f := &fixture{
		verifier: &fakeVerifier{users: map[string]string{"jdoe": "secret"}},
		store:    newFakeProfileStore(),
		settings: map[string]map[string]string{},
	}

	f.coord = NewCoordinator(Options{
		Verifier:   f.verifier,
		Reconciler: usersync.New(f.store),
		Local:      NewLocalProvider(f.store),
		WikiSource: func(wiki string) prefs.Source {
			return prefs.SourceFunc(func(key string) (string, bool) {
				v, ok := f.settings[wiki][key]
				return v, ok
			})
		},
		FileSource: prefs.MapSource{"pam": "1"},
		MainWiki:   mainWiki,
	})

	return f
}

func TestAuthenticate_EmptyInputs(t *testing.T) {
	f := newFixture("main")

	result := f.coord.Authenticate(context.Background(), "wiki", "", "secret")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Equal(t, ReasonNoUsername, result.Reason)

	result = f.coord.Authenticate(context.Background(), "wiki", "jdoe", "   ")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Equal(t, ReasonNoPassword, result.Reason)

	assert.Zero(t, f.verifier.verifys, "invalid input must not reach the authority")
}

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture("main")

	result := f.coord.Authenticate(context.Background(), "wiki", "jdoe", "secret")
	require.True(t, result.OK(), "reason=%s err=%v", result.Reason, result.Err)

	// own-wiki login yields the local form
	assert.Equal(t, "jdoe", result.Principal.Name)

	// the profile was created and stamped
	profile, err := f.store.Get("wiki", "jdoe")
	require.NoError(t, err)
	assert.False(t, profile.IsNew())
	assert.Equal(t, "jdoe", profile.Username)
	assert.Equal(t, "1001", profile.UID)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	f := newFixture("")

	result := f.coord.Authenticate(context.Background(), "wiki", "jdoe", "nope")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Equal(t, ReasonWrongPassword, result.Reason)
}

func TestAuthenticate_DisabledWiki(t *testing.T) {
	f := newFixture("")
	f.coord.opts.FileSource = prefs.MapSource{}

	result := f.coord.Authenticate(context.Background(), "wiki", "jdoe", "secret")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Equal(t, ReasonPAMDisabled, result.Reason)
	assert.Zero(t, f.verifier.verifys)
}

func TestAuthenticate_MainWikiFallback(t *testing.T) {
	f := newFixture("main")

	// local wiki disabled, main wiki enabled
	f.coord.opts.FileSource = prefs.MapSource{}
	f.settings["main"] = map[string]string{"pam": "1"}

	result := f.coord.Authenticate(context.Background(), "wiki", "jdoe", "secret")
	require.True(t, result.OK())

	// the main-wiki principal keeps its global form
	assert.Equal(t, "main:jdoe", result.Principal.Name)
}

func TestAuthenticate_SuperAdmin(t *testing.T) {
	f := newFixture("")
	f.coord.opts.SuperAdmin = SuperAdmin{
		Username:     "superadmin",
		PasswordHash: models.HashPassword("root"),
	}

	result := f.coord.Authenticate(context.Background(), "wiki", "SuperAdmin", "root")
	require.True(t, result.OK())
	assert.Equal(t, "superadmin", result.Principal.Name)
	assert.Zero(t, f.verifier.verifys, "superadmin bypasses the authority")

	result = f.coord.Authenticate(context.Background(), "wiki", "superadmin", "wrong")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Equal(t, ReasonWrongPassword, result.Reason)
}

func TestAuthenticate_LocalFallback(t *testing.T) {
	f := newFixture("")
	f.settings["wiki"] = map[string]string{"pam_trylocal": "1"}

	f.store.put(&models.Profile{
		Wiki:     "wiki",
		Name:     "legacy",
		Active:   true,
		Password: models.HashPassword("oldpass"),
	})

	// unknown to the authority, known locally
	result := f.coord.Authenticate(context.Background(), "wiki", "legacy", "oldpass")
	require.True(t, result.OK())
	assert.Equal(t, "legacy", result.Principal.Name)

	// fallback disabled: denial stands
	f.settings["wiki"] = map[string]string{}

	result = f.coord.Authenticate(context.Background(), "wiki", "legacy", "oldpass")
	assert.Equal(t, OutcomeDenied, result.Outcome)
}

func TestCheckAuthSSO_EmptyRemoteUser(t *testing.T) {
	f := newFixture("")

	result := f.coord.CheckAuthSSO(context.Background(), &fakeSession{}, "wiki", "")
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Empty(t, result.Reason)
	assert.Zero(t, f.verifier.lookupCount())
}

func TestCheckAuthSSO_TrustedLookupAndCompact(t *testing.T) {
	f := newFixture("")
	sess := &fakeSession{}

	result := f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "jdoe")
	require.True(t, result.OK(), "reason=%s err=%v", result.Reason, result.Err)

	// same-wiki principals come back in compact form
	assert.Equal(t, "jdoe", result.Principal.Name)
	assert.Equal(t, 1, f.verifier.lookupCount())
	assert.Zero(t, f.verifier.verifys, "trusted path never verifies a password")

	require.NotNil(t, sess.Record())
	assert.Equal(t, "jdoe", sess.Record().RemoteUser)
	assert.Equal(t, "wiki:jdoe", sess.Record().Principal.Name,
		"the session keeps the global principal form")
}

func TestCheckAuthSSO_SessionCacheHit(t *testing.T) {
	f := newFixture("")
	sess := &fakeSession{}

	first := f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "jdoe")
	require.True(t, first.OK())

	second := f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "jdoe")
	require.True(t, second.OK())
	assert.Equal(t, first.Principal, second.Principal)
	assert.Equal(t, 1, f.verifier.lookupCount(), "cached session must skip the authority")
}

func TestCheckAuthSSO_TokenChangeForcesReauth(t *testing.T) {
	f := newFixture("")
	f.verifier.users["other"] = "x"

	sess := &fakeSession{}

	require.True(t, f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "jdoe").OK())

	result := f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "other")
	require.True(t, result.OK())
	assert.Equal(t, "other", result.Principal.Name)
	assert.Equal(t, 2, f.verifier.lookupCount())
}

func TestCheckAuthSSO_SingleFlight(t *testing.T) {
	f := newFixture("")
	sess := &fakeSession{}

	const goroutines = 16

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result := f.coord.CheckAuthSSO(context.Background(), sess, "wiki", "jdoe")
			assert.True(t, result.OK())
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, f.verifier.lookupCount(),
		"concurrent checks for one token must collapse into a single authority call")
	assert.Zero(t, f.coord.locks.size(), "lock registry must be reclaimed")
}

func TestCheckAuthSSO_DistinctTokensParallel(t *testing.T) {
	f := newFixture("")
	f.verifier.users["alice"] = "x"
	f.verifier.users["bob"] = "x"

	var wg sync.WaitGroup

	for _, user := range []string{"jdoe", "alice", "bob"} {
		wg.Add(1)

		go func(user string) {
			defer wg.Done()

			result := f.coord.CheckAuthSSO(context.Background(), &fakeSession{}, "wiki", user)
			assert.True(t, result.OK())
		}(user)
	}

	wg.Wait()

	assert.Equal(t, 3, f.verifier.lookupCount())
}

func TestPrincipal_Compact(t *testing.T) {
	assert.Equal(t, "jdoe", Principal{Name: "wiki:jdoe"}.Compact("wiki").Name)
	assert.Equal(t, "main:jdoe", Principal{Name: "main:jdoe"}.Compact("wiki").Name)
	assert.Equal(t, "jdoe", Principal{Name: "jdoe"}.Compact("wiki").Name)
	assert.Equal(t, "wiki:jdoe", Principal{Name: "wiki:jdoe"}.Compact("").Name)
}

func TestAuthenticate_RemoteUserParsing(t *testing.T) {
	f := newFixture("")
	f.settings["wiki"] = map[string]string{
		"pam_remoteUserParser":    `(.+)@(.+)`,
		"pam_remoteUserMapping.1": "pam_uid",
	}

	// the parsed uid, not the raw token, reaches the authority
	result := f.coord.Authenticate(context.Background(), "wiki", "jdoe@example.org", "secret")
	require.True(t, result.OK(), "reason=%s err=%v", result.Reason, result.Err)
	assert.Equal(t, "jdoe", result.Principal.Name)
}

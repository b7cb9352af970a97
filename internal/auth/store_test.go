package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/identity"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	listeners map[int]func(identity.Event)
	next      int
	current   *identity.Session
	signInErr error
	signOuts  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: map[int]func(identity.Event){}}
}

func (p *fakeProvider) emit(kind identity.EventKind, sess *identity.Session) {
	p.mu.Lock()
	p.current = sess
	fns := []func(identity.Event){}
	for i := 0; i < p.next; i++ {
		if fn, ok := p.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(identity.Event{Kind: kind, Session: sess})
	}
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	sess := &identity.Session{User: identity.User{ID: "u-" + email, Email: email}}
	p.emit(identity.EventSignedIn, sess)
	return sess, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	p.signOuts++
	p.mu.Unlock()
	if had {
		p.emit(identity.EventSignedOut, nil)
	}
	return nil
}

func (p *fakeProvider) CurrentSession() *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakeProvider) OnChange(fn func(identity.Event)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// fakeProfiles serves profiles; a user listed in gates blocks until released.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	fail     map[string]error
	gates    map[string]chan struct{}
	calls    int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: map[string]*models.Profile{},
		fail:     map[string]error{},
		gates:    map[string]chan struct{}{},
	}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return nil, err
	}
	p := f.profiles[id]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Rename(ctx context.Context, id, fullName string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[id]
	if p == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "profile not found")
	}
	p.FullName = fullName
	cp := *p
	return &cp, nil
}

func waitSettled(t *testing.T, s *Store) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func session(id string) *identity.Session {
	return &identity.Session{User: identity.User{ID: id, Email: id + "@example.com"}}
}

func TestInitialStateIsLoading(t *testing.T) {
	s := NewStore(newFakeProvider(), newFakeProfiles(), nil)
	defer s.Close()
	snap := s.Snapshot()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.True(t, snap.Loading)
	assert.Nil(t, snap.Profile)
}

func TestInitialSessionWithoutIdentity(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, newFakeProfiles(), nil)
	defer s.Close()

	p.emit(identity.EventInitialSession, nil)
	snap := waitSettled(t, s)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Profile)
}

func TestSignInLoadsProfile(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.profiles["u-ana@example.com"] = &models.Profile{ID: "u-ana@example.com", FullName: "Ana", Role: models.RoleSupervisor}
	s := NewStore(p, profiles, nil)
	defer s.Close()

	require.NoError(t, s.SignIn(context.Background(), "ana@example.com", "pw"))
	snap := waitSettled(t, s)
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Ana", snap.Profile.FullName)
	assert.Equal(t, "u-ana@example.com", snap.UserID())
}

func TestSignInFailureSurfacesProviderMessage(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = apperrors.Authentication("Invalid login credentials", errors.New("400"))
	s := NewStore(p, newFakeProfiles(), nil)
	defer s.Close()

	err := s.SignIn(context.Background(), "ana@example.com", "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestSignInRequiresCredentials(t *testing.T) {
	s := NewStore(newFakeProvider(), newFakeProfiles(), nil)
	defer s.Close()
	err := s.SignIn(context.Background(), " ", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestProfileFetchFailureDegradesToNoProfile(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.fail["u-1"] = errors.New("permission denied for table user_profiles")
	s := NewStore(p, profiles, nil)
	defer s.Close()

	before := testutil.ToFloat64(metrics.ProfileFetchFailures)
	p.emit(identity.EventSignedIn, session("u-1"))
	snap := waitSettled(t, s)

	assert.Equal(t, StateAuthenticated, snap.State)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Profile)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ProfileFetchFailures))
}

func TestStaleProfileFetchIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.profiles["u-a"] = &models.Profile{ID: "u-a", FullName: "A"}
	profiles.profiles["u-b"] = &models.Profile{ID: "u-b", FullName: "B"}
	gate := make(chan struct{})
	profiles.gates["u-a"] = gate
	s := NewStore(p, profiles, nil)
	defer s.Close()

	p.emit(identity.EventSignedIn, session("u-a"))
	p.emit(identity.EventSignedIn, session("u-b"))
	snap := waitSettled(t, s)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "B", snap.Profile.FullName)

	close(gate)
	time.Sleep(50 * time.Millisecond)
	snap = s.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "B", snap.Profile.FullName)
	assert.Equal(t, "u-b", snap.UserID())
}

func TestSignOutClearsProfileSynchronously(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.profiles["u-a@example.com"] = &models.Profile{ID: "u-a@example.com", FullName: "A"}
	s := NewStore(p, profiles, nil)
	defer s.Close()

	require.NoError(t, s.SignIn(context.Background(), "a@example.com", "pw"))
	waitSettled(t, s)

	require.NoError(t, s.SignOut(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Profile)
	assert.Nil(t, snap.Session)

	require.NoError(t, s.SignOut(context.Background()))
	assert.Equal(t, StateUnauthenticated, s.Snapshot().State)
}

func TestTokenRefreshKeepsProfileVisible(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.profiles["u-1"] = &models.Profile{ID: "u-1", FullName: "One"}
	s := NewStore(p, profiles, nil)
	defer s.Close()

	p.emit(identity.EventSignedIn, session("u-1"))
	waitSettled(t, s)

	gate := make(chan struct{})
	profiles.mu.Lock()
	profiles.gates["u-1"] = gate
	profiles.mu.Unlock()

	p.emit(identity.EventTokenRefreshed, session("u-1"))
	snap := s.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.Profile)
	close(gate)
}

func TestSubscribeDeliversChanges(t *testing.T) {
	p := newFakeProvider()
	s := NewStore(p, newFakeProfiles(), nil)
	defer s.Close()

	var mu sync.Mutex
	var states []State
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	p.emit(identity.EventInitialSession, nil)
	unsubscribe()
	p.emit(identity.EventSignedIn, session("u-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateUninitialized, StateUnauthenticated}, states)
}

func TestUpdateProfile(t *testing.T) {
	p := newFakeProvider()
	profiles := newFakeProfiles()
	profiles.profiles["u-1"] = &models.Profile{ID: "u-1", FullName: "One", Role: models.RoleAdmin}
	s := NewStore(p, profiles, profiles)
	defer s.Close()

	name := "Uno"
	_, err := s.UpdateProfile(context.Background(), ProfilePatch{FullName: &name})
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))

	p.emit(identity.EventSignedIn, session("u-1"))
	waitSettled(t, s)

	updated, err := s.UpdateProfile(context.Background(), ProfilePatch{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Uno", updated.FullName)
	assert.Equal(t, "Uno", s.Snapshot().Profile.FullName)

	empty := " "
	_, err = s.UpdateProfile(context.Background(), ProfilePatch{FullName: &empty})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestAuthorize(t *testing.T) {
	admin := &models.Profile{Role: models.RoleAdmin}
	supervisor := &models.Profile{Role: models.RoleSupervisor}
	manager := &models.Profile{Role: models.RoleStoreManager}

	all := []Action{ViewDashboard, CreateAudit, ViewAllAudits, ViewReports, ExportReports, ViewStores, ManageStores, ViewUsers, ManageUsers}
	for _, a := range all {
		assert.True(t, Authorize(admin, a), "admin %s", a)
		assert.False(t, Authorize(nil, a), "nil %s", a)
	}
	assert.True(t, Authorize(supervisor, ViewReports))
	assert.False(t, Authorize(supervisor, ManageStores))
	assert.False(t, Authorize(supervisor, ManageUsers))
	assert.True(t, Authorize(manager, CreateAudit))
	assert.False(t, Authorize(manager, ViewReports))
	assert.False(t, Authorize(manager, ViewAllAudits))
	assert.False(t, Authorize(&models.Profile{Role: "owner"}, ViewDashboard))
}

// Package auth holds who is signed in and their profile. It reacts to
// identity provider events rather than only to local calls.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/identity"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
)

type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is a consistent copy of the store. Profile may be nil while
// authenticated when the profile could not be read.
type Snapshot struct {
	State   State             `json:"state"`
	Session *identity.Session `json:"session"`
	Profile *models.Profile   `json:"profile"`
	Loading bool              `json:"loading"`
}

// UserID is the signed-in identity, or "".
func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

// ProfileSource reads profiles by identity id; (nil, nil) means no row.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// ProfileWriter applies self-service profile edits.
type ProfileWriter interface {
	Rename(ctx context.Context, id, fullName string) (*models.Profile, error)
}

// Store is the single source of truth for the session and profile.
type Store struct {
	provider identity.Provider
	profiles ProfileSource
	writer   ProfileWriter
	log      *logger.Component

	mu      sync.Mutex
	state   State
	session *identity.Session
	profile *models.Profile
	gen     uint64
	cancel  context.CancelFunc
	changed chan struct{}

	notifyMu  sync.Mutex
	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int

	unsubscribe func()
}

// NewStore starts following provider events. writer may be nil.
func NewStore(provider identity.Provider, profiles ProfileSource, writer ProfileWriter) *Store {
	s := &Store{
		provider:  provider,
		profiles:  profiles,
		writer:    writer,
		log:       logger.For("session"),
		state:     StateUninitialized,
		changed:   make(chan struct{}),
		listeners: map[int]func(Snapshot){},
	}
	s.unsubscribe = provider.OnChange(s.handleEvent)
	return s
}

// Close stops following provider events and cancels an outstanding fetch.
func (s *Store) Close() {
	s.unsubscribe()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Loading: s.state == StateLoading || s.state == StateUninitialized}
	if s.session != nil {
		cp := *s.session
		snap.Session = &cp
	}
	if s.profile != nil {
		cp := *s.profile
		snap.Profile = &cp
	}
	return snap
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe calls fn with the current snapshot and then after every change.
// fn runs on the notifying goroutine and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.notifyMu.Lock()
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	fn(s.Snapshot())
	s.notifyMu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// Wait blocks until the store has settled, i.e. is neither uninitialized nor loading.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap := s.snapshotLocked()
		ch := s.changed
		s.mu.Unlock()
		if !snap.Loading {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// markChangedLocked wakes Wait callers.
func (s *Store) markChangedLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	snap := s.Snapshot()
	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// handleEvent is the single reaction path for every provider event,
// including the ones caused by SignIn and SignOut.
func (s *Store) handleEvent(ev identity.Event) {
	metrics.SessionEvents.WithLabelValues(string(ev.Kind)).Inc()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	gen := s.gen

	if ev.Session == nil {
		s.session = nil
		s.profile = nil
		s.state = StateUnauthenticated
		s.markChangedLocked()
		s.mu.Unlock()
		s.notify()
		return
	}

	sameUser := s.session != nil && s.session.User.ID == ev.Session.User.ID
	cp := *ev.Session
	s.session = &cp
	if ev.Kind == identity.EventTokenRefreshed && sameUser && s.state == StateAuthenticated {
		// Token rotation does not change who is signed in; keep the profile
		// visible while it is re-read in the background.
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.markChangedLocked()
		s.mu.Unlock()
		s.notify()
		go s.fetchProfile(ctx, gen, cp.User.ID)
		return
	}
	s.profile = nil
	s.state = StateLoading
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.markChangedLocked()
	s.mu.Unlock()

	s.notify()
	go s.fetchProfile(ctx, gen, cp.User.ID)
}

func (s *Store) fetchProfile(ctx context.Context, gen uint64, userID string) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ProfileFetchFailures.Inc()
		s.log.Errorf("profile fetch for %s failed: %v", userID, err)
		p = nil
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.profile = p
	s.state = StateAuthenticated
	s.cancel = nil
	s.markChangedLocked()
	s.mu.Unlock()
	s.notify()
}

// SignIn checks credentials with the provider. The profile is loaded by the
// resulting SIGNED_IN event.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperrors.New(apperrors.KindInvalidInput, "email and password are required")
	}
	_, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindAuthentication, err.Error())
	}
	return nil
}

// SignOut ends the provider session and clears the profile before returning.
// Calling it without a session is a no-op.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)

	s.mu.Lock()
	changed := s.profile != nil || s.session != nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.session = nil
	s.profile = nil
	s.state = StateUnauthenticated
	s.markChangedLocked()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return err
}

// ProfilePatch lists the fields a user may change on their own profile.
type ProfilePatch struct {
	FullName *string `json:"full_name"`
}

// UpdateProfile applies patch to the signed-in user's profile and installs
// the stored result.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.Profile, error) {
	s.mu.Lock()
	gen := s.gen
	var userID string
	if s.session != nil {
		userID = s.session.User.ID
	}
	hasProfile := s.profile != nil
	s.mu.Unlock()

	switch {
	case userID == "":
		return nil, apperrors.New(apperrors.KindAuthentication, "not signed in")
	case !hasProfile:
		return nil, apperrors.New(apperrors.KindNotFound, "no profile to update")
	case s.writer == nil:
		return nil, apperrors.New(apperrors.KindForbidden, "profile updates are not available")
	case patch.FullName == nil || strings.TrimSpace(*patch.FullName) == "":
		return nil, apperrors.New(apperrors.KindInvalidInput, "full name is required")
	}

	p, err := s.writer.Rename(ctx, userID, *patch.FullName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen == s.gen {
		cp := *p
		s.profile = &cp
		s.markChangedLocked()
	}
	s.mu.Unlock()
	s.notify()
	return p, nil
}

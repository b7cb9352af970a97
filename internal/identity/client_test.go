package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/oidc"
	"github.com/auditdesk/auditdesk/internal/sessions"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRealm struct {
	t            *testing.T
	srv          *httptest.Server
	refreshCalls int32
	logoutCalls  int32
	logoutStatus int
	mu           sync.Mutex
	validRefresh map[string]bool
	seq          int
}

func newFakeRealm(t *testing.T) *fakeRealm {
	r := &fakeRealm{t: t, validRefresh: map[string]bool{}, logoutStatus: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/audit/protocol/openid-connect/token", r.token)
	mux.HandleFunc("/realms/audit/protocol/openid-connect/logout", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&r.logoutCalls, 1)
		w.WriteHeader(r.logoutStatus)
	})
	r.srv = httptest.NewServer(mux)
	t.Cleanup(r.srv.Close)
	return r
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("realm-secret"))
	require.NoError(t, err)
	return tok
}

func (r *fakeRealm) issue(w http.ResponseWriter, sub, email string) {
	r.mu.Lock()
	r.seq++
	rt := "rt-" + sub + "-" + string(rune('a'+r.seq))
	r.validRefresh[rt] = true
	r.mu.Unlock()

	exp := time.Now().Add(5 * time.Minute)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  signed(r.t, jwt.MapClaims{"sub": sub, "email": email, "exp": exp.Unix()}),
		"refresh_token": rt,
		"id_token":      signed(r.t, jwt.MapClaims{"sub": sub, "email": email, "name": "Test User"}),
		"token_type":    "Bearer",
		"expires_in":    300,
	})
}

func (r *fakeRealm) reject(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": desc})
}

func (r *fakeRealm) token(w http.ResponseWriter, req *http.Request) {
	require.NoError(r.t, req.ParseForm())
	switch req.PostForm.Get("grant_type") {
	case "password":
		if req.PostForm.Get("username") == "ana@example.com" && req.PostForm.Get("password") == "secret" {
			r.issue(w, "user-ana", "ana@example.com")
			return
		}
		r.reject(w, http.StatusUnauthorized, "invalid_grant", "Invalid user credentials")
	case "refresh_token":
		atomic.AddInt32(&r.refreshCalls, 1)
		rt := req.PostForm.Get("refresh_token")
		r.mu.Lock()
		ok := r.validRefresh[rt]
		delete(r.validRefresh, rt)
		r.mu.Unlock()
		if !ok {
			r.reject(w, http.StatusBadRequest, "invalid_grant", "Session not active")
			return
		}
		r.issue(w, "user-ana", "ana@example.com")
	default:
		r.reject(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (r *fakeRealm) revokeAll() {
	r.mu.Lock()
	r.validRefresh = map[string]bool{}
	r.mu.Unlock()
}

func newTestClient(r *fakeRealm, store *sessions.Service) *Client {
	return NewClient(Options{
		BaseURL:      r.srv.URL,
		Realm:        "audit",
		ClientID:     "desk",
		ClientSecret: "s3cr3t",
		Verifier:     oidc.NewInsecureVerifier(),
		Sessions:     store,
		HTTPClient:   r.srv.Client(),
	})
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (rc *recorder) add(ev Event) {
	rc.mu.Lock()
	rc.events = append(rc.events, ev)
	rc.mu.Unlock()
}

func (rc *recorder) kinds() []EventKind {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]EventKind, 0, len(rc.events))
	for _, ev := range rc.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestSignInWithPasswordEmitsSignedIn(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	rec := &recorder{}
	unsubscribe := c.OnChange(rec.add)
	defer unsubscribe()

	sess, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-ana", sess.User.ID)
	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), sess.ExpiresAt, 10*time.Second)

	assert.Equal(t, []EventKind{EventSignedIn}, rec.kinds())
	require.NotNil(t, c.CurrentSession())
	assert.Equal(t, "user-ana", c.CurrentSession().User.ID)
}

func TestSignInWithPasswordRejected(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	rec := &recorder{}
	c.OnChange(rec.add)

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))
	assert.Equal(t, "Invalid user credentials", err.Error())
	assert.Empty(t, rec.kinds())
	assert.Nil(t, c.CurrentSession())
}

func TestSignOutIsIdempotent(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	rec := &recorder{}
	c.OnChange(rec.add)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Empty(t, rec.kinds())
	assert.EqualValues(t, 0, atomic.LoadInt32(&realm.logoutCalls))

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(context.Background()))
	require.NoError(t, c.SignOut(context.Background()))

	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, rec.kinds())
	assert.EqualValues(t, 1, atomic.LoadInt32(&realm.logoutCalls))
	assert.Nil(t, c.CurrentSession())
}

func TestSignOutClearsLocallyWhenProviderFails(t *testing.T) {
	realm := newFakeRealm(t)
	realm.logoutStatus = http.StatusInternalServerError
	c := newTestClient(realm, nil)
	defer c.Close()

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	err = c.SignOut(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDataAccess))
	assert.Nil(t, c.CurrentSession())
}

func TestRefreshEmitsTokenRefreshed(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	first, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	rec := &recorder{}
	c.OnChange(rec.add)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []EventKind{EventTokenRefreshed}, rec.kinds())
	cur := c.CurrentSession()
	require.NotNil(t, cur)
	assert.NotEqual(t, first.RefreshToken, cur.RefreshToken)
	assert.Equal(t, "user-ana", cur.User.ID)
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	realm.revokeAll()

	rec := &recorder{}
	c.OnChange(rec.add)

	err = c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuthentication))
	assert.Equal(t, []EventKind{EventSignedOut}, rec.kinds())
	assert.Nil(t, c.CurrentSession())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	rec := &recorder{}
	unsubscribe := c.OnChange(rec.add)
	unsubscribe()

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Empty(t, rec.kinds())
}

func TestStartResumesPersistedSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := sessions.NewService(sessions.NewRedisRepository(rdb, "session:", time.Hour), "desk-1")

	realm := newFakeRealm(t)
	c := newTestClient(realm, store)
	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	c.Close()

	// A fresh process picks up the stored session without a new password grant.
	next := newTestClient(realm, store)
	defer next.Close()
	rec := &recorder{}
	next.OnChange(rec.add)
	next.Start(context.Background())

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventInitialSession, rec.events[0].Kind)
	require.NotNil(t, rec.events[0].Session)
	assert.Equal(t, "user-ana", rec.events[0].Session.User.ID)
	assert.EqualValues(t, 0, atomic.LoadInt32(&realm.refreshCalls))
}

func TestStartWithoutSessionEmitsNil(t *testing.T) {
	realm := newFakeRealm(t)
	c := newTestClient(realm, nil)
	defer c.Close()

	rec := &recorder{}
	c.OnChange(rec.add)
	c.Start(context.Background())

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventInitialSession, rec.events[0].Kind)
	assert.Nil(t, rec.events[0].Session)
}

func TestStartDropsUnrefreshableSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := sessions.NewService(sessions.NewRedisRepository(rdb, "session:", time.Hour), "desk-1")
	require.NoError(t, store.Store(context.Background(), sessions.Session{
		UserID:       "user-ana",
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	realm := newFakeRealm(t)
	c := newTestClient(realm, store)
	defer c.Close()

	rec := &recorder{}
	c.OnChange(rec.add)
	c.Start(context.Background())

	require.Len(t, rec.events, 1)
	assert.Nil(t, rec.events[0].Session)
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

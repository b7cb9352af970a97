package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/oidc"
	"github.com/auditdesk/auditdesk/internal/sessions"
	"github.com/auditdesk/auditdesk/internal/tokens"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"golang.org/x/oauth2"
)

const (
	defaultRefreshSkew = 30 * time.Second
	refreshRetry       = 15 * time.Second
)

// Options configure a Client.
type Options struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Verifier     oidc.Verifier
	// Sessions persists the active session across restarts. Optional.
	Sessions    *sessions.Service
	HTTPClient  *http.Client
	RefreshSkew time.Duration
}

// Client is a Provider backed by an OIDC realm (Keycloak layout).
type Client struct {
	oauth      *oauth2.Config
	logoutURL  string
	verifier   oidc.Verifier
	store      *sessions.Service
	httpClient *http.Client
	skew       time.Duration
	log        *logger.Component

	// emitMu orders state changes together with their events.
	emitMu sync.Mutex

	mu      sync.Mutex
	session *Session
	gen     uint64
	timer   *time.Timer
	closed  bool

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

var _ Provider = (*Client)(nil)

func NewClient(opts Options) *Client {
	realmURL := strings.TrimRight(opts.BaseURL, "/") + "/realms/" + opts.Realm + "/protocol/openid-connect"
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	skew := opts.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  realmURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		logoutURL:  realmURL + "/logout",
		verifier:   opts.Verifier,
		store:      opts.Sessions,
		httpClient: hc,
		skew:       skew,
		log:        logger.For("identity"),
		listeners:  map[int]func(Event){},
	}
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// OnChange registers fn for session events.
func (c *Client) OnChange(fn func(Event)) func() {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	c.lmu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.lmu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// CurrentSession returns a copy of the active session, or nil.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Start restores a persisted session, refreshing it when the access token is
// stale, and emits INITIAL_SESSION with the result (possibly nil).
func (c *Client) Start(ctx context.Context) {
	var sess *Session
	if c.store != nil {
		stored, err := c.store.Load(ctx)
		if err != nil {
			c.log.Warnf("could not read stored session: %v", err)
		}
		if stored != nil {
			sess = &Session{
				User:         User{ID: stored.UserID, Email: stored.Email},
				AccessToken:  stored.AccessToken,
				RefreshToken: stored.RefreshToken,
				IDToken:      stored.IDToken,
				ExpiresAt:    stored.ExpiresAt,
			}
			if time.Now().Add(c.skew).After(sess.ExpiresAt) {
				refreshed, err := c.exchangeRefresh(ctx, sess)
				if err != nil {
					c.log.Infof("stored session could not be resumed: %v", err)
					_ = c.store.Clear(ctx)
					sess = nil
				} else {
					sess = refreshed
				}
			}
		}
	}
	c.replace(ctx, sess, EventInitialSession)
}

// SignInWithPassword runs the password grant. Provider rejections come back as
// authentication errors carrying the provider's description.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	tok, err := c.oauth.PasswordCredentialsToken(c.httpContext(ctx), email, password)
	if err != nil {
		return nil, apperrors.Authentication(providerMessage(err), err)
	}
	sess, err := c.sessionFromToken(ctx, tok, nil)
	if err != nil {
		return nil, apperrors.Authentication("invalid identity token", err)
	}
	c.replace(ctx, sess, EventSignedIn)
	return sess, nil
}

// SignOut ends the remote session and clears the local one. Without a
// session it does nothing. The local session is cleared even when the
// provider cannot be reached; that failure is returned.
func (c *Client) SignOut(ctx context.Context) error {
	cur := c.CurrentSession()
	if cur == nil {
		return nil
	}
	remoteErr := c.logout(ctx, cur.RefreshToken)
	c.replace(ctx, nil, EventSignedOut)
	if remoteErr != nil {
		return apperrors.DataAccess("end provider session", remoteErr)
	}
	return nil
}

// Refresh exchanges the refresh token now. A rejected refresh token means the
// session expired externally: the session is dropped and SIGNED_OUT emitted.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.refresh(ctx, gen)
}

func (c *Client) refresh(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if c.gen != gen || c.session == nil {
		c.mu.Unlock()
		return nil
	}
	cur := *c.session
	c.mu.Unlock()

	next, err := c.exchangeRefresh(ctx, &cur)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			c.log.Infof("refresh rejected by provider, signing out: %s", providerMessage(err))
			c.replaceIf(ctx, gen, nil, EventSignedOut)
			return apperrors.Authentication("session expired", err)
		}
		c.log.Warnf("refresh failed, retrying in %s: %v", refreshRetry, err)
		c.schedule(gen, time.Now().Add(refreshRetry+c.skew))
		return apperrors.DataAccess("refresh session", err)
	}
	c.replaceIf(ctx, gen, next, EventTokenRefreshed)
	return nil
}

// Close stops background refreshes.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) replace(ctx context.Context, sess *Session, kind EventKind) {
	c.replaceIf(ctx, 0, sess, kind)
}

// replaceIf installs sess unless gen is non-zero and no longer current.
func (c *Client) replaceIf(ctx context.Context, gen uint64, sess *Session, kind EventKind) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if gen != 0 && gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	next := c.gen
	c.session = sess
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.persist(ctx, sess)
	if sess != nil {
		c.schedule(next, sess.ExpiresAt)
	}

	ev := Event{Kind: kind}
	if sess != nil {
		cp := *sess
		ev.Session = &cp
	}
	c.emit(ev)
}

func (c *Client) schedule(gen uint64, expiresAt time.Time) {
	if expiresAt.IsZero() {
		return
	}
	wait := time.Until(expiresAt.Add(-c.skew))
	if wait < 0 {
		wait = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(wait, func() {
		_ = c.refresh(context.Background(), gen)
	})
}

func (c *Client) persist(ctx context.Context, sess *Session) {
	if c.store == nil {
		return
	}
	var err error
	if sess == nil {
		err = c.store.Clear(ctx)
	} else {
		err = c.store.Store(ctx, sessions.Session{
			UserID:       sess.User.ID,
			Email:        sess.User.Email,
			AccessToken:  sess.AccessToken,
			RefreshToken: sess.RefreshToken,
			IDToken:      sess.IDToken,
			ExpiresAt:    sess.ExpiresAt,
		})
	}
	if err != nil {
		c.log.Warnf("could not persist session: %v", err)
	}
}

func (c *Client) exchangeRefresh(ctx context.Context, cur *Session) (*Session, error) {
	ts := c.oauth.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: cur.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, err
	}
	return c.sessionFromToken(ctx, tok, &cur.User)
}

// sessionFromToken builds a Session from a token response. The user comes from
// the ID token when present, else from the access token claims, else from fallback.
func (c *Client) sessionFromToken(ctx context.Context, tok *oauth2.Token, fallback *User) (*Session, error) {
	sess := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if idt, ok := tok.Extra("id_token").(string); ok && idt != "" {
		sess.IDToken = idt
	}
	if sess.ExpiresAt.IsZero() {
		if exp, err := tokens.ExpiresAt(tok.AccessToken); err == nil {
			sess.ExpiresAt = exp
		}
	}

	switch {
	case sess.IDToken != "" && c.verifier != nil:
		claims, err := oidc.VerifyIdentity(ctx, c.verifier, sess.IDToken)
		if err != nil {
			return nil, err
		}
		sess.User = User{ID: claims.Subject, Email: claims.Email}
	case fallback != nil:
		sess.User = *fallback
	default:
		claims, err := tokens.Claims(tok.AccessToken)
		if err != nil {
			return nil, err
		}
		sub, _ := claims.GetSubject()
		if sub == "" {
			return nil, errors.New("token carries no subject")
		}
		email, _ := claims["email"].(string)
		sess.User = User{ID: sub, Email: email}
	}
	return sess, nil
}

func (c *Client) logout(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", c.oauth.ClientID)
	if c.oauth.ClientSecret != "" {
		form.Set("client_secret", c.oauth.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("logout endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// providerMessage extracts the provider's human readable error text.
func providerMessage(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return re.ErrorDescription
		}
		if re.ErrorCode != "" {
			return re.ErrorCode
		}
	}
	return err.Error()
}

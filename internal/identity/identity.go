// Package identity talks to the external identity provider: password and
// refresh grants, logout, and a stream of session change events.
package identity

import (
	"context"
	"time"
)

// User is the identity as the provider reports it.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session pairs a User with the tokens issued for it.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	IDToken      string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// EventKind names a session change.
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is emitted on every session change. Session is nil when nobody is
// signed in.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Provider is the contract the session store depends on. Listeners registered
// with OnChange are called in emission order and must not block.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	CurrentSession() *Session
	OnChange(fn func(Event)) (unsubscribe func())
}

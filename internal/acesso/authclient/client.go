// Package authclient defines the identity provider capability consumed by the login form,
// together with Firebase-backed and in-memory implementations.
package authclient

import (
	"context"
	"time"
)

// Credentials are the transient email/password pair submitted by the form.
type Credentials struct {
	Email    string
	Password string
}

// Session is the authenticated identity returned by the provider on success.
type Session struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	IssuedAt     time.Time
}

// StateListener receives the current session, or nil when nobody is signed in.
type StateListener func(*Session)

// Unsubscribe detaches a state listener.
type Unsubscribe func()

// Client is the credential-based authentication capability.
//
// SignIn and CreateAccount return an *AuthError on provider-side rejection. Any successful call
// and any SignOut publishes the new state to observers. ObserveAuthState delivers the current
// state immediately; listeners must not call back into the client.
//
// A Client holds one auth state for the whole process, the way the provider SDK does in a
// browser. When many users share it, the published state is the last authentication event:
// one user's SignOut reports "no user" even while other users hold valid cookie sessions.
// Per-user identity lives in the session package, not here.
type Client interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	CreateAccount(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ObserveAuthState(fn StateListener) Unsubscribe
}

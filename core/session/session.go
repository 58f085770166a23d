// Package session tracks who is signed in. The Store is an explicit object owned by the app root:
// it subscribes to the auth gateway once, exposes the current State and fans transitions out to watchers.
package session

import (
	"context"
	"time"
)

// User is the authenticated identity attached to a Session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential material for the signed in professor.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is no longer usable at `now`.
// A session without expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
	TokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	default:
		return "UNKNOWN"
	}
}

// Event is one session transition. Seq increases strictly for a given source.
type Event struct {
	Seq     uint64
	Kind    EventKind
	Session *Session // nil on SignedOut
}

type (
	Listener func(Event)

	// Subscription is returned by Auth.SubscribeSessionChanges. Unsubscribe is idempotent.
	Subscription interface {
		Unsubscribe()
	}

	// Auth is the authentication half of the remote gateway.
	Auth interface {
		SignIn(ctx context.Context, email, password string) (*Session, error)
		// SignOut clears the session. Callers must follow the SignedOut event, not the returned error.
		SignOut(ctx context.Context) error
		// CurrentSession returns the cached session, or nil when signed out.
		CurrentSession(ctx context.Context) (*Session, error)
		// SubscribeSessionChanges delivers every later transition exactly once, in order.
		SubscribeSessionChanges(fn Listener) Subscription
		// RecoverPassword asks the backend to mail a password reset to email.
		RecoverPassword(ctx context.Context, email string) error
	}
)

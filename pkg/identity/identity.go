package identity

import (
	"context"
	"strings"
	"time"
)

// User is an account as the identity provider reports it
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Session is an authenticated session issued by the identity provider
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Event names a session change delivered to subscribers
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventUserCreated    Event = "USER_CREATED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Listener receives session changes. The session is nil after sign-out.
type Listener func(event Event, session *Session)

// Provider is an identity provider client bound to one client context.
// GetSession returns (nil, nil) when the client has no session.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (*Session, error)
	GetSession(ctx context.Context) (*Session, error)
	Subscribe(listener Listener) (unsubscribe func())
}

// Backend hands out Providers bound to an access token. An empty token
// yields a client with no session.
type Backend interface {
	Client(accessToken string) Provider
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

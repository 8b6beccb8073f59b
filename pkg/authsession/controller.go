// Package authsession tracks the identity provider session of one client
// context and exposes the account actions around it.
package authsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/tokenstore"
)

// State is one consistent view of the session. User and Session always
// come from the same provider update.
type State struct {
	User    *identity.User    `json:"user"`
	Session *identity.Session `json:"-"`
	Loading bool              `json:"loading"`
}

// Completer finishes a custom-flow signup against a pending signup
type Completer interface {
	CompleteSignUp(ctx context.Context, store *tokenstore.Store, provider identity.Provider, email, token, password string) (*identity.Session, error)
}

var ErrNoCompleter = errors.New("signup completion not configured")

type Controller struct {
	provider  identity.Provider
	completer Completer
	store     *tokenstore.Store

	state  atomic.Pointer[State]
	closed atomic.Bool

	mu          sync.Mutex
	unsubscribe func()
}

type Option func(*Controller)

// WithCompleter enables CompleteSignUp for the pending signup held in store
func WithCompleter(completer Completer, store *tokenstore.Store) Option {
	return func(c *Controller) {
		c.completer = completer
		c.store = store
	}
}

func NewController(provider identity.Provider, opts ...Option) *Controller {
	c := &Controller{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(&State{Loading: true})
	return c
}

// Start fetches the current session once and then follows provider updates
func (c *Controller) Start(ctx context.Context) error {
	session, err := c.provider.GetSession(ctx)
	if err != nil {
		slog.Error("Failed to fetch session", "err", err)
		c.set(nil)
		return toError(err)
	}
	c.set(session)

	unsubscribe := c.provider.Subscribe(func(event identity.Event, session *identity.Session) {
		slog.Debug("Auth state changed", "event", event)
		c.set(session)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	return nil
}

// Snapshot returns the latest state
func (c *Controller) Snapshot() State {
	return *c.state.Load()
}

// Close stops following updates. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Swap(true) {
		return
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) set(session *identity.Session) {
	if c.closed.Load() {
		return
	}
	next := &State{Session: session}
	if session != nil {
		user := session.User
		next.User = &user
	}
	c.state.Store(next)
}

// SignUp creates an account with the provider's own email verification
func (c *Controller) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	session, err := c.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, toError(err)
	}
	return session, nil
}

// CompleteSignUp creates the account for a confirmed pending signup
func (c *Controller) CompleteSignUp(ctx context.Context, email, token, password string) (*identity.Session, error) {
	if c.completer == nil {
		return nil, pkgerrors.Wrap(ErrNoCompleter, pkgerrors.ErrCodeInternal, ErrNoCompleter.Error())
	}
	session, err := c.completer.CompleteSignUp(ctx, c.store, c.provider, email, token, password)
	if err != nil {
		return nil, toError(err)
	}
	return session, nil
}

func (c *Controller) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	session, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, toError(err)
	}
	return session, nil
}

func (c *Controller) SignOut(ctx context.Context) error {
	return toError(c.provider.SignOut(ctx))
}

func (c *Controller) ResendVerification(ctx context.Context, email string) error {
	return toError(c.provider.ResendVerification(ctx, email))
}

// toError keeps structured errors and reports anything else as a provider error
func toError(err error) error {
	if err == nil {
		return nil
	}
	var e *pkgerrors.Error
	if errors.As(err, &e) {
		return e
	}
	return pkgerrors.Provider(err)
}

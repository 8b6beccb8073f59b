package verifyflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-verify/pkg/identity"
)

// CallbackState is the status of a provider-native verification landing
type CallbackState string

const (
	CallbackLoading CallbackState = "loading"
	CallbackSuccess CallbackState = "success"
	CallbackError   CallbackState = "error"
)

// Actions offered when the callback fails
const (
	ActionRetrySignIn        = "retry_sign_in"
	ActionResendVerification = "resend_verification"
)

const (
	MessageVerified   = "Email verified successfully!"
	MessageNoSession  = "No session found. Please try signing in again."
	MessageUnexpected = "An unexpected error occurred."

	DefaultRedirectTo    = "/dashboard"
	DefaultRedirectDelay = 2 * time.Second
)

// CallbackResult is what the landing page shows
type CallbackResult struct {
	State           CallbackState     `json:"state"`
	Message         string            `json:"message,omitempty"`
	RedirectTo      string            `json:"redirect_to,omitempty"`
	RedirectAfterMS int64             `json:"redirect_after_ms,omitempty"`
	Actions         []string          `json:"actions,omitempty"`
	Session         *identity.Session `json:"-"`
}

// Callback handles the landing page of the identity provider's own
// verification link.
type Callback struct {
	provider      identity.Provider
	token         string
	redirectTo    string
	redirectDelay time.Duration

	mu     sync.Mutex
	result CallbackResult
	closed bool
}

type CallbackOption func(*Callback)

// WithConfirmationToken exchanges a provider confirmation token before the session is read
func WithConfirmationToken(token string) CallbackOption {
	return func(c *Callback) {
		c.token = token
	}
}

func WithRedirect(to string, after time.Duration) CallbackOption {
	return func(c *Callback) {
		c.redirectTo = to
		c.redirectDelay = after
	}
}

func NewCallback(provider identity.Provider, opts ...CallbackOption) *Callback {
	c := &Callback{
		provider:      provider,
		redirectTo:    DefaultRedirectTo,
		redirectDelay: DefaultRedirectDelay,
		result:        CallbackResult{State: CallbackLoading},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result returns the current callback state
func (c *Callback) Result() CallbackResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Close discards any result that arrives afterwards
func (c *Callback) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Run resolves the session once and records the outcome
func (c *Callback) Run(ctx context.Context) CallbackResult {
	res := c.resolve(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.result
	}
	c.result = res
	return res
}

func (c *Callback) resolve(ctx context.Context) (res CallbackResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Callback error", "panic", r)
			res = failed(MessageUnexpected)
		}
	}()

	if c.token != "" {
		if _, err := c.provider.VerifyEmail(ctx, c.token); err != nil {
			slog.Error("Auth callback error", "err", err)
			return failed(err.Error())
		}
	}

	session, err := c.provider.GetSession(ctx)
	if err != nil {
		slog.Error("Auth callback error", "err", err)
		return failed(err.Error())
	}
	if session == nil {
		return failed(MessageNoSession)
	}
	return CallbackResult{
		State:           CallbackSuccess,
		Message:         MessageVerified,
		RedirectTo:      c.redirectTo,
		RedirectAfterMS: c.redirectDelay.Milliseconds(),
		Session:         session,
	}
}

func failed(message string) CallbackResult {
	return CallbackResult{
		State:   CallbackError,
		Message: message,
		Actions: []string{ActionRetrySignIn, ActionResendVerification},
	}
}

package verifyflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/signup"
	"github.com/tendant/simple-verify/pkg/tokenstore"
)

// State is a position in the confirm-or-deny flow
type State string

const (
	Idle               State = "idle"
	AwaitingEmailClick State = "awaiting_email_click"
	ConfirmLoading     State = "confirm_loading"
	ConfirmSuccess     State = "confirm_success"
	ConfirmError       State = "confirm_error"
	DenyAcknowledged   State = "deny_acknowledged"
	AccountCreated     State = "account_created"
)

var (
	ErrInvalidTransition = errors.New("invalid flow transition")
	ErrClosed            = errors.New("flow closed")
)

// SignupService is the signup lifecycle the flow drives
type SignupService interface {
	SignUp(ctx context.Context, store *tokenstore.Store, req signup.SignUpRequest) error
	Verify(ctx context.Context, store *tokenstore.Store, email, token string) (*tokenstore.PendingSignup, error)
	CompleteSignUp(ctx context.Context, store *tokenstore.Store, provider identity.Provider, email, token, password string) (*identity.Session, error)
}

// ContinueTarget carries a confirmed link forward to the completion step
type ContinueTarget struct {
	Email string `json:"email"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Snapshot is an immutable view of a flow
type Snapshot struct {
	State     State               `json:"state"`
	Email     string              `json:"email,omitempty"`
	Message   string              `json:"message,omitempty"`
	ErrorCode pkgerrors.ErrorCode `json:"error_code,omitempty"`
	Continue  *ContinueTarget     `json:"continue,omitempty"`
	Session   *identity.Session   `json:"-"`
}

// Flow is the confirm-or-deny state machine for one client context.
// Every method is safe for concurrent use. Once Close is called, results of
// operations still in flight are discarded.
type Flow struct {
	svc      SignupService
	store    *tokenstore.Store
	provider identity.Provider

	confirmDelay time.Duration
	signUpPath   string

	mu        sync.Mutex
	state     State
	email     string
	token     string
	message   string
	errorCode pkgerrors.ErrorCode
	session   *identity.Session
	closed    bool
	// generation changes on every accepted transition so a stale in-flight
	// result can tell it has been overtaken
	generation int
}

type Option func(*Flow)

// WithConfirmDelay holds ConfirmLoading for at least d before the result is applied
func WithConfirmDelay(d time.Duration) Option {
	return func(f *Flow) {
		f.confirmDelay = d
	}
}

// WithSignUpPath sets the page the continue step points at
func WithSignUpPath(path string) Option {
	return func(f *Flow) {
		f.signUpPath = path
	}
}

func New(svc SignupService, store *tokenstore.Store, provider identity.Provider, opts ...Option) *Flow {
	f := &Flow{
		svc:        svc,
		store:      store,
		provider:   provider,
		signUpPath: "/sign-up",
		state:      Idle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Snapshot returns the current state
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     f.state,
		Email:     f.email,
		Message:   f.message,
		ErrorCode: f.errorCode,
		Session:   f.session,
	}
	if f.state == ConfirmSuccess {
		s.Continue = f.continueTargetLocked()
	}
	return s
}

func (f *Flow) continueTargetLocked() *ContinueTarget {
	q := url.Values{}
	q.Set("email", f.email)
	q.Set("verified", "true")
	q.Set("token", f.token)
	return &ContinueTarget{Email: f.email, Token: f.token, URL: f.signUpPath + "?" + q.Encode()}
}

// begin moves to next if the current state is one of from. It returns the
// generation the caller must present to finish.
func (f *Flow) begin(next State, from ...State) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	for _, s := range from {
		if f.state == s {
			f.state = next
			f.generation++
			return f.generation, nil
		}
	}
	return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, next)
}

// finish applies a result unless the flow was closed or moved on meanwhile
func (f *Flow) finish(gen int, apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		slog.Debug("Discarding flow result after close")
		return ErrClosed
	}
	if gen != f.generation {
		return fmt.Errorf("%w: overtaken in %s", ErrInvalidTransition, f.state)
	}
	apply()
	f.generation++
	return nil
}

func (f *Flow) fail(err error) {
	f.state = ConfirmError
	f.message = pkgerrors.UserMessage(err)
	f.errorCode = pkgerrors.GetCode(err)
}

// BeginSignUp starts a signup and waits for the email click. Submitting again
// while waiting replaces the earlier pending signup.
func (f *Flow) BeginSignUp(ctx context.Context, req signup.SignUpRequest) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state != Idle && f.state != AwaitingEmailClick {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, AwaitingEmailClick)
	}
	gen := f.generation
	f.mu.Unlock()

	if err := f.svc.SignUp(ctx, f.store, req); err != nil {
		return err
	}

	return f.finish(gen, func() {
		f.state = AwaitingEmailClick
		f.email = tokenstore.NormalizeEmail(req.Email)
		f.message = "We've sent you a verification email with confirmation buttons."
	})
}

// VisitConfirm validates a confirm link. It never changes the pending signup.
// Cancelling ctx during the confirm delay puts the flow back where it was.
func (f *Flow) VisitConfirm(ctx context.Context, token, email string) (Snapshot, error) {
	prev := f.Snapshot().State
	gen, err := f.begin(ConfirmLoading, Idle, AwaitingEmailClick)
	if err != nil {
		return f.Snapshot(), err
	}

	f.mu.Lock()
	f.email = email
	f.token = token
	f.message = ""
	f.errorCode = ""
	f.mu.Unlock()

	if f.confirmDelay > 0 {
		select {
		case <-time.After(f.confirmDelay):
		case <-ctx.Done():
			f.finish(gen, func() {
				f.state = prev
			})
			return f.Snapshot(), ctx.Err()
		}
	}

	_, verr := f.svc.Verify(ctx, f.store, email, token)
	err = f.finish(gen, func() {
		if verr != nil {
			f.fail(verr)
			return
		}
		f.state = ConfirmSuccess
		f.message = fmt.Sprintf("Great! Your email %s has been verified.", email)
	})
	return f.Snapshot(), err
}

// Continue yields the confirmed email and token for the completion step
func (f *Flow) Continue() (*ContinueTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.state != ConfirmSuccess {
		return nil, fmt.Errorf("%w: continue from %s", ErrInvalidTransition, f.state)
	}
	return f.continueTargetLocked(), nil
}

// Complete creates the account for the confirmed link. It is allowed from
// ConfirmSuccess, and from ConfirmError after a provider failure.
func (f *Flow) Complete(ctx context.Context, password string) (*identity.Session, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	retryable := f.state == ConfirmError && f.errorCode == pkgerrors.ErrCodeProvider
	if f.state != ConfirmSuccess && !retryable {
		state := f.state
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, AccountCreated)
	}
	gen := f.generation
	email, token := f.email, f.token
	f.mu.Unlock()

	session, err := f.svc.CompleteSignUp(ctx, f.store, f.provider, email, token, password)
	if ferr := f.finish(gen, func() {
		switch {
		case err == nil:
			f.state = AccountCreated
			f.session = session
			f.message = "Account created successfully!"
			f.errorCode = ""
		case pkgerrors.IsValidation(err):
			// form errors leave the flow where it was
			f.message = pkgerrors.UserMessage(err)
		default:
			f.fail(err)
		}
	}); ferr != nil {
		return nil, ferr
	}
	return session, err
}

// VisitDeny acknowledges a deny link. No token is checked and the pending
// signup is left alone.
func (f *Flow) VisitDeny(email string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return f.snapshotLocked(), ErrClosed
	}
	if f.state != Idle {
		return f.snapshotLocked(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, DenyAcknowledged)
	}
	f.state = DenyAcknowledged
	f.email = email
	f.message = "Thanks for letting us know. No account will be created with this email address."
	f.generation++
	slog.Info("Verification denied", "email", email)
	return f.snapshotLocked(), nil
}

// Close tears the flow down. Later results are discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

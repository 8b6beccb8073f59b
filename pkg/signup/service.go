package signup

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/tendant/simple-verify/pkg/emailverification"
	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/tokenstore"
)

const DefaultMinPasswordLength = 6

// Mailer sends the confirm-or-deny verification email
type Mailer interface {
	Send(ctx context.Context, req emailverification.Request) (map[string]any, error)
}

// SignupService drives pending signups from request to account creation
type SignupService struct {
	mailer              Mailer
	baseURL             string
	minPasswordLength   int
	registrationEnabled bool
}

// SignupServiceOption is a functional option for configuring SignupService
type SignupServiceOption func(*SignupService)

// NewSignupService creates a new SignupService with the given options
func NewSignupService(mailer Mailer, baseURL string, opts ...SignupServiceOption) *SignupService {
	s := &SignupService{
		mailer:              mailer,
		baseURL:             baseURL,
		minPasswordLength:   DefaultMinPasswordLength,
		registrationEnabled: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithMinPasswordLength sets the shortest accepted password
func WithMinPasswordLength(n int) SignupServiceOption {
	return func(s *SignupService) {
		s.minPasswordLength = n
	}
}

// WithRegistrationEnabled sets whether new signups are accepted
func WithRegistrationEnabled(enabled bool) SignupServiceOption {
	return func(s *SignupService) {
		s.registrationEnabled = enabled
	}
}

// SignUpRequest is a signup form submission. Password may be left empty to
// collect it when the signup is completed.
type SignUpRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate applies the signup form rules
func (s *SignupService) Validate(req SignUpRequest) error {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return pkgerrors.MissingRequired("email")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return pkgerrors.New(pkgerrors.ErrCodeInvalidFormat, "Please enter a valid email address").WithField("email")
	}
	if req.Password == "" && req.ConfirmPassword == "" {
		return nil
	}
	if err := s.validatePassword(req.Password); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return pkgerrors.New(pkgerrors.ErrCodeValidationFailed, "Passwords don't match").WithField("confirmPassword")
	}
	return nil
}

func (s *SignupService) validatePassword(password string) error {
	if len(password) < s.minPasswordLength {
		return pkgerrors.Newf(pkgerrors.ErrCodeValidationFailed, "Password must be at least %d characters", s.minPasswordLength).WithField("password")
	}
	return nil
}

// SignUp issues a pending signup into store and mails the verification links.
// If the email cannot be sent the store is put back the way it was.
func (s *SignupService) SignUp(ctx context.Context, store *tokenstore.Store, req SignUpRequest) error {
	if !s.registrationEnabled {
		return pkgerrors.New(pkgerrors.ErrCodeUnauthorized, "Registration is disabled")
	}
	if err := s.Validate(req); err != nil {
		return err
	}

	prev, err := store.Get(ctx)
	if err != nil && !errors.Is(err, tokenstore.ErrNoPendingSignup) {
		slog.Error("Failed to read pending signup", "client_id", store.ClientID(), "error", err)
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "Failed to start signup")
	}

	token, rec, err := store.Issue(ctx, req.Email, req.Password)
	if err != nil {
		slog.Error("Failed to store pending signup", "client_id", store.ClientID(), "error", err)
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "Failed to start signup")
	}

	_, err = s.mailer.Send(ctx, emailverification.Request{
		Email:   rec.Email,
		Token:   token,
		BaseURL: s.baseURL,
	})
	if err != nil {
		s.restore(ctx, store, prev)
		if errors.Is(err, emailverification.ErrInvalidRequest) {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeValidationFailed, err.Error())
		}
		signups.WithLabelValues("mail_failed").Inc()
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeMailDelivery, err.Error())
	}

	signups.WithLabelValues("pending").Inc()
	slog.Info("Pending signup created", "client_id", store.ClientID(), "email", rec.Email, "expires_at", rec.ExpiresAt)
	return nil
}

// restore puts back the pending signup that was current before a failed SignUp
func (s *SignupService) restore(ctx context.Context, store *tokenstore.Store, prev *tokenstore.PendingSignup) {
	var err error
	if prev != nil {
		err = store.Put(ctx, *prev)
	} else {
		err = store.Clear(ctx)
	}
	if err != nil {
		slog.Error("Failed to restore pending signup after mail failure", "client_id", store.ClientID(), "error", err)
	}
}

// Verify checks a confirm link against the pending signup without changing it
func (s *SignupService) Verify(ctx context.Context, store *tokenstore.Store, email, token string) (*tokenstore.PendingSignup, error) {
	rec, err := store.Match(ctx, email, token)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return rec, nil
}

// CompleteSignUp creates the account for a confirmed pending signup. The
// stored password is used; password is only consulted when none was stored.
// The pending signup is removed only after the account exists.
func (s *SignupService) CompleteSignUp(ctx context.Context, store *tokenstore.Store, provider identity.Provider, email, token, password string) (*identity.Session, error) {
	rec, err := store.Match(ctx, email, token)
	if err != nil {
		completions.WithLabelValues("rejected").Inc()
		return nil, mapStoreError(err)
	}

	pw := rec.Password
	if pw == "" {
		if password == "" {
			return nil, pkgerrors.MissingRequired("password")
		}
		if err := s.validatePassword(password); err != nil {
			return nil, err
		}
		pw = password
	}

	session, err := provider.CreateAccount(ctx, rec.Email, pw)
	if err != nil {
		completions.WithLabelValues("provider_error").Inc()
		slog.Error("Identity provider rejected account", "email", rec.Email, "error", err)
		return nil, pkgerrors.Provider(err)
	}

	if err := store.Clear(ctx); err != nil {
		slog.Error("Failed to clear pending signup", "client_id", store.ClientID(), "error", err)
	}

	completions.WithLabelValues("created").Inc()
	slog.Info("Account created from pending signup", "email", rec.Email, "user_id", session.User.ID)
	return session, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, tokenstore.ErrNoPendingSignup):
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeNoPendingSignup, "No pending signup found")
	case errors.Is(err, tokenstore.ErrTokenMismatch):
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeTokenMismatch, "Invalid verification token")
	default:
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "Failed to read pending signup")
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-verify/pkg/notification"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL      = 1 * time.Hour
	DefaultConfirmationTTL = 24 * time.Hour
	minPasswordLength      = 6
)

type account struct {
	user         User
	passwordHash []byte
}

// Directory is an in-process identity provider. Accounts live in memory,
// passwords are bcrypt hashed and sessions are HS256 tokens.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]*account // keyed by normalized email
	revoked  map[string]time.Time

	tokens              *TokenGenerator
	sessionTTL          time.Duration
	confirmationTTL     time.Duration
	requireConfirmation bool

	mailer      notification.Provider
	mailFrom    string
	callbackURL string
}

type DirectoryOption func(*Directory)

func WithSessionTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		d.sessionTTL = ttl
	}
}

func WithConfirmationTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		d.confirmationTTL = ttl
	}
}

// WithRequireConfirmation refuses sign-in until the email is confirmed
func WithRequireConfirmation(require bool) DirectoryOption {
	return func(d *Directory) {
		d.requireConfirmation = require
	}
}

// WithConfirmationMailer makes the directory send its own confirmation link
// pointing at callbackURL when accounts are created or a resend is requested.
func WithConfirmationMailer(mailer notification.Provider, from, callbackURL string) DirectoryOption {
	return func(d *Directory) {
		d.mailer = mailer
		d.mailFrom = from
		d.callbackURL = callbackURL
	}
}

func WithClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.tokens.now = now
	}
}

func NewDirectory(secret string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		accounts:        make(map[string]*account),
		revoked:         make(map[string]time.Time),
		tokens:          NewTokenGenerator(secret, "simple-verify"),
		sessionTTL:      DefaultSessionTTL,
		confirmationTTL: DefaultConfirmationTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Verifier returns a jwtauth verifier that accepts the directory's access tokens
func (d *Directory) Verifier() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(d.tokens.Secret), nil)
}

// Client returns a Provider bound to accessToken
func (d *Directory) Client(accessToken string) Provider {
	return &DirectoryClient{dir: d, accessToken: accessToken}
}

// ConfirmEmail marks the account's email as confirmed
func (d *Directory) ConfirmEmail(email string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	if acc.user.EmailConfirmedAt == nil {
		now := d.tokens.now().UTC()
		acc.user.EmailConfirmedAt = &now
		slog.Info("Email confirmed", "user_id", acc.user.ID)
	}
	u := acc.user
	return &u, nil
}

// FindUser looks an account up by email
func (d *Directory) FindUser(email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := acc.user
	return &u, nil
}

func (d *Directory) createAccount(email, password string) (*User, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.accounts[email]; exists {
		return nil, ErrUserAlreadyExists
	}
	user := User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: d.tokens.now().UTC(),
	}
	d.accounts[email] = &account{user: user, passwordHash: hash}
	slog.Info("Account created", "user_id", user.ID, "email", email)
	return &user, nil
}

func (d *Directory) authenticate(email, password string) (*User, error) {
	d.mu.RLock()
	acc, ok := d.accounts[normalizeEmail(email)]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.requireConfirmation && acc.user.EmailConfirmedAt == nil {
		return nil, ErrEmailNotConfirmed
	}
	u := acc.user
	return &u, nil
}

func (d *Directory) issueSession(user User) (*Session, error) {
	token, claims, err := d.tokens.GenerateToken(user, purposeAccess, d.sessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// session resolves an access token. A missing, expired or revoked token is no session.
func (d *Directory) session(accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, nil
	}
	claims, err := d.tokens.ParseToken(accessToken, purposeAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil
		}
		slog.Warn("Rejected access token", "err", err)
		return nil, ErrInvalidSession
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, revoked := d.revoked[claims.ID]; revoked {
		return nil, nil
	}
	acc, ok := d.accounts[normalizeEmail(claims.Email)]
	if !ok || acc.user.ID != claims.Subject {
		return nil, nil
	}
	return &Session{AccessToken: accessToken, ExpiresAt: claims.ExpiresAt.Time, User: acc.user}, nil
}

func (d *Directory) revoke(accessToken string) {
	claims, err := d.tokens.ParseToken(accessToken, purposeAccess)
	if err != nil {
		return
	}
	now := d.tokens.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, exp := range d.revoked {
		if now.After(exp) {
			delete(d.revoked, id)
		}
	}
	d.revoked[claims.ID] = claims.ExpiresAt.Time
}

func (d *Directory) sendConfirmation(ctx context.Context, user User) error {
	if d.mailer == nil {
		slog.Warn("Confirmation mailer not configured, skipping email send", "email", user.Email)
		return nil
	}
	token, _, err := d.tokens.GenerateToken(user, purposeConfirmation, d.confirmationTTL)
	if err != nil {
		return err
	}
	link := strings.TrimRight(d.callbackURL, "/") + "?token=" + url.QueryEscape(token)
	_, err = d.mailer.Send(ctx, notification.Message{
		From:    d.mailFrom,
		To:      user.Email,
		Subject: "Confirm your signup",
		HTML:    `<p>Follow this link to confirm your account:</p><p><a href="` + html.EscapeString(link) + `">Confirm your email</a></p>`,
	})
	return err
}

func (d *Directory) verifyEmail(token string) (*User, error) {
	claims, err := d.tokens.ParseToken(token, purposeConfirmation)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := d.FindUser(claims.Email)
	if err != nil {
		return nil, err
	}
	if user.ID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return d.ConfirmEmail(user.Email)
}

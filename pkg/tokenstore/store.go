package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	keyPendingSignup = "verify:pending_signup:"

	// DefaultTTL is how long a pending signup stays valid when no TTL is configured
	DefaultTTL = 24 * time.Hour
)

// PendingSignup is an uncommitted registration awaiting confirmation.
type PendingSignup struct {
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Matches reports whether email and token correspond to this record.
// The token comparison is constant time.
func (p *PendingSignup) Matches(email, token string) bool {
	if p == nil || token == "" {
		return false
	}
	emailOK := NormalizeEmail(email) == p.Email
	tokenOK := subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(p.TokenHash)) == 1
	return emailOK && tokenOK
}

// Expired reports whether the record is past its expiry at the given time.
func (p *PendingSignup) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Store holds the single pending signup of one client context.
//
// Put overwrites unconditionally: when two signup attempts race for the same
// client context the last writer wins and the earlier token stops validating.
// No locking is done across Put calls; this is the intended policy.
type Store struct {
	kv       KV
	clientID string
	ttl      time.Duration
	now      func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithTTL sets how long issued records stay valid
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store bound to the given client context
func New(kv KV, clientID string, opts ...StoreOption) *Store {
	s := &Store{
		kv:       kv,
		clientID: clientID,
		ttl:      DefaultTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientID returns the client context this store is bound to
func (s *Store) ClientID() string {
	return s.clientID
}

func (s *Store) key() string {
	return keyPendingSignup + s.clientID
}

// Put stores rec, replacing any existing pending signup.
func (s *Store) Put(ctx context.Context, rec PendingSignup) error {
	now := s.now()
	rec.Email = NormalizeEmail(rec.Email)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(s.ttl)
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode pending signup: %w", err)
	}

	// Backends drop the key on their own once the record is past expiry.
	ttl := rec.ExpiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.kv.Set(ctx, s.key(), b, ttl); err != nil {
		return fmt.Errorf("failed to store pending signup: %w", err)
	}
	return nil
}

// Get returns the pending signup, or ErrNoPendingSignup when there is none.
func (s *Store) Get(ctx context.Context) (*PendingSignup, error) {
	b, ok, err := s.kv.Get(ctx, s.key())
	if err != nil {
		return nil, fmt.Errorf("failed to load pending signup: %w", err)
	}
	if !ok {
		return nil, ErrNoPendingSignup
	}
	var rec PendingSignup
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode pending signup: %w", err)
	}
	return &rec, nil
}

// Clear removes the pending signup
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key()); err != nil {
		return fmt.Errorf("failed to clear pending signup: %w", err)
	}
	return nil
}

// Issue generates a fresh token, stores a pending signup for email and returns
// the raw token. Only the token hash is kept in the store.
func (s *Store) Issue(ctx context.Context, email, password string) (string, *PendingSignup, error) {
	token, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	rec := PendingSignup{
		Email:     NormalizeEmail(email),
		Password:  password,
		TokenHash: HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.Put(ctx, rec); err != nil {
		return "", nil, err
	}

	slog.Info("Pending signup issued", "client_id", s.clientID, "email", rec.Email, "expires_at", rec.ExpiresAt)
	return token, &rec, nil
}

// Match validates email and token against the stored record without modifying it.
// Expired records are reported as ErrTokenMismatch.
func (s *Store) Match(ctx context.Context, email, token string) (*PendingSignup, error) {
	rec, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.Matches(email, token) {
		slog.Warn("Pending signup token mismatch", "client_id", s.clientID)
		return nil, ErrTokenMismatch
	}
	if rec.Expired(s.now()) {
		slog.Warn("Pending signup expired", "client_id", s.clientID, "expires_at", rec.ExpiresAt)
		return nil, ErrTokenMismatch
	}
	return rec, nil
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashToken returns the hex SHA-256 digest of a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateToken generates a cryptographically secure random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

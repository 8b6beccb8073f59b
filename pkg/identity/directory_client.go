package identity

import (
	"context"
	"log/slog"
	"sync"
)

// DirectoryClient is a Provider bound to one client context of a Directory
type DirectoryClient struct {
	dir *Directory

	mu          sync.Mutex
	accessToken string

	subscribers
}

var _ Provider = (*DirectoryClient)(nil)

func (c *DirectoryClient) setToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *DirectoryClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *DirectoryClient) CreateAccount(ctx context.Context, email, password string) (*Session, error) {
	user, err := c.dir.createAccount(email, password)
	if err != nil {
		return nil, err
	}
	if err := c.dir.sendConfirmation(ctx, *user); err != nil {
		slog.Error("Failed to send confirmation email", "user_id", user.ID, "err", err)
	}

	session, err := c.dir.issueSession(*user)
	if err != nil {
		return nil, err
	}
	c.setToken(session.AccessToken)
	c.emit(EventUserCreated, session)
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *DirectoryClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := c.dir.authenticate(email, password)
	if err != nil {
		return nil, err
	}
	session, err := c.dir.issueSession(*user)
	if err != nil {
		return nil, err
	}
	c.setToken(session.AccessToken)
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *DirectoryClient) SignOut(ctx context.Context) error {
	if token := c.token(); token != "" {
		c.dir.revoke(token)
	}
	c.setToken("")
	c.emit(EventSignedOut, nil)
	return nil
}

// ResendVerification sends a fresh confirmation link. Unknown and already
// confirmed addresses are accepted silently.
func (c *DirectoryClient) ResendVerification(ctx context.Context, email string) error {
	user, err := c.dir.FindUser(email)
	if err != nil {
		slog.Info("Resend requested for unknown email", "email", normalizeEmail(email))
		return nil
	}
	if user.EmailConfirmedAt != nil {
		return nil
	}
	return c.dir.sendConfirmation(ctx, *user)
}

func (c *DirectoryClient) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	user, err := c.dir.verifyEmail(token)
	if err != nil {
		return nil, err
	}
	session, err := c.dir.issueSession(*user)
	if err != nil {
		return nil, err
	}
	c.setToken(session.AccessToken)
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *DirectoryClient) GetSession(ctx context.Context) (*Session, error) {
	return c.dir.session(c.token())
}

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type GoTrueConfig struct {
	URL        string // e.g. https://<project>.supabase.co/auth/v1
	APIKey     string
	RedirectTo string // where provider-native confirmation links land
	HTTPClient *http.Client
}

// GoTrue talks to a GoTrue compatible auth API
type GoTrue struct {
	config GoTrueConfig
	client *http.Client
}

func NewGoTrue(config GoTrueConfig) *GoTrue {
	config.URL = strings.TrimRight(config.URL, "/")
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoTrue{config: config, client: client}
}

func (g *GoTrue) Client(accessToken string) Provider {
	return &GoTrueClient{api: g, accessToken: accessToken}
}

type gotrueUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u gotrueUser) toUser() User {
	return User{ID: u.ID, Email: u.Email, EmailConfirmedAt: u.EmailConfirmedAt, CreatedAt: u.CreatedAt}
}

type gotrueSession struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        gotrueUser `json:"user"`
}

func (s gotrueSession) toSession() *Session {
	expires := time.Unix(s.ExpiresAt, 0).UTC()
	if s.ExpiresAt == 0 {
		expires = time.Now().UTC().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &Session{AccessToken: s.AccessToken, ExpiresAt: expires, User: s.User.toUser()}
}

type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Code             any    `json:"code"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// do sends one request. bearer falls back to the API key when empty.
func (g *GoTrue) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	endpoint := g.config.URL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", g.config.APIKey)
	if bearer == "" {
		bearer = g.config.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Error("Failed to reach identity provider", "path", path, "err", err)
		return fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read identity provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ge gotrueError
		_ = json.Unmarshal(respBody, &ge)
		apiErr := &APIError{Status: resp.StatusCode, Code: ge.ErrorCode, Message: ge.text()}
		slog.Warn("Identity provider returned error", "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode identity provider response: %w", err)
		}
	}
	return nil
}

// GoTrueClient is a Provider bound to one client context of a GoTrue API
type GoTrueClient struct {
	api *GoTrue

	mu          sync.Mutex
	accessToken string

	subscribers
}

var _ Provider = (*GoTrueClient)(nil)

func (c *GoTrueClient) setToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *GoTrueClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *GoTrueClient) redirectQuery() url.Values {
	if c.api.config.RedirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {c.api.config.RedirectTo}}
}

// CreateAccount signs up. When the provider requires email confirmation it
// answers with a bare user and the returned session carries no access token.
func (c *GoTrueClient) CreateAccount(ctx context.Context, email, password string) (*Session, error) {
	var raw json.RawMessage
	err := c.api.do(ctx, http.MethodPost, "/signup", c.redirectQuery(), "", map[string]string{
		"email":    email,
		"password": password,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var s gotrueSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	if s.AccessToken == "" {
		var u gotrueUser
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode signup response: %w", err)
		}
		session := &Session{User: u.toUser()}
		c.emit(EventUserCreated, session)
		return session, nil
	}

	session := s.toSession()
	c.setToken(session.AccessToken)
	c.emit(EventUserCreated, session)
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var s gotrueSession
	err := c.api.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, "", map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	session := s.toSession()
	c.setToken(session.AccessToken)
	c.emit(EventSignedIn, session)
	return session, nil
}

func (c *GoTrueClient) SignOut(ctx context.Context) error {
	token := c.token()
	if token != "" {
		if err := c.api.do(ctx, http.MethodPost, "/logout", nil, token, nil, nil); err != nil {
			return err
		}
	}
	c.setToken("")
	c.emit(EventSignedOut, nil)
	return nil
}

func (c *GoTrueClient) ResendVerification(ctx context.Context, email string) error {
	body := map[string]any{"type": "signup", "email": email}
	if c.api.config.RedirectTo != "" {
		body["options"] = map[string]string{"email_redirect_to": c.api.config.RedirectTo}
	}
	return c.api.do(ctx, http.MethodPost, "/resend", nil, "", body, nil)
}

func (c *GoTrueClient) VerifyEmail(ctx context.Context, token string) (*Session, error) {
	var s gotrueSession
	err := c.api.do(ctx, http.MethodPost, "/verify", nil, "", map[string]string{
		"type":       "signup",
		"token_hash": token,
	}, &s)
	if err != nil {
		return nil, err
	}
	session := s.toSession()
	c.setToken(session.AccessToken)
	c.emit(EventSignedIn, session)
	return session, nil
}

// GetSession resolves the bound access token through /user. An unknown or
// expired token is reported as no session.
func (c *GoTrueClient) GetSession(ctx context.Context) (*Session, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}

	var u gotrueUser
	if err := c.api.do(ctx, http.MethodGet, "/user", nil, token, nil, &u); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return nil, nil
		}
		return nil, err
	}

	session := &Session{AccessToken: token, User: u.toUser()}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verify/pkg/notification"
)

const testSecret = "test-secret-with-enough-length-0123456789"

func TestDirectory_CreateAccountAndSignIn(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testSecret)
	client := dir.Client("")

	var events []Event
	unsubscribe := client.Subscribe(func(e Event, s *Session) { events = append(events, e) })
	defer unsubscribe()

	session, err := client.CreateAccount(ctx, " A@X.com ", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", session.User.Email)
	assert.NotEmpty(t, session.User.ID)
	assert.Nil(t, session.User.EmailConfirmedAt)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, []Event{EventUserCreated, EventSignedIn}, events)

	got, err := client.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.User.ID, got.User.ID)

	// a fresh client bound to the token sees the same session
	other, err := dir.Client(session.AccessToken).GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "a@x.com", other.User.Email)

	signedIn, err := dir.Client("").SignIn(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, signedIn.User.ID)
}

func TestDirectory_CreateAccountErrors(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testSecret)

	_, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "duplicate", email: "A@x.com", password: "pw123456", want: ErrUserAlreadyExists},
		{name: "short password", email: "b@x.com", password: "12345", want: ErrWeakPassword},
		{name: "bad email", email: "nope", password: "pw123456", want: ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Client("").CreateAccount(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDirectory_SignInErrors(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testSecret, WithRequireConfirmation(true))
	_, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	_, err = dir.Client("").SignIn(ctx, "a@x.com", "wrong-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = dir.Client("").SignIn(ctx, "nobody@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = dir.Client("").SignIn(ctx, "a@x.com", "pw123456")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	_, err = dir.ConfirmEmail("a@x.com")
	require.NoError(t, err)
	_, err = dir.Client("").SignIn(ctx, "a@x.com", "pw123456")
	assert.NoError(t, err)
}

func TestDirectory_SignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testSecret)
	client := dir.Client("")
	session, err := client.CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	var last Event
	var lastSession *Session
	client.Subscribe(func(e Event, s *Session) { last, lastSession = e, s })

	require.NoError(t, client.SignOut(ctx))
	assert.Equal(t, EventSignedOut, last)
	assert.Nil(t, lastSession)

	got, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = dir.Client(session.AccessToken).GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "revoked token is no session")
}

func TestDirectory_GetSession(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	dir := NewDirectory(testSecret, WithSessionTTL(time.Hour), WithClock(func() time.Time { return now }))
	session, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	got, err := dir.Client("").GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = dir.Client("not-a-jwt").GetSession(ctx)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = NewDirectory("another-secret-another-secret-1234").Client(session.AccessToken).GetSession(ctx)
	assert.ErrorIs(t, err, ErrInvalidSession)

	now = now.Add(2 * time.Hour)
	got, err = dir.Client(session.AccessToken).GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired token is no session")
}

func TestDirectory_SubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(testSecret)
	client := dir.Client("")

	calls := 0
	unsubscribe := client.Subscribe(func(Event, *Session) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := client.CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

var linkPattern = regexp.MustCompile(`href="([^"]+)"`)

func TestDirectory_ConfirmationEmailRoundTrip(t *testing.T) {
	ctx := context.Background()
	mailer := &notification.MockProvider{}
	dir := NewDirectory(testSecret, WithConfirmationMailer(mailer, "idp@example.com", "https://app.example.com/auth/callback"))

	_, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	require.Len(t, mailer.Messages(), 1)

	require.NoError(t, dir.Client("").ResendVerification(ctx, "a@x.com"))
	msg, ok := mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "idp@example.com", msg.From)

	m := linkPattern.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2)
	link, err := url.Parse(m[1])
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", link.Path)

	client := dir.Client("")
	session, err := client.VerifyEmail(ctx, link.Query().Get("token"))
	require.NoError(t, err)
	require.NotNil(t, session.User.EmailConfirmedAt)

	got, err := client.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.User.EmailConfirmedAt)

	// confirmed accounts get no further mail
	require.NoError(t, dir.Client("").ResendVerification(ctx, "a@x.com"))
	assert.Len(t, mailer.Messages(), 2)

	// unknown addresses are accepted silently
	assert.NoError(t, dir.Client("").ResendVerification(ctx, "nobody@x.com"))

	_, err = client.VerifyEmail(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access tokens are not confirmation tokens")
}

func TestDirectory_VerifierAcceptsAccessToken(t *testing.T) {
	dir := NewDirectory(testSecret)
	session, err := dir.Client("").CreateAccount(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)

	ja := dir.Verifier()
	handler := jwtauth.Verifier(ja)(jwtauth.Authenticator(ja)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, claims["sub"])
		assert.Equal(t, "a@x.com", claims["email"])
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(BackendConfig{Kind: "memory", JWTSecret: testSecret})
	require.NoError(t, err)
	assert.IsType(t, &Directory{}, b)

	_, err = NewBackend(BackendConfig{Kind: "memory"})
	assert.Error(t, err)

	b, err = NewBackend(BackendConfig{Kind: "gotrue", GoTrue: GoTrueConfig{URL: "https://auth.example.com"}})
	require.NoError(t, err)
	assert.IsType(t, &GoTrue{}, b)

	_, err = NewBackend(BackendConfig{Kind: "ldap"})
	assert.Error(t, err)
}

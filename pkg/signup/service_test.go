package signup

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verify/pkg/emailverification"
	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/tokenstore"
)

// MockProvider is a testify mock of identity.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateAccount(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if s := args.Get(0); s != nil {
		return s.(*identity.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	if s := args.Get(0); s != nil {
		return s.(*identity.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProvider) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockProvider) VerifyEmail(ctx context.Context, token string) (*identity.Session, error) {
	args := m.Called(ctx, token)
	if s := args.Get(0); s != nil {
		return s.(*identity.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) GetSession(ctx context.Context) (*identity.Session, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*identity.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) Subscribe(listener identity.Listener) func() {
	return func() {}
}

var confirmLink = regexp.MustCompile(`href="([^"]*/verify/confirm\?[^"]*)"`)

// tokenFromMail pulls the token out of the confirm link of the last message
func tokenFromMail(t *testing.T, provider *notification.MockProvider) string {
	t.Helper()
	msg, ok := provider.Last()
	require.True(t, ok)
	m := confirmLink.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2)
	u, err := url.Parse(regexp.MustCompile(`&amp;`).ReplaceAllString(m[1], "&"))
	require.NoError(t, err)
	return u.Query().Get("token")
}

func setup(t *testing.T) (*SignupService, *notification.MockProvider, *tokenstore.Store) {
	mailProvider := &notification.MockProvider{}
	svc := NewSignupService(emailverification.NewMailer(mailProvider), "https://app.example.com")
	store := tokenstore.New(tokenstore.NewMemoryKV(), "client-1")
	return svc, mailProvider, store
}

func TestValidate(t *testing.T) {
	svc := NewSignupService(nil, "https://app.example.com")
	tests := []struct {
		name string
		req  SignUpRequest
		code pkgerrors.ErrorCode
	}{
		{name: "valid", req: SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}},
		{name: "deferred password", req: SignUpRequest{Email: "a@x.com"}},
		{name: "missing email", req: SignUpRequest{Password: "pw123456", ConfirmPassword: "pw123456"}, code: pkgerrors.ErrCodeMissingRequired},
		{name: "bad email", req: SignUpRequest{Email: "a@", Password: "pw123456", ConfirmPassword: "pw123456"}, code: pkgerrors.ErrCodeInvalidFormat},
		{name: "short password", req: SignUpRequest{Email: "a@x.com", Password: "12345", ConfirmPassword: "12345"}, code: pkgerrors.ErrCodeValidationFailed},
		{name: "mismatch", req: SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw1234567"}, code: pkgerrors.ErrCodeValidationFailed},
		{name: "only confirm", req: SignUpRequest{Email: "a@x.com", ConfirmPassword: "pw123456"}, code: pkgerrors.ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.req)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, 400, pkgerrors.MapErrorCodeToHTTPStatus(pkgerrors.GetCode(err)))
		})
	}
}

func TestSignUp_IssuesAndMails(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)

	err := svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"})
	require.NoError(t, err)

	require.Len(t, mailProvider.Messages(), 1)
	token := tokenFromMail(t, mailProvider)
	assert.NotEmpty(t, token)

	rec, err := store.Match(ctx, "a@x.com", token)
	require.NoError(t, err)
	assert.Equal(t, "pw123456", rec.Password)
}

func TestSignUp_MailFailureClearsPendingSignup(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	mailProvider.Err = &notification.DeliveryError{Provider: "Resend", Status: 422, Body: "invalid"}

	err := svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMailDelivery))
	assert.Equal(t, "Resend API error: 422 invalid", pkgerrors.UserMessage(err))

	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNoPendingSignup)
}

func TestSignUp_MailFailureKeepsEarlierPendingSignup(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)

	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}))
	first := tokenFromMail(t, mailProvider)
	before, err := store.Get(ctx)
	require.NoError(t, err)

	mailProvider.Err = &notification.DeliveryError{Provider: "Resend", Status: 500, Body: "unavailable"}
	err = svc.SignUp(ctx, store, SignUpRequest{Email: "b@x.com", Password: "other123", ConfirmPassword: "other123"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMailDelivery))

	rec, err := store.Match(ctx, "a@x.com", first)
	require.NoError(t, err)
	assert.Equal(t, "pw123456", rec.Password)
	assert.Equal(t, before.ExpiresAt.Unix(), rec.ExpiresAt.Unix())
}

func TestSignUp_InvalidInputTouchesNothing(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)

	err := svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "123", ConfirmPassword: "123"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidationFailed))
	assert.Empty(t, mailProvider.Messages())
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNoPendingSignup)
}

func TestSignUp_RegistrationDisabled(t *testing.T) {
	mailProvider := &notification.MockProvider{}
	svc := NewSignupService(emailverification.NewMailer(mailProvider), "https://app.example.com", WithRegistrationEnabled(false))
	store := tokenstore.New(tokenstore.NewMemoryKV(), "client-1")

	err := svc.SignUp(context.Background(), store, SignUpRequest{Email: "a@x.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeUnauthorized))
	assert.Empty(t, mailProvider.Messages())
}

func TestCompleteSignUp_HappyPath(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}))
	token := tokenFromMail(t, mailProvider)

	provider := &MockProvider{}
	provider.On("CreateAccount", mock.Anything, "a@x.com", "pw123456").
		Return(&identity.Session{AccessToken: "tok", User: identity.User{ID: "u-1", Email: "a@x.com"}}, nil).Once()

	// the password supplied at completion is ignored when one is stored
	session, err := svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "something-else")
	require.NoError(t, err)
	assert.Equal(t, "u-1", session.User.ID)
	provider.AssertExpectations(t)

	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNoPendingSignup)

	// replaying the link fails and creates nothing
	_, err = svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNoPendingSignup))
	provider.AssertNumberOfCalls(t, "CreateAccount", 1)
}

func TestCompleteSignUp_WrongToken(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}))
	token := tokenFromMail(t, mailProvider)

	provider := &MockProvider{}

	tests := []struct {
		name  string
		email string
		token string
	}{
		{name: "wrong token", email: "a@x.com", token: "not-the-token"},
		{name: "wrong email", email: "b@x.com", token: token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompleteSignUp(ctx, store, provider, tt.email, tt.token, "")
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTokenMismatch))
			assert.ErrorIs(t, err, tokenstore.ErrTokenMismatch)
			assert.Equal(t, "Invalid verification token", pkgerrors.UserMessage(err))
		})
	}
	provider.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)

	_, err := store.Match(ctx, "a@x.com", token)
	assert.NoError(t, err, "pending signup survives rejected attempts")
}

func TestCompleteSignUp_ProviderFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}))
	token := tokenFromMail(t, mailProvider)

	provider := &MockProvider{}
	provider.On("CreateAccount", mock.Anything, "a@x.com", "pw123456").
		Return(nil, errors.New("User already registered")).Once()

	_, err := svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeProvider))
	assert.Equal(t, "User already registered", pkgerrors.UserMessage(err))

	_, err = store.Match(ctx, "a@x.com", token)
	assert.NoError(t, err)
}

func TestCompleteSignUp_DeferredPassword(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com"}))
	token := tokenFromMail(t, mailProvider)

	provider := &MockProvider{}

	_, err := svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMissingRequired))

	_, err = svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "123")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidationFailed))

	provider.On("CreateAccount", mock.Anything, "a@x.com", "late-pw-1").
		Return(&identity.Session{User: identity.User{ID: "u-9"}}, nil).Once()
	session, err := svc.CompleteSignUp(ctx, store, provider, "a@x.com", token, "late-pw-1")
	require.NoError(t, err)
	assert.Equal(t, "u-9", session.User.ID)
}

func TestVerify_DoesNotMutate(t *testing.T) {
	ctx := context.Background()
	svc, mailProvider, store := setup(t)
	require.NoError(t, svc.SignUp(ctx, store, SignUpRequest{Email: "a@x.com", Password: "pw123456", ConfirmPassword: "pw123456"}))
	token := tokenFromMail(t, mailProvider)

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(ctx, store, "a@x.com", token)
		require.NoError(t, err)
	}
	_, err := svc.Verify(ctx, store, "a@x.com", "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTokenMismatch))

	_, err = svc.Verify(ctx, tokenstore.New(tokenstore.NewMemoryKV(), "other"), "a@x.com", token)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeNoPendingSignup))
}

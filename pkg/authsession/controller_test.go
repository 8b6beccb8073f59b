package authsession

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/tokenstore"
)

const testSecret = "authsession-test-secret-0123456789abcdef"

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) CompleteSignUp(ctx context.Context, store *tokenstore.Store, provider identity.Provider, email, token, password string) (*identity.Session, error) {
	args := m.Called(ctx, store, provider, email, token, password)
	session, _ := args.Get(0).(*identity.Session)
	return session, args.Error(1)
}

func TestController_StartWithoutSession(t *testing.T) {
	dir := identity.NewDirectory(testSecret)
	c := NewController(dir.Client(""))
	assert.True(t, c.Snapshot().Loading)

	require.NoError(t, c.Start(context.Background()))
	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Nil(t, s.User)
	assert.Nil(t, s.Session)
}

func TestController_FollowsSessionChanges(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	_, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	c := NewController(dir.Client(""))
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	session, err := c.SignIn(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	s := c.Snapshot()
	require.NotNil(t, s.User)
	assert.Equal(t, "a@x.com", s.User.Email)
	assert.Equal(t, session.AccessToken, s.Session.AccessToken)

	require.NoError(t, c.SignOut(ctx))
	s = c.Snapshot()
	assert.Nil(t, s.User)
	assert.Nil(t, s.Session)
}

func TestController_StartWithExistingSession(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	session, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	c := NewController(dir.Client(session.AccessToken))
	require.NoError(t, c.Start(ctx))
	s := c.Snapshot()
	require.NotNil(t, s.User)
	assert.Equal(t, session.User.ID, s.User.ID)
}

func TestController_CloseIgnoresUpdates(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	_, err := dir.Client("").CreateAccount(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)

	c := NewController(dir.Client(""))
	require.NoError(t, c.Start(ctx))
	c.Close()
	c.Close()

	_, err = c.SignIn(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Nil(t, c.Snapshot().User)
}

func TestController_ProviderErrors(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	c := NewController(dir.Client(""))

	_, err := c.SignIn(ctx, "nobody@x.com", "pw123456")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeProvider))
	assert.Equal(t, "Invalid login credentials", pkgerrors.UserMessage(err))
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = c.SignUp(ctx, "a@x.com", "123")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeProvider))
	assert.Equal(t, identity.ErrWeakPassword.Error(), pkgerrors.UserMessage(err))

	assert.NoError(t, c.ResendVerification(ctx, "unknown@x.com"))
}

func TestController_CompleteSignUp(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	provider := dir.Client("")
	store := tokenstore.New(tokenstore.NewMemoryKV(), "client-1")

	_, err := NewController(provider).CompleteSignUp(ctx, "a@x.com", "t", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInternal))
	assert.ErrorIs(t, err, ErrNoCompleter)

	completer := &MockCompleter{}
	mismatch := pkgerrors.New(pkgerrors.ErrCodeTokenMismatch, "Invalid verification token")
	completer.On("CompleteSignUp", ctx, store, provider, "a@x.com", "bad", "").Return(nil, mismatch)
	completer.On("CompleteSignUp", ctx, store, provider, "a@x.com", "good", "").Return(nil, errors.New("User already registered"))

	c := NewController(provider, WithCompleter(completer, store))
	_, err = c.CompleteSignUp(ctx, "a@x.com", "bad", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTokenMismatch), "structured errors pass through")

	_, err = c.CompleteSignUp(ctx, "a@x.com", "good", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeProvider))
	assert.Equal(t, "User already registered", pkgerrors.UserMessage(err))
	completer.AssertExpectations(t)
}

func TestController_SnapshotIsConsistent(t *testing.T) {
	ctx := context.Background()
	dir := identity.NewDirectory(testSecret)
	for _, email := range []string{"a@x.com", "b@x.com"} {
		_, err := dir.Client("").CreateAccount(ctx, email, "pw123456")
		require.NoError(t, err)
	}

	c := NewController(dir.Client(""))
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			s := c.Snapshot()
			if s.Session != nil {
				assert.Equal(t, s.Session.User.Email, s.User.Email)
			} else {
				assert.Nil(t, s.User)
			}
		}
	}()

	for i := 0; i < 20; i++ {
		email := "a@x.com"
		if i%2 == 1 {
			email = "b@x.com"
		}
		_, err := c.SignIn(ctx, email, "pw123456")
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

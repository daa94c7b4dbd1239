package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAPI implements client.API for testing
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Login(ctx context.Context, email, password string, remember bool) (*client.LoginResponse, error) {
	args := m.Called(ctx, email, password, remember)
	if res, ok := args.Get(0).(*client.LoginResponse); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPI) RequestVerificationCode(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAPI) CompleteRegistration(ctx context.Context, name, email, password, code string) error {
	args := m.Called(ctx, name, email, password, code)
	return args.Error(0)
}

func (m *MockAPI) CurrentUser(ctx context.Context, token string) (*client.UserInfo, error) {
	args := m.Called(ctx, token)
	if user, ok := args.Get(0).(*client.UserInfo); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPI) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func testUserInfo() client.UserInfo {
	return client.UserInfo{
		ID:    "user-1",
		Name:  "Pepe Rone",
		Email: "pepe@example.com",
		Role:  auth.RoleUser,
	}
}

func newTestMachine(api client.API) (*client.Machine, *client.MemoryStore, *client.MemoryStore) {
	ephemeral := client.NewMemoryStore()
	durable := client.NewMemoryStore()
	store := client.NewAdapter(ephemeral, durable)
	return client.NewMachine(api, store), ephemeral, durable
}

func TestMachineLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success lands in ephemeral tier", func(t *testing.T) {
		api := new(MockAPI)
		machine, ephemeral, durable := newTestMachine(api)

		api.On("Login", ctx, "pepe@example.com", "password123", false).
			Return(&client.LoginResponse{
				User:      testUserInfo(),
				Token:     "token-abc",
				ExpiresIn: 86400,
				Remember:  false,
			}, nil).Once()

		require.NoError(t, machine.Login(ctx, "pepe@example.com", "password123", false))

		assert.Equal(t, client.StateAuthenticated, machine.State())
		assert.Equal(t, client.StatusSucceeded, machine.RequestState(client.OpLogin).Status)

		session := machine.Session()
		require.NotNil(t, session)
		assert.Equal(t, "user-1", session.UserID)
		assert.Equal(t, "token-abc", session.Token)
		assert.Equal(t, client.TierEphemeral, session.Tier)

		saved, err := ephemeral.Load()
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "token-abc", saved.Token)
		assert.False(t, saved.Remember)

		fromDurable, err := durable.Load()
		require.NoError(t, err)
		assert.Nil(t, fromDurable)

		api.AssertExpectations(t)
	})

	t.Run("remember lands in durable tier", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, durable := newTestMachine(api)

		api.On("Login", ctx, "pepe@example.com", "password123", true).
			Return(&client.LoginResponse{
				User:      testUserInfo(),
				Token:     "token-abc",
				ExpiresIn: 2592000,
				Remember:  true,
			}, nil).Once()

		require.NoError(t, machine.Login(ctx, "pepe@example.com", "password123", true))

		session := machine.Session()
		require.NotNil(t, session)
		assert.Equal(t, client.TierDurable, session.Tier)

		saved, err := durable.Load()
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.True(t, saved.Remember)
	})

	t.Run("server remember ack wins over request", func(t *testing.T) {
		api := new(MockAPI)
		machine, ephemeral, _ := newTestMachine(api)

		api.On("Login", ctx, "pepe@example.com", "password123", true).
			Return(&client.LoginResponse{
				User:      testUserInfo(),
				Token:     "token-abc",
				ExpiresIn: 86400,
				Remember:  false,
			}, nil).Once()

		require.NoError(t, machine.Login(ctx, "pepe@example.com", "password123", true))

		saved, err := ephemeral.Load()
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.False(t, saved.Remember)
	})

	t.Run("failure stays anonymous", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, _ := newTestMachine(api)

		api.On("Login", ctx, "pepe@example.com", "wrong", false).
			Return(nil, auth.ErrInvalidCredentials).Once()

		err := machine.Login(ctx, "pepe@example.com", "wrong", false)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		assert.Equal(t, client.StateAnonymous, machine.State())
		assert.Nil(t, machine.Session())

		rs := machine.RequestState(client.OpLogin)
		assert.Equal(t, client.StatusFailed, rs.Status)
		assert.ErrorIs(t, rs.Err, auth.ErrInvalidCredentials)
	})
}

// gatedLoginAPI blocks the login for one email until released so tests
// can interleave two in-flight logins.
type gatedLoginAPI struct {
	MockAPI
	block   string
	started chan struct{}
	release chan struct{}
}

func (g *gatedLoginAPI) Login(ctx context.Context, email, password string, remember bool) (*client.LoginResponse, error) {
	if email == g.block {
		g.started <- struct{}{}
		<-g.release
	}
	return g.MockAPI.Login(ctx, email, password, remember)
}

// gatedCurrentUserAPI blocks the first session check until released and
// reports a rejected token from it; later calls use the mock.
type gatedCurrentUserAPI struct {
	MockAPI
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (g *gatedCurrentUserAPI) CurrentUser(ctx context.Context, token string) (*client.UserInfo, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first {
		g.started <- struct{}{}
		<-g.release
		return nil, nil
	}
	return g.MockAPI.CurrentUser(ctx, token)
}

func TestMachineLoginSupersededResponseLeavesStorageAlone(t *testing.T) {
	ctx := context.Background()

	api := &gatedLoginAPI{
		block:   "stale@example.com",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	machine, ephemeral, durable := newTestMachine(api)

	api.On("Login", mock.Anything, "stale@example.com", "password123", true).
		Return(&client.LoginResponse{
			User:      testUserInfo(),
			Token:     "token-stale",
			ExpiresIn: 2592000,
			Remember:  true,
		}, nil).Once()
	api.On("Login", mock.Anything, "fresh@example.com", "password123", false).
		Return(&client.LoginResponse{
			User:      testUserInfo(),
			Token:     "token-fresh",
			ExpiresIn: 86400,
			Remember:  false,
		}, nil).Once()

	staleDone := make(chan error, 1)
	go func() {
		staleDone <- machine.Login(ctx, "stale@example.com", "password123", true)
	}()

	// The first login is in flight; the second supersedes it.
	<-api.started
	require.NoError(t, machine.Login(ctx, "fresh@example.com", "password123", false))

	close(api.release)
	require.NoError(t, <-staleDone)

	// Memory and storage both hold the winning session.
	session := machine.Session()
	require.NotNil(t, session)
	assert.Equal(t, "token-fresh", session.Token)
	assert.Equal(t, client.StatusSucceeded, machine.RequestState(client.OpLogin).Status)

	saved, err := ephemeral.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "token-fresh", saved.Token)

	fromDurable, err := durable.Load()
	require.NoError(t, err)
	assert.Nil(t, fromDurable)

	api.AssertExpectations(t)
}

func TestMachineRegistrationFlow(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	machine, _, _ := newTestMachine(api)

	api.On("RequestVerificationCode", ctx, "pepe@example.com").Return(nil).Once()
	api.On("CompleteRegistration", ctx, "Pepe Rone", "pepe@example.com", "password123", "123456").
		Return(nil).Once()
	api.On("Login", ctx, "pepe@example.com", "password123", false).
		Return(&client.LoginResponse{
			User:      testUserInfo(),
			Token:     "token-abc",
			ExpiresIn: 86400,
		}, nil).Once()

	require.NoError(t, machine.RequestVerificationCode(ctx, "pepe@example.com"))
	assert.Equal(t, client.StatePendingVerification, machine.State())

	// Redeeming the code does not authenticate by itself.
	require.NoError(t, machine.CompleteRegistration(ctx, "Pepe Rone", "pepe@example.com", "password123", "123456"))
	assert.Equal(t, client.StatePendingVerification, machine.State())
	assert.Equal(t, client.StatusSucceeded, machine.RequestState(client.OpCompleteRegistration).Status)

	require.NoError(t, machine.Login(ctx, "pepe@example.com", "password123", false))
	assert.Equal(t, client.StateAuthenticated, machine.State())

	api.AssertExpectations(t)
}

func TestMachineLogout(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	machine, ephemeral, durable := newTestMachine(api)

	api.On("Login", ctx, "pepe@example.com", "password123", true).
		Return(&client.LoginResponse{
			User:      testUserInfo(),
			Token:     "token-abc",
			ExpiresIn: 2592000,
			Remember:  true,
		}, nil).Once()
	api.On("Logout", ctx, "token-abc").Return(nil).Once()

	require.NoError(t, machine.Login(ctx, "pepe@example.com", "password123", true))
	require.NoError(t, machine.Logout(ctx))

	assert.Equal(t, client.StateAnonymous, machine.State())
	assert.Nil(t, machine.Session())

	fromEphemeral, err := ephemeral.Load()
	require.NoError(t, err)
	assert.Nil(t, fromEphemeral)

	fromDurable, err := durable.Load()
	require.NoError(t, err)
	assert.Nil(t, fromDurable)

	api.AssertExpectations(t)
}

func waitHydrate(t *testing.T, machine *client.Machine, ctx context.Context) error {
	t.Helper()

	done := make(chan error, 1)
	machine.Hydrate(ctx, func(err error) { done <- err })

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("hydrate did not finish")
		return nil
	}
}

func TestMachineHydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("empty stores stay anonymous", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, _ := newTestMachine(api)

		require.NoError(t, waitHydrate(t, machine, ctx))

		assert.Equal(t, client.StateAnonymous, machine.State())
		assert.Equal(t, client.StatusSucceeded, machine.RequestState(client.OpHydrate).Status)
	})

	t.Run("valid artifacts restore the session", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, durable := newTestMachine(api)

		issuedAt := time.Now().Add(-time.Minute).Truncate(time.Second)
		require.NoError(t, durable.Save(&client.Artifacts{
			Token:     "token-abc",
			IssuedAt:  issuedAt,
			ExpiresAt: time.Now().Add(time.Hour),
			Role:      auth.RoleUser,
			Remember:  true,
		}))

		user := testUserInfo()
		api.On("CurrentUser", ctx, "token-abc").Return(&user, nil).Once()

		require.NoError(t, waitHydrate(t, machine, ctx))

		assert.Equal(t, client.StateAuthenticated, machine.State())

		session := machine.Session()
		require.NotNil(t, session)
		assert.Equal(t, "user-1", session.UserID)
		assert.Equal(t, "token-abc", session.Token)
		assert.Equal(t, issuedAt, session.IssuedAt)
		assert.Equal(t, client.TierDurable, session.Tier)

		api.AssertExpectations(t)
	})

	t.Run("rejected token clears artifacts", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, durable := newTestMachine(api)

		require.NoError(t, durable.Save(&client.Artifacts{
			Token:     "stale-token",
			ExpiresAt: time.Now().Add(time.Hour),
			Role:      auth.RoleUser,
			Remember:  true,
		}))

		api.On("CurrentUser", ctx, "stale-token").Return(nil, nil).Once()

		require.NoError(t, waitHydrate(t, machine, ctx))

		assert.Equal(t, client.StateAnonymous, machine.State())

		fromDurable, err := durable.Load()
		require.NoError(t, err)
		assert.Nil(t, fromDurable)

		api.AssertExpectations(t)
	})

	t.Run("superseded hydrate does not clear artifacts", func(t *testing.T) {
		api := &gatedCurrentUserAPI{
			started: make(chan struct{}),
			release: make(chan struct{}),
		}
		machine, _, durable := newTestMachine(api)

		require.NoError(t, durable.Save(&client.Artifacts{
			Token:     "token-abc",
			ExpiresAt: time.Now().Add(time.Hour),
			Role:      auth.RoleUser,
			Remember:  true,
		}))

		user := testUserInfo()
		api.On("CurrentUser", mock.Anything, "token-abc").Return(&user, nil).Once()

		staleDone := make(chan error, 1)
		machine.Hydrate(ctx, func(err error) { staleDone <- err })

		// The first hydrate is blocked in flight; the second supersedes
		// it and restores the session.
		<-api.started
		require.NoError(t, waitHydrate(t, machine, ctx))
		assert.Equal(t, client.StateAuthenticated, machine.State())

		// The stale response reports a rejected token; its clear must be
		// discarded along with the rest of the response.
		close(api.release)
		require.NoError(t, <-staleDone)

		assert.Equal(t, client.StateAuthenticated, machine.State())

		fromDurable, err := durable.Load()
		require.NoError(t, err)
		require.NotNil(t, fromDurable)
		assert.Equal(t, "token-abc", fromDurable.Token)
	})

	t.Run("expired artifacts are ignored", func(t *testing.T) {
		api := new(MockAPI)
		machine, _, durable := newTestMachine(api)

		require.NoError(t, durable.Save(&client.Artifacts{
			Token:     "expired-token",
			ExpiresAt: time.Now().Add(-time.Hour),
			Role:      auth.RoleUser,
			Remember:  true,
		}))

		require.NoError(t, waitHydrate(t, machine, ctx))

		assert.Equal(t, client.StateAnonymous, machine.State())
	})
}

package auth_test

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	auth "github.com/goliatone/go-shop-auth"
	"github.com/stretchr/testify/mock"
)

// MockUserStore implements auth.UserStore for testing
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*auth.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockIdentityProvider implements auth.IdentityProvider for testing
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, email, password string) (auth.Identity, error) {
	args := m.Called(ctx, email, password)
	if identity, ok := args.Get(0).(auth.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (auth.Identity, error) {
	args := m.Called(ctx, id)
	if identity, ok := args.Get(0).(auth.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMailer implements auth.Mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// testIdentity is a plain value implementing auth.Identity
type testIdentity struct {
	id    string
	name  string
	email string
	role  auth.Role
}

func (t testIdentity) ID() string      { return t.id }
func (t testIdentity) Name() string    { return t.name }
func (t testIdentity) Email() string   { return t.email }
func (t testIdentity) Role() auth.Role { return t.role }

// testConfig is a plain value implementing auth.Config
type testConfig struct {
	signingKey       string
	tokenExpiration  int
	extendedDuration int
	issuer           string
	audience         []string
}

func (c testConfig) GetSigningKey() string          { return c.signingKey }
func (c testConfig) GetContextKey() string          { return "auth_token" }
func (c testConfig) GetTokenExpiration() int        { return c.tokenExpiration }
func (c testConfig) GetExtendedTokenDuration() int  { return c.extendedDuration }
func (c testConfig) GetAuthScheme() string          { return "Bearer" }
func (c testConfig) GetIssuer() string              { return c.issuer }
func (c testConfig) GetAudience() []string          { return c.audience }

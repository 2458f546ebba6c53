package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	identity "github.com/talenthub/go-identity"
	"github.com/uptrace/bun"
)

// assertTextCode unwraps the rich error and checks its text code, which
// identifies the failure across clones of the same sentinel
func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()
	var richErr *goerrors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, textCode, richErr.TextCode)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// testConfig satisfies identity.Config with fixed values
type testConfig struct {
	SigningKey        string
	ContextKey        string
	TokenExpiration   int
	RefreshExpiration int
	Issuer            string
	Audience          []string
	GoogleClientID    string
	BaseURL           string
}

func newTestConfig() testConfig {
	return testConfig{
		SigningKey:        "test-signing-key",
		ContextKey:        "session",
		TokenExpiration:   60,
		RefreshExpiration: 24,
		Issuer:            "test-issuer",
		Audience:          []string{"test-audience"},
		BaseURL:           "http://localhost:8080",
	}
}

func (c testConfig) GetSigningKey() string     { return c.SigningKey }
func (c testConfig) GetSigningMethod() string  { return "HS256" }
func (c testConfig) GetContextKey() string     { return c.ContextKey }
func (c testConfig) GetTokenExpiration() int   { return c.TokenExpiration }
func (c testConfig) GetRefreshExpiration() int { return c.RefreshExpiration }
func (c testConfig) GetTokenLookup() string    { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string     { return "Bearer" }
func (c testConfig) GetIssuer() string         { return c.Issuer }
func (c testConfig) GetAudience() []string     { return c.Audience }
func (c testConfig) GetGoogleClientID() string { return c.GoogleClientID }
func (c testConfig) GetBaseURL() string        { return c.BaseURL }

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

// MockRepositoryManager implements identity.RepositoryManager. When the
// configured RunInTx expectation returns nil, the transaction body runs
// with a zero bun.Tx and its error propagates to the caller.
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Accounts() identity.Accounts {
	args := m.Called()
	return args.Get(0).(identity.Accounts)
}

func (m *MockRepositoryManager) ApplicantProfiles() identity.ApplicantProfiles {
	args := m.Called()
	return args.Get(0).(identity.ApplicantProfiles)
}

func (m *MockRepositoryManager) HRProfiles() identity.HRProfiles {
	args := m.Called()
	return args.Get(0).(identity.HRProfiles)
}

// MockAuthenticator satisfies identity.Authenticator and identity.PairIssuer
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, identifier, password string) (*identity.SessionPair, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SessionPair), args.Error(1)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*identity.SessionPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SessionPair), args.Error(1)
}

func (m *MockAuthenticator) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthenticator) SessionFromToken(token string) (identity.Session, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Session), args.Error(1)
}

func (m *MockAuthenticator) IdentityFromSession(ctx context.Context, session identity.Session) (identity.Identity, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *MockAuthenticator) IssuePair(id identity.Identity) (*identity.SessionPair, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SessionPair), args.Error(1)
}

// MockAccounts satisfies identity.Accounts through interface embedding;
// only the methods tests exercise are implemented.
type MockAccounts struct {
	identity.Accounts
	mock.Mock
}

func (m *MockAccounts) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Account, criteria ...repository.InsertCriteria) (*identity.Account, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccounts) ResolveOrCreateTx(ctx context.Context, tx bun.IDB, record *identity.Account) (*identity.Account, bool, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*identity.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccounts) VerifyEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) DeleteTx(ctx context.Context, tx bun.IDB, record *identity.Account) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockAccounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) ActivateWithPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockApplicantProfiles satisfies identity.ApplicantProfiles
type MockApplicantProfiles struct {
	identity.ApplicantProfiles
	mock.Mock
}

func (m *MockApplicantProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.ApplicantProfile, criteria ...repository.InsertCriteria) (*identity.ApplicantProfile, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.ApplicantProfile), args.Error(1)
}

// MockHRProfiles satisfies identity.HRProfiles
type MockHRProfiles struct {
	identity.HRProfiles
	mock.Mock
}

func (m *MockHRProfiles) CreateTx(ctx context.Context, tx bun.IDB, record *identity.HRProfile, criteria ...repository.InsertCriteria) (*identity.HRProfile, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.HRProfile), args.Error(1)
}

func (m *MockHRProfiles) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.HRProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.HRProfile), args.Error(1)
}

func (m *MockHRProfiles) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*identity.HRProfile, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.HRProfile), args.Error(1)
}

func (m *MockHRProfiles) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// capturingSink records dispatched notifications
type capturingSink struct {
	mu       sync.Mutex
	messages []identity.Notification
}

func (c *capturingSink) Send(ctx context.Context, msg identity.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *capturingSink) sent() []identity.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]identity.Notification, len(c.messages))
	copy(out, c.messages)
	return out
}

// stubVerifier implements identity.IDTokenVerifier
type stubVerifier struct {
	identity *identity.FederatedIdentity
	err      error
}

func (s *stubVerifier) VerifyIDToken(ctx context.Context, rawToken string) (*identity.FederatedIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

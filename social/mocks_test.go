package social_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	identity "github.com/tunelab/go-identity"
	"github.com/tunelab/go-identity/social"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockRepositoryManager implements identity.RepositoryManager over the
// repository mocks below. RunInTx executes the function against a zero
// bun.Tx; the mocks ignore the tx argument.
type MockRepositoryManager struct {
	users *MockUsers
	creds *MockCredentials
	roles *MockRoles
}

func newMockRepo() *MockRepositoryManager {
	return &MockRepositoryManager{
		users: &MockUsers{},
		creds: &MockCredentials{},
		roles: &MockRoles{},
	}
}

func (m *MockRepositoryManager) Users() identity.Users             { return m.users }
func (m *MockRepositoryManager) Credentials() identity.Credentials { return m.creds }
func (m *MockRepositoryManager) Roles() identity.Roles             { return m.roles }

func (m *MockRepositoryManager) EmailVerificationCodes() identity.CodeStore[*identity.EmailVerificationCode] {
	return nil
}

func (m *MockRepositoryManager) PasswordResetCodes() identity.CodeStore[*identity.PasswordResetCode] {
	return nil
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) assertExpectations(t mock.TestingT) {
	m.users.AssertExpectations(t)
	m.creds.AssertExpectations(t)
	m.roles.AssertExpectations(t)
}

type MockUsers struct {
	mock.Mock
	repository.Repository[*identity.User]
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*identity.User, error) {
	args := m.Called(ctx, tx, username)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) UsernameExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	args := m.Called(ctx, tx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) Activate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) Create(ctx context.Context, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

type MockCredentials struct {
	mock.Mock
	repository.Repository[*identity.Credential]
}

func (m *MockCredentials) GetByEmail(ctx context.Context, email string) (*identity.Credential, error) {
	args := m.Called(ctx, email)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*identity.Credential, error) {
	args := m.Called(ctx, tx, email)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByUsername(ctx context.Context, username string) (*identity.Credential, error) {
	args := m.Called(ctx, username)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*identity.Credential, error) {
	args := m.Called(ctx, tx, username)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByLoginIdentifier(ctx context.Context, identifier string) (*identity.Credential, error) {
	args := m.Called(ctx, identifier)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByLoginIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*identity.Credential, error) {
	args := m.Called(ctx, tx, identifier)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByUserID(ctx context.Context, userID uuid.UUID) (*identity.Credential, error) {
	args := m.Called(ctx, userID)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*identity.Credential, error) {
	args := m.Called(ctx, tx, userID)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByProviderSubject(ctx context.Context, provider identity.AuthProvider, subject string) (*identity.Credential, error) {
	args := m.Called(ctx, provider, subject)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider identity.AuthProvider, subject string) (*identity.Credential, error) {
	args := m.Called(ctx, tx, provider, subject)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) Create(ctx context.Context, record *identity.Credential, criteria ...repository.InsertCriteria) (*identity.Credential, error) {
	args := m.Called(ctx, record)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Credential, criteria ...repository.InsertCriteria) (*identity.Credential, error) {
	args := m.Called(ctx, tx, record)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) Save(ctx context.Context, record *identity.Credential) (*identity.Credential, error) {
	args := m.Called(ctx, record)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) SaveTx(ctx context.Context, tx bun.IDB, record *identity.Credential) (*identity.Credential, error) {
	args := m.Called(ctx, tx, record)
	cred, _ := args.Get(0).(*identity.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) SetRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	args := m.Called(ctx, tx, id, token)
	return args.Error(0)
}

func (m *MockCredentials) RotateRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, oldToken, newToken string) error {
	args := m.Called(ctx, tx, id, oldToken, newToken)
	return args.Error(0)
}

func (m *MockCredentials) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockCredentials) AttachRoleTx(ctx context.Context, tx bun.IDB, credentialID, roleID uuid.UUID) error {
	args := m.Called(ctx, tx, credentialID, roleID)
	return args.Error(0)
}

type MockRoles struct {
	mock.Mock
	repository.Repository[*identity.Role]
}

func (m *MockRoles) GetByName(ctx context.Context, name identity.RoleName) (*identity.Role, error) {
	args := m.Called(ctx, name)
	role, _ := args.Get(0).(*identity.Role)
	return role, args.Error(1)
}

func (m *MockRoles) GetByNameTx(ctx context.Context, tx bun.IDB, name identity.RoleName) (*identity.Role, error) {
	args := m.Called(ctx, tx, name)
	role, _ := args.Get(0).(*identity.Role)
	return role, args.Error(1)
}

// fakeProvider is a canned Provider for controller tests.
type fakeProvider struct {
	name        string
	profile     *social.Profile
	exchangeErr error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*social.Profile, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.profile, nil
}

package identity_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	identity "github.com/tunelab/go-identity"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockRepositoryManager implements identity.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock

	txCalls int
}

func (m *MockRepositoryManager) Users() identity.Users {
	args := m.Called()
	return args.Get(0).(identity.Users)
}

func (m *MockRepositoryManager) Credentials() identity.Credentials {
	args := m.Called()
	return args.Get(0).(identity.Credentials)
}

func (m *MockRepositoryManager) Roles() identity.Roles {
	args := m.Called()
	return args.Get(0).(identity.Roles)
}

func (m *MockRepositoryManager) EmailVerificationCodes() identity.CodeStore[*identity.EmailVerificationCode] {
	args := m.Called()
	return args.Get(0).(identity.CodeStore[*identity.EmailVerificationCode])
}

func (m *MockRepositoryManager) PasswordResetCodes() identity.CodeStore[*identity.PasswordResetCode] {
	args := m.Called()
	return args.Get(0).(identity.CodeStore[*identity.PasswordResetCode])
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx executes the function against a zero bun.Tx; repository mocks
// ignore the tx argument, so no real transaction is needed.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	m.txCalls++
	var tx bun.Tx
	return f(ctx, tx)
}

// MockUsers implements identity.Users; the embedded repository interface
// covers the generic methods no test exercises.
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

// MockCredentials implements identity.Credentials
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

// MockRoles implements identity.Roles
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

// MockCodeStore implements identity.CodeStore for either code model.
type MockCodeStore[T identity.CodeRecord] struct {
	mock.Mock
}

func (m *MockCodeStore[T]) ReplaceTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, expiresAt time.Time) (T, error) {
	args := m.Called(ctx, tx, userID, code, expiresAt)
	record, _ := args.Get(0).(T)
	return record, args.Error(1)
}

func (m *MockCodeStore[T]) GetByCode(ctx context.Context, code string) (T, error) {
	args := m.Called(ctx, code)
	record, _ := args.Get(0).(T)
	return record, args.Error(1)
}

func (m *MockCodeStore[T]) GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (T, error) {
	args := m.Called(ctx, tx, code)
	record, _ := args.Get(0).(T)
	return record, args.Error(1)
}

func (m *MockCodeStore[T]) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockCodeStore[T]) DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	args := m.Called(ctx, now, batchSize)
	return args.Get(0).(int64), args.Error(1)
}

// MockMailer implements identity.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	identity "github.com/tunelab/go-identity"
)

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	setup := func() (*MockRepositoryManager, *MockUsers, *MockCredentials, *MockRoles, *MockCodeStore[*identity.EmailVerificationCode]) {
		repo := &MockRepositoryManager{}
		users := &MockUsers{}
		creds := &MockCredentials{}
		roles := &MockRoles{}
		codes := &MockCodeStore[*identity.EmailVerificationCode]{}

		repo.On("Users").Return(users)
		repo.On("Credentials").Return(creds)
		repo.On("Roles").Return(roles)
		repo.On("EmailVerificationCodes").Return(codes)

		return repo, users, creds, roles, codes
	}

	t.Run("creates an inactive account and mails a code", func(t *testing.T) {
		repo, users, creds, roles, codes := setup()
		mailer := &MockMailer{}

		userID := uuid.New()
		credID := uuid.New()
		roleID := uuid.New()

		users.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *identity.User) bool {
			return u.Username == "bob" && !u.IsActive
		})).Return(&identity.User{ID: userID, Username: "bob"}, nil).Once()

		creds.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(c *identity.Credential) bool {
			return c.UserID == userID &&
				c.Email == "bob@example.com" &&
				c.PasswordHash != "" &&
				c.Provider == identity.ProviderLocal
		})).Return(&identity.Credential{ID: credID, UserID: userID, Email: "bob@example.com"}, nil).Once()

		roles.On("GetByNameTx", mock.Anything, mock.Anything, identity.RoleUser).
			Return(&identity.Role{ID: roleID, Name: identity.RoleUser}, nil).Once()
		creds.On("AttachRoleTx", mock.Anything, mock.Anything, credID, roleID).Return(nil).Once()

		codes.On("ReplaceTx", mock.Anything, mock.Anything, userID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
			Return(&identity.EmailVerificationCode{
				ID:        uuid.New(),
				Code:      "ABC234",
				UserID:    userID,
				ExpiresAt: time.Now().Add(cfg.CodeTTL),
			}, nil).Once()

		mailer.On("Send", mock.Anything, "bob@example.com", mock.Anything, mock.MatchedBy(func(body string) bool {
			return len(body) > 0
		})).Return(nil).Once()

		var resp *identity.RegisterUserResponse
		handler := identity.NewRegisterUserHandler(repo, cfg).
			WithMailer(mailer).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "bob",
			Email:    "BOB@example.com",
			Password: "long-enough-pass",
			OnResponse: func(r *identity.RegisterUserResponse) {
				resp = r
			},
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "ABC234", resp.Verification.Code)

		users.AssertExpectations(t)
		creds.AssertExpectations(t)
		codes.AssertExpectations(t)
		mailer.AssertExpectations(t)
	})

	t.Run("username collision reads as duplicate identifier", func(t *testing.T) {
		repo, users, _, _, _ := setup()

		users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New(`UNIQUE constraint failed: users.username`)).Once()

		handler := identity.NewRegisterUserHandler(repo, cfg).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "taken",
			Email:    "taken@example.com",
			Password: "long-enough-pass",
		})

		assertTextCode(t, err, identity.TextCodeDuplicateIdentifier)
	})

	t.Run("mail failure does not fail registration", func(t *testing.T) {
		repo, users, creds, roles, codes := setup()
		mailer := &MockMailer{}

		userID := uuid.New()
		credID := uuid.New()

		users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.User{ID: userID, Username: "carol"}, nil).Once()
		creds.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.Credential{ID: credID, UserID: userID, Email: "carol@example.com"}, nil).Once()
		roles.On("GetByNameTx", mock.Anything, mock.Anything, identity.RoleUser).
			Return(&identity.Role{ID: uuid.New(), Name: identity.RoleUser}, nil).Once()
		creds.On("AttachRoleTx", mock.Anything, mock.Anything, credID, mock.Anything).Return(nil).Once()
		codes.On("ReplaceTx", mock.Anything, mock.Anything, userID, mock.Anything, mock.Anything).
			Return(&identity.EmailVerificationCode{Code: "XYZ789", UserID: userID}, nil).Once()

		mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp unreachable")).Once()

		handler := identity.NewRegisterUserHandler(repo, cfg).
			WithMailer(mailer).
			WithLogger(testLogger{})

		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "carol",
			Email:    "carol@example.com",
			Password: "long-enough-pass",
		})

		assert.NoError(t, err)
	})

	t.Run("missing role reference data is fatal", func(t *testing.T) {
		repo, users, creds, roles, _ := setup()

		userID := uuid.New()
		users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.User{ID: userID}, nil).Once()
		creds.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.Credential{ID: uuid.New(), UserID: userID}, nil).Once()
		roles.On("GetByNameTx", mock.Anything, mock.Anything, identity.RoleUser).
			Return(nil, errors.New("no rows")).Once()

		handler := identity.NewRegisterUserHandler(repo, cfg).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "dave",
			Email:    "dave@example.com",
			Password: "long-enough-pass",
		})

		assertTextCode(t, err, identity.TextCodeRoleNotConfigured)
	})

	t.Run("hash failure never opens a transaction", func(t *testing.T) {
		repo, users, _, _, _ := setup()

		handler := identity.NewRegisterUserHandler(repo, cfg).WithLogger(testLogger{})
		err := handler.Execute(ctx, identity.RegisterUserMessage{
			Username: "frank",
			Email:    "frank@example.com",
			Password: "",
		})

		assert.Error(t, err)
		assert.Zero(t, repo.txCalls, "hashing must fail before any transaction starts")
		users.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		repo, _, _, _, _ := setup()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		handler := identity.NewRegisterUserHandler(repo, cfg).WithLogger(testLogger{})
		err := handler.Execute(cancelled, identity.RegisterUserMessage{
			Username: "erin",
			Email:    "erin@example.com",
			Password: "long-enough-pass",
		})

		assert.Error(t, err)
	})
}

package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Credentials() Credentials
	Roles() Roles
	EmailVerificationCodes() CodeStore[*EmailVerificationCode]
	PasswordResetCodes() CodeStore[*PasswordResetCode]
}

type mngr struct {
	db          *bun.DB
	users       Users
	credentials Credentials
	roles       Roles
	emailCodes  CodeStore[*EmailVerificationCode]
	resetCodes  CodeStore[*PasswordResetCode]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	// the m2m join models have to be registered before bun can resolve
	// Relation("Roles") and Relation("Roles.Permits")
	db.RegisterModel((*CredentialRole)(nil))
	db.RegisterModel((*RolePermit)(nil))

	return &mngr{
		db:          db,
		users:       NewUsersRepository(db),
		credentials: NewCredentialsRepository(db),
		roles:       NewRolesRepository(db),
		emailCodes:  NewEmailVerificationCodes(db),
		resetCodes:  NewPasswordResetCodes(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.credentials == nil {
		return errors.New("repository credentials should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.emailCodes == nil {
		return errors.New("repository emailCodes should be initialized")
	}

	if m.resetCodes == nil {
		return errors.New("repository resetCodes should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Credentials() Credentials {
	return m.credentials
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) EmailVerificationCodes() CodeStore[*EmailVerificationCode] {
	return m.emailCodes
}

func (m mngr) PasswordResetCodes() CodeStore[*PasswordResetCode] {
	return m.resetCodes
}

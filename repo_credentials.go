package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Credentials is the authentication-half store. Login identifier lookups
// accept an email or a username; emails are normalized to lowercase before
// every comparison so the unique constraint cannot be dodged by casing.
type Credentials interface {
	repository.Repository[*Credential]

	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Credential, error)
	GetByUsername(ctx context.Context, username string) (*Credential, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Credential, error)
	GetByLoginIdentifier(ctx context.Context, identifier string) (*Credential, error)
	GetByLoginIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Credential, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Credential, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Credential, error)
	GetByProviderSubject(ctx context.Context, provider AuthProvider, subject string) (*Credential, error)
	GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider AuthProvider, subject string) (*Credential, error)

	Create(ctx context.Context, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error)
	Save(ctx context.Context, record *Credential) (*Credential, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *Credential) (*Credential, error)

	SetRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error
	RotateRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, oldToken, newToken string) error
	SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	AttachRoleTx(ctx context.Context, tx bun.IDB, credentialID, roleID uuid.UUID) error
}

type credentials struct {
	repository.Repository[*Credential]
	db *bun.DB
}

var (
	_ Credentials                        = (*credentials)(nil)
	_ repository.Repository[*Credential] = (*credentials)(nil)
)

func NewCredentialsRepository(db *bun.DB) Credentials {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &credentials{
		Repository: repo,
		db:         db,
	}
}

func (a *credentials) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *credentials) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Credential, error) {
	return a.selectOne(ctx, tx, "?TableAlias.email = ?", NormalizeEmail(email))
}

func (a *credentials) GetByUsername(ctx context.Context, username string) (*Credential, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *credentials) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Credential, error) {
	return a.selectOne(ctx, tx,
		"?TableAlias.user_id IN (SELECT id FROM users WHERE username = ?)",
		strings.TrimSpace(username))
}

// GetByLoginIdentifier resolves the generic "email or username" login field.
func (a *credentials) GetByLoginIdentifier(ctx context.Context, identifier string) (*Credential, error) {
	return a.GetByLoginIdentifierTx(ctx, a.db, identifier)
}

func (a *credentials) GetByLoginIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Credential, error) {
	if isEmail(identifier) {
		return a.GetByEmailTx(ctx, tx, identifier)
	}
	return a.GetByUsernameTx(ctx, tx, identifier)
}

func (a *credentials) GetByUserID(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	return a.GetByUserIDTx(ctx, a.db, userID)
}

func (a *credentials) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Credential, error) {
	return a.selectOne(ctx, tx, "?TableAlias.user_id = ?", userID)
}

func (a *credentials) GetByProviderSubject(ctx context.Context, provider AuthProvider, subject string) (*Credential, error) {
	return a.GetByProviderSubjectTx(ctx, a.db, provider, subject)
}

func (a *credentials) GetByProviderSubjectTx(ctx context.Context, tx bun.IDB, provider AuthProvider, subject string) (*Credential, error) {
	return a.selectOne(ctx, tx,
		"?TableAlias.provider = ? AND ?TableAlias.provider_subject = ?",
		provider, subject)
}

func (a *credentials) selectOne(ctx context.Context, tx bun.IDB, where string, args ...any) (*Credential, error) {
	record := &Credential{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Relation("Roles").
		Relation("Roles.Permits").
		Where(where, args...).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"criteria": where})
		}
		return nil, err
	}

	return record, nil
}

func (a *credentials) Create(ctx context.Context, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *credentials) CreateTx(ctx context.Context, tx bun.IDB, record *Credential, criteria ...repository.InsertCriteria) (*Credential, error) {
	prepareCredentialDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// Save updates an existing credential or creates a new one. Writers racing
// on the same row must prefer the targeted Set* methods below; Save is for
// whole-record profile edits.
func (a *credentials) Save(ctx context.Context, record *Credential) (*Credential, error) {
	return a.SaveTx(ctx, a.db, record)
}

func (a *credentials) SaveTx(ctx context.Context, tx bun.IDB, record *Credential) (*Credential, error) {
	prepareCredentialDefaults(record)

	if record.ID == uuid.Nil {
		return a.CreateTx(ctx, tx, record)
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
}

func (a *credentials) SetRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	res, err := tx.NewUpdate().
		Model((*Credential)(nil)).
		Set("refresh_token = ?", token).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

// RotateRefreshTokenTx is the compare-and-swap behind refresh rotation: the
// stored token must still equal oldToken at write time. When two refresh
// attempts race with the same token, the row matches exactly once and the
// loser observes ErrInvalidRefreshToken.
func (a *credentials) RotateRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, oldToken, newToken string) error {
	res, err := tx.NewUpdate().
		Model((*Credential)(nil)).
		Set("refresh_token = ?", newToken).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND refresh_token = ?", id, oldToken).
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidRefreshToken
	}

	return nil
}

func (a *credentials) SetPasswordHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*Credential)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *credentials) AttachRoleTx(ctx context.Context, tx bun.IDB, credentialID, roleID uuid.UUID) error {
	_, err := tx.NewInsert().
		Model(&CredentialRole{CredentialID: credentialID, RoleID: roleID}).
		Ignore().
		Exec(ctx)
	return err
}

func prepareCredentialDefaults(record *Credential) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Provider == "" {
		record.Provider = ProviderLocal
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func isEmail(identifier string) bool {
	_, err := mail.ParseAddress(strings.TrimSpace(identifier))
	return err == nil
}

package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthProvider tags where a credential's proof of identity comes from.
type AuthProvider = string

const (
	// ProviderLocal is a password-backed account.
	ProviderLocal AuthProvider = "local"
	// ProviderGoogle is an account established through Google sign-in.
	ProviderGoogle AuthProvider = "google"
)

// User is the application-facing half of an account. It owns exactly one
// Credential; the pair is created together at registration or first OAuth
// login and is never hard-deleted here (deactivation is a flag).
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	IsActive      bool       `bun:"is_active" json:"is_active"`
	IsBanned      bool       `bun:"is_banned" json:"is_banned"`
	Credential    *Credential `bun:"rel:has-one,join:id=user_id" json:"credential,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Credential is the authentication-relevant half of an account.
//
// Email is globally unique and stored lowercased. PasswordHash is empty for
// pure-OAuth accounts. RefreshToken holds the single active refresh token
// for the account; rotation overwrites it, which is what invalidates a
// superseded token before its expiry.
type Credential struct {
	bun.BaseModel   `bun:"table:credentials,alias:cred"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID          uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User            *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Email           string     `bun:"email,unique" json:"email,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"-"`
	Provider        AuthProvider `bun:"provider,notnull" json:"provider,omitempty"`
	ProviderSubject string     `bun:"provider_subject" json:"provider_subject,omitempty"`
	RefreshToken    string     `bun:"refresh_token" json:"-"`
	Biography       string     `bun:"biography" json:"biography,omitempty"`
	PictureURL      string     `bun:"picture_url" json:"picture_url,omitempty"`
	Roles           []*Role    `bun:"m2m:credential_roles,join:Credential=Role" json:"roles,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether local login is possible for this credential.
func (c *Credential) HasPassword() bool {
	return c != nil && c.PasswordHash != ""
}

// RoleNames returns the names of the attached roles.
func (c *Credential) RoleNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// PermitNames flattens the permit union across the attached roles,
// preserving first-seen order.
func (c *Credential) PermitNames() []string {
	if c == nil {
		return nil
	}
	seen := map[string]bool{}
	names := []string{}
	for _, r := range c.Roles {
		if r == nil {
			continue
		}
		for _, p := range r.Permits {
			if p == nil || seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// constraint agree on what "same address" means.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Role is reference data: a flat enumerated tag with a permit set. Rows are
// seeded by migration, never created per request.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:role"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string    `bun:"name,notnull,unique" json:"name,omitempty"`
	Permits       []*Permit `bun:"m2m:role_permits,join:Role=Permit" json:"permits,omitempty"`
}

// Permit is a flat capability tag attached to roles.
type Permit struct {
	bun.BaseModel `bun:"table:permits,alias:perm"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string    `bun:"name,notnull,unique" json:"name,omitempty"`
}

// CredentialRole joins credentials to roles.
type CredentialRole struct {
	bun.BaseModel `bun:"table:credential_roles,alias:credrole"`
	CredentialID  uuid.UUID   `bun:"credential_id,pk,type:uuid"`
	Credential    *Credential `bun:"rel:belongs-to,join:credential_id=id"`
	RoleID        uuid.UUID   `bun:"role_id,pk,type:uuid"`
	Role          *Role       `bun:"rel:belongs-to,join:role_id=id"`
}

// RolePermit joins roles to permits.
type RolePermit struct {
	bun.BaseModel `bun:"table:role_permits,alias:roleperm"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id"`
	PermitID      uuid.UUID `bun:"permit_id,pk,type:uuid"`
	Permit        *Permit   `bun:"rel:belongs-to,join:permit_id=id"`
}

// EmailVerificationCode activates a freshly registered local account. At
// most one row exists per user; initiating again replaces it.
type EmailVerificationCode struct {
	bun.BaseModel `bun:"table:email_verification_codes,alias:evc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string     `bun:"code,notnull,unique" json:"code,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// PasswordResetCode authorizes a password change. Same lifecycle as
// EmailVerificationCode, kept as its own table so the workflows cannot
// consume each other's codes.
type PasswordResetCode struct {
	bun.BaseModel `bun:"table:password_reset_codes,alias:prc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string     `bun:"code,notnull,unique" json:"code,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

func (c *EmailVerificationCode) GetID() uuid.UUID { return c.ID }
func (c *EmailVerificationCode) GetCode() string { return c.Code }
func (c *EmailVerificationCode) GetUserID() uuid.UUID { return c.UserID }
func (c *EmailVerificationCode) GetExpiresAt() time.Time { return c.ExpiresAt }

func (c *PasswordResetCode) GetID() uuid.UUID { return c.ID }
func (c *PasswordResetCode) GetCode() string { return c.Code }
func (c *PasswordResetCode) GetUserID() uuid.UUID { return c.UserID }
func (c *PasswordResetCode) GetExpiresAt() time.Time { return c.ExpiresAt }

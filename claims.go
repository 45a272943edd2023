package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeRefresh is the typ claim carried by refresh tokens so an access
// token can never be replayed against the refresh endpoint.
const TokenTypeRefresh = "refresh"

// JWTClaims is the claim set for both token kinds. Access tokens carry the
// flattened role/permission sets; refresh tokens carry only the subject and
// the refresh type marker.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID         string   `json:"uid,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	TokenType   string   `json:"typ,omitempty"`
}

// UserID returns the account id carried by the token.
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// IsRefresh reports whether this is a refresh token claim set.
func (c *JWTClaims) IsRefresh() bool {
	return c.TokenType == TokenTypeRefresh
}

// HasRole checks the role set carried in the token.
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks the flattened permission set carried in the token.
func (c *JWTClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Expires returns the expiration time, zero when absent.
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issue time, zero when absent.
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

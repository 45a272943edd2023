package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredentials is the stable code for any login failure.
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeNotAuthenticated is the stable code for a missing principal.
	TextCodeNotAuthenticated = "NOT_AUTHENTICATED"
	// TextCodeAccessDenied is the stable code for ownership violations.
	TextCodeAccessDenied = "ACCESS_DENIED"
	// TextCodeInvalidCode is the stable code for a bad verification code.
	TextCodeInvalidCode = "INVALID_OR_EXPIRED_CODE"
	// TextCodeInvalidRefreshToken is the stable code for refresh failures.
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	// TextCodeDuplicateIdentifier is the stable code for registration collisions.
	TextCodeDuplicateIdentifier = "DUPLICATE_IDENTIFIER"
	// TextCodeRoleNotConfigured is the stable code for missing reference data.
	TextCodeRoleNotConfigured = "ROLE_NOT_CONFIGURED"
	// TextCodeTokenExpired is the stable code for expired JWTs.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed is the stable code for undecodable JWTs.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeAccountBanned is the stable code for banned accounts.
	TextCodeAccountBanned = "ACCOUNT_BANNED"
	// TextCodeAccountDeactivated is the stable code for inactive accounts.
	TextCodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
)

// ErrInvalidCredentials is returned for every login failure. Missing
// accounts and wrong passwords are deliberately indistinguishable so the
// endpoint cannot be used to enumerate registered emails.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrNotAuthenticated is returned when no principal is attached to the
// request context.
var ErrNotAuthenticated = errors.New("not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrAccessDenied is returned when an authenticated caller acts on a
// resource they do not own.
var ErrAccessDenied = errors.New("access denied", errors.CategoryAuth).
	WithTextCode(TextCodeAccessDenied).
	WithCode(errors.CodeForbidden)

// ErrInvalidOrExpiredCode is returned when a verification or reset code is
// unknown, already consumed, or past its expiry.
var ErrInvalidOrExpiredCode = errors.New("invalid or expired code", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidCode).
	WithCode(errors.CodeBadRequest)

// ErrInvalidRefreshToken is returned when a refresh token is expired,
// forged, or superseded by rotation.
var ErrInvalidRefreshToken = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(errors.CodeForbidden)

// ErrDuplicateIdentifier is returned when registration collides with an
// existing username or email.
var ErrDuplicateIdentifier = errors.New("username or email already taken", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentifier).
	WithCode(errors.CodeBadRequest)

// ErrRoleNotConfigured signals missing role reference data. It is fatal at
// startup, not a per-request condition a client should ever see.
var ErrRoleNotConfigured = errors.New("role reference data not configured", errors.CategoryInternal).
	WithTextCode(TextCodeRoleNotConfigured)

// ErrAccountBanned blocks OAuth sign-in for banned accounts.
var ErrAccountBanned = errors.New("account is banned", errors.CategoryAuth).
	WithTextCode(TextCodeAccountBanned).
	WithCode(errors.CodeForbidden)

// ErrAccountDeactivated blocks sign-in for deactivated accounts.
var ErrAccountDeactivated = errors.New("account is deactivated", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDeactivated).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is the structured mapping for jwt expiry failures.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is the structured mapping for undecodable tokens.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens, including ones
// surfaced by wrapping layers that only preserve the message.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsUniqueViolation reports whether err came from a unique constraint.
// bun surfaces the driver error verbatim, so this matches the message text
// for the engines we run against (postgres, sqlite).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

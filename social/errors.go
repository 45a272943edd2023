package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "social_provider_not_found"
	TextCodeInvalidState      = "social_invalid_state"
	TextCodeStateExpired      = "social_state_expired"
	TextCodeExchangeFailed    = "social_exchange_failed"
	TextCodeProfileIncomplete = "social_profile_incomplete"
	TextCodeEmailNotVerified  = "social_email_not_verified"
	TextCodeUsernameExhausted = "social_username_exhausted"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrExchangeFailed is returned when the provider code exchange fails.
var ErrExchangeFailed = errors.New("provider exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProfileIncomplete is returned when the provider payload lacks the
// fields resolution cannot proceed without (subject and email).
var ErrProfileIncomplete = errors.New("provider profile incomplete", errors.CategoryAuth).
	WithTextCode(TextCodeProfileIncomplete).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified is returned when the provider has not verified the
// email it asserts. Matching an unverified email against a local account
// would let an attacker hijack it through the provider.
var ErrEmailNotVerified = errors.New("email not verified by provider", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrUsernameGenerationExhausted is returned when no collision-free
// username could be derived for a new account.
var ErrUsernameGenerationExhausted = errors.New("could not derive an available username", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameExhausted).
	WithCode(errors.CodeConflict)

package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Config carries every tunable the package needs. It is plain data passed
// by dependency injection; there is no process-global configuration state.
type Config struct {
	// SigningKey is the server-held symmetric key for HS256 tokens.
	SigningKey string   `env:"IDENTITY_SIGNING_KEY"`
	Issuer     string   `env:"IDENTITY_ISSUER" envDefault:"tunelab"`
	Audience   []string `env:"IDENTITY_AUDIENCE" envSeparator:","`

	AccessTokenTTL  time.Duration `env:"IDENTITY_ACCESS_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"IDENTITY_REFRESH_TTL" envDefault:"720h"`

	// CodeTTL bounds how long a verification or reset code stays usable.
	CodeTTL    time.Duration `env:"IDENTITY_CODE_TTL" envDefault:"10m"`
	CodeLength int           `env:"IDENTITY_CODE_LENGTH" envDefault:"6"`

	CleanupInterval  time.Duration `env:"IDENTITY_CLEANUP_INTERVAL" envDefault:"24h"`
	CleanupBatchSize int           `env:"IDENTITY_CLEANUP_BATCH" envDefault:"500"`

	// OAuthSuccessURL receives ?token=...&refresh_token=... after a
	// successful provider callback; OAuthFailureURL receives ?oauthError=...
	OAuthSuccessURL string `env:"IDENTITY_OAUTH_SUCCESS_URL"`
	OAuthFailureURL string `env:"IDENTITY_OAUTH_FAILURE_URL"`

	// State keys protect the OAuth redirect round-trip (AES-GCM + HMAC).
	StateEncryptionKey string `env:"IDENTITY_STATE_ENC_KEY"`
	StateHMACKey       string `env:"IDENTITY_STATE_HMAC_KEY"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse identity configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the settings the security invariants depend on.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.AccessTokenTTL, validation.Required),
		validation.Field(&c.RefreshTokenTTL, validation.Required),
		validation.Field(&c.CodeTTL, validation.Required),
		validation.Field(&c.CodeLength, validation.Min(4)),
		validation.Field(&c.CleanupInterval, validation.Required),
		validation.Field(&c.CleanupBatchSize, validation.Min(1)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid identity configuration")
	}

	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return goerrors.New("refresh TTL must exceed access TTL", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{
				"access_ttl":  c.AccessTokenTTL.String(),
				"refresh_ttl": c.RefreshTokenTTL.String(),
			})
	}

	return nil
}

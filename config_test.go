package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/tunelab/go-identity"
)

func TestConfigValidate(t *testing.T) {
	t.Run("accepts a complete config", func(t *testing.T) {
		assert.NoError(t, testConfig().Validate())
	})

	t.Run("requires a signing key of useful length", func(t *testing.T) {
		cfg := testConfig()
		cfg.SigningKey = "too-short"
		assert.Error(t, cfg.Validate())

		cfg.SigningKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("refresh TTL must exceed access TTL", func(t *testing.T) {
		cfg := testConfig()
		cfg.AccessTokenTTL = time.Hour
		cfg.RefreshTokenTTL = time.Hour
		assert.Error(t, cfg.Validate())
	})

	t.Run("code length has a floor", func(t *testing.T) {
		cfg := testConfig()
		cfg.CodeLength = 2
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("IDENTITY_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("IDENTITY_ISSUER", "tunelab-env")
	t.Setenv("IDENTITY_AUDIENCE", "api,web")
	t.Setenv("IDENTITY_ACCESS_TTL", "5m")
	t.Setenv("IDENTITY_CODE_LENGTH", "8")

	cfg, err := identity.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "tunelab-env", cfg.Issuer)
	assert.Equal(t, []string{"api", "web"}, cfg.Audience)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 8, cfg.CodeLength)
	// defaults fill the rest
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.CodeTTL)
}

package config

import (
	"testing"
	"time"

	"narrative-server/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	utils.SecretsDir = t.TempDir()

	t.Run("defaults with env secrets", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("AI_API_KEY", "sk-test")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

		cfg, err := LoadConfig("does-not-exist.env")
		require.NoError(t, err)

		assert.Equal(t, "3001", cfg.Port)
		assert.Equal(t, "authenticated", cfg.JWTAudience)
		assert.Equal(t, 45*time.Second, cfg.ExtractionTimeout)
		assert.Equal(t, 15*time.Second, cfg.ListenerTimeout)
		assert.Equal(t, 30*time.Second, cfg.HelperTimeout)
		assert.Equal(t, "postgres://postgres:pw@localhost:5432/narrative?sslmode=disable", cfg.GetDSN())
		assert.NotContains(t, cfg.MaskedDSN(), "pw")
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetAllowedOrigins())
	})

	t.Run("ollama does not need api key", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("AI_CLIENT_TYPE", "ollama")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Empty(t, cfg.AIAPIKey)
	})

	t.Run("no jwt key material", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("AI_API_KEY", "sk-test")

		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

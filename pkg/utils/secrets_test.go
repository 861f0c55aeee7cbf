package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecretOrEnv(t *testing.T) {
	dir := t.TempDir()
	prev := SecretsDir
	SecretsDir = dir
	t.Cleanup(func() { SecretsDir = prev })

	t.Run("file wins over env", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("  from-file\n"), 0o600))
		t.Setenv("DB_PASSWORD", "from-env")

		got, err := ReadSecretOrEnv("db_password", "DB_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, "from-file", got)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "from-env")

		got, err := ReadSecretOrEnv("jwt_secret", "JWT_SECRET")
		require.NoError(t, err)
		assert.Equal(t, "from-env", got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadSecretOrEnv("nope", "NOPE_NOT_SET")
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("empty file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("   "), 0o600))
		_, err := ReadSecret("empty")
		assert.Error(t, err)
	})
}

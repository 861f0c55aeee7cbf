package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("debug level json", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Encoding: "json"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		l, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zap.DebugLevel))
		assert.True(t, l.Core().Enabled(zap.InfoLevel))
	})
}

func TestParseEncoding(t *testing.T) {
	assert.Equal(t, "console", parseEncoding("CONSOLE"))
	assert.Equal(t, "json", parseEncoding("xml"))
	assert.Equal(t, "json", parseEncoding(""))
}

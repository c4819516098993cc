package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8007, cfg.HTTPPort)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RemoteConfigured())
}

func TestLoad_RemoteConfigured(t *testing.T) {
	t.Setenv("WISHLIST_API_BASE_URL", "https://api.example.com/v2")
	t.Setenv("WISHLIST_API_TOKEN", "secret")
	t.Setenv("WISHLIST_USER_ID", "user-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RemoteConfigured())
	assert.Equal(t, "user-1", cfg.UserID)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("WISHLIST_HTTP_PORT", "99999")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "1.5")

	_, err := Load()
	require.Error(t, err)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverConfig struct {
	Port     int      `env:"WLTEST_PORT" envDefault:"8007"`
	Host     string   `env:"WLTEST_HOST" envDefault:"localhost"`
	LogLevel string   `env:"WLTEST_LOG_LEVEL" envDefault:"info"`
	Legacy   bool     `env:"WLTEST_LEGACY" envDefault:"false"`
	Origins  []string `env:"WLTEST_ORIGINS" envDefault:"*" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg serverConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8007, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Legacy)
	assert.Equal(t, []string{"*"}, cfg.Origins)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("WLTEST_PORT", "9090")
	t.Setenv("WLTEST_HOST", "0.0.0.0")
	t.Setenv("WLTEST_LOG_LEVEL", "debug")
	t.Setenv("WLTEST_LEGACY", "true")
	t.Setenv("WLTEST_ORIGINS", "https://a.example.com,https://b.example.com")

	var cfg serverConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Legacy)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Origins)
}

type tokenConfig struct {
	APIToken string `env:"WLTEST_API_TOKEN,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg tokenConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RequiredFieldPresent(t *testing.T) {
	t.Setenv("WLTEST_API_TOKEN", "token-abc123")

	var cfg tokenConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "token-abc123", cfg.APIToken)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("WLTEST_PORT", "not-a-number")

	var cfg serverConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"HOST", "PORT", "REQUEST_TIMEOUT", "UPSTREAM_TIMEOUT", "MAX_REQUEST_BODY_SIZE",
		"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "VERBOSE_ERRORS", "REQUIRE_API_KEY",
		"ALLOWED_ORIGINS", configFileEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.ServerAddress())
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxRequestBodySize)
	assert.Equal(t, DefaultAnthropicBaseURL, cfg.AnthropicBaseURL)
	assert.False(t, cfg.VerboseErrors)
	assert.False(t, cfg.HasAPIKey())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("ANTHROPIC_API_KEY", "  sk-test  ")
	t.Setenv("VERBOSE_ERRORS", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
	assert.True(t, cfg.VerboseErrors)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"non-numeric port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"zero body size", "MAX_REQUEST_BODY_SIZE", "0"},
		{"bad base url", "ANTHROPIC_BASE_URL", "ftp://nowhere"},
		{"origin without scheme", "ALLOWED_ORIGINS", "garden.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv_RequireAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUIRE_API_KEY", "true")

	_, err := LoadFromEnv()
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.HasAPIKey())
}

func TestLoadFromEnv_YAMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := []byte(`
port: "7000"
upstream_timeout: 15s
verbose_errors: true
allowed_origins:
  - https://leaf.example
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv(configFileEnv, path)
	t.Setenv("PORT", "7100")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.True(t, cfg.VerboseErrors)
	assert.Equal(t, []string{"https://leaf.example"}, cfg.AllowedOrigins)
}

func TestLoadFromEnv_MissingYAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

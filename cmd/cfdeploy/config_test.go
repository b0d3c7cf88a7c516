package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"CFDEPLOY_API_URL",
		"CFDEPLOY_API_TOKEN",
		"CFDEPLOY_API_TIMEOUT",
		"CFDEPLOY_RETRY_MAX_ATTEMPTS",
		"CFDEPLOY_RETRY_BACKOFF",
		"CFDEPLOY_HISTORY_ENABLED",
		"CFDEPLOY_HISTORY_DSN",
		"CFDEPLOY_LOG_LEVEL",
		"CFDEPLOY_LOG_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.API.URL)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "exponential", cfg.Retry.Backoff)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxInterval)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "./data/cfdeploy.db", cfg.History.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
api:
  url: "https://api.run.example.com"
  token: "secret"
  timeout: 30s

retry:
  max_attempts: 5
  backoff: fixed
  initial_interval: 1s

history:
  enabled: true
  dsn: "/tmp/history.db"

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "https://api.run.example.com", cfg.API.URL)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "fixed", cfg.Retry.Backoff)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("CFDEPLOY_API_URL", "https://override.example.com")
	t.Setenv("CFDEPLOY_API_TOKEN", "env-token")
	t.Setenv("CFDEPLOY_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("CFDEPLOY_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com", cfg.API.URL)
	assert.Equal(t, "env-token", cfg.API.Token)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("api: [broken\n"), 0644))

	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
}

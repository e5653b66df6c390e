package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every GEN3_ env var that Load() reads.
var allConfigKeys = []string{
	"GEN3_KEY_FILE",
	"GEN3_API_URL",
	"GEN3_API_VERSION",
	"GEN3_HTTP_TIMEOUT",
	"GEN3_DB_PATH",
	"GEN3_LOG_LEVEL",
}

// isolateConfigEnv saves and unsets all GEN3_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores them.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GEN3_KEY_FILE", "/secrets/gen3.json")
	t.Setenv("GEN3_API_URL", " https://data.test.biocommons.org.au ")
	t.Setenv("GEN3_API_VERSION", "v1")
	t.Setenv("GEN3_HTTP_TIMEOUT", "30s")
	t.Setenv("GEN3_DB_PATH", "/tmp/gen3.db")
	t.Setenv("GEN3_LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/secrets/gen3.json", cfg.KeyFile)
	assert.Equal(t, "https://data.test.biocommons.org.au", cfg.APIURL)
	assert.Equal(t, "v1", cfg.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "/tmp/gen3.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.HasDB())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "credentials.json", cfg.KeyFile)
	assert.Empty(t, cfg.APIURL)
	assert.Equal(t, "v0", cfg.APIVersion)
	assert.Zero(t, cfg.HTTPTimeout)
	assert.False(t, cfg.HasDB())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EmptyValuesKeepDefaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GEN3_KEY_FILE", "")
	t.Setenv("GEN3_API_VERSION", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "credentials.json", cfg.KeyFile)
	assert.Equal(t, "v0", cfg.APIVersion)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GEN3_HTTP_TIMEOUT", "soon")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEN3_HTTP_TIMEOUT")
}

func TestLoad_NegativeTimeout(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GEN3_HTTP_TIMEOUT", "-1s")

	_, err := Load()

	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLogLevel(tc.in))
		})
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "key=value")
}

// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	KeyFile     string
	APIURL      string
	APIVersion  string
	HTTPTimeout time.Duration
	DBPath      string
	LogLevel    string
}

// HasDB reports whether flattened tables should also be written to SQLite.
func (c *Config) HasDB() bool {
	return c.DBPath != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: GEN3_KEY_FILE (credentials.json), GEN3_API_URL
// (empty, inferred from the api_key), GEN3_API_VERSION (v0),
// GEN3_HTTP_TIMEOUT (0, no timeout), GEN3_DB_PATH (empty, export disabled),
// GEN3_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		KeyFile:    "credentials.json",
		APIVersion: model.DefaultAPIVersion,
		LogLevel:   "info",
	}

	if v, ok := os.LookupEnv("GEN3_KEY_FILE"); ok && v != "" {
		cfg.KeyFile = v
	}

	if v, ok := os.LookupEnv("GEN3_API_URL"); ok {
		cfg.APIURL = strings.TrimSpace(v)
	}

	if v, ok := os.LookupEnv("GEN3_API_VERSION"); ok && v != "" {
		cfg.APIVersion = v
	}

	if v, ok := os.LookupEnv("GEN3_HTTP_TIMEOUT"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GEN3_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("GEN3_HTTP_TIMEOUT must not be negative, got %s", parsed)
		}
		cfg.HTTPTimeout = parsed
	}

	if v, ok := os.LookupEnv("GEN3_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("GEN3_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// ParseLogLevel parses a log level string into slog.Level.
// Accepts: debug, info, warn, error (case-insensitive).
// Returns LevelInfo if the input is invalid or empty.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger on w. Data goes to stdout, so callers
// normally pass os.Stderr.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}))
}

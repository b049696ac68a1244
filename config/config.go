// Package config loads resource model build settings from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. RESTREE_LOG_LEVEL.
const Prefix = "RESTREE"

// Config holds build and dispatch settings.
type Config struct {
	// DisableValidation skips method and parameter validation. Merge
	// conflicts are still reported.
	DisableValidation bool `envconfig:"DISABLE_VALIDATION" default:"false"`
	// IgnoreValidationErrors logs fatal validation issues but installs the
	// model anyway.
	IgnoreValidationErrors bool `envconfig:"IGNORE_VALIDATION_ERRORS" default:"false"`

	MaskInternalErrors bool `envconfig:"MASK_INTERNAL_ERRORS" default:"false"`

	// MaxRequestBodySize limits entity and form bodies. 0 disables the limit.
	MaxRequestBodySize int64 `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`

	// LogLevel is one of debug, info, warn or error. Empty leaves the
	// level to the caller, which is info for the default logger.
	LogLevel string `envconfig:"LOG_LEVEL"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxRequestBodySize < 0 {
		return fmt.Errorf("config: %s_MAX_REQUEST_BODY_SIZE must not be negative, got %d", Prefix, c.MaxRequestBodySize)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %s_LOG_LEVEL: %w", Prefix, err)
	}
	return nil
}

// SlogLevel returns the configured log level, or slog.LevelInfo when the
// level is unset or unknown.
func (c *Config) SlogLevel() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

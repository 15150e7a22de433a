// Package config loads engine settings from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/mrzor/appdebug/internal/logging"
	"github.com/mrzor/appdebug/internal/pm"
)

// DefaultMarkerPathFormat is where the marker manager drops one file per
// (user, package) that should be debuggable. The verbs are user id then
// package name.
const DefaultMarkerPathFormat = "/data/user_de/%d/tw.idv.appdebug/debuggable/%s"

// Config holds the engine configuration.
type Config struct {
	// MarkerPathFormat formats the marker path from (user, package).
	MarkerPathFormat string `env:"APPDEBUG_MARKER_PATH_FORMAT"`
	// LegacyCutoffSDK is the platform version from which the legacy bulk
	// query is no longer hooked.
	LegacyCutoffSDK int `env:"APPDEBUG_LEGACY_CUTOFF_SDK"`
	// Guard is an optional expression over package and user that must hold
	// before a marker is consulted.
	Guard string `env:"APPDEBUG_GUARD"`
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `env:"APPDEBUG_LOG_LEVEL"`
	// LogPretty switches to console output.
	LogPretty bool `env:"APPDEBUG_LOG_PRETTY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MarkerPathFormat: DefaultMarkerPathFormat,
		LegacyCutoffSDK:  pm.SDKTiramisu,
		LogLevel:         "info",
	}
}

// Load parses the environment on top of Default and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the marker format takes exactly one integer and one
// string verb, in that order. Literal %% is allowed anywhere.
func (c *Config) Validate() error {
	if c.MarkerPathFormat == "" {
		return fmt.Errorf("marker path format cannot be empty")
	}

	verbs := strings.ReplaceAll(c.MarkerPathFormat, "%%", "")
	d := strings.Index(verbs, "%d")
	s := strings.Index(verbs, "%s")
	if d < 0 || s < 0 || d > s || strings.Count(verbs, "%") != 2 {
		return fmt.Errorf("marker path format %q must contain %%d then %%s", c.MarkerPathFormat)
	}

	if c.LegacyCutoffSDK <= 0 {
		return fmt.Errorf("legacy cutoff SDK must be positive, got %d", c.LegacyCutoffSDK)
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for tickwork.
package config

import (
	"github.com/flemzord/tickwork/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the default persistent data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	Telemetry telemetry.Config `yaml:"telemetry,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "storage.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Empty means text.
	Format string `yaml:"format,omitempty"`
}

// Package app provides the shared entry point for the tickwork binary and
// the system service wrapper.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flemzord/tickwork/internal/config"
	"github.com/flemzord/tickwork/internal/security"
	"github.com/flemzord/tickwork/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides both the config file's data_dir and the default.
	DataDir string

	// LogLevel and LogFormat override the config file's log section.
	LogLevel  string
	LogFormat string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled, then stops the modules in reverse order.
func Run(ctx context.Context, params RunParams) error {
	cfgPath, cfg, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	logger, err := NewLogger(params.LogOutput, pick(params.LogLevel, cfg.Log.Level), pick(params.LogFormat, cfg.Log.Format))
	if err != nil {
		return err
	}
	logger = RedactSecrets(logger, cfg)
	logger.Info("starting tickwork",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	if cfg.Telemetry.Enabled() {
		logger.Info("tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	application, err := Build(cfg, cfgPath, pick(params.DataDir, cfg.DataDir), logger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// LoadConfig resolves, loads and validates the configuration file.
func LoadConfig(path string) (string, *config.Config, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return "", nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return path, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return path, nil, err
	}
	return path, cfg, nil
}

// NewLogger builds the process logger. Empty level and format mean info
// and text.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

// RedactSecrets wraps logger so that credentials found in the module
// configuration never reach the log output.
func RedactSecrets(logger *slog.Logger, cfg *config.Config) *slog.Logger {
	redactor := security.NewRedactor()
	for _, node := range cfg.Modules {
		redactor.AddConfigSecrets(&node)
	}
	return slog.New(security.NewRedactingHandler(logger.Handler(), redactor))
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// ConfigSearchPath lists the locations ResolveConfigPath tries, in order:
// $XDG_CONFIG_HOME/tickwork/tickwork.yaml (or ~/.config/tickwork/tickwork.yaml),
// then ./tickwork.yaml.
func ConfigSearchPath() []string {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "tickwork", "tickwork.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tickwork", "tickwork.yaml"))
	}

	return append(candidates, "tickwork.yaml")
}

// ResolveConfigPath returns the first existing file of ConfigSearchPath.
func ResolveConfigPath() (string, error) {
	candidates := ConfigSearchPath()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/tickwork if set, otherwise ~/.local/share/tickwork per the XDG base directory layout.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "tickwork")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tickwork")
}

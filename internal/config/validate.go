package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flemzord/tickwork/internal/core"
)

// RequiredModule must appear in every configuration.
const RequiredModule = "runtime.loop"

var (
	logLevels  = []string{"", "debug", "info", "warn", "error"}
	logFormats = []string{"", "text", "json"}
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present and
// registered, requires the runtime module, allows at most one storage
// backend and checks the log and telemetry settings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: %q)", cfg.Version, CurrentVersion))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var storages []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if core.ModuleID(id).Namespace() == "storage" {
			storages = append(storages, id)
		}
	}
	if len(cfg.Modules) > 0 {
		if _, ok := cfg.Modules[RequiredModule]; !ok {
			errs = append(errs, fmt.Errorf("config: module %q is required", RequiredModule))
		}
	}
	if len(storages) > 1 {
		errs = append(errs, fmt.Errorf("config: at most one storage module may be configured, got %s", strings.Join(storages, ", ")))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

func validateLog(l LogConfig) []error {
	var errs []error
	if !slices.Contains(logLevels, strings.ToLower(l.Level)) {
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", l.Level))
	}
	if !slices.Contains(logFormats, strings.ToLower(l.Format)) {
		errs = append(errs, fmt.Errorf("config: log.format %q is not text or json", l.Format))
	}
	return errs
}

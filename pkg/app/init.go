package app

import (
	"fmt"
	"time"

	"github.com/flemzord/tickwork/internal/config"
	"github.com/flemzord/tickwork/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Storage backends offered by `config init`.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageNone   = "none"
)

// InitOptions are the answers collected by `config init`.
type InitOptions struct {
	WorkUnitsPerTick int
	MaxJobsPerTick   int
	DiskCooldown     time.Duration
	Autosave         string

	Storage string

	// GatewayBind enables the HTTP gateway when non-empty.
	GatewayBind string
	BearerToken string
}

// DefaultInitOptions mirrors the scheduler defaults with SQLite storage and
// a loopback gateway.
func DefaultInitOptions() InitOptions {
	return InitOptions{
		WorkUnitsPerTick: scheduler.DefaultWorkUnitsPerTick,
		MaxJobsPerTick:   scheduler.DefaultMaxJobsPerTick,
		DiskCooldown:     scheduler.DefaultDiskCooldown,
		Autosave:         "@every 1m",
		Storage:          StorageSQLite,
		GatewayBind:      "127.0.0.1:8090",
	}
}

type runtimeSection struct {
	WorkUnitsPerTick int           `yaml:"work_units_per_tick"`
	MaxJobsPerTick   int           `yaml:"max_jobs_per_tick"`
	DiskCooldown     time.Duration `yaml:"disk_cooldown"`
	Autosave         string        `yaml:"autosave,omitempty"`
}

type gatewaySection struct {
	Bind string `yaml:"bind"`
	Auth struct {
		BearerToken string `yaml:"bearer_token,omitempty"`
	} `yaml:"auth,omitempty"`
}

// NewConfig turns init answers into a configuration document.
func NewConfig(opts InitOptions) (*config.Config, error) {
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Modules: make(map[string]yaml.Node),
	}

	if err := setModule(cfg, config.RequiredModule, runtimeSection{
		WorkUnitsPerTick: opts.WorkUnitsPerTick,
		MaxJobsPerTick:   opts.MaxJobsPerTick,
		DiskCooldown:     opts.DiskCooldown,
		Autosave:         opts.Autosave,
	}); err != nil {
		return nil, err
	}

	switch opts.Storage {
	case StorageSQLite, StorageFile:
		if err := setModule(cfg, "storage."+opts.Storage, map[string]any{}); err != nil {
			return nil, err
		}
	case StorageNone, "":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Storage)
	}

	if opts.GatewayBind != "" {
		var gw gatewaySection
		gw.Bind = opts.GatewayBind
		gw.Auth.BearerToken = opts.BearerToken
		if err := setModule(cfg, "gateway.http", gw); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func setModule(cfg *config.Config, id string, v any) error {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}
	cfg.Modules[id] = node
	return nil
}

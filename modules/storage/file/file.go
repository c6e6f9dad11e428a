// Package file implements the snapshot store as JSON files on an afero
// filesystem, one directory per entity.
package file

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/tickwork/internal/core"
	"github.com/flemzord/tickwork/internal/storage"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const defaultDir = "snapshots"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
)

// Config holds the file snapshot store configuration.
type Config struct {
	// Dir is the root directory. Relative paths resolve against DataDir.
	// Defaults to {DataDir}/snapshots.
	Dir string `yaml:"dir"`
}

// Module provides the "storage.snapshots" service backed by files.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store

	// fs overrides the OS filesystem in tests.
	fs afero.Fs
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "storage.file",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("file: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	dir := m.config.Dir
	switch {
	case dir == "":
		dir = filepath.Join(ctx.DataDir, defaultDir)
	case !filepath.IsAbs(dir):
		dir = filepath.Join(ctx.DataDir, dir)
	}
	m.config.Dir = dir

	base := m.fs
	if base == nil {
		base = afero.NewOsFs()
	}
	if err := base.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file: create directory %s: %w", dir, err)
	}

	m.store = NewStore(afero.NewBasePathFs(base, dir))
	ctx.RegisterService(storage.ServiceName, m.store)

	m.logger.Info("file snapshot store provisioned", "dir", dir)
	return nil
}

// Store returns the provisioned store.
func (m *Module) Store() *Store {
	return m.store
}

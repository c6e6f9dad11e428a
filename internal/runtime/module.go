package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/tickwork/internal/core"
	"github.com/flemzord/tickwork/internal/storage"
	"gopkg.in/yaml.v3"
)

// Service names registered by the module.
const (
	ServiceName        = "runtime"
	MetricsServiceName = "runtime.metrics"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the "runtime.loop" module.
type Module struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	runtime *Runtime
	started bool
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "runtime.loop",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("runtime: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.runtime = New(m.config, ctx.Logger)
	m.config = m.runtime.cfg

	ctx.RegisterService(ServiceName, m.runtime)
	ctx.RegisterService(MetricsServiceName, m.runtime.Registry())
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. The snapshot store is resolved here so
// that storage modules loaded after this one are visible.
func (m *Module) Start() error {
	store := storage.Discard
	if svc, ok := m.appCtx.Service(storage.ServiceName); ok {
		if s, ok := svc.(storage.Store); ok {
			store = s
		}
	} else {
		m.logger.Warn("no storage module configured, snapshots are discarded")
	}

	if err := m.runtime.Start(context.Background(), store); err != nil {
		return err
	}
	m.started = true
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if !m.started {
		return nil
	}
	m.started = false
	return m.runtime.Stop(ctx)
}

// Runtime returns the provisioned runtime.
func (m *Module) Runtime() *Runtime {
	return m.runtime
}

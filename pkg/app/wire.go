package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/tickwork/internal/config"
	"github.com/flemzord/tickwork/internal/core"

	// Built-in modules register themselves with the core registry.
	_ "github.com/flemzord/tickwork/internal/gateway"
	_ "github.com/flemzord/tickwork/internal/runtime"
	_ "github.com/flemzord/tickwork/modules/storage/file"
	_ "github.com/flemzord/tickwork/modules/storage/sqlite"
)

// ConfigPathService is the service name under which the loaded config
// file path is registered.
const ConfigPathService = "config.path"

// Build creates the data directory, the application context and loads
// (configures, provisions and validates) every configured module in
// config.Resolve order. The returned App has not been started.
func Build(cfg *config.Config, cfgPath, dataDir string, logger *slog.Logger) (*core.App, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dataDir, err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(ConfigPathService, cfgPath)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}
	return application, nil
}

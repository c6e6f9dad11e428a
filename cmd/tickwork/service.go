package main

import (
	"fmt"
	"path/filepath"

	"github.com/flemzord/tickwork/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage tickwork as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				params, err := serviceParams(cmd)
				if err != nil {
					return err
				}
				svc, _, err := app.NewService(params)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run under the service manager (used by the installed unit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := serviceParams(cmd)
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			params.LogLevel = level
			svc, _, err := app.NewService(params)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	run.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.AddCommand(run)
	return cmd
}

// serviceParams resolves the config path to an absolute one so the
// installed unit does not depend on its working directory.
func serviceParams(cmd *cobra.Command) (app.RunParams, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return app.RunParams{}, err
		}
		cfgPath = resolved
	}
	abs, err := filepath.Abs(cfgPath)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath: abs,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

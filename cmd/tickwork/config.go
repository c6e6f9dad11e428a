package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/tickwork/internal/config"
	"github.com/flemzord/tickwork/internal/cron"
	"github.com/flemzord/tickwork/pkg/app"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module without starting it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			cfgPath, cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cmd.ErrOrStderr(), "warn", cfg.Log.Format)
			if err != nil {
				return err
			}
			application, err := app.Build(cfg, cfgPath, cfg.DataDir, app.RedactSecrets(logger, cfg))
			if err != nil {
				return err
			}
			defer application.Unload()

			out := cmd.OutOrStdout()
			ids := application.Modules()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", cfgPath, len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.ConfigSearchPath()[0]
			if len(args) == 1 {
				path = args[0]
			}
			useDefaults, _ := cmd.Flags().GetBool("defaults")
			force, _ := cmd.Flags().GetBool("force")

			opts := app.DefaultInitOptions()
			if !useDefaults {
				if err := promptInitOptions(&opts); err != nil {
					return err
				}
			}

			cfg, err := app.NewConfig(opts)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Write(path, cfg, force); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			slog.Info("configuration written", "path", abs)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", abs)
			return nil
		},
	}
	cmd.Flags().Bool("defaults", false, "Skip the prompts and write the defaults")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// promptInitOptions runs the interactive form, editing opts in place.
func promptInitOptions(opts *app.InitOptions) error {
	workUnits := strconv.Itoa(opts.WorkUnitsPerTick)
	maxJobs := strconv.Itoa(opts.MaxJobsPerTick)
	cooldown := opts.DiskCooldown.String()
	autosave := opts.Autosave
	storage := opts.Storage
	bind := opts.GatewayBind
	token := opts.BearerToken

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Work units per tick").
				Description("Budget split across the jobs serviced each tick.").
				Value(&workUnits).
				Validate(nonNegativeInt),
			huh.NewInput().
				Title("Max jobs per tick").
				Description("Distinct jobs serviced per tick; 0 disables job work.").
				Value(&maxJobs).
				Validate(nonNegativeInt),
			huh.NewInput().
				Title("Disk cooldown").
				Description("Minimum spacing between disk writes, e.g. 250ms; 0 disables throttling.").
				Value(&cooldown).
				Validate(func(s string) error {
					_, err := time.ParseDuration(strings.TrimSpace(s))
					return err
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Snapshot storage").
				Options(
					huh.NewOption("SQLite database", app.StorageSQLite),
					huh.NewOption("JSON files", app.StorageFile),
					huh.NewOption("None (snapshots are discarded)", app.StorageNone),
				).
				Value(&storage),
			huh.NewInput().
				Title("Autosave schedule").
				Description("Cron expression or @every duration; empty disables autosave.").
				Value(&autosave).
				Validate(optionalSchedule),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Description("Empty disables the HTTP gateway.").
				Value(&bind),
			huh.NewInput().
				Title("Gateway bearer token").
				Description("Required unless the gateway binds to loopback. ${VAR} references are kept as is.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("aborted")
		}
		return err
	}

	opts.WorkUnitsPerTick, _ = strconv.Atoi(strings.TrimSpace(workUnits))
	opts.MaxJobsPerTick, _ = strconv.Atoi(strings.TrimSpace(maxJobs))
	opts.DiskCooldown, _ = time.ParseDuration(strings.TrimSpace(cooldown))
	opts.Autosave = strings.TrimSpace(autosave)
	opts.Storage = storage
	opts.GatewayBind = strings.TrimSpace(bind)
	opts.BearerToken = strings.TrimSpace(token)
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("enter a whole number >= 0")
	}
	return nil
}

func optionalSchedule(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return cron.ParseSchedule(s)
}

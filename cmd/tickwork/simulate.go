package main

import (
	"time"

	"github.com/flemzord/tickwork/internal/scheduler"
	"github.com/flemzord/tickwork/pkg/app"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a detached scheduler with manual ticks and print what happens",
		Long: `simulate runs the scheduler without the host loop, one manual tick at a time.

By default it budgets four jobs of 2400, 3000, 7600 and 1000 units with
10000 units and at most 5 jobs per tick, which drains in three ticks.
With --disk it instead queues disk requests on a single handle and shows
the cooldown throttling one callback per interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			flags := cmd.Flags()
			tick, _ := flags.GetDuration("tick")
			maxTicks, _ := flags.GetInt("max-ticks")

			if disk, _ := flags.GetBool("disk"); disk {
				requests, _ := flags.GetInt("requests")
				cooldown, _ := flags.GetDuration("cooldown")
				release, _ := flags.GetInt("release-after")
				deltas := []time.Duration{tick}
				if !flags.Changed("tick") {
					deltas = []time.Duration{time.Millisecond, 210 * time.Millisecond, 200 * time.Millisecond}
				}
				_, err := app.DiskSimulation{
					Requests:     requests,
					Cooldown:     cooldown,
					Deltas:       deltas,
					MaxTicks:     maxTicks,
					ReleaseAfter: release,
				}.Run(out)
				return err
			}

			jobsFlag, _ := flags.GetString("jobs")
			jobs, err := app.ParseJobs(jobsFlag)
			if err != nil {
				return err
			}
			workUnits, _ := flags.GetInt("work-units")
			maxJobs, _ := flags.GetInt("max-jobs")
			sim := app.JobSimulation{
				Jobs:             jobs,
				WorkUnitsPerTick: workUnits,
				MaxJobsPerTick:   maxJobs,
				Delta:            tick,
				MaxTicks:         maxTicks,
			}
			if progress, _ := flags.GetBool("progress"); progress {
				sim.Progress = cmd.ErrOrStderr()
			}
			_, err = sim.Run(out)
			return err
		},
	}

	f := cmd.Flags()
	f.String("jobs", "2400,3000,7600,1000", "Comma separated unit counts, one job each")
	f.Int("work-units", scheduler.DefaultWorkUnitsPerTick, "Work units per tick")
	f.Int("max-jobs", scheduler.DefaultMaxJobsPerTick, "Max jobs per tick")
	f.Bool("progress", false, "Render a progress bar per job on stderr")
	f.Duration("tick", 50*time.Millisecond, "Delta fed to each manual tick")
	f.Int("max-ticks", 10000, "Stop after this many ticks")
	f.Bool("disk", false, "Run the disk throttling scenario instead")
	f.Int("requests", 4, "Disk requests to queue (with --disk)")
	f.Duration("cooldown", scheduler.DefaultDiskCooldown, "Disk cooldown (with --disk)")
	f.Int("release-after", 0, "Release the handle after this many ticks (with --disk)")
	return cmd
}

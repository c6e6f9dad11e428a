package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tickwork/internal/cron"
	"github.com/flemzord/tickwork/internal/scheduler"
)

const (
	defaultTickInterval    = 50 * time.Millisecond
	defaultCompactionBatch = 500
)

// Config is the "runtime.loop" module configuration. Tunables are pointers
// so that an explicit zero (which disables job work or the disk throttle)
// is distinguishable from an absent key.
type Config struct {
	TickInterval     time.Duration  `yaml:"tick_interval"`
	Dilation         float64        `yaml:"dilation"`
	WorkUnitsPerTick *int           `yaml:"work_units_per_tick"`
	MaxJobsPerTick   *int           `yaml:"max_jobs_per_tick"`
	DiskCooldown     *time.Duration `yaml:"disk_cooldown"`

	// AutoConnect lets the scheduler subscribe to the host loop on its own.
	// When false the runtime drives it with ManualTick on every loop tick.
	// Defaults to true.
	AutoConnect *bool `yaml:"auto_connect"`

	Autosave        string `yaml:"autosave"`   // cron expression, empty disables
	Compaction      string `yaml:"compaction"` // cron expression, empty disables
	CompactionBatch int    `yaml:"compaction_batch"`
}

func (c *Config) defaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.Dilation <= 0 {
		c.Dilation = 1
	}
	if c.WorkUnitsPerTick == nil {
		v := scheduler.DefaultWorkUnitsPerTick
		c.WorkUnitsPerTick = &v
	}
	if c.MaxJobsPerTick == nil {
		v := scheduler.DefaultMaxJobsPerTick
		c.MaxJobsPerTick = &v
	}
	if c.DiskCooldown == nil {
		v := scheduler.DefaultDiskCooldown
		c.DiskCooldown = &v
	}
	if c.AutoConnect == nil {
		t := true
		c.AutoConnect = &t
	}
	if c.CompactionBatch <= 0 {
		c.CompactionBatch = defaultCompactionBatch
	}
}

func (c *Config) autoConnect() bool {
	return c.AutoConnect == nil || *c.AutoConnect
}

// schedulerConfig maps the tunables onto a scheduler configuration.
func (c *Config) schedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if c.WorkUnitsPerTick != nil {
		cfg.WorkUnitsPerTick = *c.WorkUnitsPerTick
	}
	if c.MaxJobsPerTick != nil {
		cfg.MaxJobsPerTick = *c.MaxJobsPerTick
	}
	if c.DiskCooldown != nil {
		cfg.DiskCooldown = *c.DiskCooldown
	}
	return cfg
}

func (c *Config) validate() error {
	var errs []error
	if c.WorkUnitsPerTick != nil && *c.WorkUnitsPerTick < 0 {
		errs = append(errs, fmt.Errorf("runtime: work_units_per_tick must be non-negative, got %d", *c.WorkUnitsPerTick))
	}
	if c.MaxJobsPerTick != nil && *c.MaxJobsPerTick < 0 {
		errs = append(errs, fmt.Errorf("runtime: max_jobs_per_tick must be non-negative, got %d", *c.MaxJobsPerTick))
	}
	if c.Autosave != "" {
		if err := cron.ParseSchedule(c.Autosave); err != nil {
			errs = append(errs, fmt.Errorf("runtime: autosave: %w", err))
		}
	}
	if c.Compaction != "" {
		if err := cron.ParseSchedule(c.Compaction); err != nil {
			errs = append(errs, fmt.Errorf("runtime: compaction: %w", err))
		}
	}
	return errors.Join(errs...)
}

package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/config"
	"github.com/xfw5/Market-Research/internal/reliability"
	"github.com/xfw5/Market-Research/internal/scheduler"
)

const (
	cycleTimeout     = 2 * time.Minute
	maRefreshBackoff = 10 * time.Minute
	backupTimeout    = 10 * time.Minute
)

// RegisterJobs creates the background jobs and adds them to a new scheduler.
// The scheduler is not started.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Orchestrator == nil {
		return nil, fmt.Errorf("container services must be initialized before jobs")
	}

	container.Calendar = scheduler.NewTradingCalendar(cfg.Schedule.Holidays, log)
	container.Scheduler = scheduler.New(container.EventBus, log)

	maintenance := scheduler.NewMaintenanceJob(container.Databases()...)
	maintenance.SetLogger(log)

	instances := &JobInstances{
		DecisionCycle: scheduler.NewDecisionCycleJob(container.Orchestrator, container.Calendar, cycleTimeout, log),
		MaRefresh:     scheduler.NewMaRefreshJob(container.Orchestrator, container.Calendar, maRefreshBackoff, log),
		Maintenance:   maintenance,
	}

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create backup store: %w", err)
		}
		container.Backup = reliability.NewBackupService(
			store,
			container.Databases(),
			cfg.DataDir,
			cfg.Backup.Prefix,
			cfg.Backup.RetentionDays,
			container.EventBus,
			log,
		)
		instances.Backup = scheduler.NewBackupJob(container.Backup, backupTimeout, log)
	} else {
		log.Info().Msg("Backup bucket not configured, backups disabled")
	}

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Schedule.Cycle, instances.DecisionCycle},
		{cfg.Schedule.MaRefresh, instances.MaRefresh},
		{cfg.Schedule.Maintenance, instances.Maintenance},
		{cfg.Schedule.Backup, instances.Backup},
	}
	for _, s := range schedules {
		if s.job == nil || s.spec == "" {
			continue
		}
		if err := container.Scheduler.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(container.Scheduler.Jobs())).Msg("Jobs registered")
	return instances, nil
}

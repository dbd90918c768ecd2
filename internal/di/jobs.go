package di

import (
	"fmt"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/rs/zerolog"
)

const walCheckSchedule = "0 */30 * * * *"

// RegisterJobs creates the background jobs and registers them with the
// container's scheduler. An empty schedule leaves a job unregistered.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container.Scheduler == nil {
		return nil, fmt.Errorf("scheduler must be initialized before jobs")
	}

	jobs := &JobInstances{}

	jobs.ImportPrices = scheduler.NewImportPricesJob(container.Importer)
	jobs.ImportPrices.SetLogger(log.With().Str("job", jobs.ImportPrices.Name()).Logger())
	if err := register(container.Scheduler, cfg.PriceSyncSchedule, jobs.ImportPrices); err != nil {
		return nil, err
	}

	jobs.CleanupCache = scheduler.NewCleanupCacheJob(container.Cache)
	jobs.CleanupCache.SetLogger(log.With().Str("job", jobs.CleanupCache.Name()).Logger())
	if err := register(container.Scheduler, cfg.CacheCleanSchedule, jobs.CleanupCache); err != nil {
		return nil, err
	}

	jobs.CheckWALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.Databases()...)
	jobs.CheckWALCheckpoints.SetLogger(log.With().Str("job", jobs.CheckWALCheckpoints.Name()).Logger())
	if err := register(container.Scheduler, walCheckSchedule, jobs.CheckWALCheckpoints); err != nil {
		return nil, err
	}

	jobs.Maintenance = reliability.NewMaintenanceJob(cfg.DataDir, container.Databases()...)
	jobs.Maintenance.SetLogger(log.With().Str("job", jobs.Maintenance.Name()).Logger())
	if err := register(container.Scheduler, cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
		return nil, err
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays)
		jobs.Backup.SetLogger(log.With().Str("job", jobs.Backup.Name()).Logger())
		if err := register(container.Scheduler, cfg.Backup.Schedule, jobs.Backup); err != nil {
			return nil, err
		}
	}

	log.Info().Int("jobs", len(container.Scheduler.Statuses())).Msg("Jobs registered")
	return jobs, nil
}

func register(s *scheduler.Scheduler, schedule string, job scheduler.Job) error {
	if schedule == "" {
		return nil
	}
	if err := s.AddJob(schedule, job); err != nil {
		return fmt.Errorf("failed to register %s with schedule %q: %w", job.Name(), schedule, err)
	}
	return nil
}

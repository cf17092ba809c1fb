package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/reliability"
	"github.com/aristath/holdings/internal/scheduler"
)

// RegisterJobs creates the background jobs and adds them to the scheduler
func RegisterJobs(container *Container, sched *scheduler.Scheduler, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}
	jobs.Refresh = scheduler.NewRefreshJob(container.PortfolioService, log)
	jobs.Maintenance = reliability.NewDailyMaintenanceJob(
		container.DB,
		container.RunRepo,
		cfg.DataDir,
		cfg.RunRetentionDays,
		log,
	)

	if err := sched.AddJob(cfg.RefreshSchedule, jobs.Refresh); err != nil {
		return nil, fmt.Errorf("failed to register refresh job: %w", err)
	}
	if err := sched.AddJob(cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, container.EventManager, log)
		if err := sched.AddJob(cfg.Backup.Schedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	log.Info().Int("jobs", sched.Entries()).Msg("Jobs registered")

	return jobs, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/portfolio"
	"github.com/aristath/holdings/internal/reliability"
)

const (
	refreshTimeout = 2 * time.Minute
	backupTimeout  = 15 * time.Minute
)

// PortfolioRefresher runs a price refresh
type PortfolioRefresher interface {
	Refresh(ctx context.Context) (portfolio.RefreshResult, error)
}

// BackupRunner creates and rotates backups
type BackupRunner interface {
	CreateAndUploadBackup(ctx context.Context) (reliability.BackupInfo, error)
	RotateOldBackups(ctx context.Context) (int, error)
}

// EventPublisher emits typed events
type EventPublisher interface {
	EmitTyped(module string, data events.EventData)
	EmitError(module string, err error, context map[string]interface{})
}

// RefreshJob refreshes portfolio prices
type RefreshJob struct {
	refresher PortfolioRefresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(refresher PortfolioRefresher, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		timeout:   refreshTimeout,
		log:       log.With().Str("job", "portfolio_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run executes the refresh. A portfolio without quotable symbols is not an error.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, portfolio.ErrNoValidSymbols) {
			j.log.Info().Msg("Nothing to refresh")
			return nil
		}
		return fmt.Errorf("portfolio refresh failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Bool("degraded", result.Degraded()).
		Msg("Scheduled refresh completed")
	return nil
}

// BackupJob uploads a backup and rotates old ones
type BackupJob struct {
	backups BackupRunner
	events  EventPublisher
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job. publisher may be nil.
func NewBackupJob(backups BackupRunner, publisher EventPublisher, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		events:  publisher,
		timeout: backupTimeout,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run uploads a new backup, then rotates. Rotation failures do not fail the job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.backups.CreateAndUploadBackup(ctx)
	if err != nil {
		if j.events != nil {
			j.events.EmitError("backup", err, map[string]interface{}{"job": j.Name()})
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	if j.events != nil {
		j.events.EmitTyped("backup", &events.BackupCompletedData{
			Archive:   info.Filename,
			SizeBytes: info.SizeBytes,
		})
	}

	if _, err := j.backups.RotateOldBackups(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

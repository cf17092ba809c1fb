package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// criticalFreeBytes halts maintenance; the database may not be able to grow
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 2 << 30

	maintenanceTimeout = 5 * time.Minute
)

// MaintainedDB is a database the maintenance job can check and checkpoint
type MaintainedDB interface {
	Name() string
	HealthCheck(ctx context.Context) error
	Checkpoint(ctx context.Context) error
}

// RunPruner deletes refresh history older than a cutoff
type RunPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailyMaintenanceJob checks database integrity, truncates the WAL, watches free disk
// space and prunes old refresh runs
type DailyMaintenanceJob struct {
	db               MaintainedDB
	runs             RunPruner
	dataDir          string
	runRetentionDays int
	now              func() time.Time
	diskFree         func(path string) (uint64, error)
	log              zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job. runRetentionDays of 0 keeps
// all refresh runs.
func NewDailyMaintenanceJob(
	db MaintainedDB,
	runs RunPruner,
	dataDir string,
	runRetentionDays int,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		db:               db,
		runs:             runs,
		dataDir:          dataDir,
		runRetentionDays: runRetentionDays,
		now:              time.Now,
		diskFree:         freeBytes,
		log:              log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("CRITICAL: Integrity check failed")
		return fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}

	if err := j.db.Checkpoint(ctx); err != nil {
		// Not critical; the next checkpoint catches up
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.runs != nil && j.runRetentionDays > 0 {
		cutoff := j.now().AddDate(0, 0, -j.runRetentionDays)
		if _, err := j.runs.Prune(ctx, cutoff); err != nil {
			j.log.Error().Err(err).Msg("Failed to prune refresh runs")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	available, err := j.diskFree(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	availableMB := float64(available) / (1 << 20)
	j.log.Debug().Float64("available_mb", availableMB).Msg("Disk space check")

	switch {
	case available < criticalFreeBytes:
		j.log.Error().Float64("available_mb", availableMB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.0f MB free in %s", availableMB, j.dataDir)
	case available < lowFreeBytes:
		j.log.Warn().Float64("available_mb", availableMB).Msg("Disk space running low")
	}

	return nil
}

func freeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

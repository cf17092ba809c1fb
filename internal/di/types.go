// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/holdings/internal/database"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/ingest"
	"github.com/aristath/holdings/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/holdings/internal/modules/portfolio/handlers"
	"github.com/aristath/holdings/internal/modules/quotes"
	"github.com/aristath/holdings/internal/reliability"
	"github.com/aristath/holdings/internal/scheduler"
)

// Container holds all application dependencies. It is created by Wire.
type Container struct {
	DB *database.DB

	// Repositories
	PositionRepo *portfolio.PositionRepository
	RunRepo      *quotes.RunRepository

	// Services
	EventManager     *events.Manager
	QuoteSource      domain.QuoteSource
	Orchestrator     *quotes.Orchestrator
	PortfolioService *portfolio.Service
	Ingester         *ingest.Ingester
	BackupService    *reliability.BackupService // nil when backups are not configured

	// Handlers
	PortfolioHandler *portfoliohandlers.Handler
}

// Close releases the database connection
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// JobInstances holds the scheduled jobs so they can also be triggered manually
type JobInstances struct {
	Refresh     *scheduler.RefreshJob
	Maintenance *reliability.DailyMaintenanceJob
	Backup      *scheduler.BackupJob // nil when backups are not configured
}

// All returns every registered job
func (j *JobInstances) All() []scheduler.Job {
	jobs := []scheduler.Job{j.Refresh, j.Maintenance}
	if j.Backup != nil {
		jobs = append(jobs, j.Backup)
	}
	return jobs
}

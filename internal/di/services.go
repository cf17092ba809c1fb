package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/clients/yahoo"
	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/domain"
	"github.com/aristath/holdings/internal/events"
	"github.com/aristath/holdings/internal/modules/ingest"
	"github.com/aristath/holdings/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/holdings/internal/modules/portfolio/handlers"
	"github.com/aristath/holdings/internal/modules/quotes"
	"github.com/aristath/holdings/internal/reliability"
)

// InitializeRepositories creates the repositories on top of the open database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	conn := container.DB.Conn()
	container.PositionRepo = portfolio.NewPositionRepository(conn, log)
	container.RunRepo = quotes.NewRunRepository(conn, log)

	return nil
}

// InitializeServices creates the quote source, refresh orchestrator, portfolio service,
// ingester, handlers and, when configured, the backup service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventManager = events.NewManager(log)
	container.QuoteSource = newQuoteSource(cfg, log)
	container.Orchestrator = quotes.NewOrchestrator(container.QuoteSource, nil, cfg.RequestDelay, log)

	container.PortfolioService = portfolio.NewService(
		container.PositionRepo,
		container.Orchestrator,
		container.RunRepo,
		container.EventManager,
		log,
	)

	container.Ingester = ingest.NewIngester(log)

	container.PortfolioHandler = portfoliohandlers.NewHandler(
		container.PortfolioService,
		container.Ingester,
		container.RunRepo,
		container.EventManager,
		log,
	)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup storage client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			store,
			[]reliability.Snapshotter{container.DB},
			cfg.DataDir,
			cfg.Backup.RetentionDays,
			log,
		)
	} else {
		log.Info().Msg("Backups disabled: S3 bucket or credentials not configured")
	}

	return nil
}

func newQuoteSource(cfg *config.Config, log zerolog.Logger) domain.QuoteSource {
	if cfg.QuoteSource == config.QuoteSourceNative {
		log.Info().Msg("Using go-yfinance quote source")
		return yahoo.NewNativeClient(log)
	}
	log.Info().Str("base_url", cfg.YahooBaseURL).Msg("Using Yahoo HTTP quote source")
	return yahoo.NewClient(cfg.YahooBaseURL, log)
}

// LoadPortfolio imports the seed spreadsheet when the store is empty and then publishes
// the stored portfolio
func LoadPortfolio(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (portfolio.Snapshot, error) {
	if cfg.SeedFile != "" {
		if err := importSeed(ctx, container, cfg.SeedFile, log); err != nil {
			return portfolio.Snapshot{}, err
		}
	}

	snap, err := container.PortfolioService.Load(ctx)
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return snap, nil
}

func importSeed(ctx context.Context, container *Container, path string, log zerolog.Logger) error {
	stored, err := container.PositionRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stored positions: %w", err)
	}
	if stored > 0 {
		log.Debug().Int("positions", stored).Msg("Positions already stored, skipping seed import")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	result := container.Ingester.IngestFile(filepath.Base(path), f)
	if result.UsedDefaults {
		log.Warn().Str("file", path).Str("message", result.Message).Msg("Seed file unusable, default positions will be used")
	}

	if _, err := container.PortfolioService.Replace(ctx, result.Positions); err != nil {
		return fmt.Errorf("failed to store seed positions: %w", err)
	}

	log.Info().
		Str("file", path).
		Str("strategy", string(result.Strategy)).
		Int("positions", len(result.Positions)).
		Int("dropped", result.Dropped).
		Msg("Seed file imported")

	return nil
}

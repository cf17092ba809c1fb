package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/database"
)

// InitializeDatabases opens the holdings database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath,
		Profile: database.ProfileStandard,
		Name:    "holdings",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize holdings database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate holdings database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized")

	return &Container{DB: db}, nil
}

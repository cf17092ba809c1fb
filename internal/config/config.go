package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Quote source names accepted by QUOTE_SOURCE
const (
	QuoteSourceYahoo  = "yahoo"
	QuoteSourceNative = "native"
)

// Config holds application configuration
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string

	DataDir      string
	DatabasePath string

	QuoteSource     string
	YahooBaseURL    string
	RequestDelay    time.Duration
	RefreshSchedule string
	SeedFile        string

	MaintenanceSchedule string
	RunRetentionDays    int

	Backup BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Schedule        string
	RetentionDays   int
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether enough settings are present to upload backups
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		Port:            getEnvAsInt("HOLDINGS_PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DataDir:         dataDir,
		DatabasePath:    getEnv("DATABASE_PATH", filepath.Join(dataDir, "holdings.db")),
		QuoteSource:     getEnv("QUOTE_SOURCE", QuoteSourceYahoo),
		YahooBaseURL:    getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		RequestDelay:    getEnvAsDuration("QUOTE_REQUEST_DELAY", 200*time.Millisecond),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 5m"),
		SeedFile:        getEnv("SEED_FILE", ""),

		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		RunRetentionDays:    getEnvAsInt("RUN_RETENTION_DAYS", 90),

		Backup: BackupConfig{
			Schedule:        getEnv("BACKUP_SCHEDULE", "@daily"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
			Bucket:          getEnv("S3_BUCKET", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("HOLDINGS_PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.QuoteSource {
	case QuoteSourceYahoo, QuoteSourceNative:
	default:
		return fmt.Errorf("QUOTE_SOURCE must be %q or %q, got %q", QuoteSourceYahoo, QuoteSourceNative, c.QuoteSource)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("QUOTE_REQUEST_DELAY must not be negative")
	}
	if c.RefreshSchedule == "" {
		return fmt.Errorf("REFRESH_SCHEDULE is required")
	}
	if c.RunRetentionDays < 0 {
		return fmt.Errorf("RUN_RETENTION_DAYS must not be negative")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

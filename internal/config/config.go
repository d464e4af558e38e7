// Package config loads runtime configuration from the environment, reading a
// .env file first when one is present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Backend names a ledger store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendBigQuery Backend = "bigquery"
)

// Config holds application configuration.
type Config struct {
	Backend    Backend
	SQLitePath string

	GCPProjectID string
	BQDataset    string

	BankAmount decimal.Decimal

	BackupBucket string

	NotionToken       string
	NotionSummaryDBID string

	LogLevel            string
	RefreshFinalBalance bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	bank, err := decimal.NewFromString(getEnv("BANK_AMOUNT", "300000"))
	if err != nil {
		return nil, fmt.Errorf("Load: BANK_AMOUNT: %w", err)
	}
	if bank.Sign() <= 0 {
		return nil, fmt.Errorf("Load: BANK_AMOUNT must be positive, got %s", bank)
	}

	cfg := &Config{
		Backend:             Backend(strings.ToLower(getEnv("LEDGER_BACKEND", string(BackendSQLite)))),
		SQLitePath:          getEnv("LEDGER_SQLITE_PATH", "ledger.db"),
		GCPProjectID:        getEnv("GCP_PROJECT_ID", ""),
		BQDataset:           getEnv("BQ_DATASET", "betting"),
		BankAmount:          bank,
		BackupBucket:        getEnv("BACKUP_BUCKET", ""),
		NotionToken:         getEnv("NOTION_TOKEN", ""),
		NotionSummaryDBID:   getEnv("NOTION_SUMMARY_DB_ID", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RefreshFinalBalance: getEnvAsBool("REFRESH_FINAL_BALANCE", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("LEDGER_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendBigQuery:
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.Backend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// Package backend opens the ledger store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/dvloznov/bet-tracker/internal/config"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/dvloznov/bet-tracker/internal/store/bigquery"
	"github.com/dvloznov/bet-tracker/internal/store/inmemory"
	"github.com/dvloznov/bet-tracker/internal/store/sqlite"
)

// Open returns the store named by cfg.Backend. The caller closes it.
func Open(ctx context.Context, cfg *config.Config) (store.LedgerStore, error) {
	log := logger.FromContext(ctx)

	switch cfg.Backend {
	case config.BackendMemory:
		log.Debug().Str("store", "memory").Msg("Using in-memory ledger store")
		return inmemory.NewStore(), nil

	case config.BackendSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: sqlite: %w", err)
		}
		log.Debug().Str("store", "sqlite").Str("path", cfg.SQLitePath).Msg("Opened ledger store")
		return st, nil

	case config.BackendBigQuery:
		st, err := bigquery.NewStore(ctx, bigquery.Dataset{
			ProjectID: cfg.GCPProjectID,
			DatasetID: cfg.BQDataset,
		})
		if err != nil {
			return nil, fmt.Errorf("Open: bigquery: %w", err)
		}
		log.Debug().
			Str("store", "bigquery").
			Str("project", cfg.GCPProjectID).
			Str("dataset", cfg.BQDataset).
			Msg("Opened ledger store")
		return st, nil
	}
	return nil, fmt.Errorf("Open: unknown backend %q", cfg.Backend)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/bet-tracker/internal/config"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/ledger"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/notionsync"
	"github.com/dvloznov/bet-tracker/internal/store/backend"
)

func main() {
	notionToken := flag.String("notion-token", "", "Notion API token (defaults to NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (defaults to NOTION_SUMMARY_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	requestTimeout := flag.Duration("request-timeout", notionsync.DefaultRequestTimeout, "Timeout of each Notion API call")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	if *notionToken == "" {
		*notionToken = cfg.NotionToken
	}
	if *notionDBID == "" {
		*notionDBID = cfg.NotionSummaryDBID
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token or NOTION_TOKEN is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id or NOTION_SUMMARY_DB_ID is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer st.Close()

	svc := ledger.NewService(st, ledger.WithBank(cfg.BankAmount))
	snap, err := svc.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}

	summaries := engine.MonthlySummaries(snap.Transactions, snap.Configs, svc.Today())

	log.Info().
		Int("months", len(summaries)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	notionClient := notionsync.NewClient(*notionToken, *requestTimeout)
	res, err := notionsync.SyncMonthlySummaries(ctx, notionClient, *notionDBID, summaries, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		res.Created, res.Updated, res.Archived, res.Failed)
}

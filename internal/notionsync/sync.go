// Package notionsync mirrors ledger monthly summaries into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/jomei/notionapi"
)

// Result counts what a sync did, or would do in dry-run mode.
type Result struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncMonthlySummaries upserts one Notion page per monthly bucket, keyed by
// the month title. Pages whose month is not in summaries, or that have no
// title, are archived. A failure on one page is logged and counted, and the
// sync carries on with the rest.
func SyncMonthlySummaries(ctx context.Context, notionClient NotionService, notionDBID string, summaries []engine.Bucket, dryRun bool) (Result, error) {
	ctx = logger.WithComponent(ctx, "notionsync")
	log := logger.FromContext(ctx)
	var res Result

	log.Info().
		Int("months", len(summaries)).
		Bool("dry_run", dryRun).
		Msg("Starting monthly summary sync to Notion")

	valid := make(map[string]bool, len(summaries))
	for _, b := range summaries {
		valid[b.Key] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string)
	for _, page := range pages {
		month := extractMonth(page)
		if month == "" || !valid[month] {
			if dryRun {
				log.Info().Str("month", month).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
				res.Archived++
				continue
			}
			if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("month", month).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
				res.Failed++
				continue
			}
			res.Archived++
			continue
		}
		if _, dup := existing[month]; dup {
			// A second page for the same month is stale.
			if !dryRun {
				if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
					log.Warn().Err(err).Str("month", month).Str("page_id", string(page.ID)).Msg("Failed to archive duplicate Notion page")
					res.Failed++
					continue
				}
			}
			res.Archived++
			continue
		}
		existing[month] = string(page.ID)
	}

	for _, b := range summaries {
		pageID, found := existing[b.Key]

		if dryRun {
			if found {
				log.Info().Str("month", b.Key).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("month", b.Key).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := SummaryToNotionProperties(b)
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("month", b.Key).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("month", b.Key).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("month", b.Key).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Monthly summary sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

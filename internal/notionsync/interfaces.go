package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the summary sync needs.
// Tests substitute an in-memory database.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	// ArchivePage removes a stale or duplicate month page from the database.
	ArchivePage(ctx context.Context, pageID string) error
}

package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/jomei/notionapi"
)

// DefaultRequestTimeout bounds each Notion API call.
const DefaultRequestTimeout = 30 * time.Second

// Client is the NotionService backed by the Notion SDK. Every call runs
// under its own timeout so one slow page cannot stall a whole sync.
type Client struct {
	pages     notionapi.PageService
	databases notionapi.DatabaseService
	timeout   time.Duration
}

// NewClient returns a Client authenticated with token. A zero timeout uses
// DefaultRequestTimeout.
func NewClient(token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	sdk := notionapi.NewClient(notionapi.Token(token))
	return &Client{pages: sdk.Page, databases: sdk.Database, timeout: timeout}
}

func (c *Client) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("page_id", string(page.ID)).Msg("Created summary page")
	return page, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return c.update(ctx, "UpdatePage", pageID, &notionapi.PageUpdateRequest{Properties: properties})
}

// ArchivePage moves a page to the trash. Archived pages drop out of
// database queries.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	_, err := c.update(ctx, "ArchivePage", pageID, &notionapi.PageUpdateRequest{Archived: true})
	return err
}

func (c *Client) update(ctx context.Context, op, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	page, err := c.pages.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, fmt.Errorf("%s: page %s: %w", op, pageID, err)
	}
	return page, nil
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.databases.Query(ctx, notionapi.DatabaseID(databaseID), query)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}

var _ NotionService = (*Client)(nil)

package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the monthly summary database.
const (
	PropMonth          = "Month"
	PropPeriod         = "Period"
	PropOpeningBalance = "Opening Balance"
	PropClosingBalance = "Closing Balance"
	PropDeposits       = "Deposits"
	PropWithdrawals    = "Withdrawals"
	PropNetProfit      = "Net Profit"
	PropPending        = "Pending"
	PropWagered        = "Wagered"
	PropROI            = "ROI %"
	PropWon            = "Won"
	PropLost           = "Lost"
	PropPendingBets    = "Pending Bets"
	PropCashouts       = "Cashouts"
	PropAnchored       = "Anchored"
)

// SummaryToNotionProperties converts a monthly bucket to Notion properties.
// The month key is the page title and identifies the page across syncs.
func SummaryToNotionProperties(b engine.Bucket) notionapi.Properties {
	return notionapi.Properties{
		PropMonth: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: b.Key,
					},
				},
			},
		},
		PropPeriod: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: dateOf(b.Start),
				End:   dateOf(b.End),
			},
		},
		PropOpeningBalance: money(b.OpeningBalance),
		PropClosingBalance: money(b.ClosingBalance),
		PropDeposits:       money(b.Deposits),
		PropWithdrawals:    money(b.Withdrawals),
		PropNetProfit:      money(b.NetProfit()),
		PropPending:        money(b.PendingAmount),
		PropWagered:        money(b.TotalWagered),
		PropROI:            notionapi.NumberProperty{Number: b.ROI},
		PropWon:            count(b.WonCount),
		PropLost:           count(b.LostCount),
		PropPendingBets:    count(b.PendingCount),
		PropCashouts:       count(b.CashoutCount),
		PropAnchored:       notionapi.CheckboxProperty{Checkbox: b.Anchored},
	}
}

func money(d decimal.Decimal) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: d.InexactFloat64()}
}

func count(n int) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: float64(n)}
}

func dateOf(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC))
	return &nd
}

// extractMonth extracts the month key from a summary page's title.
// Returns empty string if not found.
func extractMonth(page notionapi.Page) string {
	if prop, ok := page.Properties[PropMonth]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

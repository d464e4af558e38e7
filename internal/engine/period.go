package engine

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Granularity is the calendar unit buckets are cut on.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Period is a filter preset relative to today.
type Period string

const (
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// NewDateRange validates explicit custom bounds.
func NewDateRange(start, end civil.Date) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("NewDateRange: %s..%s: %w", start, end, domain.ErrInvalidRange)
	}
	return DateRange{Start: start, End: end}, nil
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// RangeForPeriod derives the bounds of a preset from today. Custom ranges
// must be built with NewDateRange.
func RangeForPeriod(p Period, today civil.Date) (DateRange, error) {
	switch p {
	case PeriodDay:
		return DateRange{Start: today, End: today}, nil
	case PeriodWeek:
		return DateRange{Start: today.AddDays(-7), End: today}, nil
	case PeriodMonth:
		return DateRange{Start: domain.MonthOf(today).First(), End: today}, nil
	case PeriodYear:
		return DateRange{Start: civil.Date{Year: today.Year, Month: 1, Day: 1}, End: today}, nil
	case PeriodCustom:
		return DateRange{}, fmt.Errorf("RangeForPeriod: custom period needs explicit bounds")
	default:
		return DateRange{}, fmt.Errorf("RangeForPeriod: unknown period %q", p)
	}
}

// MonthRange covers a whole selected month.
func MonthRange(m domain.MonthKey) DateRange {
	return DateRange{Start: m.First(), End: m.Last()}
}

// Bucket aggregates one calendar unit.
type Bucket struct {
	Key   string
	Start civil.Date
	End   civil.Date

	Deposits          decimal.Decimal
	Withdrawals       decimal.Decimal
	ResolvedNetProfit decimal.Decimal
	PendingAmount     decimal.Decimal
	TotalWagered      decimal.Decimal

	WonCount     int
	LostCount    int
	PendingCount int
	CashoutCount int

	ROI float64

	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Anchored       bool
}

// NetProfit is resolved profit minus the stake still at risk.
func (b Bucket) NetProfit() decimal.Decimal {
	return b.ResolvedNetProfit.Sub(b.PendingAmount)
}

// BucketOptions carries the context a bucketing pass needs besides the
// transactions themselves.
type BucketOptions struct {
	Today   civil.Date
	Configs []domain.MonthlyConfig
}

// BucketTransactions partitions transactions into chronological units of g
// inside r. Units with no transactions are kept when they start on or
// before today, or when a month they cover has a configured anchor. A day
// only counts as anchored when it is the first of its month.
func BucketTransactions(txs []domain.Transaction, g Granularity, r DateRange, opts BucketOptions) []Bucket {
	ordered := Ordered(txs)
	anchors := domain.Anchors(opts.Configs)
	rb := newRunningBalance(ordered, anchors)

	var buckets []Bucket
	next := 0
	for unitStart := r.Start; !unitStart.After(r.End); {
		key, unitEnd := unitBounds(g, unitStart)
		if unitEnd.After(r.End) {
			unitEnd = r.End
		}

		var t tally
		for next < len(ordered) && ordered[next].Date.Before(unitStart) {
			next++
		}
		for next < len(ordered) && !ordered[next].Date.After(unitEnd) {
			t.add(ordered[next])
			next++
		}

		anchored := anchoredWithin(anchors, unitStart, unitEnd)
		anchored = anchored && (g != GranularityDay || unitStart.Day == 1)

		if t.rows > 0 || anchored || !unitStart.After(opts.Today) {
			opening := rb.openingAt(unitStart)
			closing := rb.through(unitEnd)
			buckets = append(buckets, Bucket{
				Key:               key,
				Start:             unitStart,
				End:               unitEnd,
				Deposits:          Round2(t.deposits),
				Withdrawals:       Round2(t.withdrawals),
				ResolvedNetProfit: Round2(t.resolved),
				PendingAmount:     Round2(t.pending),
				TotalWagered:      Round2(t.wagered),
				WonCount:          t.won,
				LostCount:         t.lost,
				PendingCount:      t.pendingBets,
				CashoutCount:      t.cashouts,
				ROI:               t.roi(),
				OpeningBalance:    Round2(opening),
				ClosingBalance:    Round2(closing),
				Anchored:          anchored,
			})
		}

		unitStart = unitEnd.AddDays(1)
	}
	return buckets
}

// anchoredWithin reports whether any month overlapping [start, end] has an
// anchor.
func anchoredWithin(anchors map[domain.MonthKey]decimal.Decimal, start, end civil.Date) bool {
	last := domain.MonthOf(end)
	for m := domain.MonthOf(start); !last.Before(m); m = m.Next() {
		if _, ok := anchors[m]; ok {
			return true
		}
	}
	return false
}

// unitBounds returns the grouping key and last day of the unit containing d.
func unitBounds(g Granularity, d civil.Date) (string, civil.Date) {
	switch g {
	case GranularityMonth:
		m := domain.MonthOf(d)
		return m.String(), m.Last()
	case GranularityYear:
		return fmt.Sprintf("%04d", d.Year), civil.Date{Year: d.Year, Month: 12, Day: 31}
	default:
		return d.String(), d
	}
}

// MonthlySummaries returns one bucket per month from the first month with
// activity through the month containing today.
func MonthlySummaries(txs []domain.Transaction, configs []domain.MonthlyConfig, today civil.Date) []Bucket {
	start, ok := earliestMonth(Ordered(txs), domain.Anchors(configs))
	if !ok {
		return nil
	}
	end := domain.MonthOf(today).Last()
	if last := latestDate(txs); last.After(end) {
		end = domain.MonthOf(last).Last()
	}
	r := DateRange{Start: start.First(), End: end}
	return BucketTransactions(txs, GranularityMonth, r, BucketOptions{Today: today, Configs: configs})
}

// BalancePoint is the closing balance of one day.
type BalancePoint struct {
	Date    civil.Date
	Balance decimal.Decimal
}

// DailyBalances returns the running closing balance for every day of r up
// to today, plus any later day that has transactions.
func DailyBalances(txs []domain.Transaction, configs []domain.MonthlyConfig, r DateRange, today civil.Date) []BalancePoint {
	buckets := BucketTransactions(txs, GranularityDay, r, BucketOptions{Today: today, Configs: configs})
	points := make([]BalancePoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, BalancePoint{Date: b.Start, Balance: b.ClosingBalance})
	}
	return points
}

func latestDate(txs []domain.Transaction) civil.Date {
	var last civil.Date
	for _, tx := range txs {
		if tx.IsHistorical() {
			continue
		}
		if tx.Date.After(last) {
			last = tx.Date
		}
	}
	return last
}

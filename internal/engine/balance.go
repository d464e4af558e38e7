package engine

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Ordered returns the transactions that take part in aggregation, sorted by
// date, then creation time, then ID. Historical-adjustment entries are
// dropped. The input slice is not modified.
func Ordered(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.IsHistorical() {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Window bounds a balance computation. Without an anchor a nil Start folds
// the whole history; with one it means the first day of the AsOf month.
type Window struct {
	Start *civil.Date
	AsOf  civil.Date
}

// ComputeBalance folds the transactions dated on or before AsOf into a
// balance. With an anchor the fold starts from it and only covers the window;
// without one the balance carried over from before the window is used.
func ComputeBalance(txs []domain.Transaction, anchor *decimal.Decimal, w Window) decimal.Decimal {
	balance := decimal.Zero
	start := w.Start
	if anchor != nil {
		balance = *anchor
		if start == nil {
			first := domain.MonthOf(w.AsOf).First()
			start = &first
		}
	}
	for _, tx := range Ordered(txs) {
		if tx.Date.After(w.AsOf) {
			break
		}
		if anchor != nil && start != nil && tx.Date.Before(*start) {
			continue
		}
		balance = balance.Add(Delta(tx))
	}
	return Round2(balance)
}

// OpeningSource tells where an opening balance came from.
type OpeningSource string

const (
	OpeningAnchor   OpeningSource = "anchor"
	OpeningCache    OpeningSource = "cache"
	OpeningComputed OpeningSource = "computed"
	OpeningNone     OpeningSource = "none"
)

// OpeningBalance returns the authoritative opening balance of a month: the
// configured anchor when present, otherwise the carry-over of everything
// before it. The cached final balance is never read here.
func OpeningBalance(txs []domain.Transaction, configs []domain.MonthlyConfig, m domain.MonthKey) (decimal.Decimal, OpeningSource) {
	anchors := domain.Anchors(configs)
	if a, ok := anchors[m]; ok {
		return Round2(a), OpeningAnchor
	}
	rb := newRunningBalance(Ordered(txs), anchors)
	return Round2(rb.openingAt(m.First())), OpeningComputed
}

// ProvisionalOpening is a display-only opening balance available without
// touching transactions: the anchor, else the previous month's cached final
// balance. ok is false when neither is known.
func ProvisionalOpening(configs []domain.MonthlyConfig, m domain.MonthKey) (balance decimal.Decimal, source OpeningSource, ok bool) {
	prev := m.Prev()
	var cached *decimal.Decimal
	for _, c := range configs {
		switch c.Key() {
		case m:
			if c.InitialBalance != nil {
				return Round2(*c.InitialBalance), OpeningAnchor, true
			}
		case prev:
			cached = c.FinalBalance
		}
	}
	if cached != nil {
		return Round2(*cached), OpeningCache, true
	}
	return decimal.Zero, OpeningNone, false
}

// runningBalance walks ordered transactions forward in time, resetting to a
// month's anchor when the walk enters that month. Queries must be made in
// non-decreasing date order.
type runningBalance struct {
	txs     []domain.Transaction
	anchors map[domain.MonthKey]decimal.Decimal
	next    int
	month   domain.MonthKey
	begun   bool
	balance decimal.Decimal
}

func newRunningBalance(ordered []domain.Transaction, anchors map[domain.MonthKey]decimal.Decimal) *runningBalance {
	rb := &runningBalance{txs: ordered, anchors: anchors}
	if start, ok := earliestMonth(ordered, anchors); ok {
		rb.month = start.Prev()
		rb.begun = true
	}
	return rb
}

func (rb *runningBalance) enter(m domain.MonthKey) {
	if !rb.begun {
		return
	}
	for rb.month.Before(m) {
		rb.month = rb.month.Next()
		if a, ok := rb.anchors[rb.month]; ok {
			rb.balance = a
		}
	}
}

// through returns the closing balance of day d.
func (rb *runningBalance) through(d civil.Date) decimal.Decimal {
	for rb.next < len(rb.txs) && !rb.txs[rb.next].Date.After(d) {
		tx := rb.txs[rb.next]
		rb.enter(domain.MonthOf(tx.Date))
		rb.balance = rb.balance.Add(Delta(tx))
		rb.next++
	}
	rb.enter(domain.MonthOf(d))
	return rb.balance
}

// openingAt returns the balance before any transaction of day d is applied.
func (rb *runningBalance) openingAt(d civil.Date) decimal.Decimal {
	rb.through(d.AddDays(-1))
	rb.enter(domain.MonthOf(d))
	return rb.balance
}

func earliestMonth(ordered []domain.Transaction, anchors map[domain.MonthKey]decimal.Decimal) (domain.MonthKey, bool) {
	var start domain.MonthKey
	found := false
	if len(ordered) > 0 {
		start = domain.MonthOf(ordered[0].Date)
		found = true
	}
	for m := range anchors {
		if !found || m.Before(start) {
			start = m
			found = true
		}
	}
	return start, found
}

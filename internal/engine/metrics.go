package engine

import (
	"math"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// tally accumulates the per-type aggregates shared by buckets, summaries
// and owner breakdowns.
type tally struct {
	rows int

	deposits    decimal.Decimal
	withdrawals decimal.Decimal
	resolved    decimal.Decimal
	pending     decimal.Decimal
	wagered     decimal.Decimal

	bets        int
	won         int
	lost        int
	pendingBets int
	cashouts    int

	oddsSum   float64
	oddsCount int
}

func (t *tally) add(tx domain.Transaction) {
	t.rows++
	switch tx.Type {
	case domain.TypeDeposit:
		t.deposits = t.deposits.Add(tx.Amount)
		return
	case domain.TypeWithdrawal:
		t.withdrawals = t.withdrawals.Add(tx.Amount)
		return
	case domain.TypeBetPending:
		t.pending = t.pending.Add(tx.Amount)
		t.pendingBets++
	case domain.TypeBetLost, domain.TypeBetWon, domain.TypeBetCashout:
		t.resolved = t.resolved.Add(tx.NetProfit)
		t.wagered = t.wagered.Add(Wagered(tx))
		if tx.Type == domain.TypeBetCashout {
			t.cashouts++
		}
	default:
		return
	}

	t.bets++
	switch OutcomeOf(tx) {
	case OutcomeWon:
		t.won++
	case OutcomeLost:
		t.lost++
	}
	if tx.Odds != nil {
		t.oddsSum += *tx.Odds
		t.oddsCount++
	}
}

func (t *tally) roi() float64 {
	return Percent(t.resolved, t.wagered)
}

func (t *tally) winRate() float64 {
	return WinRate(t.won, t.lost)
}

func (t *tally) avgOdds() float64 {
	if t.oddsCount == 0 {
		return 0
	}
	return math.Round(t.oddsSum/float64(t.oddsCount)*100) / 100
}

// WinRate returns won/(won+lost)*100, or 0 when nothing was decided.
func WinRate(won, lost int) float64 {
	if won+lost == 0 {
		return 0
	}
	return math.Round(float64(won)/float64(won+lost)*10000) / 100
}

// Summary is the set of headline figures for a window.
type Summary struct {
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal

	MonthlyROI    float64
	TotalBet      decimal.Decimal
	NetProfit     decimal.Decimal
	Deposits      decimal.Decimal
	Withdrawals   decimal.Decimal
	PendingAmount decimal.Decimal

	WonBets     int
	LostBets    int
	PendingBets int
	CashoutBets int
	WinRate     float64
}

// Summarize computes the headline figures for window. The balance starts
// from the best-known opening balance at the window start. ROI and net
// profit leave pending bets out entirely.
func Summarize(txs []domain.Transaction, configs []domain.MonthlyConfig, window DateRange) Summary {
	ordered := Ordered(txs)
	rb := newRunningBalance(ordered, domain.Anchors(configs))
	opening := rb.openingAt(window.Start)
	closing := rb.through(window.End)

	var t tally
	for _, tx := range ordered {
		if window.Contains(tx.Date) {
			t.add(tx)
		}
	}

	return Summary{
		OpeningBalance: Round2(opening),
		CurrentBalance: Round2(closing),
		MonthlyROI:     t.roi(),
		TotalBet:       Round2(t.wagered),
		NetProfit:      Round2(t.resolved),
		Deposits:       Round2(t.deposits),
		Withdrawals:    Round2(t.withdrawals),
		PendingAmount:  Round2(t.pending),
		WonBets:        t.won,
		LostBets:       t.lost,
		PendingBets:    t.pendingBets,
		CashoutBets:    t.cashouts,
		WinRate:        t.winRate(),
	}
}

// OwnerStats is the per-owner slice of a summary.
type OwnerStats struct {
	Owner       domain.Owner
	WonBets     int
	LostBets    int
	CashoutBets int
	PendingBets int
	TotalBets   int
	TotalBet    decimal.Decimal
	NetProfit   decimal.Decimal
	ROI         float64
	WinRate     float64
	AvgOdds     float64
}

// OwnerBreakdown returns one entry per known owner, in domain.Owners order,
// including owners without bets in the window. Bets with no owner are skipped.
func OwnerBreakdown(txs []domain.Transaction, window DateRange) []OwnerStats {
	tallies := make(map[domain.Owner]*tally, len(domain.Owners))
	for _, o := range domain.Owners {
		tallies[o] = &tally{}
	}
	for _, tx := range Ordered(txs) {
		if !tx.Type.IsBet() || !window.Contains(tx.Date) {
			continue
		}
		if t, ok := tallies[tx.OwnerOrEmpty()]; ok {
			t.add(tx)
		}
	}

	stats := make([]OwnerStats, 0, len(domain.Owners))
	for _, o := range domain.Owners {
		t := tallies[o]
		stats = append(stats, OwnerStats{
			Owner:       o,
			WonBets:     t.won,
			LostBets:    t.lost,
			CashoutBets: t.cashouts,
			PendingBets: t.pendingBets,
			TotalBets:   t.bets,
			TotalBet:    Round2(t.wagered),
			NetProfit:   Round2(t.resolved),
			ROI:         t.roi(),
			WinRate:     t.winRate(),
			AvgOdds:     t.avgOdds(),
		})
	}
	return stats
}

// UnknownTypes returns the transactions whose type is not recognized. They
// contribute zero to every aggregate; callers may report them.
func UnknownTypes(txs []domain.Transaction) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txs {
		if !tx.Type.Valid() {
			out = append(out, tx)
		}
	}
	return out
}

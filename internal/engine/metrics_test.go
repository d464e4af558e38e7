package engine

import (
	"testing"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	odds := func(tx domain.Transaction, o float64) domain.Transaction {
		tx.Odds = &o
		return tx
	}
	txs := seq(
		deposit(day(2024, 1, 5), "100000"),
		bet(day(2024, 2, 2), domain.TypeBetWon, domain.OwnerPropia, "22000", "12000"),
		bet(day(2024, 2, 3), domain.TypeBetCashout, domain.OwnerPulpo, "11000", "1000"),
		bet(day(2024, 2, 4), domain.TypeBetCashout, domain.OwnerPulpo, "4500", "-500"),
		odds(bet(day(2024, 2, 5), domain.TypeBetLost, domain.OwnerPulpo, "5000", "-5000"), 1.9),
		odds(bet(day(2024, 2, 6), domain.TypeBetPending, domain.OwnerPulpo, "8000", "-8000"), 2.1),
		deposit(day(2024, 3, 1), "1"),
	)
	window := MonthRange(domain.MonthKey{Year: 2024, Month: time.February})

	s := Summarize(txs, nil, window)
	assertDecimal(t, "100000", s.OpeningBalance)
	assertDecimal(t, "99500", s.CurrentBalance)
	assertDecimal(t, "7500", s.NetProfit)
	assertDecimal(t, "30000", s.TotalBet)
	assertDecimal(t, "8000", s.PendingAmount)
	assert.Equal(t, 25.0, s.MonthlyROI)
	assert.Equal(t, 2, s.WonBets)
	assert.Equal(t, 2, s.LostBets)
	assert.Equal(t, 1, s.PendingBets)
	assert.Equal(t, 2, s.CashoutBets)
	assert.Equal(t, 50.0, s.WinRate)
}

func TestSummarize_AnchorIsBestKnownOpening(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 5), "100000"),
		deposit(day(2024, 2, 10), "500"),
	)
	configs := []domain.MonthlyConfig{{Year: 2024, Month: time.February, InitialBalance: decPtr("7000")}}
	s := Summarize(txs, configs, DateRange{Start: day(2024, 2, 15), End: day(2024, 2, 20)})
	assertDecimal(t, "7500", s.OpeningBalance)
	assertDecimal(t, "7500", s.CurrentBalance)
}

func TestSummarize_EmptyWindow(t *testing.T) {
	s := Summarize(nil, nil, DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)})
	assert.Equal(t, 0.0, s.MonthlyROI)
	assert.Equal(t, 0.0, s.WinRate)
	assertDecimal(t, "0", s.CurrentBalance)
}

func TestOwnerBreakdown(t *testing.T) {
	o21 := 2.1
	o19 := 1.9
	lost := bet(day(2024, 2, 5), domain.TypeBetLost, domain.OwnerPulpo, "5000", "-5000")
	lost.Odds = &o19
	pending := bet(day(2024, 2, 6), domain.TypeBetPending, domain.OwnerPulpo, "8000", "-8000")
	pending.Odds = &o21
	noOwner := bet(day(2024, 2, 7), domain.TypeBetWon, domain.OwnerPulpo, "300", "200")
	noOwner.Owner = nil

	txs := seq(
		bet(day(2024, 2, 2), domain.TypeBetWon, domain.OwnerPropia, "22000", "12000"),
		lost,
		pending,
		bet(day(2024, 2, 8), domain.TypeBetCashout, domain.OwnerPulpo, "6000", "1000"),
		noOwner,
		bet(day(2024, 1, 8), domain.TypeBetWon, domain.OwnerTrade, "6000", "1000"),
	)
	window := MonthRange(domain.MonthKey{Year: 2024, Month: time.February})

	stats := OwnerBreakdown(txs, window)
	require.Len(t, stats, 3)
	assert.Equal(t, []domain.Owner{domain.OwnerPropia, domain.OwnerPulpo, domain.OwnerTrade},
		[]domain.Owner{stats[0].Owner, stats[1].Owner, stats[2].Owner})

	propia := stats[0]
	assert.Equal(t, 1, propia.WonBets)
	assert.Equal(t, 100.0, propia.WinRate)
	assert.Equal(t, 120.0, propia.ROI)

	pulpo := stats[1]
	assert.Equal(t, 1, pulpo.WonBets)
	assert.Equal(t, 1, pulpo.LostBets)
	assert.Equal(t, 1, pulpo.PendingBets)
	assert.Equal(t, 1, pulpo.CashoutBets)
	assert.Equal(t, 3, pulpo.TotalBets)
	assertDecimal(t, "10000", pulpo.TotalBet)
	assertDecimal(t, "-4000", pulpo.NetProfit)
	assert.Equal(t, -40.0, pulpo.ROI)
	assert.Equal(t, 2.0, pulpo.AvgOdds)

	trade := stats[2]
	assert.Equal(t, 0, trade.WonBets)
	assert.Equal(t, 0, trade.LostBets)
	assert.Equal(t, 0.0, trade.ROI)
	assert.Equal(t, 0.0, trade.WinRate)
	assertDecimal(t, "0", trade.TotalBet)
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(0, 0))
	assert.Equal(t, 66.67, WinRate(2, 1))
}

func TestUnknownTypes(t *testing.T) {
	txs := []domain.Transaction{
		deposit(day(2024, 1, 1), "1"),
		{Type: "BONUS"},
	}
	got := UnknownTypes(txs)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TransactionType("BONUS"), got[0].Type)
}

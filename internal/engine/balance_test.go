package engine

import (
	"testing"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBalance_Scenario(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 5), "100000"),
		bet(day(2024, 1, 10), domain.TypeBetPending, domain.OwnerPropia, "10000", "-10000"),
	)
	asOf := Window{AsOf: day(2024, 1, 31)}
	assertDecimal(t, "90000", ComputeBalance(txs, nil, asOf))

	won, err := Resolve(txs[1], domain.TypeBetWon, dec("22000"))
	require.NoError(t, err)
	txs[1] = won
	assertDecimal(t, "12000", won.NetProfit)
	assertDecimal(t, "112000", ComputeBalance(txs, nil, asOf))
}

func TestComputeBalance_Rules(t *testing.T) {
	historical := deposit(day(2024, 1, 2), "500000")
	historical.Notes = "Datos HISTÓRICOS migrados"

	txs := seq(
		deposit(day(2024, 1, 5), "1000"),
		withdrawal(day(2024, 1, 6), "200"),
		bet(day(2024, 1, 7), domain.TypeBetLost, domain.OwnerPropia, "100", "-100"),
		bet(day(2024, 1, 8), domain.TypeBetCashout, domain.OwnerPulpo, "50", "-25"),
		domain.Transaction{Date: day(2024, 1, 9), Type: "BONUS", Amount: dec("999")},
		historical,
		deposit(day(2024, 2, 1), "5000"),
	)

	tests := []struct {
		name   string
		anchor string
		window Window
		want   string
	}{
		{"full history to january", "", Window{AsOf: day(2024, 1, 31)}, "675"},
		{"as-of cuts later rows", "", Window{AsOf: day(2024, 1, 6)}, "800"},
		{"carry-over without anchor", "", Window{Start: datePtr(day(2024, 2, 1)), AsOf: day(2024, 2, 29)}, "5675"},
		{"anchor replaces carry-over", "10000", Window{Start: datePtr(day(2024, 2, 1)), AsOf: day(2024, 2, 29)}, "15000"},
		{"anchor without start covers the as-of month", "10000", Window{AsOf: day(2024, 2, 29)}, "15000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var anchor *decimal.Decimal
			if tt.anchor != "" {
				anchor = decPtr(tt.anchor)
			}
			got := ComputeBalance(txs, anchor, tt.window)
			assertDecimal(t, tt.want, got)
			assert.True(t, got.Equal(ComputeBalance(txs, anchor, tt.window)), "not idempotent")
		})
	}
}

func TestComputeBalance_RoundsAtBoundary(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 1), "0.004"),
		deposit(day(2024, 1, 1), "0.004"),
	)
	assertDecimal(t, "0.01", ComputeBalance(txs, nil, Window{AsOf: day(2024, 1, 1)}))
}

func TestComputeBalance_AnchorIgnoresEarlierMonths(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 15), "100"),
		deposit(day(2024, 2, 3), "50"),
		deposit(day(2024, 2, 20), "75"),
	)
	got := ComputeBalance(txs, decPtr("500"), Window{AsOf: day(2024, 2, 10)})
	assertDecimal(t, "550", got)
}

func TestOrdered_TiesKeepCreationOrder(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 2), "1"),
		deposit(day(2024, 1, 1), "2"),
		deposit(day(2024, 1, 2), "3"),
	)
	// Reverse the creation order of the two same-day rows.
	txs[0].CreatedAt, txs[2].CreatedAt = txs[2].CreatedAt, txs[0].CreatedAt

	got := Ordered(txs)
	require.Len(t, got, 3)
	assertDecimal(t, "2", got[0].Amount)
	assertDecimal(t, "3", got[1].Amount)
	assertDecimal(t, "1", got[2].Amount)
}

func TestOrdered_SameInstantFallsBackToID(t *testing.T) {
	at := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{ID: "c", Date: day(2024, 1, 3), Type: domain.TypeDeposit, Amount: dec("3"), CreatedAt: at},
		{ID: "a", Date: day(2024, 1, 3), Type: domain.TypeDeposit, Amount: dec("1"), CreatedAt: at},
		{ID: "b", Date: day(2024, 1, 3), Type: domain.TypeDeposit, Amount: dec("2"), CreatedAt: at.In(time.FixedZone("CET", 3600))},
	}

	got := Ordered(txs)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestOpeningBalance(t *testing.T) {
	txs := seq(
		deposit(day(2024, 1, 5), "1000"),
		deposit(day(2024, 2, 5), "500"),
		deposit(day(2024, 3, 5), "250"),
	)
	configs := []domain.MonthlyConfig{
		{Year: 2024, Month: time.February, InitialBalance: decPtr("3000"), FinalBalance: decPtr("42")},
	}

	got, src := OpeningBalance(txs, configs, domain.MonthKey{Year: 2024, Month: time.February})
	assert.Equal(t, OpeningAnchor, src)
	assertDecimal(t, "3000", got)

	got, src = OpeningBalance(txs, configs, domain.MonthKey{Year: 2024, Month: time.March})
	assert.Equal(t, OpeningComputed, src)
	assertDecimal(t, "3500", got, "cached final balance must not be read")

	got, _ = OpeningBalance(txs, nil, domain.MonthKey{Year: 2024, Month: time.January})
	assertDecimal(t, "0", got)
}

func TestProvisionalOpening(t *testing.T) {
	configs := []domain.MonthlyConfig{
		{Year: 2024, Month: time.January, FinalBalance: decPtr("1200")},
		{Year: 2024, Month: time.March, InitialBalance: decPtr("900"), FinalBalance: decPtr("1")},
	}

	got, src, ok := ProvisionalOpening(configs, domain.MonthKey{Year: 2024, Month: time.February})
	require.True(t, ok)
	assert.Equal(t, OpeningCache, src)
	assertDecimal(t, "1200", got)

	got, src, ok = ProvisionalOpening(configs, domain.MonthKey{Year: 2024, Month: time.March})
	require.True(t, ok)
	assert.Equal(t, OpeningAnchor, src)
	assertDecimal(t, "900", got)

	_, src, ok = ProvisionalOpening(configs, domain.MonthKey{Year: 2025, Month: time.June})
	assert.False(t, ok)
	assert.Equal(t, OpeningNone, src)
}

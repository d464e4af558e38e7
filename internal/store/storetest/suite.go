// Package storetest holds the behavioural suite every store.LedgerStore
// backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.LedgerStore

// Run exercises newStore against the LedgerStore contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.LedgerStore)
	}{
		{"TransactionRoundTrip", testTransactionRoundTrip},
		{"TransactionsKeepInsertionOrder", testInsertionOrder},
		{"InsertKeepsPresetID", testPresetID},
		{"UpdateTransaction", testUpdateTransaction},
		{"UpdateUnknownTransaction", testUpdateUnknown},
		{"DeleteTransaction", testDeleteTransaction},
		{"MonthlyConfigUpsert", testMonthlyConfigUpsert},
		{"MonthlyConfigMissing", testMonthlyConfigMissing},
		{"MonthlyConfigsOrdered", testMonthlyConfigsOrdered},
		{"GoalsLifecycle", testGoalsLifecycle},
		{"DuplicateGoalTypeRejected", testDuplicateGoal},
		{"CompletedGoalsNewestFirst", testCompletedGoals},
		{"AllGoalsAcrossMonths", testAllGoals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func pendingBet(date civil.Date, stake string) domain.Transaction {
	owner := domain.OwnerPulpo
	pct := 2.5
	odds := 1.85
	potential := dec(stake).Mul(decimal.NewFromFloat(odds)).Sub(dec(stake))
	return domain.Transaction{
		Date:            date,
		Type:            domain.TypeBetPending,
		Owner:           &owner,
		StakePercent:    &pct,
		Amount:          dec(stake),
		Odds:            &odds,
		PotentialProfit: &potential,
		NetProfit:       dec(stake).Neg(),
		Notes:           "Liga",
	}
}

func testTransactionRoundTrip(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	in := pendingBet(civil.Date{Year: 2024, Month: 3, Day: 9}, "7500")

	stored, err := s.InsertTransaction(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, in.Date, got.Date)
	assert.Equal(t, domain.TypeBetPending, got.Type)
	require.NotNil(t, got.Owner)
	assert.Equal(t, domain.OwnerPulpo, *got.Owner)
	require.NotNil(t, got.StakePercent)
	assert.InDelta(t, 2.5, *got.StakePercent, 1e-9)
	require.NotNil(t, got.Odds)
	assert.InDelta(t, 1.85, *got.Odds, 1e-9)
	require.NotNil(t, got.PotentialProfit)
	assertDecimal(t, in.PotentialProfit.String(), *got.PotentialProfit)
	assertDecimal(t, "7500", got.Amount)
	assertDecimal(t, "-7500", got.NetProfit)
	assert.Equal(t, "Liga", got.Notes)
	assert.True(t, stored.CreatedAt.Equal(got.CreatedAt))
}

func testInsertionOrder(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	var ids []string
	for _, day := range []int{20, 3, 11} {
		tx, err := s.InsertTransaction(ctx, domain.Transaction{
			Date:   civil.Date{Year: 2024, Month: 1, Day: day},
			Type:   domain.TypeDeposit,
			Amount: dec("100"),
		})
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i, tx := range txs {
		assert.Equal(t, ids[i], tx.ID)
	}
}

func testPresetID(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	created := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)

	stored, err := s.InsertTransaction(ctx, domain.Transaction{
		ID:        "restored-1",
		Date:      civil.Date{Year: 2023, Month: 12, Day: 31},
		Type:      domain.TypeWithdrawal,
		Amount:    dec("250.50"),
		CreatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, "restored-1", stored.ID)
	assert.True(t, created.Equal(stored.CreatedAt))
}

func testUpdateTransaction(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	stored, err := s.InsertTransaction(ctx, pendingBet(civil.Date{Year: 2024, Month: 3, Day: 9}, "10000"))
	require.NoError(t, err)

	won := stored.Clone()
	won.Type = domain.TypeBetWon
	won.Amount = dec("18500")
	won.NetProfit = dec("8500")
	won.Odds = nil
	won.PotentialProfit = nil
	won.Notes = "Liga, cerrada"

	updated, err := s.UpdateTransaction(ctx, stored.ID, domain.UpdateFrom(won))
	require.NoError(t, err)
	assert.Equal(t, domain.TypeBetWon, updated.Type)
	assertDecimal(t, "18500", updated.Amount)
	assertDecimal(t, "8500", updated.NetProfit)
	assert.Nil(t, updated.Odds)
	assert.Nil(t, updated.PotentialProfit)
	assert.Equal(t, "Liga, cerrada", updated.Notes)
	require.NotNil(t, updated.StakePercent, "stake percent is not part of an update")
	assert.True(t, stored.CreatedAt.Equal(updated.CreatedAt))

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assertDecimal(t, "8500", txs[0].NetProfit)
}

func testUpdateUnknown(t *testing.T, s store.LedgerStore) {
	_, err := s.UpdateTransaction(context.Background(), "missing", domain.TransactionUpdate{
		Date:   civil.Date{Year: 2024, Month: 1, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDeleteTransaction(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	stored, err := s.InsertTransaction(ctx, domain.Transaction{
		Date:   civil.Date{Year: 2024, Month: 1, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("100"),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction(ctx, stored.ID))
	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	assert.ErrorIs(t, s.DeleteTransaction(ctx, stored.ID), domain.ErrNotFound)
}

func testMonthlyConfigUpsert(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	key := domain.MonthKey{Year: 2024, Month: time.May}

	require.NoError(t, s.UpsertMonthlyConfig(ctx, key, domain.MonthlyConfigUpdate{InitialBalance: decPtr("4000")}))
	require.NoError(t, s.UpsertMonthlyConfig(ctx, key, domain.MonthlyConfigUpdate{FinalBalance: decPtr("5230.75")}))

	cfg, err := s.GetMonthlyConfig(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, key, cfg.Key())
	require.NotNil(t, cfg.InitialBalance, "final balance upsert keeps the anchor")
	assertDecimal(t, "4000", *cfg.InitialBalance)
	require.NotNil(t, cfg.FinalBalance)
	assertDecimal(t, "5230.75", *cfg.FinalBalance)
	assert.False(t, cfg.UpdatedAt.IsZero())

	require.NoError(t, s.UpsertMonthlyConfig(ctx, key, domain.MonthlyConfigUpdate{ClearInitialBalance: true}))
	cfg, err = s.GetMonthlyConfig(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.InitialBalance)
	require.NotNil(t, cfg.FinalBalance)
}

func testMonthlyConfigMissing(t *testing.T, s store.LedgerStore) {
	cfg, err := s.GetMonthlyConfig(context.Background(), domain.MonthKey{Year: 2030, Month: time.January})
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func testMonthlyConfigsOrdered(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	keys := []domain.MonthKey{
		{Year: 2024, Month: time.March},
		{Year: 2023, Month: time.December},
		{Year: 2024, Month: time.January},
	}
	for _, k := range keys {
		require.NoError(t, s.UpsertMonthlyConfig(ctx, k, domain.MonthlyConfigUpdate{InitialBalance: decPtr("1")}))
	}

	configs, err := s.ListMonthlyConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 3)
	assert.Equal(t, "2023-12", configs[0].Key().String())
	assert.Equal(t, "2024-01", configs[1].Key().String())
	assert.Equal(t, "2024-03", configs[2].Key().String())
}

func seedGoals(t *testing.T, s store.LedgerStore, key domain.MonthKey) []domain.MonthlyGoal {
	t.Helper()
	var goals []domain.MonthlyGoal
	for _, gt := range []domain.GoalType{domain.GoalTrade, domain.GoalAuto} {
		goals = append(goals, domain.MonthlyGoal{
			Year:         key.Year,
			Month:        key.Month,
			GoalType:     gt,
			TargetAmount: dec("100000"),
			CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	stored, err := s.InsertGoals(context.Background(), goals)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	return stored
}

func testGoalsLifecycle(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	key := domain.MonthKey{Year: 2024, Month: time.February}
	seedGoals(t, s, key)

	goals, err := s.ListGoals(ctx, key)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, domain.GoalAuto, goals[0].GoalType)
	assert.Equal(t, domain.GoalTrade, goals[1].GoalType)
	for _, g := range goals {
		assert.NotEmpty(t, g.ID)
		assert.False(t, g.Completed)
	}

	other, err := s.ListGoals(ctx, domain.MonthKey{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Empty(t, other)

	done := true
	at := time.Date(2024, 2, 27, 18, 30, 0, 0, time.UTC)
	notes := "pagado"
	updated, err := s.UpdateGoal(ctx, goals[0].ID, domain.GoalUpdate{
		Completed:   &done,
		CompletedAt: &at,
		Notes:       &notes,
		UpdatedAt:   at,
	})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, at.Equal(*updated.CompletedAt))
	assert.Equal(t, "pagado", updated.Notes)

	undone := false
	updated, err = s.UpdateGoal(ctx, goals[0].ID, domain.GoalUpdate{Completed: &undone, UpdatedAt: at.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, updated.Completed)
	assert.Nil(t, updated.CompletedAt)
	assert.Equal(t, "pagado", updated.Notes)

	_, err = s.UpdateGoal(ctx, "missing", domain.GoalUpdate{Completed: &done})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateGoal(t *testing.T, s store.LedgerStore) {
	key := domain.MonthKey{Year: 2024, Month: time.February}
	seedGoals(t, s, key)

	_, err := s.InsertGoals(context.Background(), []domain.MonthlyGoal{{
		Year:         key.Year,
		Month:        key.Month,
		GoalType:     domain.GoalAuto,
		TargetAmount: dec("1"),
	}})
	assert.Error(t, err)
}

func testCompletedGoals(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()
	jan := seedGoals(t, s, domain.MonthKey{Year: 2024, Month: time.January})
	feb := seedGoals(t, s, domain.MonthKey{Year: 2024, Month: time.February})

	done := true
	complete := func(id string, at time.Time) {
		_, err := s.UpdateGoal(ctx, id, domain.GoalUpdate{Completed: &done, CompletedAt: &at, UpdatedAt: at})
		require.NoError(t, err)
	}
	complete(jan[0].ID, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC))
	complete(feb[1].ID, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	complete(jan[1].ID, time.Date(2024, 2, 1, 0, 0, 0, 500, time.UTC))

	goals, err := s.ListCompletedGoals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, goals, 3)
	assert.Equal(t, feb[1].ID, goals[0].ID)
	assert.Equal(t, jan[1].ID, goals[1].ID)
	assert.Equal(t, jan[0].ID, goals[2].ID)

	limited, err := s.ListCompletedGoals(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testAllGoals(t *testing.T, s store.LedgerStore) {
	ctx := context.Background()

	empty, err := s.ListAllGoals(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Inserted out of month order, with no transactions or configs around.
	apr := seedGoals(t, s, domain.MonthKey{Year: 2024, Month: time.April})
	dec23 := seedGoals(t, s, domain.MonthKey{Year: 2023, Month: time.December})
	seedGoals(t, s, domain.MonthKey{Year: 2031, Month: time.January})

	notes := "revisar"
	at := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err = s.UpdateGoal(ctx, apr[0].ID, domain.GoalUpdate{Notes: &notes, UpdatedAt: at})
	require.NoError(t, err)

	goals, err := s.ListAllGoals(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 6)

	var keys []string
	for _, g := range goals {
		keys = append(keys, g.Key().String()+"/"+string(g.GoalType))
	}
	assert.Equal(t, []string{
		"2023-12/AUTO", "2023-12/TRADE",
		"2024-04/AUTO", "2024-04/TRADE",
		"2031-01/AUTO", "2031-01/TRADE",
	}, keys)
	ids := map[string]bool{dec23[0].ID: true, dec23[1].ID: true}
	assert.True(t, ids[goals[0].ID])
	assert.True(t, ids[goals[1].ID])

	for _, g := range goals {
		if g.ID == apr[0].ID {
			assert.Equal(t, "revisar", g.Notes)
		} else {
			assert.Empty(t, g.Notes)
		}
	}
}

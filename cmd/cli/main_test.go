package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/config"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/store/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, refresh bool) (*app, *inmemory.Store, *bytes.Buffer) {
	t.Helper()
	st := inmemory.NewStore()
	out := &bytes.Buffer{}
	cfg := &config.Config{
		Backend:             config.BackendMemory,
		BankAmount:          decimal.NewFromInt(1000),
		RefreshFinalBalance: refresh,
	}
	a := newApp(cfg, st, out)
	require.NoError(t, a.start(context.Background()))
	return a, st, out
}

func TestCLI_BetLifecycle(t *testing.T) {
	ctx := context.Background()
	a, st, out := newTestApp(t, true)

	require.NoError(t, a.run(ctx, "add", []string{"-type", "deposit", "-amount", "500", "-date", "2024-01-02"}))
	require.NoError(t, a.run(ctx, "add", []string{"-type", "bet_pending", "-stake-pct", "5", "-odds", "2", "-owner", "pulpo", "-date", "2024-01-03"}))

	txs, err := st.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	bet := txs[1]
	assert.Equal(t, "50", bet.Amount.String(), "5% of a 1000 bank")
	assert.Equal(t, domain.OwnerPulpo, bet.OwnerOrEmpty())

	out.Reset()
	require.NoError(t, a.run(ctx, "resolve", []string{"-id", bet.ID, "-to", "won", "-amount", "100"}))
	assert.Contains(t, out.String(), "Resolved "+bet.ID+" as BET_WON")

	out.Reset()
	require.NoError(t, a.run(ctx, "list", []string{"-month", "2024-01", "-owner", "PULPO"}))
	assert.Contains(t, out.String(), "1 transactions from 2024-01-01 to 2024-01-31")

	out.Reset()
	require.NoError(t, a.run(ctx, "balance", []string{"-as-of", "2024-01-31"}))
	assert.Contains(t, out.String(), "Balance at 2024-01-31: 550.00")

	out.Reset()
	require.NoError(t, a.run(ctx, "months", nil))
	assert.Contains(t, out.String(), "2024-01")
	assert.Contains(t, out.String(), "550.00")

	require.NoError(t, a.close(ctx))

	cfg, err := st.GetMonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: time.January})
	require.NoError(t, err)
	require.NotNil(t, cfg, "refresh jobs drain on close")
	require.NotNil(t, cfg.FinalBalance)
	assert.Equal(t, "550", cfg.FinalBalance.String())
}

func TestCLI_EditAndDelete(t *testing.T) {
	ctx := context.Background()
	a, st, out := newTestApp(t, false)
	defer a.close(ctx)

	require.NoError(t, a.run(ctx, "add", []string{"-type", "BET_PENDING", "-amount", "20", "-date", "2024-02-10"}))
	txs, err := st.ListTransactions(ctx)
	require.NoError(t, err)
	id := txs[0].ID

	require.NoError(t, a.run(ctx, "edit", []string{"-id", id, "-stake", "30", "-notes", "corrected"}))
	got, err := st.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "30", got[0].Amount.String())
	assert.Equal(t, "corrected", got[0].Notes)

	out.Reset()
	require.NoError(t, a.run(ctx, "delete", []string{"-id", id}))
	assert.Contains(t, out.String(), "Deleted "+id)

	err = a.run(ctx, "delete", []string{"-id", id})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCLI_AnchorAndGoals(t *testing.T) {
	ctx := context.Background()
	a, st, out := newTestApp(t, false)
	defer a.close(ctx)

	require.NoError(t, a.run(ctx, "anchor", []string{"-month", "2024-03", "-amount", "1200"}))
	cfg, err := st.GetMonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.NotNil(t, cfg.InitialBalance)
	assert.Equal(t, "1200", cfg.InitialBalance.String())

	require.NoError(t, a.run(ctx, "anchor", []string{"-month", "2024-03", "-clear"}))
	cfg, err = st.GetMonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.Nil(t, cfg.InitialBalance)

	assert.Error(t, a.run(ctx, "anchor", []string{"-month", "2024-03"}))

	out.Reset()
	require.NoError(t, a.run(ctx, "goals", []string{"-month", "2024-03", "-toggle", "pulpo", "-type", "trade", "-notes", "halfway"}))
	assert.Contains(t, out.String(), "2024-03 PULPO completed: true")
	assert.Contains(t, out.String(), "halfway")

	out.Reset()
	require.NoError(t, a.run(ctx, "goals", []string{"-completed"}))
	assert.Contains(t, out.String(), "PULPO")
	assert.NotContains(t, out.String(), "TRADE")
}

func TestCLI_Errors(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestApp(t, false)
	defer a.close(ctx)

	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"unknown type", "add", []string{"-type", "PARLAY", "-amount", "5"}},
		{"zero deposit", "add", []string{"-type", "DEPOSIT", "-amount", "0"}},
		{"bad odds", "add", []string{"-type", "BET_PENDING", "-amount", "5", "-odds", "1"}},
		{"edit needs id", "edit", nil},
		{"won needs amount", "resolve", []string{"-id", "x", "-to", "won"}},
		{"half custom range", "list", []string{"-from", "2024-01-01"}},
		{"inverted range", "summary", []string{"-from", "2024-02-01", "-to", "2024-01-01"}},
		{"bad month", "months", []string{"-nope"}},
		{"backup needs bucket", "backup", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, a.run(ctx, tt.command, tt.args))
		})
	}

	assert.ErrorIs(t, a.run(ctx, "frobnicate", nil), errUnknownCommand)
}

func TestRangeFlags(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.March, Day: 20}

	tests := []struct {
		name      string
		args      []string
		wantStart string
		wantEnd   string
	}{
		{"default month", nil, "2024-03-01", "2024-03-20"},
		{"week", []string{"-period", "week"}, "2024-03-13", "2024-03-20"},
		{"explicit month", []string{"-month", "2024-02"}, "2024-02-01", "2024-02-29"},
		{"custom", []string{"-from", "2024-01-10", "-to", "2024-01-20"}, "2024-01-10", "2024-01-20"},
		{"all", []string{"-period", "all"}, "0001-01-01", "9999-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, _ := newTestApp(t, false)
			fs := a.flagSet("test")
			rf := addRangeFlags(fs, string(engine.PeriodMonth))
			require.NoError(t, fs.Parse(tt.args))

			r, err := rf.resolve(today)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, r.Start.String())
			assert.Equal(t, tt.wantEnd, r.End.String())
		})
	}
}

func TestResolveTarget(t *testing.T) {
	for in, want := range map[string]domain.TransactionType{
		"won":         domain.TypeBetWon,
		"LOST":        domain.TypeBetLost,
		"cashout":     domain.TypeBetCashout,
		"bet_cashout": domain.TypeBetCashout,
	} {
		got, err := resolveTarget(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := resolveTarget("void")
	assert.Error(t, err)
}

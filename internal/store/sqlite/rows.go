package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// timestampFormat is fixed width so stored timestamps sort as text.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `id, date, type, owner, stake_percent, amount, odds,
	potential_profit, net_profit, notes, created_at`

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		tx                     domain.Transaction
		date, typ, amount, net string
		createdAt              string
		owner, potential       sql.NullString
		stakePercent, odds     sql.NullFloat64
	)
	if err := s.Scan(&tx.ID, &date, &typ, &owner, &stakePercent, &amount, &odds,
		&potential, &net, &tx.Notes, &createdAt); err != nil {
		return domain.Transaction{}, err
	}

	var err error
	if tx.Date, err = civil.ParseDate(date); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: date: %w", tx.ID, err)
	}
	tx.Type = domain.TransactionType(typ)
	if owner.Valid {
		o := domain.Owner(owner.String)
		tx.Owner = &o
	}
	if stakePercent.Valid {
		v := stakePercent.Float64
		tx.StakePercent = &v
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", tx.ID, err)
	}
	if odds.Valid {
		v := odds.Float64
		tx.Odds = &v
	}
	if tx.PotentialProfit, err = parseNullDecimal(potential); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: potential_profit: %w", tx.ID, err)
	}
	if tx.NetProfit, err = decimal.NewFromString(net); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: net_profit: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: created_at: %w", tx.ID, err)
	}
	return tx, nil
}

const configColumns = `year, month, initial_balance, final_balance, updated_at`

func scanConfig(s scanner) (domain.MonthlyConfig, error) {
	var (
		cfg            domain.MonthlyConfig
		month          int
		initial, final sql.NullString
		updatedAt      string
	)
	if err := s.Scan(&cfg.Year, &month, &initial, &final, &updatedAt); err != nil {
		return domain.MonthlyConfig{}, err
	}
	cfg.Month = time.Month(month)

	var err error
	if cfg.InitialBalance, err = parseNullDecimal(initial); err != nil {
		return domain.MonthlyConfig{}, fmt.Errorf("monthly config %04d-%02d: initial_balance: %w", cfg.Year, month, err)
	}
	if cfg.FinalBalance, err = parseNullDecimal(final); err != nil {
		return domain.MonthlyConfig{}, fmt.Errorf("monthly config %04d-%02d: final_balance: %w", cfg.Year, month, err)
	}
	if cfg.UpdatedAt, err = time.Parse(timestampFormat, updatedAt); err != nil {
		return domain.MonthlyConfig{}, fmt.Errorf("monthly config %04d-%02d: updated_at: %w", cfg.Year, month, err)
	}
	return cfg, nil
}

const goalColumns = `id, year, month, goal_type, target_amount, completed,
	completed_at, notes, created_at, updated_at`

func scanGoal(s scanner) (domain.MonthlyGoal, error) {
	var (
		g                      domain.MonthlyGoal
		month                  int
		goalType, target       string
		completed              bool
		completedAt, updatedAt sql.NullString
		createdAt              string
	)
	if err := s.Scan(&g.ID, &g.Year, &month, &goalType, &target, &completed,
		&completedAt, &g.Notes, &createdAt, &updatedAt); err != nil {
		return domain.MonthlyGoal{}, err
	}
	g.Month = time.Month(month)
	g.GoalType = domain.GoalType(goalType)
	g.Completed = completed

	var err error
	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: target_amount: %w", g.ID, err)
	}
	if g.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: completed_at: %w", g.ID, err)
	}
	if g.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: created_at: %w", g.ID, err)
	}
	if g.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: updated_at: %w", g.ID, err)
	}
	return g, nil
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timestampFormat, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullOwner(o *domain.Owner) sql.NullString {
	if o == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*o), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

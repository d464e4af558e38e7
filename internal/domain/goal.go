package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalType is one of the fixed monthly targets.
type GoalType string

const (
	GoalPulpo  GoalType = "PULPO"
	GoalTrade  GoalType = "TRADE"
	GoalAuto   GoalType = "AUTO"
	GoalGastos GoalType = "GASTOS"
)

// GoalTypes lists the goal types in their stored sort order.
var GoalTypes = []GoalType{GoalAuto, GoalGastos, GoalPulpo, GoalTrade}

// MonthlyGoal is a per-month completion tracker for one goal type.
type MonthlyGoal struct {
	ID           string
	Year         int
	Month        time.Month
	GoalType     GoalType
	TargetAmount decimal.Decimal
	Completed    bool
	CompletedAt  *time.Time
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Key returns the month the goal belongs to.
func (g MonthlyGoal) Key() MonthKey {
	return MonthKey{Year: g.Year, Month: g.Month}
}

// GoalUpdate holds the mutable goal fields. Completion and its timestamp are
// always written together.
type GoalUpdate struct {
	Completed   *bool
	CompletedAt *time.Time
	Notes       *string
	UpdatedAt   time.Time
}

// Apply merges the update into g.
func (u GoalUpdate) Apply(g MonthlyGoal) MonthlyGoal {
	if u.Completed != nil {
		g.Completed = *u.Completed
		if u.CompletedAt != nil {
			at := *u.CompletedAt
			g.CompletedAt = &at
		} else {
			g.CompletedAt = nil
		}
	}
	if u.Notes != nil {
		g.Notes = *u.Notes
	}
	if !u.UpdatedAt.IsZero() {
		at := u.UpdatedAt
		g.UpdatedAt = &at
	}
	return g
}

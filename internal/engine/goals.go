package engine

import (
	"sort"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultGoalTargets seeds the goals of a month the first time it is opened.
var DefaultGoalTargets = map[domain.GoalType]decimal.Decimal{
	domain.GoalPulpo:  decimal.NewFromInt(100000),
	domain.GoalTrade:  decimal.NewFromInt(100000),
	domain.GoalAuto:   decimal.NewFromInt(50000),
	domain.GoalGastos: decimal.NewFromInt(150000),
}

// DefaultGoals builds the incomplete default goal rows for a month.
func DefaultGoals(m domain.MonthKey, now time.Time) []domain.MonthlyGoal {
	goals := make([]domain.MonthlyGoal, 0, len(domain.GoalTypes))
	for _, gt := range domain.GoalTypes {
		goals = append(goals, domain.MonthlyGoal{
			Year:         m.Year,
			Month:        m.Month,
			GoalType:     gt,
			TargetAmount: DefaultGoalTargets[gt],
			CreatedAt:    now,
		})
	}
	return goals
}

// ToggleGoal flips completion. The completion time is set and cleared in the
// same update.
func ToggleGoal(g domain.MonthlyGoal, now time.Time) domain.GoalUpdate {
	completed := !g.Completed
	u := domain.GoalUpdate{Completed: &completed, UpdatedAt: now}
	if completed {
		at := now
		u.CompletedAt = &at
	}
	return u
}

// GoalNotes builds an update that only rewrites the notes.
func GoalNotes(notes string, now time.Time) domain.GoalUpdate {
	return domain.GoalUpdate{Notes: &notes, UpdatedAt: now}
}

// SortGoals orders goals by goal type.
func SortGoals(goals []domain.MonthlyGoal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].GoalType < goals[j].GoalType
	})
}

// SortCompleted orders completed goals newest first and applies limit when
// it is positive.
func SortCompleted(goals []domain.MonthlyGoal, limit int) []domain.MonthlyGoal {
	var out []domain.MonthlyGoal
	for _, g := range goals {
		if g.Completed {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return completedAt(out[i]).After(completedAt(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func completedAt(g domain.MonthlyGoal) time.Time {
	if g.CompletedAt == nil {
		return time.Time{}
	}
	return *g.CompletedAt
}

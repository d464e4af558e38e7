package engine

import (
	"testing"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGoals(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	goals := DefaultGoals(domain.MonthKey{Year: 2024, Month: time.May}, now)

	require.Len(t, goals, 4)
	for _, g := range goals {
		assert.Equal(t, 2024, g.Year)
		assert.Equal(t, time.May, g.Month)
		assert.False(t, g.Completed)
		assert.Nil(t, g.CompletedAt)
		assert.True(t, DefaultGoalTargets[g.GoalType].Equal(g.TargetAmount))
	}
}

func TestToggleGoal_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC)
	g := domain.MonthlyGoal{ID: "g1", GoalType: domain.GoalAuto}

	g = ToggleGoal(g, now).Apply(g)
	assert.True(t, g.Completed)
	require.NotNil(t, g.CompletedAt)
	assert.Equal(t, now, *g.CompletedAt)

	g = ToggleGoal(g, now.Add(time.Hour)).Apply(g)
	assert.False(t, g.Completed)
	assert.Nil(t, g.CompletedAt)
	require.NotNil(t, g.UpdatedAt)
	assert.Equal(t, now.Add(time.Hour), *g.UpdatedAt)
}

func TestGoalNotes_LeavesCompletion(t *testing.T) {
	at := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	g := domain.MonthlyGoal{Completed: true, CompletedAt: &at}
	g = GoalNotes("paid", at).Apply(g)
	assert.Equal(t, "paid", g.Notes)
	assert.True(t, g.Completed)
	assert.Equal(t, &at, g.CompletedAt)
}

func TestSortCompleted(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 1, 0)
	t3 := t1.AddDate(0, 2, 0)
	goals := []domain.MonthlyGoal{
		{ID: "a", Completed: true, CompletedAt: &t1},
		{ID: "b"},
		{ID: "c", Completed: true, CompletedAt: &t3},
		{ID: "d", Completed: true, CompletedAt: &t2},
	}

	got := SortCompleted(goals, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
}

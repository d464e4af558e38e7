package ledger

import (
	"context"
	"fmt"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store"
)

// MonthGoals returns the goals of a month, seeding the defaults the first
// time the month is opened.
func (s *Service) MonthGoals(ctx context.Context, key domain.MonthKey) ([]domain.MonthlyGoal, error) {
	goals, err := s.store.ListGoals(ctx, key)
	if err != nil {
		return nil, unavailable("ListGoals", err)
	}
	if len(goals) > 0 {
		engine.SortGoals(goals)
		return goals, nil
	}

	seeded, err := s.store.InsertGoals(ctx, engine.DefaultGoals(key, s.now()))
	if err != nil {
		return nil, unavailable("InsertGoals", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("month", key.String()).
		Int("goals", len(seeded)).
		Msg("Seeded default goals")

	engine.SortGoals(seeded)
	return seeded, nil
}

// ToggleGoal flips the completion of one goal type in a month.
func (s *Service) ToggleGoal(ctx context.Context, key domain.MonthKey, goalType domain.GoalType) (domain.MonthlyGoal, error) {
	goal, err := s.goal(ctx, key, goalType)
	if err != nil {
		return domain.MonthlyGoal{}, err
	}

	updated, err := s.store.UpdateGoal(ctx, goal.ID, engine.ToggleGoal(goal, s.now()))
	if err != nil {
		return domain.MonthlyGoal{}, unavailable("UpdateGoal", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("month", key.String()).
		Str("goal_type", string(goalType)).
		Bool("completed", updated.Completed).
		Msg("Goal toggled")

	return updated, nil
}

// UpdateGoalNotes rewrites the notes of one goal type in a month.
func (s *Service) UpdateGoalNotes(ctx context.Context, key domain.MonthKey, goalType domain.GoalType, notes string) (domain.MonthlyGoal, error) {
	goal, err := s.goal(ctx, key, goalType)
	if err != nil {
		return domain.MonthlyGoal{}, err
	}

	updated, err := s.store.UpdateGoal(ctx, goal.ID, engine.GoalNotes(notes, s.now()))
	if err != nil {
		return domain.MonthlyGoal{}, unavailable("UpdateGoal", err)
	}
	return updated, nil
}

// CompletedGoals returns the completed goal history, newest first.
func (s *Service) CompletedGoals(ctx context.Context, limit int) ([]domain.MonthlyGoal, error) {
	if limit <= 0 {
		limit = store.DefaultCompletedGoalsLimit
	}
	goals, err := s.store.ListCompletedGoals(ctx, limit)
	if err != nil {
		return nil, unavailable("ListCompletedGoals", err)
	}
	return engine.SortCompleted(goals, limit), nil
}

func (s *Service) goal(ctx context.Context, key domain.MonthKey, goalType domain.GoalType) (domain.MonthlyGoal, error) {
	goals, err := s.MonthGoals(ctx, key)
	if err != nil {
		return domain.MonthlyGoal{}, err
	}
	for _, g := range goals {
		if g.GoalType == goalType {
			return g, nil
		}
	}
	return domain.MonthlyGoal{}, fmt.Errorf("goal %s for %s: %w", goalType, key, domain.ErrNotFound)
}

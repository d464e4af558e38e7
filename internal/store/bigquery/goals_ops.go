package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const goalsTable = "monthly_goals"

const goalColumns = `
	id,
	year,
	month,
	goal_type,
	target_amount,
	completed,
	completed_at,
	notes,
	created_at,
	updated_at`

// ListGoalsWithClient returns the goals of a month ordered by goal type.
func ListGoalsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, key domain.MonthKey) ([]domain.MonthlyGoal, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE year = @year AND month = @month
		ORDER BY goal_type
	`, goalColumns, ds.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: key.Year},
		{Name: "month", Value: int(key.Month)},
	}

	goals, err := readGoals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}
	return goals, nil
}

// InsertGoalsWithClient inserts goals one by one. BigQuery has no unique
// constraints, so each insert is guarded by a NOT EXISTS on (year, month,
// goal_type) and a skipped insert is reported as a duplicate.
func InsertGoalsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, goals []domain.MonthlyGoal) ([]domain.MonthlyGoal, error) {
	stored := make([]domain.MonthlyGoal, 0, len(goals))
	for _, g := range goals {
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now()
		}

		q := client.Query(fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s)
			SELECT
				@id, @year, @month, @goal_type, CAST(@target_amount AS NUMERIC),
				@completed, @completed_at, @notes,
				@created_at, @updated_at
			FROM UNNEST([1])
			WHERE NOT EXISTS (
				SELECT 1 FROM %[1]s
				WHERE year = @year AND month = @month AND goal_type = @goal_type
			)
		`, ds.table(goalsTable), goalColumns))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "id", Value: g.ID},
			{Name: "year", Value: g.Year},
			{Name: "month", Value: int(g.Month)},
			{Name: "goal_type", Value: string(g.GoalType)},
			{Name: "target_amount", Value: numericParam(&g.TargetAmount)},
			{Name: "completed", Value: g.Completed},
			{Name: "completed_at", Value: nullTimestamp(g.CompletedAt)},
			{Name: "notes", Value: g.Notes},
			{Name: "created_at", Value: g.CreatedAt},
			{Name: "updated_at", Value: nullTimestamp(g.UpdatedAt)},
		}

		affected, err := runDML(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("InsertGoals: goal %s for %s: %w", g.GoalType, g.Key(), err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("InsertGoals: goal %s already exists for %s", g.GoalType, g.Key())
		}
		stored = append(stored, g)
	}
	return stored, nil
}

// UpdateGoalWithClient applies an update to a goal. Completion and its
// timestamp are written together.
func UpdateGoalWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, id string, u domain.GoalUpdate) (domain.MonthlyGoal, error) {
	completed := bigquery.NullBool{}
	if u.Completed != nil {
		completed = bigquery.NullBool{Bool: *u.Completed, Valid: true}
	}
	notes := bigquery.NullString{}
	if u.Notes != nil {
		notes = bigquery.NullString{StringVal: *u.Notes, Valid: true}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET
			completed = IFNULL(@completed, completed),
			completed_at = IF(@completed IS NULL, completed_at, @completed_at),
			notes = IFNULL(@notes, notes),
			updated_at = IFNULL(@updated_at, updated_at)
		WHERE id = @id
	`, ds.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "completed", Value: completed},
		{Name: "completed_at", Value: nullTimestamp(u.CompletedAt)},
		{Name: "notes", Value: notes},
		{Name: "updated_at", Value: nullTimestamp(nonZero(u.UpdatedAt))},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: %w", err)
	}
	if affected == 0 {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}

	get := client.Query(fmt.Sprintf(`SELECT %s FROM %s WHERE id = @id`, goalColumns, ds.table(goalsTable)))
	get.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}
	goals, err := readGoals(ctx, get)
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: reading back: %w", err)
	}
	if len(goals) == 0 {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	return goals[0], nil
}

// ListCompletedGoalsWithClient returns completed goals, most recent first.
func ListCompletedGoalsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit int) ([]domain.MonthlyGoal, error) {
	if limit <= 0 {
		limit = store.DefaultCompletedGoalsLimit
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE completed = TRUE
		ORDER BY completed_at DESC
		LIMIT @limit
	`, goalColumns, ds.table(goalsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	goals, err := readGoals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListCompletedGoals: %w", err)
	}
	return goals, nil
}

// ListAllGoalsWithClient returns every goal ordered by month and goal type.
func ListAllGoalsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.MonthlyGoal, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY year, month, goal_type
	`, goalColumns, ds.table(goalsTable)))

	goals, err := readGoals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAllGoals: %w", err)
	}
	return goals, nil
}

func readGoals(ctx context.Context, q *bigquery.Query) ([]domain.MonthlyGoal, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var goals []domain.MonthlyGoal
	for {
		var r GoalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		g, err := r.ToGoal()
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"google.golang.org/api/iterator"
)

const monthlyConfigTable = "monthly_config"

// UpsertMonthlyConfigWithClient merges an update into the config of a month.
// Nil balances in the update leave the stored value untouched.
func UpsertMonthlyConfigWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, key domain.MonthKey, u domain.MonthlyConfigUpdate) error {
	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @year AS year, @month AS month) S
		ON T.year = S.year AND T.month = S.month
		WHEN MATCHED THEN
			UPDATE SET
				initial_balance = IF(@clear_initial, NULL, COALESCE(CAST(@initial_balance AS NUMERIC), T.initial_balance)),
				final_balance = COALESCE(CAST(@final_balance AS NUMERIC), T.final_balance),
				updated_at = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
			INSERT (year, month, initial_balance, final_balance, updated_at)
			VALUES (
				@year,
				@month,
				IF(@clear_initial, NULL, CAST(@initial_balance AS NUMERIC)),
				CAST(@final_balance AS NUMERIC),
				CURRENT_TIMESTAMP()
			)
	`, ds.table(monthlyConfigTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: key.Year},
		{Name: "month", Value: int(key.Month)},
		{Name: "clear_initial", Value: u.ClearInitialBalance},
		{Name: "initial_balance", Value: numericParam(u.InitialBalance)},
		{Name: "final_balance", Value: numericParam(u.FinalBalance)},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertMonthlyConfig: %w", err)
	}
	return nil
}

// GetMonthlyConfigWithClient returns the config of a month, or nil.
func GetMonthlyConfigWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, key domain.MonthKey) (*domain.MonthlyConfig, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT year, month, initial_balance, final_balance, updated_at
		FROM %s
		WHERE year = @year AND month = @month
		LIMIT 1
	`, ds.table(monthlyConfigTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "year", Value: key.Year},
		{Name: "month", Value: int(key.Month)},
	}

	configs, err := readConfigs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetMonthlyConfig: %w", err)
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return &configs[0], nil
}

// ListMonthlyConfigsWithClient returns every config in month order.
func ListMonthlyConfigsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.MonthlyConfig, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT year, month, initial_balance, final_balance, updated_at
		FROM %s
		ORDER BY year, month
	`, ds.table(monthlyConfigTable)))

	configs, err := readConfigs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListMonthlyConfigs: %w", err)
	}
	return configs, nil
}

func readConfigs(ctx context.Context, q *bigquery.Query) ([]domain.MonthlyConfig, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var configs []domain.MonthlyConfig
	for {
		var r MonthlyConfigRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		cfg, err := r.ToMonthlyConfig()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

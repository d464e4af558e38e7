// Package bigquery is the BigQuery backend of the ledger. Each operation is
// available as a free function taking a client, and Store bundles them over
// one shared client.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/store"
)

// Dataset identifies the project and dataset holding the ledger tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// Store implements store.LedgerStore on BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type Store struct {
	client *bigquery.Client
	ds     Dataset
}

// NewStore creates a store with its own BigQuery client.
func NewStore(ctx context.Context, ds Dataset) (*Store, error) {
	if ds.ProjectID == "" || ds.DatasetID == "" {
		return nil, fmt.Errorf("NewStore: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, ds: ds}, nil
}

// NewStoreWithClient wraps an existing client. Close closes it.
func NewStoreWithClient(client *bigquery.Client, ds Dataset) *Store {
	return &Store{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ListTransactions delegates to ListTransactionsWithClient.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return ListTransactionsWithClient(ctx, s.client, s.ds)
}

// InsertTransaction delegates to InsertTransactionWithClient.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	return InsertTransactionWithClient(ctx, s.client, s.ds, tx)
}

// UpdateTransaction delegates to UpdateTransactionWithClient.
func (s *Store) UpdateTransaction(ctx context.Context, id string, u domain.TransactionUpdate) (domain.Transaction, error) {
	return UpdateTransactionWithClient(ctx, s.client, s.ds, id, u)
}

// DeleteTransaction delegates to DeleteTransactionWithClient.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return DeleteTransactionWithClient(ctx, s.client, s.ds, id)
}

// UpsertMonthlyConfig delegates to UpsertMonthlyConfigWithClient.
func (s *Store) UpsertMonthlyConfig(ctx context.Context, key domain.MonthKey, u domain.MonthlyConfigUpdate) error {
	return UpsertMonthlyConfigWithClient(ctx, s.client, s.ds, key, u)
}

// GetMonthlyConfig delegates to GetMonthlyConfigWithClient.
func (s *Store) GetMonthlyConfig(ctx context.Context, key domain.MonthKey) (*domain.MonthlyConfig, error) {
	return GetMonthlyConfigWithClient(ctx, s.client, s.ds, key)
}

// ListMonthlyConfigs delegates to ListMonthlyConfigsWithClient.
func (s *Store) ListMonthlyConfigs(ctx context.Context) ([]domain.MonthlyConfig, error) {
	return ListMonthlyConfigsWithClient(ctx, s.client, s.ds)
}

// ListGoals delegates to ListGoalsWithClient.
func (s *Store) ListGoals(ctx context.Context, key domain.MonthKey) ([]domain.MonthlyGoal, error) {
	return ListGoalsWithClient(ctx, s.client, s.ds, key)
}

// InsertGoals delegates to InsertGoalsWithClient.
func (s *Store) InsertGoals(ctx context.Context, goals []domain.MonthlyGoal) ([]domain.MonthlyGoal, error) {
	return InsertGoalsWithClient(ctx, s.client, s.ds, goals)
}

// UpdateGoal delegates to UpdateGoalWithClient.
func (s *Store) UpdateGoal(ctx context.Context, id string, u domain.GoalUpdate) (domain.MonthlyGoal, error) {
	return UpdateGoalWithClient(ctx, s.client, s.ds, id, u)
}

// ListCompletedGoals delegates to ListCompletedGoalsWithClient.
func (s *Store) ListCompletedGoals(ctx context.Context, limit int) ([]domain.MonthlyGoal, error) {
	return ListCompletedGoalsWithClient(ctx, s.client, s.ds, limit)
}

// ListAllGoals delegates to ListAllGoalsWithClient.
func (s *Store) ListAllGoals(ctx context.Context) ([]domain.MonthlyGoal, error) {
	return ListAllGoalsWithClient(ctx, s.client, s.ds)
}

// runDML runs a DML statement to completion and returns the affected row count.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Ensure Store implements the LedgerStore interface.
var _ store.LedgerStore = (*Store)(nil)

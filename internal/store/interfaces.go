// Package store defines the persistence boundary of the ledger. Backends live
// in subpackages and return raw errors; the ledger service decides how to
// surface them.
package store

import (
	"context"

	"github.com/dvloznov/bet-tracker/internal/domain"
)

// DefaultCompletedGoalsLimit caps the completed goal history when no limit is given.
const DefaultCompletedGoalsLimit = 50

// TransactionRepository provides transaction persistence.
type TransactionRepository interface {
	// ListTransactions returns every transaction of the ledger.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	// InsertTransaction stores a new transaction, assigning its ID and
	// creation time, and returns the stored row.
	InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)

	// UpdateTransaction overwrites the mutable fields of a transaction.
	// Returns domain.ErrNotFound for an unknown id.
	UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error)

	// DeleteTransaction removes a transaction. Returns domain.ErrNotFound for an unknown id.
	DeleteTransaction(ctx context.Context, id string) error
}

// MonthlyConfigRepository provides per-month balance configuration.
type MonthlyConfigRepository interface {
	// UpsertMonthlyConfig creates or updates the config of a month.
	UpsertMonthlyConfig(ctx context.Context, key domain.MonthKey, update domain.MonthlyConfigUpdate) error

	// GetMonthlyConfig returns the config of a month, or nil when none exists.
	GetMonthlyConfig(ctx context.Context, key domain.MonthKey) (*domain.MonthlyConfig, error)

	// ListMonthlyConfigs returns every stored month config.
	ListMonthlyConfigs(ctx context.Context) ([]domain.MonthlyConfig, error)
}

// GoalRepository provides monthly goal persistence.
type GoalRepository interface {
	// ListGoals returns the goals of a month ordered by goal type.
	ListGoals(ctx context.Context, key domain.MonthKey) ([]domain.MonthlyGoal, error)

	// InsertGoals stores new goals, assigning IDs, and returns the stored rows.
	InsertGoals(ctx context.Context, goals []domain.MonthlyGoal) ([]domain.MonthlyGoal, error)

	// UpdateGoal applies an update to a goal. Returns domain.ErrNotFound for an unknown id.
	UpdateGoal(ctx context.Context, id string, update domain.GoalUpdate) (domain.MonthlyGoal, error)

	// ListCompletedGoals returns completed goals, most recently completed first.
	ListCompletedGoals(ctx context.Context, limit int) ([]domain.MonthlyGoal, error)

	// ListAllGoals returns every goal of every month, ordered by month and
	// then goal type.
	ListAllGoals(ctx context.Context) ([]domain.MonthlyGoal, error)
}

// LedgerStore is the full store a ledger runs against.
type LedgerStore interface {
	TransactionRepository
	MonthlyConfigRepository
	GoalRepository

	// Close releases backend resources.
	Close() error
}

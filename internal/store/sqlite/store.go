// Package sqlite is the single-file local backend of the ledger, built on the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

//go:embed schema.sql
var schema string

// Store implements store.LedgerStore on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("Open: creating database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: applying schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// WithClock replaces the clock used for creation and update timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListTransactions returns every transaction in insertion order.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: iterating: %w", err)
	}
	return txs, nil
}

// InsertTransaction stores tx. A preset ID and creation time are kept.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	row := tx.Clone()
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.Date.String(),
		string(row.Type),
		nullOwner(row.Owner),
		nullFloat(row.StakePercent),
		row.Amount.String(),
		nullFloat(row.Odds),
		nullDecimal(row.PotentialProfit),
		row.NetProfit.String(),
		row.Notes,
		formatTime(row.CreatedAt),
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("InsertTransaction: %w", err)
	}
	return s.getTransaction(ctx, row.ID)
}

// UpdateTransaction overwrites the mutable fields of a transaction.
func (s *Store) UpdateTransaction(ctx context.Context, id string, u domain.TransactionUpdate) (domain.Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, type = ?, owner = ?, amount = ?, odds = ?,
		    potential_profit = ?, net_profit = ?, notes = ?
		WHERE id = ?`,
		u.Date.String(),
		string(u.Type),
		nullOwner(u.Owner),
		u.Amount.String(),
		nullFloat(u.Odds),
		nullDecimal(u.PotentialProfit),
		u.NetProfit.String(),
		u.Notes,
		id,
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if err := requireAffected(res, "transaction", id); err != nil {
		return domain.Transaction{}, err
	}
	return s.getTransaction(ctx, id)
}

// DeleteTransaction removes a transaction.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

func (s *Store) getTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("getTransaction: %w", err)
	}
	return tx, nil
}

// UpsertMonthlyConfig creates or updates the config of a month.
func (s *Store) UpsertMonthlyConfig(ctx context.Context, key domain.MonthKey, update domain.MonthlyConfigUpdate) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertMonthlyConfig: begin: %w", err)
	}
	defer dbTx.Rollback()

	cfg, err := scanConfig(dbTx.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM monthly_config WHERE year = ? AND month = ?`,
		key.Year, int(key.Month)))
	if errors.Is(err, sql.ErrNoRows) {
		cfg = domain.MonthlyConfig{Year: key.Year, Month: key.Month}
	} else if err != nil {
		return fmt.Errorf("UpsertMonthlyConfig: reading current: %w", err)
	}

	cfg = update.Apply(cfg)
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO monthly_config (`+configColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			initial_balance = excluded.initial_balance,
			final_balance = excluded.final_balance,
			updated_at = excluded.updated_at`,
		key.Year,
		int(key.Month),
		nullDecimal(cfg.InitialBalance),
		nullDecimal(cfg.FinalBalance),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("UpsertMonthlyConfig: writing: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("UpsertMonthlyConfig: commit: %w", err)
	}
	return nil
}

// GetMonthlyConfig returns the config of a month, or nil.
func (s *Store) GetMonthlyConfig(ctx context.Context, key domain.MonthKey) (*domain.MonthlyConfig, error) {
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM monthly_config WHERE year = ? AND month = ?`,
		key.Year, int(key.Month)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetMonthlyConfig: %w", err)
	}
	return &cfg, nil
}

// ListMonthlyConfigs returns every config in month order.
func (s *Store) ListMonthlyConfigs(ctx context.Context) ([]domain.MonthlyConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+configColumns+` FROM monthly_config ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("ListMonthlyConfigs: query: %w", err)
	}
	defer rows.Close()

	var configs []domain.MonthlyConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMonthlyConfigs: scan: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMonthlyConfigs: iterating: %w", err)
	}
	return configs, nil
}

// ListGoals returns the goals of a month ordered by goal type.
func (s *Store) ListGoals(ctx context.Context, key domain.MonthKey) ([]domain.MonthlyGoal, error) {
	return s.queryGoals(ctx, "ListGoals",
		`SELECT `+goalColumns+` FROM monthly_goals WHERE year = ? AND month = ? ORDER BY goal_type`,
		key.Year, int(key.Month))
}

// InsertGoals stores new goals in one transaction. A second goal of the same
// type for a month violates the unique constraint.
func (s *Store) InsertGoals(ctx context.Context, goals []domain.MonthlyGoal) ([]domain.MonthlyGoal, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("InsertGoals: begin: %w", err)
	}
	defer dbTx.Rollback()

	stored := make([]domain.MonthlyGoal, 0, len(goals))
	for _, g := range goals {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = s.now()
		}
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO monthly_goals (`+goalColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID,
			g.Year,
			int(g.Month),
			string(g.GoalType),
			g.TargetAmount.String(),
			g.Completed,
			nullTime(g.CompletedAt),
			g.Notes,
			formatTime(g.CreatedAt),
			nullTime(g.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("InsertGoals: goal %s for %s: %w", g.GoalType, g.Key(), err)
		}
		stored = append(stored, g)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("InsertGoals: commit: %w", err)
	}
	return stored, nil
}

// UpdateGoal applies an update to a goal.
func (s *Store) UpdateGoal(ctx context.Context, id string, update domain.GoalUpdate) (domain.MonthlyGoal, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: begin: %w", err)
	}
	defer dbTx.Rollback()

	g, err := scanGoal(dbTx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM monthly_goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: reading current: %w", err)
	}

	g = update.Apply(g)
	_, err = dbTx.ExecContext(ctx, `
		UPDATE monthly_goals
		SET completed = ?, completed_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		g.Completed,
		nullTime(g.CompletedAt),
		g.Notes,
		nullTime(g.UpdatedAt),
		id,
	)
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: writing: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("UpdateGoal: commit: %w", err)
	}
	return g, nil
}

// ListCompletedGoals returns completed goals, most recent first.
func (s *Store) ListCompletedGoals(ctx context.Context, limit int) ([]domain.MonthlyGoal, error) {
	if limit <= 0 {
		limit = store.DefaultCompletedGoalsLimit
	}
	return s.queryGoals(ctx, "ListCompletedGoals",
		`SELECT `+goalColumns+` FROM monthly_goals
		WHERE completed = 1
		ORDER BY completed_at DESC
		LIMIT ?`,
		limit)
}

// ListAllGoals returns every goal ordered by month and goal type.
func (s *Store) ListAllGoals(ctx context.Context) ([]domain.MonthlyGoal, error) {
	return s.queryGoals(ctx, "ListAllGoals",
		`SELECT `+goalColumns+` FROM monthly_goals ORDER BY year, month, goal_type`)
}

func (s *Store) queryGoals(ctx context.Context, op, query string, args ...any) ([]domain.MonthlyGoal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var goals []domain.MonthlyGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterating: %w", op, err)
	}
	return goals, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// Ensure Store implements the LedgerStore interface.
var _ store.LedgerStore = (*Store)(nil)

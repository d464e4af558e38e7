package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of store.LedgerStore.
// It is safe for concurrent use and returns copies so callers cannot mutate
// stored rows. Data is lost when the process exits.
type Store struct {
	mu sync.RWMutex

	transactions map[string]domain.Transaction
	order        []string
	configs      map[domain.MonthKey]domain.MonthlyConfig
	goals        map[string]domain.MonthlyGoal

	now func() time.Time
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]domain.Transaction),
		configs:      make(map[domain.MonthKey]domain.MonthlyConfig),
		goals:        make(map[string]domain.MonthlyGoal),
		now:          time.Now,
	}
}

// WithClock replaces the clock used for creation and update timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// ListTransactions returns every transaction in insertion order.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.transactions[id].Clone())
	}
	return result, nil
}

// InsertTransaction stores a copy of tx under a new ID. A preset ID is kept,
// which lets restores replay rows verbatim.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := tx.Clone()
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if _, exists := s.transactions[row.ID]; exists {
		return domain.Transaction{}, fmt.Errorf("transaction already exists: %s", row.ID)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}

	s.transactions[row.ID] = row
	s.order = append(s.order, row.ID)
	return row.Clone(), nil
}

// UpdateTransaction overwrites the mutable fields of a transaction.
func (s *Store) UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	row := update.Apply(existing)
	s.transactions[id] = row
	return row.Clone(), nil
}

// DeleteTransaction removes a transaction.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	delete(s.transactions, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpsertMonthlyConfig creates or updates the config of a month.
func (s *Store) UpsertMonthlyConfig(ctx context.Context, key domain.MonthKey, update domain.MonthlyConfigUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[key]
	if !ok {
		cfg = domain.MonthlyConfig{Year: key.Year, Month: key.Month}
	}
	cfg = update.Apply(cfg)
	cfg.UpdatedAt = s.now()
	s.configs[key] = cfg
	return nil
}

// GetMonthlyConfig returns the config of a month, or nil.
func (s *Store) GetMonthlyConfig(ctx context.Context, key domain.MonthKey) (*domain.MonthlyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[key]
	if !ok {
		return nil, nil
	}
	cfg = copyConfig(cfg)
	return &cfg, nil
}

// ListMonthlyConfigs returns every config in month order.
func (s *Store) ListMonthlyConfigs(ctx context.Context) ([]domain.MonthlyConfig, error) {
	s.mu.RLock()
	keys := make([]domain.MonthKey, 0, len(s.configs))
	for k := range s.configs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	result := make([]domain.MonthlyConfig, 0, len(keys))
	for _, k := range keys {
		cfg, err := s.GetMonthlyConfig(ctx, k)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			result = append(result, *cfg)
		}
	}
	return result, nil
}

// ListGoals returns the goals of a month ordered by goal type.
func (s *Store) ListGoals(ctx context.Context, key domain.MonthKey) ([]domain.MonthlyGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.MonthlyGoal
	for _, g := range s.goals {
		if g.Key() == key {
			result = append(result, copyGoal(g))
		}
	}
	engine.SortGoals(result)
	return result, nil
}

// InsertGoals stores new goals. Inserting a second goal of the same type
// for a month is rejected.
func (s *Store) InsertGoals(ctx context.Context, goals []domain.MonthlyGoal) ([]domain.MonthlyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range goals {
		for _, existing := range s.goals {
			if existing.Key() == g.Key() && existing.GoalType == g.GoalType {
				return nil, fmt.Errorf("goal %s already exists for %s", g.GoalType, g.Key())
			}
		}
	}

	result := make([]domain.MonthlyGoal, 0, len(goals))
	for _, g := range goals {
		row := copyGoal(g)
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = s.now()
		}
		s.goals[row.ID] = row
		result = append(result, copyGoal(row))
	}
	return result, nil
}

// UpdateGoal applies an update to a goal.
func (s *Store) UpdateGoal(ctx context.Context, id string, update domain.GoalUpdate) (domain.MonthlyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	g = update.Apply(g)
	s.goals[id] = g
	return copyGoal(g), nil
}

// ListCompletedGoals returns completed goals, most recent first.
func (s *Store) ListCompletedGoals(ctx context.Context, limit int) ([]domain.MonthlyGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.MonthlyGoal, 0, len(s.goals))
	for _, g := range s.goals {
		all = append(all, copyGoal(g))
	}
	if limit <= 0 {
		limit = store.DefaultCompletedGoalsLimit
	}
	return engine.SortCompleted(all, limit), nil
}

// ListAllGoals returns every goal ordered by month and goal type.
func (s *Store) ListAllGoals(ctx context.Context) ([]domain.MonthlyGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.MonthlyGoal, 0, len(s.goals))
	for _, g := range s.goals {
		all = append(all, copyGoal(g))
	}
	engine.SortGoals(all)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Key().Before(all[j].Key())
	})
	return all, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func copyConfig(c domain.MonthlyConfig) domain.MonthlyConfig {
	if c.InitialBalance != nil {
		v := *c.InitialBalance
		c.InitialBalance = &v
	}
	if c.FinalBalance != nil {
		v := *c.FinalBalance
		c.FinalBalance = &v
	}
	return c
}

func copyGoal(g domain.MonthlyGoal) domain.MonthlyGoal {
	if g.CompletedAt != nil {
		at := *g.CompletedAt
		g.CompletedAt = &at
	}
	if g.UpdatedAt != nil {
		at := *g.UpdatedAt
		g.UpdatedAt = &at
	}
	return g
}

// Ensure Store implements the LedgerStore interface.
var _ store.LedgerStore = (*Store)(nil)

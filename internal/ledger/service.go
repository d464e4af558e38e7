// Package ledger owns the in-memory snapshot of a betting ledger and routes
// every write through the calculation engine before it reaches the store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/jobs"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of the ledger at load time. Aggregations
// take it by value.
type Snapshot struct {
	Transactions []domain.Transaction   `json:"transactions"`
	Configs      []domain.MonthlyConfig `json:"configs"`
	LoadedAt     time.Time              `json:"loaded_at"`
}

// Service coordinates the ledger store, the engine and the final balance
// refresh queue.
type Service struct {
	store     store.LedgerStore
	publisher jobs.Publisher
	bank      decimal.Decimal
	now       func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher schedules a final balance refresh after every write.
func WithPublisher(p jobs.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBank sets the bankroll stake percentages are converted against.
func WithBank(bank decimal.Decimal) Option {
	return func(s *Service) { s.bank = bank }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger service over st.
func NewService(st store.LedgerStore, opts ...Option) *Service {
	s := &Service{
		store: st,
		bank:  engine.DefaultBank,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the local calendar date.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now())
}

// Bank returns the configured bankroll.
func (s *Service) Bank() decimal.Decimal {
	return s.bank
}

// Snapshot returns the last successfully loaded snapshot.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snapshot)
}

// Load reads the full ledger from the store. On failure the previous
// snapshot is kept and a StoreUnavailableError is returned.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	log := logger.FromContext(ctx)

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return s.Snapshot(), unavailable("ListTransactions", err)
	}
	configs, err := s.store.ListMonthlyConfigs(ctx)
	if err != nil {
		return s.Snapshot(), unavailable("ListMonthlyConfigs", err)
	}

	for _, tx := range engine.UnknownTypes(txs) {
		log.Warn().
			Str("transaction_id", tx.ID).
			Str("type", string(tx.Type)).
			Msg("Transaction has an unrecognized type and is ignored by every aggregate")
	}

	snap := Snapshot{Transactions: txs, Configs: configs, LoadedAt: s.now()}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	log.Debug().
		Int("transactions", len(txs)).
		Int("monthly_configs", len(configs)).
		Msg("Ledger snapshot loaded")

	return copySnapshot(snap), nil
}

// AddTransaction builds a transaction from a draft and stores it.
func (s *Service) AddTransaction(ctx context.Context, draft engine.Draft) (domain.Transaction, error) {
	tx, err := engine.BuildTransaction(draft, s.bank)
	if err != nil {
		return domain.Transaction{}, err
	}

	stored, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return domain.Transaction{}, unavailable("InsertTransaction", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", stored.ID).
		Str("type", string(stored.Type)).
		Str("amount", stored.Amount.String()).
		Msg("Transaction added")

	s.afterWrite(ctx, "insert", stored.ID)
	return stored, nil
}

// EditTransaction applies an edit to a bet, keeping its stake consistent.
func (s *Service) EditTransaction(ctx context.Context, id string, e engine.Edit) (domain.Transaction, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	edited, err := engine.ApplyEdit(current, e)
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.write(ctx, "edit", edited)
}

// ResolveBet settles a pending bet as won, lost or cashed out.
func (s *Service) ResolveBet(ctx context.Context, id string, target domain.TransactionType, settled decimal.Decimal) (domain.Transaction, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	resolved, err := engine.Resolve(current, target, settled)
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.write(ctx, "resolve", resolved)
}

// DeleteTransaction removes a transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return unavailable("DeleteTransaction", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("transaction_id", id).Msg("Transaction deleted")
	s.afterWrite(ctx, "delete", id)
	return nil
}

// SetInitialBalance sets the opening anchor of a month. A nil amount clears it.
func (s *Service) SetInitialBalance(ctx context.Context, key domain.MonthKey, amount *decimal.Decimal) error {
	update := domain.MonthlyConfigUpdate{InitialBalance: amount, ClearInitialBalance: amount == nil}
	if err := s.store.UpsertMonthlyConfig(ctx, key, update); err != nil {
		return unavailable("UpsertMonthlyConfig", err)
	}

	log := logger.FromContext(ctx)
	ev := log.Info().Str("month", key.String())
	if amount != nil {
		ev = ev.Str("initial_balance", amount.String())
	}
	ev.Msg("Initial balance updated")

	s.afterWrite(ctx, "initial_balance", "")
	return nil
}

// MonthlyConfig returns the stored config of a month, or nil.
func (s *Service) MonthlyConfig(ctx context.Context, key domain.MonthKey) (*domain.MonthlyConfig, error) {
	cfg, err := s.store.GetMonthlyConfig(ctx, key)
	if err != nil {
		return nil, unavailable("GetMonthlyConfig", err)
	}
	return cfg, nil
}

// RefreshFinalBalances recomputes the closing balance of every month and
// writes the ones whose cached value is missing or stale. The cache is
// advisory, so a partial refresh is harmless and the next one completes it.
func (s *Service) RefreshFinalBalances(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	snap, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}

	cached := make(map[domain.MonthKey]*decimal.Decimal, len(snap.Configs))
	for _, c := range snap.Configs {
		cached[c.Key()] = c.FinalBalance
	}

	written := 0
	for _, b := range engine.MonthlySummaries(snap.Transactions, snap.Configs, s.Today()) {
		key := domain.MonthOf(b.Start)
		if prev := cached[key]; prev != nil && prev.Equal(b.ClosingBalance) {
			continue
		}
		final := b.ClosingBalance
		if err := s.store.UpsertMonthlyConfig(ctx, key, domain.MonthlyConfigUpdate{FinalBalance: &final}); err != nil {
			return written, unavailable("UpsertMonthlyConfig", err)
		}
		written++
	}

	log.Info().Int("months_written", written).Msg("Final balances refreshed")
	return written, nil
}

// HandleJob is the jobs.JobHandler for refresh jobs.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.GetType() != jobs.JobTypeRefreshFinalBalances {
		return fmt.Errorf("HandleJob: unsupported job type %q", job.GetType())
	}
	_, err := s.RefreshFinalBalances(ctx)
	return err
}

func (s *Service) find(ctx context.Context, id string) (domain.Transaction, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	for _, tx := range snap.Transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.Transaction{}, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
}

func (s *Service) write(ctx context.Context, reason string, tx domain.Transaction) (domain.Transaction, error) {
	stored, err := s.store.UpdateTransaction(ctx, tx.ID, domain.UpdateFrom(tx))
	if err != nil {
		return domain.Transaction{}, unavailable("UpdateTransaction", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", stored.ID).
		Str("type", string(stored.Type)).
		Str("amount", stored.Amount.String()).
		Str("net_profit", stored.NetProfit.String()).
		Msgf("Transaction %s", reason)

	s.afterWrite(ctx, reason, stored.ID)
	return stored, nil
}

// afterWrite reloads the snapshot and schedules the advisory cache refresh.
// Neither step can fail the write that already succeeded.
func (s *Service) afterWrite(ctx context.Context, reason, transactionID string) {
	log := logger.FromContext(ctx)

	if _, err := s.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Snapshot reload after write failed; keeping previous snapshot")
	}

	if s.publisher == nil {
		return
	}
	job := &jobs.RefreshFinalBalancesJob{Reason: reason, TransactionID: transactionID}
	if err := s.publisher.PublishRefresh(ctx, job); err != nil {
		log.Warn().Err(err).Str("reason", reason).Msg("Failed to schedule final balance refresh")
	}
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return &domain.StoreUnavailableError{Op: op, Err: err}
}

func copySnapshot(s Snapshot) Snapshot {
	out := Snapshot{LoadedAt: s.LoadedAt}
	if s.Transactions != nil {
		out.Transactions = make([]domain.Transaction, len(s.Transactions))
		for i, tx := range s.Transactions {
			out.Transactions[i] = tx.Clone()
		}
	}
	if s.Configs != nil {
		out.Configs = append([]domain.MonthlyConfig(nil), s.Configs...)
	}
	return out
}

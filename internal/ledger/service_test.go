package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/jobs"
	"github.com/dvloznov/bet-tracker/internal/store/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("connection refused")

// flakyStore fails the named operations.
type flakyStore struct {
	*inmemory.Store
	fail map[string]bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: inmemory.NewStore(), fail: map[string]bool{}}
}

func (f *flakyStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	if f.fail["ListTransactions"] {
		return nil, errBackend
	}
	return f.Store.ListTransactions(ctx)
}

func (f *flakyStore) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if f.fail["InsertTransaction"] {
		return domain.Transaction{}, errBackend
	}
	return f.Store.InsertTransaction(ctx, tx)
}

func (f *flakyStore) UpsertMonthlyConfig(ctx context.Context, key domain.MonthKey, update domain.MonthlyConfigUpdate) error {
	if f.fail["UpsertMonthlyConfig"] {
		return errBackend
	}
	return f.Store.UpsertMonthlyConfig(ctx, key, update)
}

// recordingPublisher collects published refresh jobs.
type recordingPublisher struct {
	mu   sync.Mutex
	jobs []*jobs.RefreshFinalBalancesJob
	err  error
}

func (p *recordingPublisher) PublishRefresh(ctx context.Context, job *jobs.RefreshFinalBalancesJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestService(st *flakyStore, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(st, opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func floatPtr(f float64) *float64 {
	return &f
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestService_AddTransaction(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore()
	pub := &recordingPublisher{}
	svc := newTestService(st, WithPublisher(pub))

	tx, err := svc.AddTransaction(ctx, engine.Draft{
		Date:         civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:         domain.TypeBetPending,
		StakePercent: floatPtr(5),
		Odds:         floatPtr(2),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assertDecimal(t, "15000", tx.Amount)
	assertDecimal(t, "-15000", tx.NetProfit)
	require.NotNil(t, tx.Owner)
	assert.Equal(t, domain.OwnerPropia, *tx.Owner)

	snap := svc.Snapshot()
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, tx.ID, snap.Transactions[0].ID)

	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "insert", pub.jobs[0].Reason)
	assert.Equal(t, tx.ID, pub.jobs[0].TransactionID)
}

func TestService_AddTransaction_CustomBank(t *testing.T) {
	svc := newTestService(newFlakyStore(), WithBank(dec("100000")))

	tx, err := svc.AddTransaction(context.Background(), engine.Draft{
		Date:         civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:         domain.TypeBetLost,
		StakePercent: floatPtr(2),
	})
	require.NoError(t, err)
	assertDecimal(t, "2000", tx.Amount)
}

func TestService_AddTransaction_RejectsInvalidDraft(t *testing.T) {
	st := newFlakyStore()
	svc := newTestService(st)

	_, err := svc.AddTransaction(context.Background(), engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("0"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	txs, err := st.Store.ListTransactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestService_AddTransaction_StoreUnavailable(t *testing.T) {
	st := newFlakyStore()
	st.fail["InsertTransaction"] = true
	svc := newTestService(st)

	_, err := svc.AddTransaction(context.Background(), engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})

	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
	assert.ErrorIs(t, err, errBackend)
}

func TestService_LoadKeepsLastSnapshotOnFailure(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore()
	svc := newTestService(st)

	_, err := svc.AddTransaction(ctx, engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	require.NoError(t, err)

	st.fail["ListTransactions"] = true
	snap, err := svc.Load(ctx)

	require.Error(t, err)
	assert.True(t, domain.IsStoreUnavailable(err))
	assert.Len(t, snap.Transactions, 1)
	assert.Len(t, svc.Snapshot().Transactions, 1)
}

func TestService_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFlakyStore())

	_, err := svc.AddTransaction(ctx, engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	require.NoError(t, err)

	snap := svc.Snapshot()
	snap.Transactions[0].Amount = dec("1")

	assertDecimal(t, "1000", svc.Snapshot().Transactions[0].Amount)
}

func TestService_EditTransaction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFlakyStore())

	tx, err := svc.AddTransaction(ctx, engine.Draft{
		Date:           civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:           domain.TypeBetPending,
		UseFixedAmount: true,
		Amount:         dec("10000"),
	})
	require.NoError(t, err)

	won := domain.TypeBetWon
	edited, err := svc.EditTransaction(ctx, tx.ID, engine.Edit{Type: &won, Amount: decPtr("18000")})
	require.NoError(t, err)

	assert.Equal(t, domain.TypeBetWon, edited.Type)
	assertDecimal(t, "18000", edited.Amount)
	assertDecimal(t, "8000", edited.NetProfit)
	assertDecimal(t, "8000", svc.Snapshot().Transactions[0].NetProfit)
}

func TestService_EditTransaction_NotFound(t *testing.T) {
	svc := newTestService(newFlakyStore())

	_, err := svc.EditTransaction(context.Background(), "missing", engine.Edit{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsStoreUnavailable(err))
}

func TestService_EditTransaction_DepositNotEditable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFlakyStore())

	tx, err := svc.AddTransaction(ctx, engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	require.NoError(t, err)

	_, err = svc.EditTransaction(ctx, tx.ID, engine.Edit{Notes: stringPtr("x")})
	assert.True(t, domain.IsNotEditable(err))
}

func TestService_ResolveBet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFlakyStore())

	tx, err := svc.AddTransaction(ctx, engine.Draft{
		Date:           civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:           domain.TypeBetPending,
		UseFixedAmount: true,
		Amount:         dec("10000"),
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveBet(ctx, tx.ID, domain.TypeBetCashout, dec("7000"))
	require.NoError(t, err)
	assert.Equal(t, domain.TypeBetCashout, resolved.Type)
	assertDecimal(t, "-3000", resolved.NetProfit)

	_, err = svc.ResolveBet(ctx, tx.ID, domain.TypeBetWon, dec("20000"))
	assert.True(t, domain.IsNotEditable(err))
}

func TestService_DeleteTransaction(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(newFlakyStore(), WithPublisher(pub))

	tx, err := svc.AddTransaction(ctx, engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))
	assert.Empty(t, svc.Snapshot().Transactions)
	require.Len(t, pub.jobs, 2)
	assert.Equal(t, "delete", pub.jobs[1].Reason)

	err = svc.DeleteTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("queue is closed")}
	svc := newTestService(newFlakyStore(), WithPublisher(pub))

	_, err := svc.AddTransaction(context.Background(), engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	assert.NoError(t, err)
}

func TestService_SetInitialBalance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFlakyStore())
	key := domain.MonthKey{Year: 2024, Month: time.March}

	require.NoError(t, svc.SetInitialBalance(ctx, key, decPtr("5000")))

	cfg, err := svc.MonthlyConfig(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.InitialBalance)
	assertDecimal(t, "5000", *cfg.InitialBalance)
	require.Len(t, svc.Snapshot().Configs, 1)

	require.NoError(t, svc.SetInitialBalance(ctx, key, nil))
	cfg, err = svc.MonthlyConfig(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.InitialBalance)
}

func TestService_RefreshFinalBalances(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore()
	svc := newTestService(st)

	for _, d := range []engine.Draft{
		{Date: civil.Date{Year: 2024, Month: 2, Day: 10}, Type: domain.TypeDeposit, Amount: dec("1000")},
		{Date: civil.Date{Year: 2024, Month: 3, Day: 5}, Type: domain.TypeWithdrawal, Amount: dec("300")},
	} {
		_, err := svc.AddTransaction(ctx, d)
		require.NoError(t, err)
	}

	written, err := svc.RefreshFinalBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	feb, err := svc.MonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: time.February})
	require.NoError(t, err)
	require.NotNil(t, feb)
	require.NotNil(t, feb.FinalBalance)
	assertDecimal(t, "1000", *feb.FinalBalance)
	assert.Nil(t, feb.InitialBalance)

	mar, err := svc.MonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.NotNil(t, mar.FinalBalance)
	assertDecimal(t, "700", *mar.FinalBalance)

	written, err = svc.RefreshFinalBalances(ctx)
	require.NoError(t, err)
	assert.Zero(t, written, "up-to-date months are not rewritten")
}

func TestService_RefreshFinalBalances_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore()
	svc := newTestService(st)

	_, err := svc.AddTransaction(ctx, engine.Draft{
		Date:   civil.Date{Year: 2024, Month: 3, Day: 1},
		Type:   domain.TypeDeposit,
		Amount: dec("1000"),
	})
	require.NoError(t, err)

	st.fail["UpsertMonthlyConfig"] = true
	_, err = svc.RefreshFinalBalances(ctx)
	assert.True(t, domain.IsStoreUnavailable(err))
}

func TestService_HandleJob(t *testing.T) {
	svc := newTestService(newFlakyStore())

	err := svc.HandleJob(context.Background(), &jobs.RefreshFinalBalancesJob{JobID: "j1"})
	assert.NoError(t, err)
}

func stringPtr(s string) *string {
	return &s
}

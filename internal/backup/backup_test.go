package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/dvloznov/bet-tracker/internal/store/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStorage keeps uploaded objects keyed by bucket/object.
type memStorage struct {
	objects map[string][]byte
	err     error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(_ context.Context, bucketName, objectName string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.objects[bucketName+"/"+objectName] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Download(_ context.Context, bucketName, objectName string) ([]byte, error) {
	data, ok := m.objects[bucketName+"/"+objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

var backupTime = time.Date(2024, 3, 20, 18, 30, 0, 0, time.UTC)

func seededStore(t *testing.T) *inmemory.Store {
	t.Helper()
	ctx := context.Background()
	st := inmemory.NewStore().WithClock(func() time.Time { return backupTime })

	owner := domain.OwnerPulpo
	odds := 2.5
	potential := decimal.NewFromInt(150)
	_, err := st.InsertTransaction(ctx, domain.Transaction{
		Date:   civil.Date{Year: 2024, Month: 1, Day: 5},
		Type:   domain.TypeDeposit,
		Amount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	_, err = st.InsertTransaction(ctx, domain.Transaction{
		Date:            civil.Date{Year: 2024, Month: 2, Day: 10},
		Type:            domain.TypeBetPending,
		Owner:           &owner,
		Amount:          decimal.RequireFromString("100.50"),
		Odds:            &odds,
		PotentialProfit: &potential,
		Notes:           "final",
	})
	require.NoError(t, err)

	anchor := decimal.NewFromInt(500)
	require.NoError(t, st.UpsertMonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: 1},
		domain.MonthlyConfigUpdate{InitialBalance: &anchor}))

	goals, err := st.InsertGoals(ctx, engine.DefaultGoals(domain.MonthKey{Year: 2024, Month: 2}, backupTime))
	require.NoError(t, err)
	_, err = st.UpdateGoal(ctx, goals[0].ID, engine.ToggleGoal(goals[0], backupTime))
	require.NoError(t, err)
	return st
}

func TestExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t)
	storageSvc := newMemStorage()

	m, err := Export(ctx, src, storageSvc, "ledger-backups", backupTime)
	require.NoError(t, err)
	assert.Equal(t, "gs://ledger-backups/backups/2024/03/20/ledger-1710959400.json", m.URI)
	assert.Equal(t, Manifest{URI: m.URI, Transactions: 2, Configs: 1, Goals: 4}, m)

	dst := inmemory.NewStore()
	restored, err := Restore(ctx, dst, storageSvc, m.URI)
	require.NoError(t, err)
	assert.Equal(t, m, restored)

	wantTxs, err := src.ListTransactions(ctx)
	require.NoError(t, err)
	gotTxs, err := dst.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, gotTxs, len(wantTxs))
	for i := range wantTxs {
		assert.Equal(t, wantTxs[i].ID, gotTxs[i].ID)
		assert.True(t, wantTxs[i].Amount.Equal(gotTxs[i].Amount))
		assert.True(t, wantTxs[i].CreatedAt.Equal(gotTxs[i].CreatedAt))
		assert.Equal(t, wantTxs[i].Owner, gotTxs[i].Owner)
		assert.Equal(t, wantTxs[i].Odds, gotTxs[i].Odds)
	}

	cfg, err := dst.GetMonthlyConfig(ctx, domain.MonthKey{Year: 2024, Month: 1})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "500", cfg.InitialBalance.String())

	completed, err := dst.ListCompletedGoals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, domain.GoalAuto, completed[0].GoalType)
}

func TestRestore_RejectsNonEmptyStore(t *testing.T) {
	ctx := context.Background()
	storageSvc := newMemStorage()
	m, err := Export(ctx, seededStore(t), storageSvc, "b", backupTime)
	require.NoError(t, err)

	_, err = Restore(ctx, seededStore(t), storageSvc, m.URI)
	assert.ErrorIs(t, err, ErrStoreNotEmpty)
}

func TestRestore_GoalsOnlyTargetLeftUntouched(t *testing.T) {
	ctx := context.Background()
	storageSvc := newMemStorage()
	m, err := Export(ctx, seededStore(t), storageSvc, "b", backupTime)
	require.NoError(t, err)

	dst := inmemory.NewStore()
	_, err = dst.InsertGoals(ctx, engine.DefaultGoals(domain.MonthKey{Year: 2024, Month: 2}, backupTime))
	require.NoError(t, err)

	_, err = Restore(ctx, dst, storageSvc, m.URI)
	require.ErrorIs(t, err, ErrStoreNotEmpty)

	txs, err := dst.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
	configs, err := dst.ListMonthlyConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, configs)
	goals, err := dst.ListAllGoals(ctx)
	require.NoError(t, err)
	assert.Len(t, goals, 4)
}

func TestApply_InvalidDocumentWritesNothing(t *testing.T) {
	ctx := context.Background()
	tx := TransactionRecord{
		ID:        "tx-1",
		Date:      civil.Date{Year: 2024, Month: 1, Day: 5},
		Type:      string(domain.TypeDeposit),
		Amount:    decimal.NewFromInt(100),
		CreatedAt: backupTime,
	}
	goal := GoalRecord{
		ID:           "g-1",
		Year:         2024,
		Month:        1,
		GoalType:     string(domain.GoalAuto),
		TargetAmount: decimal.NewFromInt(100000),
		CreatedAt:    backupTime,
	}
	dup := goal
	dup.ID = "g-2"

	tests := []struct {
		name string
		doc  *Document
	}{
		{
			name: "same goal type twice in a month",
			doc:  &Document{Version: FormatVersion, Transactions: []TransactionRecord{tx}, Goals: []GoalRecord{goal, dup}},
		},
		{
			name: "config month out of range",
			doc:  &Document{Version: FormatVersion, Transactions: []TransactionRecord{tx}, Configs: []ConfigRecord{{Year: 2024, Month: 13}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := inmemory.NewStore()
			require.Error(t, Apply(ctx, dst, tt.doc))

			txs, err := dst.ListTransactions(ctx)
			require.NoError(t, err)
			assert.Empty(t, txs)

			// The target is still empty, so a corrected document applies.
			fixed := *tt.doc
			fixed.Goals = []GoalRecord{goal}
			fixed.Configs = nil
			require.NoError(t, Apply(ctx, dst, &fixed))
		})
	}
}

func TestRestore_Errors(t *testing.T) {
	ctx := context.Background()
	storageSvc := newMemStorage()
	storageSvc.objects["b/bad.json"] = []byte("{not json")
	storageSvc.objects["b/v9.json"] = []byte(`{"version": 9}`)

	tests := []struct {
		name string
		uri  string
	}{
		{"not a gcs uri", "/tmp/backup.json"},
		{"missing object", "gs://b/absent.json"},
		{"malformed document", "gs://b/bad.json"},
		{"unknown version", "gs://b/v9.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(ctx, inmemory.NewStore(), storageSvc, tt.uri)
			assert.Error(t, err)
		})
	}
}

func TestExport_UploadFailure(t *testing.T) {
	storageSvc := newMemStorage()
	storageSvc.err = errors.New("permission denied")

	_, err := Export(context.Background(), seededStore(t), storageSvc, "b", backupTime)
	assert.ErrorIs(t, err, storageSvc.err)
}

func TestCollect_EmptyStore(t *testing.T) {
	doc, err := Collect(context.Background(), inmemory.NewStore(), backupTime)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Empty(t, doc.Transactions)
	assert.Empty(t, doc.Goals)
}

func TestCollect_GoalsOutsideLedgerMonths(t *testing.T) {
	ctx := context.Background()
	st := inmemory.NewStore()

	var want []string
	for _, key := range []domain.MonthKey{
		{Year: 2023, Month: 11},
		{Year: 2024, Month: 3},
		{Year: 2024, Month: 4},
	} {
		goals, err := st.InsertGoals(ctx, engine.DefaultGoals(key, backupTime))
		require.NoError(t, err)
		for _, g := range goals {
			want = append(want, g.ID)
		}
	}
	all, err := st.ListAllGoals(ctx)
	require.NoError(t, err)
	notes := "solo si cierra abril en verde"
	_, err = st.UpdateGoal(ctx, all[len(all)-1].ID, engine.GoalNotes(notes, backupTime))
	require.NoError(t, err)

	doc, err := Collect(ctx, st, backupTime)
	require.NoError(t, err)
	require.Len(t, doc.Goals, 12)

	var got []string
	for _, r := range doc.Goals {
		got = append(got, r.ID)
	}
	assert.ElementsMatch(t, want, got)
	assert.Equal(t, 2023, doc.Goals[0].Year)
	last := doc.Goals[len(doc.Goals)-1]
	assert.Equal(t, 4, last.Month)
	assert.Equal(t, notes, last.Notes)

	// A goals-only ledger round-trips into a fresh store.
	dst := inmemory.NewStore()
	require.NoError(t, Apply(ctx, dst, doc))
	restored, err := dst.ListAllGoals(ctx)
	require.NoError(t, err)
	assert.Len(t, restored, 12)
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{"gs://b/backups/2024/01/01/ledger-1.json", "b", "backups/2024/01/01/ledger-1.json", false},
		{"gs://b", "", "", true},
		{"gs:///x.json", "", "", true},
		{"s3://b/x.json", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestObjectName(t *testing.T) {
	local := time.Date(2024, 1, 1, 0, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "backups/2023/12/31/ledger-1704065400.json", ObjectName(local))
}

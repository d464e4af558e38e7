// Package backup exports a ledger to Google Cloud Storage as a JSON document
// and restores it into an empty store.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/shopspring/decimal"
)

// FormatVersion is the document version written by Export.
const FormatVersion = 1

// ErrStoreNotEmpty is returned by Restore when the target already holds data.
var ErrStoreNotEmpty = errors.New("target store is not empty")

// Document is the serialized form of a ledger.
type Document struct {
	Version      int                 `json:"version"`
	ExportedAt   time.Time           `json:"exported_at"`
	Transactions []TransactionRecord `json:"transactions"`
	Configs      []ConfigRecord      `json:"monthly_configs"`
	Goals        []GoalRecord        `json:"monthly_goals"`
}

type TransactionRecord struct {
	ID              string           `json:"id"`
	Date            civil.Date       `json:"date"`
	Type            string           `json:"type"`
	Owner           *string          `json:"owner,omitempty"`
	StakePercent    *float64         `json:"stake_percent,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	Odds            *float64         `json:"odds,omitempty"`
	PotentialProfit *decimal.Decimal `json:"potential_profit,omitempty"`
	NetProfit       decimal.Decimal  `json:"net_profit"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ConfigRecord struct {
	Year           int              `json:"year"`
	Month          int              `json:"month"`
	InitialBalance *decimal.Decimal `json:"initial_balance,omitempty"`
	FinalBalance   *decimal.Decimal `json:"final_balance,omitempty"`
}

type GoalRecord struct {
	ID           string          `json:"id"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	GoalType     string          `json:"goal_type"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Completed    bool            `json:"completed"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

// Manifest describes a written or restored backup.
type Manifest struct {
	URI          string
	Transactions int
	Configs      int
	Goals        int
}

// Export reads the whole ledger from src and uploads it to
// gs://<bucketName>/backups/YYYY/MM/DD/ledger-<unix>.json.
func Export(ctx context.Context, src store.LedgerStore, storageSvc StorageService, bucketName string, now time.Time) (Manifest, error) {
	ctx = logger.WithComponent(ctx, "backup")
	log := logger.FromContext(ctx)

	doc, err := Collect(ctx, src, now)
	if err != nil {
		return Manifest{}, err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("Export: marshal: %w", err)
	}

	objectName := ObjectName(now)
	if err := storageSvc.Upload(ctx, bucketName, objectName, data); err != nil {
		return Manifest{}, fmt.Errorf("Export: upload: %w", err)
	}

	m := manifestOf(fmt.Sprintf("gs://%s/%s", bucketName, objectName), doc)
	log.Info().
		Str("uri", m.URI).
		Int("transactions", m.Transactions).
		Int("configs", m.Configs).
		Int("goals", m.Goals).
		Msg("Ledger backup written")
	return m, nil
}

// Collect builds the backup document of src.
func Collect(ctx context.Context, src store.LedgerStore, now time.Time) (*Document, error) {
	txs, err := src.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Collect: transactions: %w", err)
	}
	configs, err := src.ListMonthlyConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("Collect: monthly configs: %w", err)
	}
	goals, err := src.ListAllGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("Collect: goals: %w", err)
	}

	doc := &Document{Version: FormatVersion, ExportedAt: now.UTC()}
	for _, tx := range txs {
		doc.Transactions = append(doc.Transactions, transactionRecord(tx))
	}
	for _, c := range configs {
		doc.Configs = append(doc.Configs, ConfigRecord{
			Year:           c.Year,
			Month:          int(c.Month),
			InitialBalance: c.InitialBalance,
			FinalBalance:   c.FinalBalance,
		})
	}
	for _, g := range goals {
		doc.Goals = append(doc.Goals, goalRecord(g))
	}
	return doc, nil
}

// Restore downloads the backup at gcsURI and replays it into dst, which must
// hold no transactions, monthly configs or goals.
func Restore(ctx context.Context, dst store.LedgerStore, storageSvc StorageService, gcsURI string) (Manifest, error) {
	ctx = logger.WithComponent(ctx, "backup")
	log := logger.FromContext(ctx)

	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return Manifest{}, fmt.Errorf("Restore: %w", err)
	}
	data, err := storageSvc.Download(ctx, bucketName, objectName)
	if err != nil {
		return Manifest{}, fmt.Errorf("Restore: download: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Manifest{}, fmt.Errorf("Restore: decode: %w", err)
	}
	if doc.Version != FormatVersion {
		return Manifest{}, fmt.Errorf("Restore: unsupported backup version %d", doc.Version)
	}

	if err := Apply(ctx, dst, &doc); err != nil {
		return Manifest{}, err
	}

	m := manifestOf(gcsURI, &doc)
	log.Info().
		Str("uri", m.URI).
		Int("transactions", m.Transactions).
		Int("configs", m.Configs).
		Int("goals", m.Goals).
		Msg("Ledger backup restored")
	return m, nil
}

// Apply writes doc into dst. Row IDs and creation times are preserved.
// Nothing is written unless dst is empty and doc passes validation.
func Apply(ctx context.Context, dst store.LedgerStore, doc *Document) error {
	existingTxs, err := dst.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("Apply: check transactions: %w", err)
	}
	existingConfigs, err := dst.ListMonthlyConfigs(ctx)
	if err != nil {
		return fmt.Errorf("Apply: check monthly configs: %w", err)
	}
	existingGoals, err := dst.ListAllGoals(ctx)
	if err != nil {
		return fmt.Errorf("Apply: check goals: %w", err)
	}
	if len(existingTxs) > 0 || len(existingConfigs) > 0 || len(existingGoals) > 0 {
		return fmt.Errorf("Apply: %w: %d transactions, %d monthly configs, %d goals",
			ErrStoreNotEmpty, len(existingTxs), len(existingConfigs), len(existingGoals))
	}
	if err := validate(doc); err != nil {
		return fmt.Errorf("Apply: %w", err)
	}

	for _, r := range doc.Transactions {
		if _, err := dst.InsertTransaction(ctx, r.toTransaction()); err != nil {
			return fmt.Errorf("Apply: transaction %s: %w", r.ID, err)
		}
	}

	for _, r := range doc.Configs {
		key, err := domain.NewMonthKey(r.Year, r.Month)
		if err != nil {
			return fmt.Errorf("Apply: monthly config: %w", err)
		}
		update := domain.MonthlyConfigUpdate{
			InitialBalance: r.InitialBalance,
			FinalBalance:   r.FinalBalance,
		}
		if err := dst.UpsertMonthlyConfig(ctx, key, update); err != nil {
			return fmt.Errorf("Apply: monthly config %s: %w", key, err)
		}
	}

	if len(doc.Goals) > 0 {
		goals := make([]domain.MonthlyGoal, 0, len(doc.Goals))
		for _, r := range doc.Goals {
			goals = append(goals, r.toGoal())
		}
		if _, err := dst.InsertGoals(ctx, goals); err != nil {
			return fmt.Errorf("Apply: goals: %w", err)
		}
	}
	return nil
}

func manifestOf(uri string, doc *Document) Manifest {
	return Manifest{
		URI:          uri,
		Transactions: len(doc.Transactions),
		Configs:      len(doc.Configs),
		Goals:        len(doc.Goals),
	}
}

// validate catches the document errors that would otherwise surface halfway
// through Apply.
func validate(doc *Document) error {
	for _, r := range doc.Configs {
		if _, err := domain.NewMonthKey(r.Year, r.Month); err != nil {
			return fmt.Errorf("monthly config: %w", err)
		}
	}
	seen := make(map[string]bool, len(doc.Goals))
	for _, r := range doc.Goals {
		key, err := domain.NewMonthKey(r.Year, r.Month)
		if err != nil {
			return fmt.Errorf("goal %s: %w", r.ID, err)
		}
		k := key.String() + "/" + r.GoalType
		if seen[k] {
			return fmt.Errorf("goal %s appears twice for %s", r.GoalType, key)
		}
		seen[k] = true
	}
	return nil
}

func transactionRecord(tx domain.Transaction) TransactionRecord {
	c := tx.Clone()
	r := TransactionRecord{
		ID:              c.ID,
		Date:            c.Date,
		Type:            string(c.Type),
		StakePercent:    c.StakePercent,
		Amount:          c.Amount,
		Odds:            c.Odds,
		PotentialProfit: c.PotentialProfit,
		NetProfit:       c.NetProfit,
		Notes:           c.Notes,
		CreatedAt:       c.CreatedAt.UTC(),
	}
	if c.Owner != nil {
		o := string(*c.Owner)
		r.Owner = &o
	}
	return r
}

func (r TransactionRecord) toTransaction() domain.Transaction {
	tx := domain.Transaction{
		ID:              r.ID,
		Date:            r.Date,
		Type:            domain.TransactionType(r.Type),
		StakePercent:    r.StakePercent,
		Amount:          r.Amount,
		Odds:            r.Odds,
		PotentialProfit: r.PotentialProfit,
		NetProfit:       r.NetProfit,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
	}
	if r.Owner != nil {
		o := domain.Owner(*r.Owner)
		tx.Owner = &o
	}
	return tx
}

func goalRecord(g domain.MonthlyGoal) GoalRecord {
	return GoalRecord{
		ID:           g.ID,
		Year:         g.Year,
		Month:        int(g.Month),
		GoalType:     string(g.GoalType),
		TargetAmount: g.TargetAmount,
		Completed:    g.Completed,
		CompletedAt:  g.CompletedAt,
		Notes:        g.Notes,
		CreatedAt:    g.CreatedAt.UTC(),
		UpdatedAt:    g.UpdatedAt,
	}
}

func (r GoalRecord) toGoal() domain.MonthlyGoal {
	return domain.MonthlyGoal{
		ID:           r.ID,
		Year:         r.Year,
		Month:        time.Month(r.Month),
		GoalType:     domain.GoalType(r.GoalType),
		TargetAmount: r.TargetAmount,
		Completed:    r.Completed,
		CompletedAt:  r.CompletedAt,
		Notes:        r.Notes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of a BigQuery NUMERIC column.
const numericScale = 9

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID              string               `bigquery:"id"`
	Date            civil.Date           `bigquery:"date"`
	Type            string               `bigquery:"type"`
	Owner           bigquery.NullString  `bigquery:"owner"`
	StakePercent    bigquery.NullFloat64 `bigquery:"stake_percent"`
	Amount          *big.Rat             `bigquery:"amount"`
	Odds            bigquery.NullFloat64 `bigquery:"odds"`
	PotentialProfit *big.Rat             `bigquery:"potential_profit"` // NULLABLE
	NetProfit       *big.Rat             `bigquery:"net_profit"`
	Notes           bigquery.NullString  `bigquery:"notes"`
	CreatedAt       time.Time            `bigquery:"created_at"`
}

// MonthlyConfigRow mirrors the monthly_config table.
type MonthlyConfigRow struct {
	Year           int64     `bigquery:"year"`
	Month          int64     `bigquery:"month"`
	InitialBalance *big.Rat  `bigquery:"initial_balance"` // NULLABLE
	FinalBalance   *big.Rat  `bigquery:"final_balance"`   // NULLABLE
	UpdatedAt      time.Time `bigquery:"updated_at"`
}

// GoalRow mirrors the monthly_goals table.
type GoalRow struct {
	ID           string                 `bigquery:"id"`
	Year         int64                  `bigquery:"year"`
	Month        int64                  `bigquery:"month"`
	GoalType     string                 `bigquery:"goal_type"`
	TargetAmount *big.Rat               `bigquery:"target_amount"`
	Completed    bool                   `bigquery:"completed"`
	CompletedAt  bigquery.NullTimestamp `bigquery:"completed_at"`
	Notes        bigquery.NullString    `bigquery:"notes"`
	CreatedAt    time.Time              `bigquery:"created_at"`
	UpdatedAt    bigquery.NullTimestamp `bigquery:"updated_at"`
}

// ToTransaction converts a row into a domain transaction.
func (r *TransactionRow) ToTransaction() (domain.Transaction, error) {
	amount, err := fromRat(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", r.ID, err)
	}
	net, err := fromRat(r.NetProfit)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: net_profit: %w", r.ID, err)
	}

	tx := domain.Transaction{
		ID:        r.ID,
		Date:      r.Date,
		Type:      domain.TransactionType(r.Type),
		Amount:    amount,
		NetProfit: net,
		Notes:     r.Notes.StringVal,
		CreatedAt: r.CreatedAt,
	}
	if r.Owner.Valid {
		o := domain.Owner(r.Owner.StringVal)
		tx.Owner = &o
	}
	if r.StakePercent.Valid {
		v := r.StakePercent.Float64
		tx.StakePercent = &v
	}
	if r.Odds.Valid {
		v := r.Odds.Float64
		tx.Odds = &v
	}
	if r.PotentialProfit != nil {
		p, err := fromRat(r.PotentialProfit)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("transaction %s: potential_profit: %w", r.ID, err)
		}
		tx.PotentialProfit = &p
	}
	return tx, nil
}

// NewTransactionRow converts a domain transaction into a row.
func NewTransactionRow(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		ID:           tx.ID,
		Date:         tx.Date,
		Type:         string(tx.Type),
		Owner:        nullOwner(tx.Owner),
		StakePercent: nullFloat(tx.StakePercent),
		Amount:       toRat(tx.Amount),
		Odds:         nullFloat(tx.Odds),
		NetProfit:    toRat(tx.NetProfit),
		Notes:        bigquery.NullString{StringVal: tx.Notes, Valid: true},
		CreatedAt:    tx.CreatedAt,
	}
	if tx.PotentialProfit != nil {
		row.PotentialProfit = toRat(*tx.PotentialProfit)
	}
	return row
}

// ToMonthlyConfig converts a row into a domain config.
func (r *MonthlyConfigRow) ToMonthlyConfig() (domain.MonthlyConfig, error) {
	cfg := domain.MonthlyConfig{
		Year:      int(r.Year),
		Month:     time.Month(r.Month),
		UpdatedAt: r.UpdatedAt,
	}
	var err error
	if cfg.InitialBalance, err = fromNullRat(r.InitialBalance); err != nil {
		return domain.MonthlyConfig{}, fmt.Errorf("monthly config %d-%02d: initial_balance: %w", r.Year, r.Month, err)
	}
	if cfg.FinalBalance, err = fromNullRat(r.FinalBalance); err != nil {
		return domain.MonthlyConfig{}, fmt.Errorf("monthly config %d-%02d: final_balance: %w", r.Year, r.Month, err)
	}
	return cfg, nil
}

// ToGoal converts a row into a domain goal.
func (r *GoalRow) ToGoal() (domain.MonthlyGoal, error) {
	target, err := fromRat(r.TargetAmount)
	if err != nil {
		return domain.MonthlyGoal{}, fmt.Errorf("goal %s: target_amount: %w", r.ID, err)
	}
	g := domain.MonthlyGoal{
		ID:           r.ID,
		Year:         int(r.Year),
		Month:        time.Month(r.Month),
		GoalType:     domain.GoalType(r.GoalType),
		TargetAmount: target,
		Completed:    r.Completed,
		Notes:        r.Notes.StringVal,
		CreatedAt:    r.CreatedAt,
	}
	if r.CompletedAt.Valid {
		at := r.CompletedAt.Timestamp
		g.CompletedAt = &at
	}
	if r.UpdatedAt.Valid {
		at := r.UpdatedAt.Timestamp
		g.UpdatedAt = &at
	}
	return g, nil
}

// toRat rounds to the NUMERIC scale, which rejects finer values.
func toRat(d decimal.Decimal) *big.Rat {
	return d.Round(numericScale).Rat()
}

func fromRat(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(numericScale))
}

func fromNullRat(r *big.Rat) (*decimal.Decimal, error) {
	if r == nil {
		return nil, nil
	}
	d, err := fromRat(r)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// numericParam renders an optional decimal for a CAST(@p AS NUMERIC)
// parameter. NULL parameters need a concrete type, so NUMERIC values travel
// as strings.
func numericParam(d *decimal.Decimal) bigquery.NullString {
	if d == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: d.StringFixed(numericScale), Valid: true}
}

func nullOwner(o *domain.Owner) bigquery.NullString {
	if o == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: string(*o), Valid: true}
}

func nullFloat(f *float64) bigquery.NullFloat64 {
	if f == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *f, Valid: true}
}

func nullTimestamp(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: *t, Valid: true}
}

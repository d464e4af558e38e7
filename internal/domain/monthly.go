package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing d.
func MonthOf(d civil.Date) MonthKey {
	return MonthKey{Year: d.Year, Month: d.Month}
}

// NewMonthKey validates a (year, month) pair.
func NewMonthKey(year, month int) (MonthKey, error) {
	if month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

// String returns the stable YYYY-MM form used for grouping and sorting.
func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// First returns the first day of the month.
func (m MonthKey) First() civil.Date {
	return civil.Date{Year: m.Year, Month: m.Month, Day: 1}
}

// Last returns the last day of the month.
func (m MonthKey) Last() civil.Date {
	return m.Next().First().AddDays(-1)
}

// Next returns the following month.
func (m MonthKey) Next() MonthKey {
	if m.Month == time.December {
		return MonthKey{Year: m.Year + 1, Month: time.January}
	}
	return MonthKey{Year: m.Year, Month: m.Month + 1}
}

// Prev returns the preceding month.
func (m MonthKey) Prev() MonthKey {
	if m.Month == time.January {
		return MonthKey{Year: m.Year - 1, Month: time.December}
	}
	return MonthKey{Year: m.Year, Month: m.Month - 1}
}

// Before reports whether m is strictly earlier than other.
func (m MonthKey) Before(other MonthKey) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// MonthlyConfig holds the per-month balance anchor and the advisory cached
// closing balance.
type MonthlyConfig struct {
	Year           int
	Month          time.Month
	InitialBalance *decimal.Decimal
	FinalBalance   *decimal.Decimal
	UpdatedAt      time.Time
}

// Key returns the month the config belongs to.
func (c MonthlyConfig) Key() MonthKey {
	return MonthKey{Year: c.Year, Month: c.Month}
}

// MonthlyConfigUpdate carries the fields to write in an upsert. Nil fields
// are left untouched; ClearInitialBalance removes the anchor.
type MonthlyConfigUpdate struct {
	InitialBalance      *decimal.Decimal
	ClearInitialBalance bool
	FinalBalance        *decimal.Decimal
}

// Apply merges the update into cfg.
func (u MonthlyConfigUpdate) Apply(cfg MonthlyConfig) MonthlyConfig {
	if u.ClearInitialBalance {
		cfg.InitialBalance = nil
	} else if u.InitialBalance != nil {
		v := *u.InitialBalance
		cfg.InitialBalance = &v
	}
	if u.FinalBalance != nil {
		v := *u.FinalBalance
		cfg.FinalBalance = &v
	}
	return cfg
}

// Anchors indexes the configured initial balances by month.
func Anchors(configs []MonthlyConfig) map[MonthKey]decimal.Decimal {
	anchors := make(map[MonthKey]decimal.Decimal)
	for _, c := range configs {
		if c.InitialBalance != nil {
			anchors[c.Key()] = *c.InitialBalance
		}
	}
	return anchors
}

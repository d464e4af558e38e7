package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/shopspring/decimal"
)

// periodAll covers every date the ledger can hold.
const periodAll = "all"

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func parseMonth(s string) (domain.MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return domain.MonthKey{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", s, domain.ErrInvalidMonth)
	}
	return domain.NewMonthKey(t.Year(), int(t.Month()))
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid -%s %q: %w", name, s, err)
	}
	return d, nil
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// rangeFlags selects a date range with a preset period, a month, or explicit
// bounds. Explicit bounds win over a month, which wins over the period.
type rangeFlags struct {
	period *string
	month  *string
	from   *string
	to     *string
}

func addRangeFlags(fs *flag.FlagSet, defaultPeriod string) *rangeFlags {
	return &rangeFlags{
		period: fs.String("period", defaultPeriod, "Period: day, week, month, year or all"),
		month:  fs.String("month", "", "Whole month YYYY-MM"),
		from:   fs.String("from", "", "Custom range start YYYY-MM-DD"),
		to:     fs.String("to", "", "Custom range end YYYY-MM-DD"),
	}
}

func (r *rangeFlags) resolve(today civil.Date) (engine.DateRange, error) {
	if *r.from != "" || *r.to != "" {
		if *r.from == "" || *r.to == "" {
			return engine.DateRange{}, fmt.Errorf("-from and -to must be given together")
		}
		start, err := parseDate(*r.from)
		if err != nil {
			return engine.DateRange{}, err
		}
		end, err := parseDate(*r.to)
		if err != nil {
			return engine.DateRange{}, err
		}
		return engine.NewDateRange(start, end)
	}

	if *r.month != "" {
		key, err := parseMonth(*r.month)
		if err != nil {
			return engine.DateRange{}, err
		}
		return engine.MonthRange(key), nil
	}

	if strings.EqualFold(*r.period, periodAll) {
		return engine.DateRange{
			Start: civil.Date{Year: 1, Month: time.January, Day: 1},
			End:   civil.Date{Year: 9999, Month: time.December, Day: 31},
		}, nil
	}
	return engine.RangeForPeriod(engine.Period(strings.ToLower(*r.period)), today)
}

// resolveTarget accepts won, lost and cashout as well as full type names.
func resolveTarget(s string) (domain.TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "won", "win":
		return domain.TypeBetWon, nil
	case "lost", "loss":
		return domain.TypeBetLost, nil
	case "cashout", "cashed-out":
		return domain.TypeBetCashout, nil
	}
	if t, ok := domain.ParseTransactionType(s); ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown outcome %q, expected won, lost or cashout", s)
}

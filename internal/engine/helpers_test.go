package engine

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
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

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Fail(t, "decimal mismatch: want "+want+", got "+got.String(), msgAndArgs...)
	}
}

// seq stamps creation times in slice order so ties on the same date keep it.
func seq(txs ...domain.Transaction) []domain.Transaction {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range txs {
		if txs[i].ID == "" {
			txs[i].ID = "tx-" + string(rune('a'+i))
		}
		txs[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
	}
	return txs
}

func deposit(d civil.Date, amount string) domain.Transaction {
	return domain.Transaction{Date: d, Type: domain.TypeDeposit, Amount: dec(amount)}
}

func withdrawal(d civil.Date, amount string) domain.Transaction {
	return domain.Transaction{Date: d, Type: domain.TypeWithdrawal, Amount: dec(amount)}
}

func bet(d civil.Date, t domain.TransactionType, owner domain.Owner, amount, net string) domain.Transaction {
	o := owner
	return domain.Transaction{Date: d, Type: t, Owner: &o, Amount: dec(amount), NetProfit: dec(net)}
}

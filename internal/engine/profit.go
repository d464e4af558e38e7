// Package engine holds the pure calculation rules of the ledger: profit per
// transaction, stake reconciliation on edits, balance folding, period
// bucketing, headline metrics and the monthly goal state machine.
//
// Nothing in this package performs I/O or keeps state between calls.
package engine

import (
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultBank is the bankroll stake percentages are taken from when none is configured.
var DefaultBank = decimal.NewFromInt(300000)

var hundred = decimal.NewFromInt(100)

// NetProfit returns the signed balance contribution of a transaction of type
// t that risked stake and returned settled.
func NetProfit(t domain.TransactionType, settled, stake decimal.Decimal) decimal.Decimal {
	switch t {
	case domain.TypeBetPending, domain.TypeBetLost:
		return stake.Neg()
	case domain.TypeBetWon, domain.TypeBetCashout:
		return settled.Sub(stake)
	default:
		return decimal.Zero
	}
}

// Settle returns the stored (amount, net_profit) pair for a transaction.
// Pending and lost bets store the stake as amount; a lost bet never returns
// anything beyond its stake.
func Settle(t domain.TransactionType, settled, stake decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if t.StakeIsAmount() {
		return stake, NetProfit(t, stake, stake)
	}
	if t.IsBet() {
		return settled, NetProfit(t, settled, stake)
	}
	return settled, decimal.Zero
}

// StakeAmount converts a stake percentage of bank into money.
func StakeAmount(percent float64, bank decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(percent).Div(hundred).Mul(bank)
}

// OriginalStake reverse-derives the stake a bet risked from its stored fields.
func OriginalStake(tx domain.Transaction) decimal.Decimal {
	if tx.Type.StakeIsAmount() {
		return tx.Amount
	}
	return tx.Amount.Sub(tx.NetProfit)
}

// Delta is the balance contribution of a single transaction. Unknown types
// contribute zero.
func Delta(tx domain.Transaction) decimal.Decimal {
	switch tx.Type {
	case domain.TypeDeposit:
		return tx.Amount
	case domain.TypeWithdrawal, domain.TypeBetPending:
		return tx.Amount.Neg()
	case domain.TypeBetLost, domain.TypeBetWon, domain.TypeBetCashout:
		return tx.NetProfit
	default:
		return decimal.Zero
	}
}

// Wagered is the stake a settled bet counts toward totals. Pending bets and
// money transfers count zero.
func Wagered(tx domain.Transaction) decimal.Decimal {
	switch tx.Type {
	case domain.TypeBetLost:
		return tx.Amount
	case domain.TypeBetWon, domain.TypeBetCashout:
		return tx.Amount.Sub(tx.NetProfit)
	default:
		return decimal.Zero
	}
}

// Outcome is how a settled bet counts toward win rate.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWon
	OutcomeLost
)

// OutcomeOf classifies a bet for win-rate purposes. Cashouts count as won
// when their profit is zero or positive.
func OutcomeOf(tx domain.Transaction) Outcome {
	switch tx.Type {
	case domain.TypeBetWon:
		return OutcomeWon
	case domain.TypeBetLost:
		return OutcomeLost
	case domain.TypeBetCashout:
		if tx.NetProfit.Sign() >= 0 {
			return OutcomeWon
		}
		return OutcomeLost
	}
	return OutcomeNone
}

// Percent returns part/whole*100, or 0 when whole is zero.
func Percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Div(whole).Mul(hundred).Round(4).Float64()
	return f
}

// Round2 rounds a monetary value for reporting.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

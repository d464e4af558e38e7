package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ledger movement a transaction records.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeBetPending TransactionType = "BET_PENDING"
	TypeBetLost    TransactionType = "BET_LOST"
	TypeBetWon     TransactionType = "BET_WON"
	TypeBetCashout TransactionType = "BET_CASHOUT"
)

// TransactionTypes lists every known type in display order.
var TransactionTypes = []TransactionType{
	TypeDeposit,
	TypeWithdrawal,
	TypeBetPending,
	TypeBetLost,
	TypeBetWon,
	TypeBetCashout,
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsBet reports whether t is a betting type. Only betting types can be
// edited or resolved after creation.
func (t TransactionType) IsBet() bool {
	switch t {
	case TypeBetPending, TypeBetLost, TypeBetWon, TypeBetCashout:
		return true
	}
	return false
}

// IsSettled reports whether t is a concluded bet.
func (t TransactionType) IsSettled() bool {
	switch t {
	case TypeBetLost, TypeBetWon, TypeBetCashout:
		return true
	}
	return false
}

// StakeIsAmount reports whether the stored amount of t is the stake at risk
// (as opposed to the amount returned).
func (t TransactionType) StakeIsAmount() bool {
	return t == TypeBetPending || t == TypeBetLost
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Owner identifies the strategy or person a bet is attributed to.
type Owner string

const (
	OwnerPropia Owner = "PROPIA"
	OwnerPulpo  Owner = "PULPO"
	OwnerTrade  Owner = "TRADE"
)

// Owners lists every owner in the order used by comparison tables.
var Owners = []Owner{OwnerPropia, OwnerPulpo, OwnerTrade}

// ParseOwner converts user input into an Owner.
func ParseOwner(s string) (Owner, bool) {
	o := Owner(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Owners {
		if o == known {
			return o, true
		}
	}
	return "", false
}

// HistoricalMarker is the note fragment that flags a legacy migration row.
const HistoricalMarker = "históricos"

// Transaction is one ledger record.
//
// Amount means different things per type: the transferred amount for
// deposits and withdrawals, the stake at risk for pending and lost bets, and
// the total returned (stake + profit) for won and cashed-out bets. For every
// settled bet the stake is Amount - NetProfit.
type Transaction struct {
	ID              string
	Date            civil.Date
	Type            TransactionType
	Owner           *Owner
	StakePercent    *float64 // entry-time helper only
	Amount          decimal.Decimal
	Odds            *float64
	PotentialProfit *decimal.Decimal
	NetProfit       decimal.Decimal
	Notes           string
	CreatedAt       time.Time
}

// IsHistorical reports whether the row is a historical-adjustment entry.
// Those rows never participate in balances or period aggregates.
func (t Transaction) IsHistorical() bool {
	return strings.Contains(strings.ToLower(t.Notes), HistoricalMarker)
}

// OwnerOrEmpty returns the owner, or "" when none is set.
func (t Transaction) OwnerOrEmpty() Owner {
	if t.Owner == nil {
		return ""
	}
	return *t.Owner
}

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Owner != nil {
		o := *t.Owner
		c.Owner = &o
	}
	if t.StakePercent != nil {
		s := *t.StakePercent
		c.StakePercent = &s
	}
	if t.Odds != nil {
		o := *t.Odds
		c.Odds = &o
	}
	if t.PotentialProfit != nil {
		p := *t.PotentialProfit
		c.PotentialProfit = &p
	}
	return c
}

// TransactionUpdate is the set of mutable fields written back after an edit.
// Identity, creation time and the entry-time stake percentage never change.
type TransactionUpdate struct {
	Date            civil.Date
	Type            TransactionType
	Owner           *Owner
	Amount          decimal.Decimal
	Odds            *float64
	PotentialProfit *decimal.Decimal
	NetProfit       decimal.Decimal
	Notes           string
}

// UpdateFrom captures the mutable fields of tx.
func UpdateFrom(tx Transaction) TransactionUpdate {
	c := tx.Clone()
	return TransactionUpdate{
		Date:            c.Date,
		Type:            c.Type,
		Owner:           c.Owner,
		Amount:          c.Amount,
		Odds:            c.Odds,
		PotentialProfit: c.PotentialProfit,
		NetProfit:       c.NetProfit,
		Notes:           c.Notes,
	}
}

// Apply writes the update onto a copy of tx.
func (u TransactionUpdate) Apply(tx Transaction) Transaction {
	out := tx.Clone()
	patched := Transaction{
		Owner:           u.Owner,
		Odds:            u.Odds,
		PotentialProfit: u.PotentialProfit,
	}.Clone()
	out.Date = u.Date
	out.Type = u.Type
	out.Owner = patched.Owner
	out.Amount = u.Amount
	out.Odds = patched.Odds
	out.PotentialProfit = patched.PotentialProfit
	out.NetProfit = u.NetProfit
	out.Notes = u.Notes
	return out
}

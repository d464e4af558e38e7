package engine

import (
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Draft is a transaction as entered, before amounts are derived.
type Draft struct {
	Date  civil.Date
	Type  domain.TransactionType
	Owner *domain.Owner

	// StakePercent is converted against the bank unless UseFixedAmount is set.
	StakePercent   *float64
	UseFixedAmount bool
	// Amount is the transfer amount, or the fixed stake for bets.
	Amount decimal.Decimal
	// Settlement is the total returned for bets created already won or
	// cashed out. When nil the bet is recorded at break-even.
	Settlement *decimal.Decimal

	Odds  *float64
	Notes string
}

// BuildTransaction derives a consistent transaction from a draft. The id and
// creation time are left for the store to assign.
func BuildTransaction(d Draft, bank decimal.Decimal) (domain.Transaction, error) {
	if !d.Type.Valid() {
		return domain.Transaction{}, fmt.Errorf("BuildTransaction: unknown type %q", d.Type)
	}

	tx := domain.Transaction{
		Date:  d.Date,
		Type:  d.Type,
		Notes: d.Notes,
	}

	if !d.Type.IsBet() {
		if d.Amount.Sign() <= 0 {
			return domain.Transaction{}, fmt.Errorf("BuildTransaction: %w", domain.ErrInvalidAmount)
		}
		tx.Amount = d.Amount
		tx.NetProfit = decimal.Zero
		return tx, nil
	}

	stake := d.Amount
	if !d.UseFixedAmount && d.StakePercent != nil {
		if bank.Sign() <= 0 {
			bank = DefaultBank
		}
		if *d.StakePercent <= 0 {
			return domain.Transaction{}, &domain.InvalidStakeError{Field: "stake", Value: formatFloat(*d.StakePercent)}
		}
		stake = StakeAmount(*d.StakePercent, bank)
		pct := *d.StakePercent
		tx.StakePercent = &pct
	}
	if stake.Sign() <= 0 {
		return domain.Transaction{}, &domain.InvalidStakeError{Field: "stake", Value: stake.String()}
	}
	if err := validateOdds(d.Odds); err != nil {
		return domain.Transaction{}, err
	}

	owner := domain.OwnerPropia
	if d.Owner != nil {
		owner = *d.Owner
	}
	tx.Owner = &owner

	settled := stake
	if d.Settlement != nil {
		if d.Settlement.Sign() < 0 {
			return domain.Transaction{}, fmt.Errorf("BuildTransaction: settlement: %w", domain.ErrInvalidAmount)
		}
		settled = *d.Settlement
	}
	tx.Amount, tx.NetProfit = Settle(d.Type, settled, stake)

	if d.Odds != nil {
		odds := *d.Odds
		tx.Odds = &odds
		potential := stake.Mul(decimal.NewFromFloat(odds)).Sub(stake)
		tx.PotentialProfit = &potential
	}

	return tx, nil
}

// Edit is a proposed change to a bet. Nil fields keep their current value.
type Edit struct {
	Type  *domain.TransactionType
	Stake *decimal.Decimal
	// Amount is an explicit settlement amount. For pending and lost targets
	// it is read as the stake when Stake is not given.
	Amount *decimal.Decimal
	// Odds of zero clears the odds.
	Odds  *float64
	Date  *civil.Date
	Owner *domain.Owner
	Notes *string
}

// ApplyEdit recomputes amount, net profit and potential profit for an edited
// bet so that stake = amount - net_profit keeps holding.
func ApplyEdit(tx domain.Transaction, e Edit) (domain.Transaction, error) {
	if !tx.Type.IsBet() {
		return domain.Transaction{}, &domain.NotEditableError{ID: tx.ID, Type: tx.Type}
	}

	target := tx.Type
	if e.Type != nil {
		target = *e.Type
	}
	if !target.IsBet() {
		return domain.Transaction{}, &domain.NotEditableError{
			ID:     tx.ID,
			Type:   tx.Type,
			Reason: fmt.Sprintf("cannot become %s", target),
		}
	}

	stake := OriginalStake(tx)
	stakeChanged := false
	if e.Stake != nil {
		stake = *e.Stake
		stakeChanged = true
	} else if e.Amount != nil && target.StakeIsAmount() {
		stake = *e.Amount
		stakeChanged = true
	}
	if stake.Sign() <= 0 {
		return domain.Transaction{}, &domain.InvalidStakeError{Field: "stake", Value: stake.String()}
	}
	if e.Odds != nil && *e.Odds != 0 {
		if err := validateOdds(e.Odds); err != nil {
			return domain.Transaction{}, err
		}
	}

	out := tx.Clone()
	out.Type = target

	switch {
	case target.StakeIsAmount():
		out.Amount, out.NetProfit = Settle(target, stake, stake)
	case e.Amount != nil:
		if e.Amount.Sign() < 0 {
			return domain.Transaction{}, fmt.Errorf("ApplyEdit: settlement: %w", domain.ErrInvalidAmount)
		}
		out.Amount, out.NetProfit = Settle(target, *e.Amount, stake)
	case stakeChanged && !tx.Type.StakeIsAmount():
		// Correcting the stake of an already settled bet keeps its realized profit.
		out.Amount = stake.Add(tx.NetProfit)
		out.NetProfit = tx.NetProfit
	default:
		settled := tx.Amount
		if tx.Type.StakeIsAmount() {
			settled = stake
		}
		out.Amount, out.NetProfit = Settle(target, settled, stake)
	}

	if e.Odds != nil {
		if *e.Odds == 0 {
			out.Odds = nil
			out.PotentialProfit = nil
		} else {
			odds := *e.Odds
			out.Odds = &odds
		}
	}
	if out.Odds != nil && (e.Odds != nil || stakeChanged) {
		payout := stake.Mul(decimal.NewFromFloat(*out.Odds))
		out.PotentialProfit = &payout
	}

	if e.Date != nil {
		out.Date = *e.Date
	}
	if e.Owner != nil {
		owner := *e.Owner
		out.Owner = &owner
	}
	if e.Notes != nil {
		out.Notes = *e.Notes
	}

	return out, nil
}

// Resolve settles a pending bet. The stake stays fixed at the pending stake;
// settled is ignored for a loss.
func Resolve(tx domain.Transaction, target domain.TransactionType, settled decimal.Decimal) (domain.Transaction, error) {
	if !tx.Type.IsBet() {
		return domain.Transaction{}, &domain.NotEditableError{ID: tx.ID, Type: tx.Type}
	}
	if tx.Type != domain.TypeBetPending {
		return domain.Transaction{}, &domain.NotEditableError{ID: tx.ID, Type: tx.Type, Reason: "bet is already settled"}
	}
	if !target.IsSettled() {
		return domain.Transaction{}, &domain.NotEditableError{ID: tx.ID, Type: tx.Type, Reason: fmt.Sprintf("cannot resolve to %s", target)}
	}

	e := Edit{Type: &target}
	if target != domain.TypeBetLost {
		e.Amount = &settled
	}
	return ApplyEdit(tx, e)
}

func validateOdds(odds *float64) error {
	if odds != nil && *odds <= 1.0 {
		return &domain.InvalidStakeError{Field: "odds", Value: formatFloat(*odds)}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

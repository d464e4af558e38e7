package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/bet-tracker/internal/backup"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/shopspring/decimal"
)

func (a *app) runAdd(ctx context.Context, args []string) error {
	fs := a.flagSet("add")
	date := fs.String("date", "", "Transaction date YYYY-MM-DD (defaults to today)")
	typ := fs.String("type", "", "DEPOSIT, WITHDRAWAL, BET_PENDING, BET_LOST, BET_WON or BET_CASHOUT")
	owner := fs.String("owner", "", "Bet owner: PROPIA, PULPO or TRADE (bets default to PROPIA)")
	stakePct := fs.Float64("stake-pct", 0, "Stake as a percentage of the bank")
	amount := fs.String("amount", "", "Transfer amount, or a fixed stake for bets")
	odds := fs.Float64("odds", 0, "Decimal odds")
	settlement := fs.String("settlement", "", "Total returned, for bets recorded already won or cashed out")
	notes := fs.String("notes", "", "Free-text notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	t, ok := domain.ParseTransactionType(*typ)
	if !ok {
		return fmt.Errorf("-type must be one of %v", domain.TransactionTypes)
	}

	draft := engine.Draft{Date: a.svc.Today(), Type: t, Notes: *notes}
	if set["date"] {
		d, err := parseDate(*date)
		if err != nil {
			return err
		}
		draft.Date = d
	}
	if set["owner"] {
		o, ok := domain.ParseOwner(*owner)
		if !ok {
			return fmt.Errorf("-owner must be one of %v", domain.Owners)
		}
		draft.Owner = &o
	}
	if set["amount"] {
		v, err := parseDecimal("amount", *amount)
		if err != nil {
			return err
		}
		draft.Amount = v
		draft.UseFixedAmount = true
	}
	if set["stake-pct"] {
		pct := *stakePct
		draft.StakePercent = &pct
	}
	if set["odds"] {
		o := *odds
		draft.Odds = &o
	}
	if set["settlement"] {
		v, err := parseDecimal("settlement", *settlement)
		if err != nil {
			return err
		}
		draft.Settlement = &v
	}

	tx, err := a.svc.AddTransaction(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", tx.ID)
	printTransactions(a.out, []domain.Transaction{tx})
	return nil
}

func (a *app) runEdit(ctx context.Context, args []string) error {
	fs := a.flagSet("edit")
	id := fs.String("id", "", "Transaction ID (required)")
	typ := fs.String("type", "", "New bet type")
	stake := fs.String("stake", "", "Corrected stake")
	amount := fs.String("amount", "", "Settlement amount; read as the stake for pending and lost bets")
	odds := fs.Float64("odds", 0, "Decimal odds; 0 clears them")
	date := fs.String("date", "", "New date YYYY-MM-DD")
	owner := fs.String("owner", "", "New owner")
	notes := fs.String("notes", "", "New notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	set := setFlags(fs)

	var e engine.Edit
	if set["type"] {
		t, ok := domain.ParseTransactionType(*typ)
		if !ok {
			return fmt.Errorf("-type must be one of %v", domain.TransactionTypes)
		}
		e.Type = &t
	}
	if set["stake"] {
		v, err := parseDecimal("stake", *stake)
		if err != nil {
			return err
		}
		e.Stake = &v
	}
	if set["amount"] {
		v, err := parseDecimal("amount", *amount)
		if err != nil {
			return err
		}
		e.Amount = &v
	}
	if set["odds"] {
		o := *odds
		e.Odds = &o
	}
	if set["date"] {
		d, err := parseDate(*date)
		if err != nil {
			return err
		}
		e.Date = &d
	}
	if set["owner"] {
		o, ok := domain.ParseOwner(*owner)
		if !ok {
			return fmt.Errorf("-owner must be one of %v", domain.Owners)
		}
		e.Owner = &o
	}
	if set["notes"] {
		n := *notes
		e.Notes = &n
	}

	tx, err := a.svc.EditTransaction(ctx, *id, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", tx.ID)
	printTransactions(a.out, []domain.Transaction{tx})
	return nil
}

func (a *app) runResolve(ctx context.Context, args []string) error {
	fs := a.flagSet("resolve")
	id := fs.String("id", "", "Pending bet ID (required)")
	to := fs.String("to", "", "Outcome: won, lost or cashout (required)")
	amount := fs.String("amount", "", "Total returned; required unless lost")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *to == "" {
		return fmt.Errorf("-id and -to are required")
	}

	target, err := resolveTarget(*to)
	if err != nil {
		return err
	}
	settled := decimal.Zero
	if target != domain.TypeBetLost {
		if *amount == "" {
			return fmt.Errorf("-amount is required to resolve as %s", target)
		}
		if settled, err = parseDecimal("amount", *amount); err != nil {
			return err
		}
	}

	tx, err := a.svc.ResolveBet(ctx, *id, target, settled)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Resolved %s as %s\n", tx.ID, tx.Type)
	printTransactions(a.out, []domain.Transaction{tx})
	return nil
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	fs := a.flagSet("delete")
	id := fs.String("id", "", "Transaction ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	if err := a.svc.DeleteTransaction(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", *id)
	return nil
}

func (a *app) runList(ctx context.Context, args []string) error {
	fs := a.flagSet("list")
	rf := addRangeFlags(fs, string(engine.PeriodMonth))
	typ := fs.String("type", "", "Only this transaction type")
	owner := fs.String("owner", "", "Only bets of this owner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	window, err := rf.resolve(a.svc.Today())
	if err != nil {
		return err
	}

	var txs []domain.Transaction
	for _, tx := range engine.Ordered(a.svc.Snapshot().Transactions) {
		if !window.Contains(tx.Date) {
			continue
		}
		if *typ != "" && !equalFoldType(tx.Type, *typ) {
			continue
		}
		if *owner != "" && !equalFoldOwner(tx.OwnerOrEmpty(), *owner) {
			continue
		}
		txs = append(txs, tx)
	}

	printTransactions(a.out, txs)
	fmt.Fprintf(a.out, "%d transactions from %s to %s\n", len(txs), window.Start, window.End)
	return nil
}

func (a *app) runBalance(ctx context.Context, args []string) error {
	fs := a.flagSet("balance")
	asOf := fs.String("as-of", "", "Balance date YYYY-MM-DD (defaults to today)")
	daily := fs.Bool("daily", false, "Print the closing balance of every day in a period")
	rf := addRangeFlags(fs, string(engine.PeriodMonth))
	if err := fs.Parse(args); err != nil {
		return err
	}
	snap := a.svc.Snapshot()
	today := a.svc.Today()

	if *daily {
		window, err := rf.resolve(today)
		if err != nil {
			return err
		}
		printDailyBalances(a.out, engine.DailyBalances(snap.Transactions, snap.Configs, window, today))
		return nil
	}

	date := today
	if *asOf != "" {
		d, err := parseDate(*asOf)
		if err != nil {
			return err
		}
		date = d
	}
	month := domain.MonthOf(date)

	current := engine.Summarize(snap.Transactions, snap.Configs, engine.DateRange{Start: date, End: date}).CurrentBalance
	opening, source := engine.OpeningBalance(snap.Transactions, snap.Configs, month)

	fmt.Fprintf(a.out, "Balance at %s: %s\n", date, money(current))
	fmt.Fprintf(a.out, "Opening balance of %s: %s (%s)\n", month, money(opening), source)
	if provisional, psource, ok := engine.ProvisionalOpening(snap.Configs, month); ok && !provisional.Equal(opening) {
		fmt.Fprintf(a.out, "Cached opening of %s: %s (%s, stale)\n", month, money(provisional), psource)
	}
	return nil
}

func (a *app) runSummary(ctx context.Context, args []string) error {
	fs := a.flagSet("summary")
	rf := addRangeFlags(fs, string(engine.PeriodMonth))
	if err := fs.Parse(args); err != nil {
		return err
	}
	window, err := rf.resolve(a.svc.Today())
	if err != nil {
		return err
	}

	snap := a.svc.Snapshot()
	printSummary(a.out, window, engine.Summarize(snap.Transactions, snap.Configs, window))
	return nil
}

func (a *app) runMonths(ctx context.Context, args []string) error {
	fs := a.flagSet("months")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap := a.svc.Snapshot()
	printMonths(a.out, engine.MonthlySummaries(snap.Transactions, snap.Configs, a.svc.Today()))
	return nil
}

func (a *app) runOwners(ctx context.Context, args []string) error {
	fs := a.flagSet("owners")
	rf := addRangeFlags(fs, string(engine.PeriodMonth))
	if err := fs.Parse(args); err != nil {
		return err
	}
	window, err := rf.resolve(a.svc.Today())
	if err != nil {
		return err
	}

	printOwners(a.out, engine.OwnerBreakdown(a.svc.Snapshot().Transactions, window))
	return nil
}

func (a *app) runGoals(ctx context.Context, args []string) error {
	fs := a.flagSet("goals")
	month := fs.String("month", "", "Month YYYY-MM (defaults to the current month)")
	toggle := fs.String("toggle", "", "Flip the completion of this goal type")
	goalType := fs.String("type", "", "Goal type whose notes -notes rewrites")
	notes := fs.String("notes", "", "New notes for -type")
	completed := fs.Bool("completed", false, "Show the completed goal history instead")
	limit := fs.Int("limit", 0, "Maximum completed goals to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *completed {
		goals, err := a.svc.CompletedGoals(ctx, *limit)
		if err != nil {
			return err
		}
		printGoals(a.out, goals)
		return nil
	}

	key := domain.MonthOf(a.svc.Today())
	if *month != "" {
		k, err := parseMonth(*month)
		if err != nil {
			return err
		}
		key = k
	}

	if *toggle != "" {
		g, err := a.svc.ToggleGoal(ctx, key, parseGoalType(*toggle))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s completed: %t\n", key, g.GoalType, g.Completed)
	}
	if setFlags(fs)["notes"] {
		if *goalType == "" {
			return fmt.Errorf("-notes needs -type")
		}
		if _, err := a.svc.UpdateGoalNotes(ctx, key, parseGoalType(*goalType), *notes); err != nil {
			return err
		}
	}

	goals, err := a.svc.MonthGoals(ctx, key)
	if err != nil {
		return err
	}
	printGoals(a.out, goals)
	return nil
}

func (a *app) runAnchor(ctx context.Context, args []string) error {
	fs := a.flagSet("anchor")
	month := fs.String("month", "", "Month YYYY-MM (required)")
	amount := fs.String("amount", "", "Opening balance of the month")
	clearAnchor := fs.Bool("clear", false, "Remove the opening balance of the month")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *month == "" {
		return fmt.Errorf("-month is required")
	}
	if (*amount == "") == !*clearAnchor {
		return fmt.Errorf("give exactly one of -amount or -clear")
	}
	key, err := parseMonth(*month)
	if err != nil {
		return err
	}

	var value *decimal.Decimal
	if !*clearAnchor {
		v, err := parseDecimal("amount", *amount)
		if err != nil {
			return err
		}
		value = &v
	}
	if err := a.svc.SetInitialBalance(ctx, key, value); err != nil {
		return err
	}

	if value == nil {
		fmt.Fprintf(a.out, "Cleared the opening balance of %s\n", key)
	} else {
		fmt.Fprintf(a.out, "Opening balance of %s set to %s\n", key, money(*value))
	}
	return nil
}

func (a *app) runRefresh(ctx context.Context, args []string) error {
	fs := a.flagSet("refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}

	written, err := a.svc.RefreshFinalBalances(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated the cached closing balance of %d months\n", written)
	return nil
}

func (a *app) runBackup(ctx context.Context, args []string) error {
	fs := a.flagSet("backup")
	bucket := fs.String("bucket", a.cfg.BackupBucket, "GCS bucket (defaults to BACKUP_BUCKET)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bucket == "" {
		return fmt.Errorf("-bucket or BACKUP_BUCKET is required")
	}

	storageSvc, err := a.storageService(ctx)
	if err != nil {
		return err
	}
	m, err := backup.Export(ctx, a.store, storageSvc, *bucket, a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backed up %d transactions, %d monthly configs and %d goals to %s\n",
		m.Transactions, m.Configs, m.Goals, m.URI)
	return nil
}

func (a *app) runRestore(ctx context.Context, args []string) error {
	fs := a.flagSet("restore")
	uri := fs.String("uri", "", "gs:// URI of the backup (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uri == "" {
		return fmt.Errorf("-uri is required")
	}

	storageSvc, err := a.storageService(ctx)
	if err != nil {
		return err
	}
	m, err := backup.Restore(ctx, a.store, storageSvc, *uri)
	if err != nil {
		return err
	}
	if _, err := a.svc.Load(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Restored %d transactions, %d monthly configs and %d goals from %s\n",
		m.Transactions, m.Configs, m.Goals, m.URI)
	return nil
}

// storageService returns the configured backup storage, connecting to GCS on
// first use.
func (a *app) storageService(ctx context.Context) (backup.StorageService, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	gcs, err := backup.NewGCSStorageService(ctx)
	if err != nil {
		return nil, err
	}
	a.storage = gcs
	a.closers = append(a.closers, gcs.Close)
	return gcs, nil
}

func parseGoalType(s string) domain.GoalType {
	return domain.GoalType(strings.ToUpper(strings.TrimSpace(s)))
}

func equalFoldType(t domain.TransactionType, s string) bool {
	return strings.EqualFold(string(t), strings.TrimSpace(s))
}

func equalFoldOwner(o domain.Owner, s string) bool {
	return strings.EqualFold(string(o), strings.TrimSpace(s))
}

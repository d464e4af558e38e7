package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/bet-tracker/internal/backup"
	"github.com/dvloznov/bet-tracker/internal/config"
	jobsmem "github.com/dvloznov/bet-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/bet-tracker/internal/ledger"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"github.com/dvloznov/bet-tracker/internal/store"
	"github.com/dvloznov/bet-tracker/internal/store/backend"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	switch os.Args[1] {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}

	a := newApp(cfg, st, os.Stdout)
	if err := a.start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start refresh queue")
	}

	runErr := a.run(ctx, os.Args[1], os.Args[2:])
	if err := a.close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down cleanly")
	}

	if errors.Is(runErr, errUnknownCommand) {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if errors.Is(runErr, flag.ErrHelp) {
		return
	}
	if runErr != nil {
		log.Error().Err(runErr).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Bet Tracker CLI")
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  cli <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  add       Record a deposit, withdrawal or bet")
	fmt.Fprintln(w, "  edit      Edit a bet")
	fmt.Fprintln(w, "  resolve   Settle a pending bet as won, lost or cashout")
	fmt.Fprintln(w, "  delete    Delete a transaction")
	fmt.Fprintln(w, "  list      List transactions in a period")
	fmt.Fprintln(w, "  balance   Show the balance as of a date, or per day with -daily")
	fmt.Fprintln(w, "  summary   Show the headline figures of a period")
	fmt.Fprintln(w, "  months    Show the monthly summary table")
	fmt.Fprintln(w, "  owners    Compare owners over a period")
	fmt.Fprintln(w, "  goals     Show, toggle or annotate monthly goals")
	fmt.Fprintln(w, "  anchor    Set or clear the opening balance of a month")
	fmt.Fprintln(w, "  refresh   Recompute the cached closing balance of every month")
	fmt.Fprintln(w, "  backup    Export the ledger to Cloud Storage")
	fmt.Fprintln(w, "  restore   Restore a Cloud Storage backup into an empty ledger")
	fmt.Fprintln(w, "  help      Show this help message")
	fmt.Fprintln(w, "\nRun 'cli <command> -h' for more information on a command.")
}

var errUnknownCommand = errors.New("unknown command")

// app wires the ledger service to its store and, when enabled, to the
// in-process refresh queue.
type app struct {
	cfg   *config.Config
	store store.LedgerStore
	svc   *ledger.Service
	queue *jobsmem.Queue
	out   io.Writer
	now   func() time.Time

	storage backup.StorageService
	closers []func() error
}

func newApp(cfg *config.Config, st store.LedgerStore, out io.Writer) *app {
	a := &app{cfg: cfg, store: st, out: out, now: time.Now}

	opts := []ledger.Option{ledger.WithBank(cfg.BankAmount)}
	if cfg.RefreshFinalBalance {
		a.queue = jobsmem.NewQueue(16, jobsmem.NewStore()).WithBackoff(200 * time.Millisecond)
		opts = append(opts, ledger.WithPublisher(a.queue))
	}
	a.svc = ledger.NewService(st, opts...)
	return a
}

func (a *app) start(ctx context.Context) error {
	if a.queue == nil {
		return nil
	}
	return a.queue.Start(ctx, a.svc.HandleJob)
}

// close drains pending refresh jobs before releasing the store.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Stop(ctx))
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	handlers := map[string]func(context.Context, []string) error{
		"add":     a.runAdd,
		"edit":    a.runEdit,
		"resolve": a.runResolve,
		"delete":  a.runDelete,
		"list":    a.runList,
		"balance": a.runBalance,
		"summary": a.runSummary,
		"months":  a.runMonths,
		"owners":  a.runOwners,
		"goals":   a.runGoals,
		"anchor":  a.runAnchor,
		"refresh": a.runRefresh,
		"backup":  a.runBackup,
		"restore": a.runRestore,
	}
	handler, ok := handlers[command]
	if !ok {
		return errUnknownCommand
	}

	if _, err := a.svc.Load(ctx); err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	return handler(ctx, args)
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

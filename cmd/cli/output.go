package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dvloznov/bet-tracker/internal/domain"
	"github.com/dvloznov/bet-tracker/internal/engine"
	"github.com/shopspring/decimal"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func render(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.String())
}

func money(d decimal.Decimal) string {
	return engine.Round2(d).StringFixed(2)
}

func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64) + "%"
}

func optionalFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func optionalMoney(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return money(*d)
}

func printTransactions(w io.Writer, txs []domain.Transaction) {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.Date.String(),
			string(tx.Type),
			string(tx.OwnerOrEmpty()),
			money(tx.Amount),
			optionalFloat(tx.Odds),
			money(tx.NetProfit),
			optionalMoney(tx.PotentialProfit),
			tx.Notes,
			tx.ID,
		})
	}
	render(w, []string{"Date", "Type", "Owner", "Amount", "Odds", "Net", "Potential", "Notes", "ID"}, rows)
}

func printDailyBalances(w io.Writer, points []engine.BalancePoint) {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Date.String(), money(p.Balance)})
	}
	render(w, []string{"Date", "Balance"}, rows)
}

func printSummary(w io.Writer, window engine.DateRange, s engine.Summary) {
	render(w, []string{"Figure", fmt.Sprintf("%s .. %s", window.Start, window.End)}, [][]string{
		{"Opening balance", money(s.OpeningBalance)},
		{"Current balance", money(s.CurrentBalance)},
		{"Deposits", money(s.Deposits)},
		{"Withdrawals", money(s.Withdrawals)},
		{"Total bet", money(s.TotalBet)},
		{"Net profit", money(s.NetProfit)},
		{"Pending", money(s.PendingAmount)},
		{"ROI", percent(s.MonthlyROI)},
		{"Win rate", percent(s.WinRate)},
		{"Won / lost", fmt.Sprintf("%d / %d", s.WonBets, s.LostBets)},
		{"Pending bets", strconv.Itoa(s.PendingBets)},
		{"Cashouts", strconv.Itoa(s.CashoutBets)},
	})
}

func printMonths(w io.Writer, buckets []engine.Bucket) {
	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		anchored := ""
		if b.Anchored {
			anchored = "yes"
		}
		rows = append(rows, []string{
			b.Key,
			money(b.OpeningBalance),
			money(b.Deposits),
			money(b.Withdrawals),
			money(b.NetProfit()),
			money(b.PendingAmount),
			money(b.TotalWagered),
			percent(b.ROI),
			fmt.Sprintf("%d/%d/%d/%d", b.WonCount, b.LostCount, b.PendingCount, b.CashoutCount),
			money(b.ClosingBalance),
			anchored,
		})
	}
	render(w, []string{"Month", "Opening", "Deposits", "Withdrawals", "Net", "Pending", "Wagered", "ROI", "W/L/P/C", "Closing", "Anchored"}, rows)
}

func printOwners(w io.Writer, stats []engine.OwnerStats) {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			string(s.Owner),
			strconv.Itoa(s.TotalBets),
			fmt.Sprintf("%d/%d/%d/%d", s.WonBets, s.LostBets, s.PendingBets, s.CashoutBets),
			money(s.TotalBet),
			money(s.NetProfit),
			percent(s.ROI),
			percent(s.WinRate),
			strconv.FormatFloat(s.AvgOdds, 'f', 2, 64),
		})
	}
	render(w, []string{"Owner", "Bets", "W/L/P/C", "Wagered", "Net", "ROI", "Win rate", "Avg odds"}, rows)
}

func printGoals(w io.Writer, goals []domain.MonthlyGoal) {
	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		done := ""
		if g.Completed && g.CompletedAt != nil {
			done = g.CompletedAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			g.Key().String(),
			string(g.GoalType),
			money(g.TargetAmount),
			done,
			g.Notes,
		})
	}
	render(w, []string{"Month", "Goal", "Target", "Completed", "Notes"}, rows)
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/services"

	"github.com/shopspring/decimal"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func row(tw *tabwriter.Writer, cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case decimal.Decimal:
			parts[i] = core.FormatAmount(v)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func formatRange(r core.DateRange) string {
	return r.Start.Format(core.DayLayout) + " to " + r.End.Format(core.DayLayout)
}

func renderSummary(w io.Writer, s ledger.Summary) {
	tw := newTable(w)
	row(tw, "Income", s.Income)
	row(tw, "Expense", s.Expense)
	row(tw, "Net", s.Net)
	tw.Flush()
}

func renderMonthly(w io.Writer, months []ledger.MonthBucket) {
	if len(months) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	row(tw, "MONTH", "INCOME", "EXPENSE")
	for _, m := range months {
		row(tw, m.Month, m.Income, m.Expense)
	}
	tw.Flush()
}

func renderCategoryLines(w io.Writer, lines []services.CategoryLine) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	row(tw, "CATEGORY", "TOTAL")
	for _, l := range lines {
		row(tw, l.Name, l.Total)
	}
	tw.Flush()
}

func renderTrend(w io.Writer, daily []ledger.DailyBucket, trend []ledger.BalancePoint) {
	if len(daily) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	row(tw, "DATE", "INCOME", "EXPENSE", "BALANCE")
	for i, d := range daily {
		row(tw, d.Date, d.Income, d.Expense, trend[i].Balance)
	}
	tw.Flush()
}

func renderTree(w io.Writer, tree []ledger.CategoryNode) {
	if len(tree) == 0 {
		fmt.Fprintln(w, "No categories.")
		return
	}
	for _, node := range tree {
		fmt.Fprintf(w, "%s (#%d)\n", node.Name, node.ID)
		for _, child := range node.Children {
			fmt.Fprintf(w, "  %s (#%d)\n", child.Name, child.ID)
		}
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

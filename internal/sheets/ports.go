// Package sheets defines where ledger reports get exported to.
package sheets

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ReportHeader is the first row of every exported report.
var ReportHeader = []string{"Date", "Income", "Expense", "Balance"}

var ErrEmptySheetName = errors.New("empty sheet name")

type (
	// ReportRow is one day of the balance trend with that day's flows.
	ReportRow struct {
		Date    string
		Income  decimal.Decimal
		Expense decimal.Decimal
		Balance decimal.Decimal
	}

	// ReportWriter replaces the contents of a named sheet with a report.
	ReportWriter interface {
		WriteReport(ctx context.Context, sheet string, rows []ReportRow) (ref string, err error)
	}
)

// Values renders the header plus one string row per report row, amounts with two decimals.
func Values(rows []ReportRow) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, append([]string(nil), ReportHeader...))
	for _, r := range rows {
		out = append(out, []string{
			r.Date,
			r.Income.StringFixed(2),
			r.Expense.StringFixed(2),
			r.Balance.StringFixed(2),
		})
	}
	return out
}

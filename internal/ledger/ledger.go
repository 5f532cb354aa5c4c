// Package ledger derives chart-ready summaries from raw account, transaction,
// budget and category records.
//
// Every function here is pure: same input, same output, no clock reads and no
// I/O. Input is assumed well formed; validation happens where records enter the
// process (the API client decodes, core validates writes). Transactions whose
// type is neither INCOME nor EXPENSE feed no income/expense accumulator.
package ledger

import (
	"math"
	"sort"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// NearLimitThreshold is the utilization percentage above which a budget is flagged.
const NearLimitThreshold = 90.0

var hundred = decimal.NewFromInt(100)

type (
	CategoryTotal struct {
		CategoryID int64
		Total      decimal.Decimal
	}

	MonthBucket struct {
		Month   string
		Income  decimal.Decimal
		Expense decimal.Decimal
	}

	DailyBucket struct {
		Date    string // YYYY-MM-DD
		Income  decimal.Decimal
		Expense decimal.Decimal
	}

	BalancePoint struct {
		Date    string
		Balance decimal.Decimal
	}

	// CategoryNode is a root category with its direct children. Children is never nil.
	CategoryNode struct {
		core.Category
		Children []core.Category
	}

	Summary struct {
		Income  decimal.Decimal
		Expense decimal.Decimal
		Net     decimal.Decimal
	}

	// MonthLabeler turns a timestamp into the bucket label for its month.
	MonthLabeler func(time.Time) string
)

// ShortMonth labels months with their three-letter English name ("Jan", "Feb", ...).
func ShortMonth(t time.Time) string {
	return t.Month().String()[:3]
}

// TotalBalance sums the balance of every account. No accounts, zero balance.
func TotalBalance(accounts []core.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// CategoryTotals sums amounts per category regardless of transaction type, so
// income and expense in one category merge into a single magnitude. Entries
// follow the order each category first appears in txns.
func CategoryTotals(txns []core.Transaction) []CategoryTotal {
	acc := newOrderedMap[int64, decimal.Decimal](len(txns))
	for _, tx := range txns {
		v := acc.at(tx.CategoryID, zero)
		*v = v.Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, acc.len())
	acc.each(func(id int64, total decimal.Decimal) {
		out = append(out, CategoryTotal{CategoryID: id, Total: total})
	})
	return out
}

// MonthlyIncomeExpense buckets by the label the labeler gives each transaction's
// month, in first-appearance order. Labels repeat across years, so a range that
// spans January twice yields one "Jan" bucket; callers wanting chronological
// output sort txns first.
func MonthlyIncomeExpense(txns []core.Transaction, label MonthLabeler) []MonthBucket {
	if label == nil {
		label = ShortMonth
	}
	acc := newOrderedMap[string, flow](len(txns))
	for _, tx := range txns {
		acc.at(label(tx.DateTime.Time), newFlow).add(tx)
	}

	out := make([]MonthBucket, 0, acc.len())
	acc.each(func(month string, f flow) {
		out = append(out, MonthBucket{Month: month, Income: f.income, Expense: f.expense})
	})
	return out
}

// DailyIncomeExpense buckets by calendar date (YYYY-MM-DD) in first-appearance order.
func DailyIncomeExpense(txns []core.Transaction) []DailyBucket {
	acc := newOrderedMap[string, flow](len(txns))
	for _, tx := range txns {
		acc.at(tx.DateTime.Day(), newFlow).add(tx)
	}

	out := make([]DailyBucket, 0, acc.len())
	acc.each(func(day string, f flow) {
		out = append(out, DailyBucket{Date: day, Income: f.income, Expense: f.expense})
	})
	return out
}

// BalanceTrend is the running sum of income minus expense over buckets, which
// must already be in chronological order.
func BalanceTrend(buckets []DailyBucket) []BalancePoint {
	out := make([]BalancePoint, 0, len(buckets))
	balance := decimal.Zero
	for _, b := range buckets {
		balance = balance.Add(b.Income).Sub(b.Expense)
		out = append(out, BalancePoint{Date: b.Date, Balance: balance})
	}
	return out
}

// Utilization is currentAmount / limit * 100, uncapped. A zero limit is the
// caller's to handle: it yields +Inf for a non-zero spend and NaN otherwise.
func Utilization(b core.Budget) float64 {
	if b.Limit.IsZero() {
		if b.CurrentAmount.IsZero() {
			return math.NaN()
		}
		return math.Inf(b.CurrentAmount.Sign())
	}
	return b.CurrentAmount.Mul(hundred).Div(b.Limit).InexactFloat64()
}

// NearLimit flags a utilization percentage strictly above NearLimitThreshold.
func NearLimit(pct float64) bool {
	return pct > NearLimitThreshold
}

// OrganizeCategoryTree partitions a flat list into roots, each carrying its direct
// children. Roots keep first-appearance order; duplicate ids keep the first entry.
// Categories whose parent is not a root in the list are dropped, and an id placed
// as a root or under one root never appears anywhere else.
func OrganizeCategoryTree(categories []core.Category) []CategoryNode {
	roots := newOrderedMap[int64, CategoryNode](len(categories))
	for _, c := range categories {
		if c.IsRoot() && !roots.has(c.ID) {
			node := CategoryNode{Category: c, Children: []core.Category{}}
			roots.at(c.ID, func() CategoryNode { return node })
		}
	}

	placed := make(map[int64]struct{}, len(categories))
	for _, c := range categories {
		if c.IsRoot() || !roots.has(*c.ParentID) {
			continue
		}
		if _, dup := placed[c.ID]; dup || roots.has(c.ID) {
			continue
		}
		placed[c.ID] = struct{}{}
		root := roots.at(*c.ParentID, nil)
		root.Children = append(root.Children, c)
	}

	out := make([]CategoryNode, 0, roots.len())
	roots.each(func(_ int64, n CategoryNode) {
		out = append(out, n)
	})
	return out
}

// FlattenCategoryTree lists each root followed by its children.
func FlattenCategoryTree(tree []CategoryNode) []core.Category {
	var out []core.Category
	for _, n := range tree {
		out = append(out, n.Category)
		out = append(out, n.Children...)
	}
	return out
}

// FilterRange keeps transactions whose timestamp lies within rng, ends included.
func FilterRange(txns []core.Transaction, rng core.DateRange) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, tx := range txns {
		if rng.Contains(tx.DateTime.Time) {
			out = append(out, tx)
		}
	}
	return out
}

// SortChronological returns a copy of txns ordered by timestamp; ties keep input order.
func SortChronological(txns []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txns...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateTime.Before(out[j].DateTime.Time)
	})
	return out
}

// BudgetCategoryTotals sums expense per budgeted category. Every budgeted category gets
// an entry, zero when it saw no spending, in budget order.
func BudgetCategoryTotals(budgets []core.Budget, txns []core.Transaction) []CategoryTotal {
	acc := newOrderedMap[int64, decimal.Decimal](len(budgets))
	for _, b := range budgets {
		acc.at(b.CategoryID, zero)
	}
	for _, tx := range txns {
		if tx.Type != core.Expense || !acc.has(tx.CategoryID) {
			continue
		}
		v := acc.at(tx.CategoryID, zero)
		*v = v.Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, acc.len())
	acc.each(func(id int64, total decimal.Decimal) {
		out = append(out, CategoryTotal{CategoryID: id, Total: total})
	})
	return out
}

// Totals sums income and expense over txns.
func Totals(txns []core.Transaction) Summary {
	var f flow = newFlow()
	for _, tx := range txns {
		f.add(tx)
	}
	return Summary{Income: f.income, Expense: f.expense, Net: f.income.Sub(f.expense)}
}

type flow struct {
	income  decimal.Decimal
	expense decimal.Decimal
}

func newFlow() flow {
	return flow{income: decimal.Zero, expense: decimal.Zero}
}

func (f *flow) add(tx core.Transaction) {
	switch tx.Type {
	case core.Income:
		f.income = f.income.Add(tx.Amount)
	case core.Expense:
		f.expense = f.expense.Add(tx.Amount)
	}
}

func zero() decimal.Decimal {
	return decimal.Zero
}

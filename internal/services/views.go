package services

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/sheets"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type (
	CategoryLine struct {
		CategoryID int64
		Name       string
		Total      decimal.Decimal
	}

	Dashboard struct {
		Range          core.DateRange
		TotalBalance   decimal.Decimal
		Accounts       []core.Account
		Totals         ledger.Summary
		Monthly        []ledger.MonthBucket
		Daily          []ledger.DailyBucket
		Trend          []ledger.BalancePoint
		CategoryTotals []CategoryLine
		Unread         int
	}

	Report struct {
		Range          core.DateRange
		Totals         ledger.Summary
		Monthly        []ledger.MonthBucket
		Daily          []ledger.DailyBucket
		Trend          []ledger.BalancePoint
		CategoryTotals []CategoryLine
	}

	BudgetLine struct {
		core.Budget
		CategoryName string
		Utilization  float64
		NearLimit    bool
	}

	AccountsView struct {
		Accounts     []core.Account
		TotalBalance decimal.Decimal
	}

	TransactionsView struct {
		Range        core.DateRange
		Transactions []core.Transaction
		Categories   map[int64]string
		Totals       ledger.Summary
	}

	NotificationLine struct {
		core.Notification
		Ago  string
		Kind notify.Kind
	}

	NotificationsView struct {
		Items     []NotificationLine
		Unread    int
		HasUnread bool
	}
)

// UtilizationLabel renders a utilization percentage, or "n/a" for a zero limit.
func (b BudgetLine) UtilizationLabel() string {
	if math.IsNaN(b.Utilization) || math.IsInf(b.Utilization, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(b.Utilization, 'f', 1, 64) + "%"
}

// LoadDashboard fetches transactions, accounts, categories and notifications in
// parallel and derives every dashboard chart from them.
func (s *LedgerService) LoadDashboard(ctx context.Context, rng core.DateRange) (*Dashboard, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	var (
		txns     []core.Transaction
		accounts []core.Account
		cats     []core.Category
		notes    []core.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.backend.Transactions(gctx, user.UserID, rng)
		return wrapFetch("transactions", err)
	})
	g.Go(func() error {
		var err error
		accounts, err = s.backend.Accounts(gctx, user.UserID)
		return wrapFetch("accounts", err)
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx)
		return wrapFetch("categories", err)
	})
	g.Go(func() error {
		var err error
		notes, err = s.backend.Notifications(gctx, user.UserID)
		return wrapFetch("notifications", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	txns = ledger.SortChronological(ledger.FilterRange(txns, rng))
	daily := ledger.DailyIncomeExpense(txns)

	d := &Dashboard{
		Range:          rng,
		TotalBalance:   ledger.TotalBalance(accounts),
		Accounts:       accounts,
		Totals:         ledger.Totals(txns),
		Monthly:        ledger.MonthlyIncomeExpense(txns, ledger.ShortMonth),
		Daily:          daily,
		Trend:          ledger.BalanceTrend(daily),
		CategoryTotals: categoryLines(ledger.CategoryTotals(txns), cats),
		Unread:         notify.UnreadCount(notes),
	}
	s.logger.DebugContext(ctx, "Dashboard loaded", log.FieldOperation, log.OpFetch, log.FieldCount, len(txns))
	return d, nil
}

// LoadReport derives the report charts for rng.
func (s *LedgerService) LoadReport(ctx context.Context, rng core.DateRange) (*Report, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	var (
		txns []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.backend.Transactions(gctx, user.UserID, rng)
		return wrapFetch("transactions", err)
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx)
		return wrapFetch("categories", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	txns = ledger.SortChronological(ledger.FilterRange(txns, rng))
	daily := ledger.DailyIncomeExpense(txns)
	return &Report{
		Range:          rng,
		Totals:         ledger.Totals(txns),
		Monthly:        ledger.MonthlyIncomeExpense(txns, ledger.ShortMonth),
		Daily:          daily,
		Trend:          ledger.BalanceTrend(daily),
		CategoryTotals: categoryLines(ledger.CategoryTotals(txns), cats),
	}, nil
}

// ExportReport writes the daily trend for rng to the configured sheet.
func (s *LedgerService) ExportReport(ctx context.Context, rng core.DateRange, sheet string) (string, error) {
	if s.reports == nil {
		return "", ErrExportDisabled
	}
	report, err := s.LoadReport(ctx, rng)
	if err != nil {
		return "", err
	}

	rows := make([]sheets.ReportRow, 0, len(report.Daily))
	for i, b := range report.Daily {
		rows = append(rows, sheets.ReportRow{
			Date:    b.Date,
			Income:  b.Income,
			Expense: b.Expense,
			Balance: report.Trend[i].Balance,
		})
	}

	ref, err := s.reports.WriteReport(ctx, sheet, rows)
	if err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}
	return ref, nil
}

// LoadBudgets pairs each budget with its category name and utilization.
func (s *LedgerService) LoadBudgets(ctx context.Context) ([]BudgetLine, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}

	var (
		budgets []core.Budget
		cats    []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.backend.Budgets(gctx, user.UserID)
		return wrapFetch("budgets", err)
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx)
		return wrapFetch("categories", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := categoryNames(cats)
	lines := make([]BudgetLine, 0, len(budgets))
	for _, b := range budgets {
		pct := ledger.Utilization(b)
		lines = append(lines, BudgetLine{
			Budget:       b,
			CategoryName: nameOf(names, b.CategoryID),
			Utilization:  pct,
			NearLimit:    ledger.NearLimit(pct),
		})
	}
	return lines, nil
}

// LoadBudgetSpending sums expense per budgeted category over rng, zero where nothing was spent.
func (s *LedgerService) LoadBudgetSpending(ctx context.Context, rng core.DateRange) ([]CategoryLine, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}

	var (
		budgets []core.Budget
		txns    []core.Transaction
		cats    []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.backend.Budgets(gctx, user.UserID)
		return wrapFetch("budgets", err)
	})
	g.Go(func() error {
		var err error
		txns, err = s.backend.Transactions(gctx, user.UserID, rng)
		return wrapFetch("transactions", err)
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx)
		return wrapFetch("categories", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := ledger.BudgetCategoryTotals(budgets, ledger.FilterRange(txns, rng))
	return categoryLines(totals, cats), nil
}

// LoadCategories returns the category forest.
func (s *LedgerService) LoadCategories(ctx context.Context) ([]ledger.CategoryNode, error) {
	if _, err := s.Session(); err != nil {
		return nil, err
	}
	cats, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, wrapFetch("categories", err)
	}
	return ledger.OrganizeCategoryTree(cats), nil
}

func (s *LedgerService) LoadAccounts(ctx context.Context) (*AccountsView, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}
	accounts, err := s.backend.Accounts(ctx, user.UserID)
	if err != nil {
		return nil, wrapFetch("accounts", err)
	}
	return &AccountsView{Accounts: accounts, TotalBalance: ledger.TotalBalance(accounts)}, nil
}

// LoadTransactions lists transactions in rng, oldest first, with category names.
func (s *LedgerService) LoadTransactions(ctx context.Context, rng core.DateRange) (*TransactionsView, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	var (
		txns []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.backend.Transactions(gctx, user.UserID, rng)
		return wrapFetch("transactions", err)
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx)
		return wrapFetch("categories", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	txns = ledger.SortChronological(ledger.FilterRange(txns, rng))
	return &TransactionsView{
		Range:        rng,
		Transactions: txns,
		Categories:   categoryNames(cats),
		Totals:       ledger.Totals(txns),
	}, nil
}

// LoadNotifications lists notifications with their age relative to the service clock.
func (s *LedgerService) LoadNotifications(ctx context.Context) (*NotificationsView, error) {
	user, err := s.Session()
	if err != nil {
		return nil, err
	}
	notes, err := s.backend.Notifications(ctx, user.UserID)
	if err != nil {
		return nil, wrapFetch("notifications", err)
	}

	now := s.now()
	view := &NotificationsView{
		Items:     make([]NotificationLine, 0, len(notes)),
		Unread:    notify.UnreadCount(notes),
		HasUnread: notify.HasUnread(notes),
	}
	for _, n := range notes {
		view.Items = append(view.Items, NotificationLine{
			Notification: n,
			Ago:          notify.RelativeTime(n.Timestamp.Time, now),
			Kind:         notify.KindOf(n.Type),
		})
	}
	return view, nil
}

// DefaultRange is the window views open with.
func (s *LedgerService) DefaultRange() core.DateRange {
	return core.LastMonth(s.now())
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

func categoryNames(cats []core.Category) map[int64]string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		if _, dup := names[c.ID]; !dup {
			names[c.ID] = c.Name
		}
	}
	return names
}

func nameOf(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "#" + strconv.FormatInt(id, 10)
}

func categoryLines(totals []ledger.CategoryTotal, cats []core.Category) []CategoryLine {
	names := categoryNames(cats)
	out := make([]CategoryLine, 0, len(totals))
	for _, t := range totals {
		out = append(out, CategoryLine{CategoryID: t.CategoryID, Name: nameOf(names, t.CategoryID), Total: t.Total})
	}
	return out
}

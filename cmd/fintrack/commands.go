package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func rangeFlags(fs *flag.FlagSet) (from, to *string) {
	from = fs.String("from", "", "Start date YYYY-MM-DD (default: one month before -to)")
	to = fs.String("to", "", "End date YYYY-MM-DD (default: today)")
	return from, to
}

// resolveRange expands the -from/-to flags into whole days, defaulting to the last month.
func resolveRange(svc *services.LedgerService, from, to string) (core.DateRange, error) {
	end := svc.Now()
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.Parse(core.DayLayout, to)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid -to date %q: want YYYY-MM-DD", to)
		}
		end = t
	}
	start := end.AddDate(0, -1, 0)
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.Parse(core.DayLayout, from)
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid -from date %q: want YYYY-MM-DD", from)
		}
		start = t
	}
	rng := core.DayRange(start, end)
	if err := rng.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return rng, nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "login")
	user := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"user": *user}); err != nil {
		return err
	}

	pw, err := passwordOrPrompt(e, *password)
	if err != nil {
		return err
	}
	s, err := e.app.Service.Login(ctx, *user, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Logged in as %s (user %d)\n", s.Username, s.UserID)
	return nil
}

func runRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "register")
	user := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"user": *user}); err != nil {
		return err
	}

	pw, err := passwordOrPrompt(e, *password)
	if err != nil {
		return err
	}
	msg, err := e.app.Service.Register(ctx, *user, pw)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = fmt.Sprintf("User %s registered", *user)
	}
	fmt.Fprintln(e.stdout, msg)
	fmt.Fprintln(e.stdout, "Run 'fintrack login' to sign in.")
	return nil
}

func runLogout(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "logout").Parse(args); err != nil {
		return err
	}
	if err := e.app.Service.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Logged out")
	return nil
}

func runWhoami(_ context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "whoami").Parse(args); err != nil {
		return err
	}
	s, err := e.app.Service.Session()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s (user %d)\n", s.Username, s.UserID)
	if s.Expiry != nil {
		fmt.Fprintf(e.stdout, "Session expires %s\n", s.Expiry.Format(time.RFC3339))
	}
	return nil
}

func runDashboard(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "dashboard")
	from, to := rangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rng, err := resolveRange(e.app.Service, *from, *to)
	if err != nil {
		return err
	}

	d, err := e.app.Service.LoadDashboard(ctx, rng)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "Period: %s\n", formatRange(d.Range))
	fmt.Fprintf(e.stdout, "Total balance: %s across %s\n", core.FormatAmount(d.TotalBalance), plural(len(d.Accounts), "account"))
	if d.Unread > 0 {
		fmt.Fprintf(e.stdout, "You have %s\n", plural(d.Unread, "unread notification"))
	}
	fmt.Fprintln(e.stdout)
	renderSummary(e.stdout, d.Totals)
	renderMonthly(e.stdout, d.Monthly)
	renderCategoryLines(e.stdout, d.CategoryTotals)
	return nil
}

func runAccounts(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "accounts").Parse(args); err != nil {
		return err
	}
	view, err := e.app.Service.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	if len(view.Accounts) == 0 {
		fmt.Fprintln(e.stdout, "No accounts yet. Create one with 'fintrack add-account'.")
		return nil
	}

	tw := newTable(e.stdout)
	row(tw, "ID", "NAME", "TYPE", "BALANCE")
	for _, a := range view.Accounts {
		row(tw, a.ID, a.Name, a.Type, a.Balance)
	}
	row(tw, "", "Total", "", view.TotalBalance)
	return tw.Flush()
}

func runAddAccount(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add-account")
	name := fs.String("name", "", "Account name")
	typ := fs.String("type", string(core.Bank), "Account type: BANK, MOBILE_MONEY or CASH")
	balance := fs.String("balance", "0", "Opening balance")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"name": *name}); err != nil {
		return err
	}

	amount, err := core.ParseAmount(*balance)
	if err != nil {
		return fmt.Errorf("invalid -balance %q: %w", *balance, err)
	}
	created, err := e.app.Service.CreateAccount(ctx, core.Account{
		Name:    strings.TrimSpace(*name),
		Type:    core.AccountType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*typ), "-", "_"))),
		Balance: amount,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Account %s created (#%d)\n", created.Name, created.ID)
	return nil
}

func runTransactions(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "transactions")
	from, to := rangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rng, err := resolveRange(e.app.Service, *from, *to)
	if err != nil {
		return err
	}

	view, err := e.app.Service.LoadTransactions(ctx, rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Period: %s\n", formatRange(view.Range))
	if len(view.Transactions) == 0 {
		fmt.Fprintln(e.stdout, "No transactions in this period.")
		return nil
	}

	tw := newTable(e.stdout)
	row(tw, "DATE", "TYPE", "AMOUNT", "CATEGORY", "DESCRIPTION")
	for _, t := range view.Transactions {
		category, ok := view.Categories[t.CategoryID]
		if !ok {
			category = fmt.Sprintf("#%d", t.CategoryID)
		}
		row(tw, t.DateTime.Format(core.WireLayout), t.Type, t.Amount, category, t.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout)
	renderSummary(e.stdout, view.Totals)
	return nil
}

func runAddTransaction(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add-transaction")
	amount := fs.String("amount", "", "Amount, e.g. 12.50")
	typ := fs.String("type", "expense", "income or expense")
	account := fs.Int64("account", 0, "Account ID")
	category := fs.Int64("category", 0, "Category ID")
	desc := fs.String("desc", "", "Description")
	date := fs.String("date", "", "Date YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"amount": *amount, "desc": *desc}); err != nil {
		return err
	}

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("invalid -amount %q: %w", *amount, err)
	}
	when := core.DateTime{Time: e.app.Service.Now().Truncate(time.Second)}
	if *date != "" {
		if when, err = core.ParseDateTime(*date); err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
	}

	created, err := e.app.Service.CreateTransaction(ctx, core.Transaction{
		Amount:      value,
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(*typ))),
		AccountID:   *account,
		CategoryID:  *category,
		Description: strings.TrimSpace(*desc),
		DateTime:    when,
	})
	var rejected *services.RejectedError
	if errors.As(err, &rejected) {
		fmt.Fprintf(e.stdout, "Transaction rejected: %s\n", rejected.Message)
		fmt.Fprintln(e.stdout, "The reason was saved to your notifications.")
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Recorded %s of %s on %s (#%d)\n",
		strings.ToLower(string(created.Type)), core.FormatAmount(created.Amount), created.DateTime.Day(), created.ID)
	return nil
}

func runCategories(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "categories").Parse(args); err != nil {
		return err
	}
	tree, err := e.app.Service.LoadCategories(ctx)
	if err != nil {
		return err
	}
	renderTree(e.stdout, tree)
	return nil
}

func runAddCategory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add-category")
	name := fs.String("name", "", "Category name")
	parent := fs.Int64("parent", 0, "Parent category ID (0 for a top-level category)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"name": *name}); err != nil {
		return err
	}

	c := core.Category{Name: strings.TrimSpace(*name)}
	if *parent != 0 {
		c.ParentID = parent
	}
	created, err := e.app.Service.CreateCategory(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Category %s created (#%d)\n", created.Name, created.ID)
	return nil
}

func runBudgets(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "budgets")
	spending := fs.Bool("spending", false, "Also sum expenses per budgeted category over the date range")
	from, to := rangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	lines, err := e.app.Service.LoadBudgets(ctx)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintln(e.stdout, "No budgets yet. Create one with 'fintrack add-budget'.")
		return nil
	}

	tw := newTable(e.stdout)
	row(tw, "CATEGORY", "LIMIT", "SPENT", "USED", "STATUS")
	for _, b := range lines {
		status := "ok"
		if b.NearLimit {
			status = "near limit"
		}
		row(tw, b.CategoryName, b.Limit, b.CurrentAmount, b.UtilizationLabel(), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !*spending {
		return nil
	}
	rng, err := resolveRange(e.app.Service, *from, *to)
	if err != nil {
		return err
	}
	totals, err := e.app.Service.LoadBudgetSpending(ctx, rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "\nSpending %s\n", formatRange(rng))
	renderCategoryLines(e.stdout, totals)
	return nil
}

func runAddBudget(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add-budget")
	category := fs.Int64("category", 0, "Category ID")
	limit := fs.String("limit", "", "Spending limit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlags(fs, map[string]string{"limit": *limit}); err != nil {
		return err
	}

	value, err := core.ParseAmount(*limit)
	if err != nil {
		return fmt.Errorf("invalid -limit %q: %w", *limit, err)
	}
	created, err := e.app.Service.CreateBudget(ctx, core.Budget{CategoryID: *category, Limit: value})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Budget of %s created for category #%d (#%d)\n", core.FormatAmount(created.Limit), created.CategoryID, created.ID)
	return nil
}

func runReports(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "reports")
	from, to := rangeFlags(fs)
	export := fs.Bool("export", false, "Write the daily trend to Google Sheets")
	sheet := fs.String("sheet", e.app.Config.GoogleSheetName, "Sheet tab to export to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rng, err := resolveRange(e.app.Service, *from, *to)
	if err != nil {
		return err
	}

	if *export {
		ref, err := e.app.Service.ExportReport(ctx, rng, *sheet)
		if errors.Is(err, services.ErrExportDisabled) {
			return errors.New("report export is not configured: set GOOGLE_SPREADSHEET_ID and service account credentials")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Report for %s exported to %s\n", formatRange(rng), ref)
		return nil
	}

	report, err := e.app.Service.LoadReport(ctx, rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Period: %s\n\n", formatRange(report.Range))
	renderSummary(e.stdout, report.Totals)
	renderMonthly(e.stdout, report.Monthly)
	renderCategoryLines(e.stdout, report.CategoryTotals)
	renderTrend(e.stdout, report.Daily, report.Trend)
	return nil
}

func runNotifications(ctx context.Context, e *env, args []string) error {
	if err := newFlagSet(e, "notifications").Parse(args); err != nil {
		return err
	}
	view, err := e.app.Service.LoadNotifications(ctx)
	if err != nil {
		return err
	}
	if len(view.Items) == 0 {
		fmt.Fprintln(e.stdout, "No notifications.")
		return nil
	}
	if view.HasUnread {
		fmt.Fprintf(e.stdout, "%s\n\n", plural(view.Unread, "unread notification"))
	}

	tw := newTable(e.stdout)
	row(tw, "", "WHEN", "KIND", "MESSAGE")
	for _, n := range view.Items {
		marker := ""
		if !n.Read {
			marker = "*"
		}
		row(tw, marker, n.Ago, n.Kind, n.Message)
	}
	return tw.Flush()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"fintrack/internal/cli"
	"fintrack/internal/guard"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

var errLoginRequired = errors.New("not logged in, run 'fintrack login' first")

// command is one CLI verb bound to the view route the guard checks.
type command struct {
	route   string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

// env is what a command sees: the wired application and the process streams.
type env struct {
	app    *cli.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

var commands = map[string]command{
	"login":           {route: guard.LoginRoute, summary: "Sign in and remember the session", run: runLogin},
	"register":        {route: guard.RegisterRoute, summary: "Create a user", run: runRegister},
	"logout":          {route: "/", summary: "Sign out and forget the session", run: runLogout},
	"whoami":          {route: "/", summary: "Show the signed-in user", run: runWhoami},
	"dashboard":       {route: "/", summary: "Balances, flows and category totals", run: runDashboard},
	"accounts":        {route: "/accounts", summary: "List accounts", run: runAccounts},
	"add-account":     {route: "/accounts", summary: "Create an account", run: runAddAccount},
	"transactions":    {route: "/transactions", summary: "List transactions in a date range", run: runTransactions},
	"add-transaction": {route: "/transactions", summary: "Record a transaction", run: runAddTransaction},
	"categories":      {route: "/categories", summary: "Show the category tree", run: runCategories},
	"add-category":    {route: "/categories", summary: "Create a category", run: runAddCategory},
	"budgets":         {route: "/budgets", summary: "Budgets with utilization", run: runBudgets},
	"add-budget":      {route: "/budgets", summary: "Create a budget", run: runAddBudget},
	"reports":         {route: "/reports", summary: "Income, expense and balance trend; -export to Google Sheets", run: runReports},
	"notifications":   {route: "/", summary: "List notifications", run: runNotifications},
	"watch":           {route: "/", summary: "Stream activity events from the broker", run: runWatch},
}

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		if len(args) == 0 {
			return errors.New("missing command")
		}
		return nil
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(stderr, cfg.LogLevel)

	ctx := log.CommandContext(log.NewContext(context.Background(), logger), name)
	app, err := cli.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close application", log.FieldError, err)
		}
	}()

	decision := guard.Evaluate(cmd.route, app.Session)
	if !decision.Allow {
		log.FromContext(ctx).Debug("Route guarded",
			log.FieldRoute, cmd.route,
			"redirect", decision.RedirectTo,
			"state", decision.State.String())
		return errLoginRequired
	}

	err = cmd.run(ctx, &env{app: app, stdin: stdin, stdout: stdout, stderr: stderr}, args[1:])
	stats := app.Client.Stats()
	log.FromContext(ctx).Debug("Command finished",
		"requests", stats.TotalRequests,
		"failed_requests", stats.FailedRequests,
		"last_duration_us", stats.LastDurationUs)
	if errors.Is(err, services.ErrNotAuthenticated) {
		return errLoginRequired
	}
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fintrack <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'fintrack <command> -h' for the flags of a command.")
}

// newFlagSet builds the flag set for a command, writing usage to stderr.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func requireFlags(fs *flag.FlagSet, values map[string]string) error {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	fs.Usage()
	return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
}

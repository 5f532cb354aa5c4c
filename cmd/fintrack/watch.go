package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"

	"golang.org/x/sync/errgroup"
)

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "watch")
	all := fs.Bool("all", false, "Show events of every user, not only yours")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.app.Events == nil {
		return errors.New("activity events are disabled: set AMQP_URL to a reachable broker")
	}
	me, err := e.app.Service.Session()
	if err != nil {
		return err
	}

	ctx, cancel := cli.GracefulShutdown(ctx, e.app.Logger)
	defer cancel()

	janitor := cache.NewJanitor(e.app.Logger)
	janitor.Register(e.app.Cache)
	interval := e.app.Config.CacheTTL
	if interval <= 0 {
		interval = time.Minute
	}

	fmt.Fprintln(e.stdout, "Watching activity events, press Ctrl+C to stop")

	userID := me.UserID
	if *all {
		userID = 0
	}

	var mu sync.Mutex
	handle := func(ctx context.Context, ev *amqp.ActivityEvent) error {
		// A write from another session makes cached views stale.
		if ev.Type == amqp.EventTransactionCreated {
			e.app.Client.Purge()
		}
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintln(e.stdout, formatEvent(ev))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		janitor.Run(gctx, interval)
		return nil
	})
	g.Go(func() error {
		return e.app.Events.Consume(gctx, userID, handle)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.FromContext(ctx).Debug("Watch stopped")
		return nil
	}
	return err
}

func formatEvent(ev *amqp.ActivityEvent) string {
	line := fmt.Sprintf("%s  %-22s user %d", ev.Timestamp.Format(core.WireLayout), ev.Type, ev.UserID)
	if ev.Message != "" {
		line += "  " + ev.Message
	}
	return line
}

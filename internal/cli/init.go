// Package cli wires configuration, persistence and remote clients into the
// application every command runs against.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/api"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/session"
	gsheet "fintrack/internal/sheets/google"
)

// App is everything a command needs, built once per invocation.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Session *session.Container
	Client  *api.Client
	Cache   *cache.LRUCache[[]byte]
	Service *services.LedgerService
	// Events is nil when AMQP is not configured or unreachable.
	Events *amqp.Client

	slot *backend.SlotResult
}

// SetupLogger initializes structured logging on w at the given level.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(w io.Writer, level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap opens the session slot, restores any saved session and builds the
// API client and ledger service. extra is applied after the defaults.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, extra ...services.Option) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}

	slotCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	slot, err := backend.NewFactory(logger).CreateSlot(ctx, slotCfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, slot: slot}
	app.Session = session.NewContainer(slot.Slot,
		session.WithKey(cfg.SessionKey),
		session.WithLogger(logger))
	app.Cache = cache.NewLRUCache[[]byte](cfg.CacheSize, cfg.CacheTTL)

	client, err := api.NewClient(cfg.APIURL, app.Session,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithCache(app.Cache),
		api.WithLogger(logger),
		api.OnUnauthorized(func(ctx context.Context) {
			if err := app.Session.Clear(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to clear rejected session", log.FieldError, err)
			}
		}))
	if err != nil {
		_ = slot.Close()
		return nil, err
	}
	app.Client = client
	app.Session.OnClear(func(context.Context) { client.Purge() })
	app.Session.Restore(ctx)

	opts := []services.Option{services.WithLogger(logger)}

	if cfg.EventsEnabled() {
		events, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without activity events", log.FieldError, err)
		} else {
			app.Events = events
			opts = append(opts, services.WithPublisher(events))
		}
	}

	if cfg.ExportEnabled() {
		writer, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize Google Sheets client, report export disabled", log.FieldError, err)
		} else {
			opts = append(opts, services.WithReportWriter(writer))
		}
	}

	app.Service = services.NewLedgerService(client, app.Session, append(opts, extra...)...)
	return app, nil
}

// Close releases the broker connection and the session slot.
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if err := a.slot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}
	return errors.Join(errs...)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

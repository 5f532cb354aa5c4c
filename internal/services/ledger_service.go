// Package services runs the tasks behind every command: fetch what a view
// needs from the backend, then hand it to the ledger engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/sheets"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrExportDisabled   = errors.New("report export is not configured")
)

// Backend is the remote ledger. *api.Client satisfies it.
type Backend interface {
	Register(ctx context.Context, creds api.Credentials) (string, error)
	Login(ctx context.Context, creds api.Credentials) (core.Session, error)
	Logout(ctx context.Context) error
	Accounts(ctx context.Context, userID int64) ([]core.Account, error)
	CreateAccount(ctx context.Context, a api.NewAccount) (core.Account, error)
	Transactions(ctx context.Context, userID int64, rng core.DateRange) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, t api.NewTransaction) (core.Transaction, error)
	Categories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c api.NewCategory) (core.Category, error)
	Budgets(ctx context.Context, userID int64) ([]core.Budget, error)
	CreateBudget(ctx context.Context, b api.NewBudget) (core.Budget, error)
	Notifications(ctx context.Context, userID int64) ([]core.Notification, error)
	CreateNotification(ctx context.Context, n api.NewNotification) error
}

// Publisher emits activity events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.ActivityEvent) error
}

// RejectedError is a write the backend refused for a business reason.
type RejectedError struct {
	Message string
	Err     error
}

func (e *RejectedError) Error() string { return "rejected: " + e.Message }
func (e *RejectedError) Unwrap() error { return e.Err }

// LedgerService orchestrates backend calls, the session and the ledger engine.
type LedgerService struct {
	backend Backend
	session *session.Container
	events  Publisher
	reports sheets.ReportWriter
	logger  *log.Logger
	now     func() time.Time
}

type Option func(*LedgerService)

// WithPublisher enables activity events.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.events = p }
}

// WithReportWriter enables report export.
func WithReportWriter(w sheets.ReportWriter) Option {
	return func(s *LedgerService) { s.reports = w }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentServices)
		}
	}
}

// WithClock replaces time.Now for relative times and default ranges.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLedgerService(backend Backend, sess *session.Container, opts ...Option) *LedgerService {
	s := &LedgerService{
		backend: backend,
		session: sess,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock.
func (s *LedgerService) Now() time.Time {
	return s.now()
}

// Session returns the current session or ErrNotAuthenticated.
func (s *LedgerService) Session() (core.Session, error) {
	cur, err := s.session.Require()
	if errors.Is(err, session.ErrNoSession) {
		return core.Session{}, ErrNotAuthenticated
	}
	return cur, err
}

// Login authenticates, persists the session and announces it.
func (s *LedgerService) Login(ctx context.Context, username, password string) (core.Session, error) {
	sess, err := s.backend.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return core.Session{}, fmt.Errorf("login: %w", err)
	}
	if err := s.session.Set(ctx, sess); err != nil {
		return core.Session{}, err
	}
	s.publish(ctx, amqp.NewActivityEvent(amqp.EventLogin, sess.UserID, sess.Username))
	return sess, nil
}

func (s *LedgerService) Register(ctx context.Context, username, password string) (string, error) {
	msg, err := s.backend.Register(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return msg, nil
}

// Logout tells the backend, then drops the local session whatever the backend said.
func (s *LedgerService) Logout(ctx context.Context) error {
	cur := s.session.Current()
	if cur == nil {
		return s.session.Clear(ctx)
	}

	if err := s.backend.Logout(ctx); err != nil {
		s.logger.WarnContext(ctx, "Backend logout failed, clearing local session anyway", log.FieldError, err)
	}
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewActivityEvent(amqp.EventLogout, cur.UserID, cur.Username))
	return nil
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	user, err := s.Session()
	if err != nil {
		return core.Account{}, err
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	created, err := s.backend.CreateAccount(ctx, api.NewAccount{
		Name:        a.Name,
		Type:        a.Type,
		Balance:     a.Balance,
		OwnerUserID: user.UserID,
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if _, err := s.Session(); err != nil {
		return core.Category{}, err
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.backend.CreateCategory(ctx, api.NewCategory{Name: c.Name, ParentID: c.ParentID})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *LedgerService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	user, err := s.Session()
	if err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := s.backend.CreateBudget(ctx, api.NewBudget{
		CategoryID:  b.CategoryID,
		Limit:       b.Limit,
		OwnerUserID: user.UserID,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

// CreateTransaction records a transaction. When the backend rejects it with a
// message, the message is saved as a notification and a RejectedError returned.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	user, err := s.Session()
	if err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.backend.CreateTransaction(ctx, api.NewTransaction{
		Amount:      t.Amount,
		Type:        t.Type,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Description: t.Description,
		DateTime:    t.DateTime,
	})
	if err != nil {
		msg, rejected := api.Rejection(err)
		if !rejected {
			return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
		}

		if nerr := s.backend.CreateNotification(ctx, api.NewNotification{UserID: user.UserID, Message: msg}); nerr != nil {
			s.logger.ErrorContext(ctx, "Failed to record rejection notice", log.FieldError, nerr, log.FieldUserID, user.UserID)
		}
		s.publish(ctx, amqp.NewActivityEvent(amqp.EventTransactionRejected, user.UserID, msg))
		return core.Transaction{}, &RejectedError{Message: msg, Err: err}
	}

	s.publish(ctx, amqp.NewActivityEvent(amqp.EventTransactionCreated, user.UserID, t.Description))
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, user.UserID,
		"amount", core.FormatAmount(t.Amount),
		"type", t.Type)
	return created, nil
}

// publish emits ev when a publisher is configured. Failures are logged, never returned:
// the backend write already happened.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.ActivityEvent) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "No event publisher, skipping activity event", log.FieldEvent, ev.Type)
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish activity event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, ev.Type,
			log.FieldError, err)
	}
}

// Package session holds who is logged in and with what credential, durable
// across restarts through an injected storage slot.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultKey is the well-known slot key the session is persisted under.
const DefaultKey = "userInfo"

var ErrNoSession = errors.New("no session")

// Container is the single source of truth for the current session.
// Every mutation is written through to the slot before it returns.
type Container struct {
	mu      sync.Mutex
	slot    storage.Slot
	key     string
	current *core.Session
	logger  *log.Logger

	onClear []func(ctx context.Context)
}

type Option func(*Container)

// WithKey overrides the slot key.
func WithKey(key string) Option {
	return func(c *Container) {
		if key != "" {
			c.key = key
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentSession)
		}
	}
}

func NewContainer(slot storage.Slot, opts ...Option) *Container {
	c := &Container{
		slot:   slot,
		key:    DefaultKey,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnClear registers fn to run after every Clear, e.g. to drop cached user data.
func (c *Container) OnClear(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClear = append(c.onClear, fn)
}

// Restore loads the persisted session and makes it current. Missing, unreadable or
// malformed state all mean "no session"; none of them is an error.
func (c *Container) Restore(ctx context.Context) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	data, err := c.slot.Load(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to read persisted session", log.FieldKey, c.key, log.FieldError, err)
		return nil
	}

	var s core.Session
	if err := json.Unmarshal(data, &s); err != nil {
		c.logger.WarnContext(ctx, "Ignoring malformed persisted session", log.FieldKey, c.key, log.FieldError, err)
		return nil
	}

	c.current = &s
	c.logger.DebugContext(ctx, "Session restored", log.FieldUserID, s.UserID)
	out := s.Clone()
	return &out
}

// Set replaces the current session and persists it.
func (c *Container) Set(ctx context.Context, s core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s = s.Clone()
	if err := c.persist(ctx, s); err != nil {
		return err
	}
	c.current = &s
	c.logger.InfoContext(ctx, "Session set", log.NewFields().WithOperation(log.OpSet).WithUser(s.UserID, s.Username).ToSlice()...)
	return nil
}

// Merge applies patch to the current session and persists the result.
// Without a current session it does nothing.
func (c *Container) Merge(ctx context.Context, patch core.SessionPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		c.logger.DebugContext(ctx, "Merge skipped, no session held")
		return nil
	}

	merged := c.current.Merge(patch)
	if err := c.persist(ctx, merged); err != nil {
		return err
	}
	c.current = &merged
	return nil
}

// Clear drops the session from memory and storage. Clearing an empty container is fine.
// Memory is cleared even when the storage removal fails, so a logout always takes effect
// for this process.
func (c *Container) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	err := c.slot.Remove(ctx, c.key)
	listeners := slices.Clone(c.onClear)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to remove persisted session", log.FieldKey, c.key, log.FieldError, err)
		return fmt.Errorf("remove session: %w", err)
	}
	c.logger.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpClear)
	return nil
}

// Current returns a copy of the held session, or nil.
func (c *Container) Current() *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	s := c.current.Clone()
	return &s
}

// AccessToken returns the credential of the held session, or "" when logged out.
func (c *Container) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// Require returns the current session or ErrNoSession.
func (c *Container) Require() (core.Session, error) {
	s := c.Current()
	if s == nil {
		return core.Session{}, ErrNoSession
	}
	return *s, nil
}

func (c *Container) persist(ctx context.Context, s core.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.slot.Save(ctx, c.key, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestGetSetAndExpiry(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](10, time.Minute, WithClock(clock.Now))

	c.Set("/accounts", []string{"accounts"}, "a")
	got, ok := c.Get("/accounts")
	require.True(t, ok)
	assert.Equal(t, "a", got)

	clock.Advance(time.Minute + time.Second)
	_, ok = c.Get("/accounts")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", nil, 1)
	c.Set("b", nil, 2)
	_, _ = c.Get("a")
	c.Set("c", nil, 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestInvalidateTag(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("/transactions?from=1", []string{"transactions"}, "t1")
	c.Set("/transactions?from=2", []string{"transactions"}, "t2")
	c.Set("/budgets", []string{"budgets"}, "b")
	c.Set("/dashboard", []string{"transactions", "accounts"}, "d")

	assert.Equal(t, 3, c.InvalidateTag("transactions"))
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get("/budgets")
	assert.True(t, ok)

	assert.Equal(t, 0, c.InvalidateTag("transactions"))
	assert.Equal(t, 0, c.InvalidateTag("accounts"))
}

func TestSetReplacesTags(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("k", []string{"old"}, "v1")
	c.Set("k", []string{"new"}, "v2")

	assert.Equal(t, 0, c.InvalidateTag("old"))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
	assert.Equal(t, 1, c.InvalidateTag("new"))
}

func TestPurge(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("a", []string{"x"}, "1")
	c.Set("b", []string{"y"}, "2")
	c.Purge()

	assert.Equal(t, 0, c.Size())
	assert.Equal(t, 0, c.InvalidateTag("x"))
	c.Set("a", nil, "again")
	assert.Equal(t, 1, c.Size())
}

func TestJanitorSweep(t *testing.T) {
	clock := newClock()
	c := NewLRUCache[string](0, time.Minute, WithClock(clock.Now))
	c.Set("a", nil, "1")
	c.Set("b", nil, "2")
	clock.Advance(30 * time.Second)
	c.Set("c", nil, "3")
	clock.Advance(45 * time.Second)

	j := NewJanitor(nil)
	j.Register(c)
	assert.Equal(t, 2, j.Sweep())
	assert.Equal(t, 1, c.Size())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/file"
	"fintrack/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() core.Session {
	exp := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	return core.Session{UserID: 42, Username: "ada", AccessToken: "tok-1", Expiry: &exp}
}

func newTestContainer(slot storage.Slot) *Container {
	return NewContainer(slot, WithLogger(log.Discard()))
}

func TestRestoreEmpty(t *testing.T) {
	c := newTestContainer(memory.New())
	assert.Nil(t, c.Restore(context.Background()))
	assert.Nil(t, c.Current())
	assert.Equal(t, "", c.AccessToken())
}

func TestSetThenRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	s := sampleSession()

	require.NoError(t, newTestContainer(slot).Set(ctx, s))

	// A fresh container models the next process start.
	restored := newTestContainer(slot).Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, s.UserID, restored.UserID)
	assert.Equal(t, s.Username, restored.Username)
	assert.Equal(t, s.AccessToken, restored.AccessToken)
	require.NotNil(t, restored.Expiry)
	assert.True(t, s.Expiry.Equal(*restored.Expiry))
}

func TestSetRoundTripOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot, err := file.New(dir)
	require.NoError(t, err)

	s := core.Session{UserID: 1, Username: "grace", AccessToken: "abc"}
	require.NoError(t, newTestContainer(slot).Set(ctx, s))

	again, err := file.New(dir)
	require.NoError(t, err)
	restored := newTestContainer(again).Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, s, *restored)
}

func TestRestoreMalformedIsAbsence(t *testing.T) {
	slot := memory.New()
	slot.Seed(DefaultKey, []byte(`{"userId": "not-a-number"`))

	c := newTestContainer(slot)
	assert.Nil(t, c.Restore(context.Background()))
	assert.Nil(t, c.Current())
}

type brokenSlot struct{ *memory.Store }

func (*brokenSlot) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("io error")
}

func TestRestoreReadFailureIsAbsence(t *testing.T) {
	c := newTestContainer(&brokenSlot{Store: memory.New()})
	assert.Nil(t, c.Restore(context.Background()))
}

func TestMergeWithoutSessionIsNoop(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	c := newTestContainer(slot)

	name := "nobody"
	require.NoError(t, c.Merge(ctx, core.SessionPatch{Username: &name}))
	assert.Nil(t, c.Current())
	assert.Equal(t, 0, slot.Len())
}

func TestMergePersists(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	c := newTestContainer(slot)
	require.NoError(t, c.Set(ctx, sampleSession()))

	name := "lovelace"
	require.NoError(t, c.Merge(ctx, core.SessionPatch{Username: &name}))
	assert.Equal(t, "lovelace", c.Current().Username)
	assert.Equal(t, "tok-1", c.AccessToken())

	restored := newTestContainer(slot).Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, "lovelace", restored.Username)
	assert.Equal(t, "tok-1", restored.AccessToken)
}

func TestClearIsIdempotentAndNotifies(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	c := newTestContainer(slot)

	cleared := 0
	c.OnClear(func(context.Context) { cleared++ })

	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Set(ctx, sampleSession()))
	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Clear(ctx))

	assert.Nil(t, c.Current())
	assert.Nil(t, newTestContainer(slot).Restore(ctx))
	assert.Equal(t, 3, cleared)
}

func TestClearRunsListenersInOrderFromSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(memory.New())

	var calls []string
	c.OnClear(func(context.Context) {
		calls = append(calls, "first")
		// Registered during a Clear, so it only runs on the next one.
		c.OnClear(func(context.Context) { calls = append(calls, "late") })
	})
	c.OnClear(func(context.Context) { calls = append(calls, "second") })

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{"first", "second", "late"}, calls)
}

func TestSetFailureKeepsPreviousSession(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	c := newTestContainer(slot)
	require.NoError(t, c.Set(ctx, sampleSession()))

	slot.SaveErr = errors.New("disk full")
	err := c.Set(ctx, core.Session{UserID: 2, AccessToken: "other"})
	require.Error(t, err)
	assert.Equal(t, "tok-1", c.AccessToken())
}

func TestCurrentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(memory.New())
	require.NoError(t, c.Set(ctx, sampleSession()))

	got := c.Current()
	got.AccessToken = "tampered"
	*got.Expiry = time.Time{}

	assert.Equal(t, "tok-1", c.AccessToken())
	assert.False(t, c.Current().Expiry.IsZero())

	_, err := newTestContainer(memory.New()).Require()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	slot := memory.New()
	c := NewContainer(slot, WithKey("profile"), WithLogger(log.Discard()))
	require.NoError(t, c.Set(ctx, sampleSession()))

	_, err := slot.Load(ctx, "profile")
	assert.NoError(t, err)
	_, err = slot.Load(ctx, DefaultKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

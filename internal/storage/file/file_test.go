package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	_, err = s.Load(ctx, "userInfo")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Save(ctx, "userInfo", []byte(`{"userId":1}`)))
	got, err := s.Load(ctx, "userInfo")
	require.NoError(t, err)
	assert.Equal(t, `{"userId":1}`, string(got))

	info, err := os.Stat(filepath.Join(dir, "userInfo.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")

	// A second store over the same directory sees the persisted value.
	again, err := New(dir)
	require.NoError(t, err)
	got, err = again.Load(ctx, "userInfo")
	require.NoError(t, err)
	assert.Equal(t, `{"userId":1}`, string(got))
}

func TestStoreRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "userInfo"))
	require.NoError(t, s.Save(ctx, "userInfo", []byte(`{}`)))
	require.NoError(t, s.Remove(ctx, "userInfo"))
	require.NoError(t, s.Remove(ctx, "userInfo"))

	_, err = s.Load(ctx, "userInfo")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreRejectsBadKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, s.Save(context.Background(), key, []byte("x")), key)
	}

	_, err = New("  ")
	assert.Error(t, err)
}

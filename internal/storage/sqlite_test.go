package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"fintrack/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SQLiteStoreTestSuite runs the slot contract against a fresh database per test
type SQLiteStoreTestSuite struct {
	suite.Suite
	path  string
	store *SQLiteStore
}

func (suite *SQLiteStoreTestSuite) SetupTest() {
	suite.path = filepath.Join(suite.T().TempDir(), "state", "fintrack.db")
	store, err := NewSQLiteStore(suite.path, nil)
	require.NoError(suite.T(), err, "failed to create test database")
	suite.store = store
}

func (suite *SQLiteStoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *SQLiteStoreTestSuite) TestLoadMissingKey() {
	_, err := suite.store.Load(context.Background(), "userInfo")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *SQLiteStoreTestSuite) TestSaveLoadOverwrite() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.Save(ctx, "userInfo", []byte(`{"userId":1}`)))
	require.NoError(suite.T(), suite.store.Save(ctx, "userInfo", []byte(`{"userId":2}`)))

	got, err := suite.store.Load(ctx, "userInfo")
	require.NoError(suite.T(), err)
	assert.JSONEq(suite.T(), `{"userId":2}`, string(got))

	keys, err := suite.store.Keys(ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"userInfo"}, keys)
}

func (suite *SQLiteStoreTestSuite) TestRemoveIsIdempotent() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.Save(ctx, "userInfo", []byte(`{}`)))
	require.NoError(suite.T(), suite.store.Remove(ctx, "userInfo"))
	require.NoError(suite.T(), suite.store.Remove(ctx, "userInfo"))

	_, err := suite.store.Load(ctx, "userInfo")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *SQLiteStoreTestSuite) TestSurvivesReopen() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.Save(ctx, "userInfo", []byte(`{"userId":9}`)))
	require.NoError(suite.T(), suite.store.Close())

	reopened, err := NewSQLiteStore(suite.path, nil)
	require.NoError(suite.T(), err)
	suite.store = reopened

	got, err := reopened.Load(ctx, "userInfo")
	require.NoError(suite.T(), err)
	assert.JSONEq(suite.T(), `{"userId":9}`, string(got))
}

func TestSQLiteStoreLogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Level: slog.LevelDebug})

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fintrack.db"), logger)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), "userInfo", []byte(`{}`)))

	out := buf.String()
	assert.Contains(t, out, "Local state schema ready")
	assert.Contains(t, out, "Local state saved to SQLite")
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "key=userInfo")
}

func TestSQLiteStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreTestSuite))
}

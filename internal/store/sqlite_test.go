package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sedfit/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_WriteRecordsIsAtomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, 2, 3, 1)
	require.NoError(t, err)

	bad := testRecord(1)
	bad.LogEvidence = math.NaN()
	err = st.WriteRecords(ctx, run.ID, []*model.ResultRecord{testRecord(0), bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal record 1")

	n, err := st.CountRecords(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_CountRecords_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.CountRecords(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_OpenBadPath(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}

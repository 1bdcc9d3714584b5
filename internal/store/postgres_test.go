package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sedfit/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumns = []string{"id", "status", "n_objects", "n_draws", "seed", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "running", 4, 250, int64(-1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), 4, 250, ^uint64(0))
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), run.Seed)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", model.RunStatusComplete, 4, 250, int64(-1), now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, ^uint64(0), run.Seed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "gone", model.RunStatusFailed)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("complete", 5, 10).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("a", model.RunStatusComplete, 1, 10, int64(1), now, now).
			AddRow("b", model.RunStatusComplete, 2, 10, int64(2), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteRecord_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := testRecord(2)

	mock.ExpectExec(`ON CONFLICT \(run_id, star_index\) DO UPDATE`).
		WithArgs("run-1", 2, rec.ObjectID, rec.LogEvidence, rec.Chi2Min, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.WriteRecord(context.Background(), "run-1", rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteRecords_BulkUpsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_results"}, resultColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "results"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.WriteRecords(context.Background(), "run-1", []*model.ResultRecord{testRecord(0), testRecord(1)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteRecords_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection reset"))

	err := s.WriteRecords(context.Background(), "run-1", []*model.ResultRecord{testRecord(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write 1 records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := testRecord(1)
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record FROM results WHERE run_id = \$1 AND star_index = \$2`).
		WithArgs("run-1", 1).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(data))

	got, err := s.GetRecord(context.Background(), "run-1", 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM results`).
		WithArgs("run-1", 9).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecord(context.Background(), "run-1", 9)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountRecords(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM results WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	n, err := s.CountRecords(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreparedStatementsCoverStoreQueries(t *testing.T) {
	assert.Equal(t, pgUpsertResult, preparedStatements["upsert_result"])
	for name, sql := range preparedStatements {
		assert.NotEmpty(t, sql, name)
	}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sedfit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	n_objects  INTEGER NOT NULL,
	n_draws    INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	star_index   INTEGER NOT NULL,
	object_id    TEXT NOT NULL,
	log_evidence REAL NOT NULL,
	chi2_min     REAL NOT NULL,
	record       TEXT NOT NULL,
	PRIMARY KEY (run_id, star_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_object_id ON results(object_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, nObjects, nDraws int, seed uint64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, n_objects, n_draws, seed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), nObjects, nDraws, int64(seed), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		NObjects:  nObjects,
		NDraws:    nDraws,
		Seed:      seed,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

const sqliteUpsertResult = `INSERT OR REPLACE INTO results
	(run_id, star_index, object_id, log_evidence, chi2_min, record) VALUES (?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) WriteRecord(ctx context.Context, runID string, rec *model.ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal record %d", rec.Index)
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsertResult,
		runID, rec.Index, rec.ObjectID, rec.LogEvidence, rec.Chi2Min, string(data))
	return eris.Wrapf(err, "sqlite: write record %d", rec.Index)
}

// WriteRecords stores recs in a single transaction.
func (s *SQLiteStore) WriteRecords(ctx context.Context, runID string, recs []*model.ResultRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertResult)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare write records")
	}
	defer stmt.Close()

	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal record %d", rec.Index)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, rec.Index, rec.ObjectID, rec.LogEvidence, rec.Chi2Min, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: write record %d", rec.Index)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit records")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, runID string, index int) (*model.ResultRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM results WHERE run_id = ? AND star_index = ?`,
		runID, index,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("record", recordKey(runID, index))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %d", index)
	}

	var rec model.ResultRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) CountRecords(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE run_id = ?`, runID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count records")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var seed int64
	err := row.Scan(&r.ID, &r.Status, &r.NObjects, &r.NDraws, &seed, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Seed = uint64(seed)
	return &r, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/db"
	"github.com/sells-group/sedfit/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on each new connection. Exec with the
// statement name uses the prepared plan.
var preparedStatements = map[string]string{
	"insert_run":    `INSERT INTO runs (id, status, n_objects, n_draws, seed, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"finish_run":    `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":       `SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE id = $1`,
	"upsert_result": pgUpsertResult,
	"get_result":    `SELECT record FROM results WHERE run_id = $1 AND star_index = $2`,
	"count_results": `SELECT COUNT(*) FROM results WHERE run_id = $1`,
}

const pgUpsertResult = `INSERT INTO results (run_id, star_index, object_id, log_evidence, chi2_min, record)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (run_id, star_index) DO UPDATE SET
		object_id = EXCLUDED.object_id,
		log_evidence = EXCLUDED.log_evidence,
		chi2_min = EXCLUDED.chi2_min,
		record = EXCLUDED.record`

var resultColumns = []string{"run_id", "star_index", "object_id", "log_evidence", "chi2_min", "record"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'running',
	n_objects  INTEGER NOT NULL,
	n_draws    INTEGER NOT NULL,
	seed       BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	star_index   INTEGER NOT NULL,
	object_id    TEXT NOT NULL,
	log_evidence DOUBLE PRECISION NOT NULL,
	chi2_min     DOUBLE PRECISION NOT NULL,
	record       JSONB NOT NULL,
	PRIMARY KEY (run_id, star_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_object_id ON results(object_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, nObjects, nDraws int, seed uint64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, preparedStatements["insert_run"],
		id, string(model.RunStatusRunning), nObjects, nDraws, int64(seed), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["finish_run"],
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, preparedStatements["get_run"], runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, n_objects, n_draws, seed, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) WriteRecord(ctx context.Context, runID string, rec *model.ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal record %d", rec.Index)
	}
	_, err = s.pool.Exec(ctx, pgUpsertResult,
		runID, rec.Index, rec.ObjectID, rec.LogEvidence, rec.Chi2Min, data)
	return eris.Wrapf(err, "postgres: write record %d", rec.Index)
}

// WriteRecords COPYs recs through a staging table and merges them, so a
// retried batch replaces rather than duplicates.
func (s *PostgresStore) WriteRecords(ctx context.Context, runID string, recs []*model.ResultRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal record %d", rec.Index)
		}
		rows = append(rows, []any{runID, rec.Index, rec.ObjectID, rec.LogEvidence, rec.Chi2Min, data})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "results",
		Columns:      resultColumns,
		ConflictKeys: []string{"run_id", "star_index"},
	}, rows)
	return eris.Wrapf(err, "postgres: write %d records", len(recs))
}

func (s *PostgresStore) GetRecord(ctx context.Context, runID string, index int) (*model.ResultRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, preparedStatements["get_result"], runID, index).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("record", recordKey(runID, index))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %d", index)
	}

	var rec model.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) CountRecords(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, preparedStatements["count_results"], runID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count records")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var seed int64
	if err := row.Scan(&r.ID, &r.Status, &r.NObjects, &r.NDraws, &seed, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	return &r, nil
}

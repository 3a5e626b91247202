package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/landsuit/internal/model"
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
		"PRAGMA foreign_keys=ON",
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
	operation  TEXT NOT NULL,
	input      TEXT NOT NULL,
	params     TEXT,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_values (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	series     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	feature_id INTEGER NOT NULL,
	value      REAL,
	PRIMARY KEY (run_id, series, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_operation ON runs(operation);
CREATE INDEX IF NOT EXISTS idx_run_values_feature ON run_values(run_id, feature_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, operation, input string, params map[string]any) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var paramsJSON sql.NullString
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal params")
		}
		paramsJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, operation, input, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, operation, input, paramsJSON, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Operation: operation,
		Input:     input,
		Params:    params,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FinishRun marks a run complete, or failed with runErr's message.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := model.RunStatusComplete, ""
	if runErr != nil {
		status, msg = model.RunStatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, operation, input, params, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, operation, input, params, status, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Operation != "" {
		query += ` AND operation = ?`
		args = append(args, filter.Operation)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

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

// SaveSeries writes every series in one transaction, replacing series of the
// same name. NaN is stored as NULL.
func (s *SQLiteStore) SaveSeries(ctx context.Context, runID string, series ...*model.Series) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return eris.Wrap(err, "sqlite: check run")
	}
	if exists == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_values (run_id, series, kind, position, feature_id, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	total := 0
	for _, sr := range series {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_values WHERE run_id = ? AND series = ?`, runID, sr.Name); err != nil {
			return eris.Wrapf(err, "sqlite: clear series %s", sr.Name)
		}
		kind := sr.Kind
		if kind == "" {
			kind = model.KindFloat64
		}
		for i, v := range sr.Values {
			var val sql.NullFloat64
			if !math.IsNaN(v) {
				val = sql.NullFloat64{Float64: v, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, sr.Name, string(kind), i, sr.Index[i], val); err != nil {
				return eris.Wrapf(err, "sqlite: insert %s value %d", sr.Name, i)
			}
		}
		total += len(sr.Values)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit series")
	}

	zap.L().Debug("sqlite: saved series",
		zap.String("run_id", runID),
		zap.Int("series", len(series)),
		zap.Int("values", total),
	)
	return nil
}

func (s *SQLiteStore) LoadSeries(ctx context.Context, runID, name string) (*model.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, feature_id, value FROM run_values WHERE run_id = ? AND series = ? ORDER BY position`,
		runID, name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load series %s", name)
	}
	defer rows.Close()

	out := &model.Series{Name: name}
	for rows.Next() {
		var kind string
		var id int
		var val sql.NullFloat64
		if err := rows.Scan(&kind, &id, &val); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan value")
		}
		out.Kind = model.Kind(kind)
		out.Index = append(out.Index, id)
		if val.Valid {
			out.Values = append(out.Values, val.Float64)
		} else {
			out.Values = append(out.Values, math.NaN())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load series iterate")
	}
	if len(out.Index) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: series %s in run %s", name, runID)
	}
	return out, nil
}

func (s *SQLiteStore) SeriesNames(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series FROM run_values WHERE run_id = ? GROUP BY series ORDER BY MIN(rowid)`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list series")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan series name")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list series iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var paramsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Operation, &r.Input, &paramsJSON, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "sqlite: run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if paramsJSON.Valid {
		if err := json.Unmarshal([]byte(paramsJSON.String), &r.Params); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal params")
		}
	}
	return &r, nil
}

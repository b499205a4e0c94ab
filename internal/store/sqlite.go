package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/boundary"
)

// SQLiteStore persists runs and layers using modernc.org/sqlite.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	layers     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assignments (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	seq       INTEGER NOT NULL,
	point_id  TEXT NOT NULL,
	layer     TEXT NOT NULL,
	code      TEXT,
	match     TEXT NOT NULL,
	longitude TEXT NOT NULL,
	latitude  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layer_polygons (
	layer     TEXT NOT NULL,
	ord       INTEGER NOT NULL,
	code      TEXT NOT NULL,
	vertices  INTEGER NOT NULL,
	geom      BLOB,
	loaded_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (layer, ord)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_assignments_run_id ON assignments(run_id, seq);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a running run for input with the given layer columns.
func (s *SQLiteStore) CreateRun(ctx context.Context, input string, layers []string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	layersJSON, err := json.Marshal(layers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal layers")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, layers, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, input, string(layersJSON), string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Input:     input,
		Layers:    layers,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompleteRun stores the final stats and marks the run complete.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats *batch.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stats = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(statsJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// FailRun marks the run failed with a reason.
func (s *SQLiteStore) FailRun(ctx context.Context, runID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, input, layers, status, stats, error, created_at, updated_at`

// GetRun loads one run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

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
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// ListAssignments returns a run's assignments in write order.
func (s *SQLiteStore) ListAssignments(ctx context.Context, runID string, limit int) ([]AssignmentRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT point_id, layer, COALESCE(code, ''), match, longitude, latitude
		 FROM assignments WHERE run_id = ? ORDER BY seq LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list assignments %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []AssignmentRow
	for rows.Next() {
		var a AssignmentRow
		if err := rows.Scan(&a.PointID, &a.Layer, &a.Code, &a.Match, &a.Longitude, &a.Latitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assignments iterate")
}

// SaveLayer replaces the stored polygons of a layer with the contents of
// layer, each encoded as EWKB. Shapes that are not polygons are stored
// without geometry.
func (s *SQLiteStore) SaveLayer(ctx context.Context, layer *boundary.Store) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin layer tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM layer_polygons WHERE layer = ?`, layer.Name()); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear layer %s", layer.Name())
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO layer_polygons (layer, ord, code, vertices, geom) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare layer insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range layer.Len() {
		p := layer.At(i)
		var blob []byte
		if p.IsPolygon() {
			if blob, err = boundary.EncodeEWKB(p); err != nil {
				return 0, eris.Wrapf(err, "sqlite: encode polygon %s", p.Code)
			}
		}
		if _, err := stmt.ExecContext(ctx, layer.Name(), i, p.Code, p.NumVertices(), blob); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert polygon %s", p.Code)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit layer")
	}
	return layer.Len(), nil
}

// LayerGeometry returns the EWKB of each stored polygon of a layer, keyed by
// region code. Polygons stored without geometry are omitted.
func (s *SQLiteStore) LayerGeometry(ctx context.Context, layer string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, geom FROM layer_polygons WHERE layer = ? AND geom IS NOT NULL ORDER BY ord`, layer)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: layer geometry %s", layer)
	}
	defer rows.Close() //nolint:errcheck

	out := map[string][]byte{}
	for rows.Next() {
		var code string
		var blob []byte
		if err := rows.Scan(&code, &blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan layer polygon")
		}
		out[code] = blob
	}
	return out, eris.Wrap(rows.Err(), "sqlite: layer geometry iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r          Run
		layersJSON string
		statsJSON  sql.NullString
		errText    sql.NullString
	)

	err := row.Scan(&r.ID, &r.Input, &layersJSON, &r.Status, &statsJSON, &errText, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(layersJSON), &r.Layers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal layers")
	}
	if statsJSON.Valid {
		r.Stats = &batch.Stats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	r.Error = errText.String
	return &r, nil
}

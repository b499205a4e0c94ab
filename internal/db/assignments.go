package db

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/locate"
)

const defaultBatchSize = 5000

var assignmentColumns = []string{"run_id", "point_id", "layer", "code", "match", "longitude", "latitude"}

const assignmentTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	run_id    TEXT NOT NULL,
	point_id  TEXT NOT NULL,
	layer     TEXT NOT NULL,
	code      TEXT,
	match     TEXT NOT NULL,
	longitude TEXT NOT NULL,
	latitude  TEXT NOT NULL,
	PRIMARY KEY (point_id, layer)
)`

// SinkConfig configures an AssignmentSink.
type SinkConfig struct {
	Table     string // default "region_assignments"
	RunID     string
	BatchSize int // rows buffered per COPY; default 5000
	// Upsert merges into existing rows keyed by (point_id, layer) instead of
	// a plain COPY, so reruns replace earlier assignments.
	Upsert bool
}

// AssignmentSink writes one row per (point, layer) to PostgreSQL.
// It implements batch.Sink and batch.Finisher.
//
// Rows are keyed by (point_id, layer), so point ids must be unique within a
// run. A repeated id, including a roll-up row whose group key equals a point
// id, keeps the first assignment and the later one is skipped with a warning.
type AssignmentSink struct {
	pool    Pool
	cfg     SinkConfig
	layers  []string
	buf     [][]any
	seen    map[string]struct{}
	skipped int
	written int64
	log     *zap.Logger
}

// NewAssignmentSink creates a sink on pool. The pool is not closed by the sink.
func NewAssignmentSink(pool Pool, cfg SinkConfig) *AssignmentSink {
	if cfg.Table == "" {
		cfg.Table = "region_assignments"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &AssignmentSink{
		pool: pool,
		cfg:  cfg,
		seen: make(map[string]struct{}),
		log:  zap.L().With(zap.String("component", "postgres_sink"), zap.String("table", cfg.Table)),
	}
}

// Begin creates the assignment table if needed.
func (s *AssignmentSink) Begin(ctx context.Context, layers []string) error {
	s.layers = layers
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(assignmentTableSQL, sanitizeTable(s.cfg.Table))); err != nil {
		return eris.Wrapf(err, "db: create %s", s.cfg.Table)
	}
	return nil
}

// Write buffers a row per layer, loading the buffer once it is full.
func (s *AssignmentSink) Write(ctx context.Context, a batch.Assignment) error {
	if _, dup := s.seen[a.ID]; dup {
		s.skipped++
		s.log.Warn("duplicate point id, keeping first assignment", zap.String("id", a.ID))
		return nil
	}
	s.seen[a.ID] = struct{}{}

	for i, r := range a.Results {
		var code any
		if r.Match != locate.NotFound {
			code = r.Code
		}
		s.buf = append(s.buf, []any{s.cfg.RunID, a.ID, s.layers[i], code, r.Match.String(), a.Lon, a.Lat})
	}
	if len(s.buf) >= s.cfg.BatchSize {
		return s.flush(ctx)
	}
	return nil
}

// Finish loads whatever is still buffered.
func (s *AssignmentSink) Finish(ctx context.Context, _ *batch.Stats) error {
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.log.Info("assignments loaded", zap.Int64("rows", s.written), zap.Int("duplicates_skipped", s.skipped))
	return nil
}

// Close loads rows still buffered after a failed run.
func (s *AssignmentSink) Close() error {
	return s.flush(context.Background())
}

// Written returns the number of rows loaded so far.
func (s *AssignmentSink) Written() int64 { return s.written }

// Skipped returns how many assignments were dropped as duplicate point ids.
func (s *AssignmentSink) Skipped() int { return s.skipped }

func (s *AssignmentSink) flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}

	var (
		n   int64
		err error
	)
	if s.cfg.Upsert {
		n, err = BulkUpsert(ctx, s.pool, UpsertConfig{
			Table:        s.cfg.Table,
			Columns:      assignmentColumns,
			ConflictKeys: []string{"point_id", "layer"},
		}, s.buf)
	} else {
		n, err = CopyFrom(ctx, s.pool, s.cfg.Table, assignmentColumns, s.buf)
	}
	if err != nil {
		return err
	}

	s.written += n
	s.log.Debug("flushed assignments", zap.Int64("rows", n))
	s.buf = s.buf[:0]
	return nil
}

var (
	_ batch.Sink     = (*AssignmentSink)(nil)
	_ batch.Finisher = (*AssignmentSink)(nil)
)

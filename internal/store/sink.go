package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/locate"
)

// Sink records a batch run and its assignments. Rows are written inside a
// single transaction that is committed when the run finishes; a run closed
// before Finish keeps the rows written so far and is marked failed.
type Sink struct {
	st     *SQLiteStore
	input  string
	run    *Run
	layers []string
	tx     *sql.Tx
	stmt   *sql.Stmt
	seq    int
	done   bool
}

// NewSink creates a sink recording a run over input.
func (s *SQLiteStore) NewSink(input string) *Sink {
	return &Sink{st: s, input: input}
}

// RunID returns the id of the recorded run, empty before Begin.
func (k *Sink) RunID() string {
	if k.run == nil {
		return ""
	}
	return k.run.ID
}

// Begin creates the run and opens the assignment transaction.
func (k *Sink) Begin(ctx context.Context, layers []string) error {
	run, err := k.st.CreateRun(ctx, k.input, layers)
	if err != nil {
		return err
	}
	k.run, k.layers = run, layers

	// The transaction outlives cancellation of ctx so that Close can still
	// commit what was written and mark the run failed.
	txCtx := context.WithoutCancel(ctx)
	k.tx, err = k.st.db.BeginTx(txCtx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin assignments tx")
	}
	k.stmt, err = k.tx.PrepareContext(txCtx,
		`INSERT INTO assignments (run_id, seq, point_id, layer, code, match, longitude, latitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare assignment insert")
	}

	zap.L().Info("recording run", zap.String("run_id", run.ID), zap.String("input", k.input))
	return nil
}

// Write inserts one row per layer.
func (k *Sink) Write(ctx context.Context, a batch.Assignment) error {
	for i, r := range a.Results {
		var code any
		if r.Match != locate.NotFound {
			code = r.Code
		}
		if _, err := k.stmt.ExecContext(ctx, k.run.ID, k.seq, a.ID, k.layers[i], code, r.Match.String(), a.Lon, a.Lat); err != nil {
			return eris.Wrapf(err, "sqlite: insert assignment %s", a.ID)
		}
	}
	k.seq++
	return nil
}

// Finish commits the assignments and stores the run stats.
func (k *Sink) Finish(ctx context.Context, stats *batch.Stats) error {
	if err := k.commit(); err != nil {
		return err
	}
	k.done = true
	return k.st.CompleteRun(ctx, k.run.ID, stats)
}

// Close commits any open transaction. A run that never finished is marked
// failed.
func (k *Sink) Close() error {
	if k.run == nil || k.done {
		return nil
	}
	k.done = true
	reason := "run did not complete"
	commitErr := k.commit()
	if commitErr != nil {
		reason += ": " + commitErr.Error()
	}
	return multierr.Append(commitErr, k.st.FailRun(context.Background(), k.run.ID, reason))
}

func (k *Sink) commit() error {
	if k.tx == nil {
		return nil
	}
	tx := k.tx
	k.tx = nil
	if k.stmt != nil {
		k.stmt.Close() //nolint:errcheck
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit assignments")
}

var (
	_ batch.Sink     = (*Sink)(nil)
	_ batch.Finisher = (*Sink)(nil)
)

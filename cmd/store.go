package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/db"
	"github.com/sells-group/region-cli/internal/store"
)

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func saveLayers(ctx context.Context, layers []batch.Layer) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	for _, l := range layers {
		n, err := st.SaveLayer(ctx, l.Store)
		if err != nil {
			return err
		}
		zap.L().Info("layer saved", zap.String("layer", l.Store.Name()), zap.Int("polygons", n))
	}
	return nil
}

// openSinks builds the configured output sinks. The returned cleanup closes
// any database handles and must run after the sinks are closed.
func openSinks(ctx context.Context, input string) (batch.MultiSink, func(), error) {
	var (
		sinks    batch.MultiSink
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (batch.MultiSink, func(), error) {
		sinks.Close() //nolint:errcheck
		cleanup()
		return nil, func() {}, err
	}

	if cfg.Output.HasSink("psv") {
		w, err := batch.CreatePSV(cfg.Output.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, w)
	}

	if cfg.Output.HasSink("sqlite") {
		st, err := initStore(ctx)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = st.Close() })
		sinks = append(sinks, st.NewSink(input))
	}

	if cfg.Output.HasSink("postgres") {
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return fail(eris.Wrap(err, "connect postgres sink"))
		}
		cleanups = append(cleanups, pool.Close)
		sinks = append(sinks, db.NewAssignmentSink(pool, db.SinkConfig{
			Table:     cfg.Store.Table,
			RunID:     uuid.New().String(),
			BatchSize: cfg.Store.BatchSize,
			Upsert:    cfg.Store.Upsert,
		}))
	}

	if len(sinks) == 0 {
		return fail(eris.New("no output sinks configured"))
	}
	return sinks, cleanup, nil
}

// Package batch runs streamed point records through every configured
// boundary layer and hands the assignments to one or more sinks.
package batch

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/region-cli/internal/boundary"
	"github.com/sells-group/region-cli/internal/fetcher"
	"github.com/sells-group/region-cli/internal/locate"
)

const defaultChunkSize = 1000

// Layer pairs a loaded boundary store with the output column it fills.
type Layer struct {
	Column string
	Store  *boundary.Store
}

// Options controls how input records are read and classified.
type Options struct {
	IDColumn      string
	RetiredColumn string
	LonColumn     string
	LatColumn     string
	// GroupBy names a column whose distinct values each get one extra
	// assignment, located at the centre of the group's bounding box.
	GroupBy     string
	SkipZero    bool
	Concurrency int
	ChunkSize   int
}

// DefaultOptions returns the column names of the standard point extract.
func DefaultOptions() Options {
	return Options{
		IDColumn:      "id",
		RetiredColumn: "date_retired",
		LonColumn:     "longitude",
		LatColumn:     "latitude",
		SkipZero:      true,
		Concurrency:   1,
		ChunkSize:     defaultChunkSize,
	}
}

// Assignment is one output record: the input id, a result per layer and the
// coordinates as they appeared in the input.
type Assignment struct {
	ID      string
	Lon     string
	Lat     string
	Results []locate.Result
}

// Codes returns the region code per layer, empty where none was found.
func (a Assignment) Codes() []string {
	return lo.Map(a.Results, func(r locate.Result, _ int) string { return r.Code })
}

// Driver classifies point streams against a fixed set of layers.
type Driver struct {
	layers []Layer
	stores []*boundary.Store
	opts   Options
	log    *zap.Logger
}

// New creates a Driver. Zero-valued options fall back to DefaultOptions.
func New(layers []Layer, opts Options) *Driver {
	def := DefaultOptions()
	opts.IDColumn = lo.Ternary(opts.IDColumn == "", def.IDColumn, opts.IDColumn)
	opts.LonColumn = lo.Ternary(opts.LonColumn == "", def.LonColumn, opts.LonColumn)
	opts.LatColumn = lo.Ternary(opts.LatColumn == "", def.LatColumn, opts.LatColumn)
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = def.ChunkSize
	}

	return &Driver{
		layers: layers,
		stores: lo.Map(layers, func(l Layer, _ int) *boundary.Store { return l.Store }),
		opts:   opts,
		log:    zap.L().With(zap.String("component", "batch")),
	}
}

// Columns returns the output column name of each layer, in layer order.
func (d *Driver) Columns() []string {
	return lo.Map(d.layers, func(l Layer, _ int) string { return l.Column })
}

type columns struct {
	id, retired, lon, lat, group int
}

type job struct {
	num   int
	point locate.Point
	lon   string
	lat   string
	res   []locate.Result
}

type groupBounds struct {
	key   string
	bound orb.Bound
}

// Run consumes rows (header first) until the stream ends, writing one
// assignment per accepted record to sink. Bad records are logged and
// skipped; only stream, header and sink failures end the run early.
func (d *Driver) Run(ctx context.Context, rows <-chan fetcher.Row, errs <-chan error, sink Sink) (*Stats, error) {
	stats := newStats(d.Columns())

	header, ok := <-rows
	if !ok {
		if err := drain(errs); err != nil {
			return stats, err
		}
		return stats, eris.New("batch: input has no header row")
	}
	cols, err := d.resolveColumns(header.Fields)
	if err != nil {
		return stats, err
	}

	if err := sink.Begin(ctx, d.Columns()); err != nil {
		return stats, eris.Wrap(err, "batch: begin sink")
	}

	var (
		chunk      = make([]job, 0, d.opts.ChunkSize)
		groups     = map[string]int{}
		groupOrder []groupBounds
	)

	for row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "batch: context cancelled")
		}
		stats.Read++

		j, keep := d.parse(row, cols, stats)
		if !keep {
			continue
		}

		if cols.group >= 0 {
			key := field(row.Fields, cols.group)
			if key != "" {
				pt := orb.Point{j.point.Lon, j.point.Lat}
				if i, seen := groups[key]; seen {
					groupOrder[i].bound = groupOrder[i].bound.Extend(pt)
				} else {
					groups[key] = len(groupOrder)
					groupOrder = append(groupOrder, groupBounds{key: key, bound: pt.Bound()})
				}
			}
		}

		chunk = append(chunk, j)
		if len(chunk) == d.opts.ChunkSize {
			if err := d.flush(ctx, chunk, sink, stats); err != nil {
				return stats, err
			}
			chunk = chunk[:0]
		}
	}
	if err := drain(errs); err != nil {
		return stats, err
	}

	for _, g := range groupOrder {
		c := g.bound.Center()
		chunk = append(chunk, job{
			point: locate.Point{ID: g.key, Lon: c.Lon(), Lat: c.Lat()},
			lon:   strconv.FormatFloat(c.Lon(), 'f', -1, 64),
			lat:   strconv.FormatFloat(c.Lat(), 'f', -1, 64),
		})
		stats.Groups++
	}
	if err := d.flush(ctx, chunk, sink, stats); err != nil {
		return stats, err
	}

	if f, ok := sink.(Finisher); ok {
		if err := f.Finish(ctx, stats); err != nil {
			return stats, eris.Wrap(err, "batch: finish sink")
		}
	}

	stats.Log(d.log)
	return stats, nil
}

func (d *Driver) resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := index[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}

	cols := columns{
		id:      lookup(d.opts.IDColumn),
		retired: lookup(d.opts.RetiredColumn),
		lon:     lookup(d.opts.LonColumn),
		lat:     lookup(d.opts.LatColumn),
		group:   lookup(d.opts.GroupBy),
	}
	required := []struct {
		name  string
		index int
	}{{d.opts.IDColumn, cols.id}, {d.opts.LonColumn, cols.lon}, {d.opts.LatColumn, cols.lat}}
	for _, c := range required {
		if c.index < 0 {
			return cols, eris.Errorf("batch: column %q not found in header", c.name)
		}
	}
	if d.opts.GroupBy != "" && cols.group < 0 {
		return cols, eris.Errorf("batch: group column %q not found in header", d.opts.GroupBy)
	}
	if d.opts.RetiredColumn != "" && cols.retired < 0 {
		d.log.Debug("retired column not in header, keeping every record",
			zap.String("column", d.opts.RetiredColumn))
	}
	return cols, nil
}

func (d *Driver) parse(row fetcher.Row, cols columns, stats *Stats) (job, bool) {
	if cols.retired >= 0 && field(row.Fields, cols.retired) != "" {
		stats.Retired++
		return job{}, false
	}

	id := field(row.Fields, cols.id)
	lonText := field(row.Fields, cols.lon)
	latText := field(row.Fields, cols.lat)
	reject := func(reason string, fields ...zap.Field) (job, bool) {
		stats.Rejected++
		d.log.Warn("skipping record: "+reason,
			append([]zap.Field{zap.Int("record", row.Num), zap.String("id", id)}, fields...)...)
		return job{}, false
	}

	if id == "" || lonText == "" || latText == "" {
		return reject("missing id or coordinates")
	}
	lon, ok := parseDegrees(lonText, 180)
	if !ok {
		return reject("bad longitude", zap.String("longitude", lonText))
	}
	lat, ok := parseDegrees(latText, 90)
	if !ok {
		return reject("bad latitude", zap.String("latitude", latText))
	}
	if d.opts.SkipZero && (lon == 0 || lat == 0) {
		return reject("zero coordinate", zap.String("longitude", lonText), zap.String("latitude", latText))
	}

	return job{
		num:   row.Num,
		point: locate.Point{ID: id, Lon: lon, Lat: lat},
		lon:   lonText,
		lat:   latText,
	}, true
}

// flush classifies a chunk, in parallel when configured, then writes it in
// input order.
func (d *Driver) flush(ctx context.Context, chunk []job, sink Sink, stats *Stats) error {
	if len(chunk) == 0 {
		return nil
	}

	if d.opts.Concurrency == 1 {
		for i := range chunk {
			chunk[i].res = locate.LocateAll(chunk[i].point, d.stores)
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(d.opts.Concurrency)
		for i := range chunk {
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				chunk[i].res = locate.LocateAll(chunk[i].point, d.stores)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch: classify chunk")
		}
	}

	for _, j := range chunk {
		for li, r := range j.res {
			stats.record(li, r)
			if r.Match == locate.NearestFallback {
				d.log.Warn("point outside every polygon, using nearest",
					zap.String("layer", d.layers[li].Column),
					zap.String("id", j.point.ID),
					zap.Int("record", j.num),
					zap.String("code", r.Code),
				)
			}
		}
		err := sink.Write(ctx, Assignment{ID: j.point.ID, Lon: j.lon, Lat: j.lat, Results: j.res})
		if err != nil {
			return eris.Wrapf(err, "batch: write %s", j.point.ID)
		}
		stats.Written++
	}
	return nil
}

// parseDegrees parses a finite coordinate within ±limit degrees.
func parseDegrees(text string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v > limit {
		return 0, false
	}
	return v, true
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func drain(errs <-chan error) error {
	if errs == nil {
		return nil
	}
	for err := range errs {
		if err != nil {
			return eris.Wrap(err, "batch: read input")
		}
	}
	return nil
}

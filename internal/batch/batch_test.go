package batch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/region-cli/internal/boundary"
	"github.com/sells-group/region-cli/internal/fetcher"
	"github.com/sells-group/region-cli/internal/locate"
)

type recordingSink struct {
	layers   []string
	rows     []Assignment
	finished *Stats
	closed   bool
	failAt   int
}

func (r *recordingSink) Begin(_ context.Context, layers []string) error {
	r.layers = layers
	return nil
}

func (r *recordingSink) Write(_ context.Context, a Assignment) error {
	if r.failAt > 0 && len(r.rows)+1 == r.failAt {
		return errors.New("disk full")
	}
	r.rows = append(r.rows, a)
	return nil
}

func (r *recordingSink) Finish(_ context.Context, s *Stats) error {
	r.finished = s
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func square(code string, minLon, minLat, maxLon, maxLat float64) boundary.Polygon {
	return boundary.NewPolygon(code, []geom.Coord{
		{minLon, minLat}, {minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat},
	})
}

func testLayers() []Layer {
	sa := boundary.NewStore("sa1", []boundary.Polygon{
		square("SA-A", 0, 0, 1, 1),
		square("SA-B", 1, 0, 2, 1),
	})
	lga := boundary.NewStore("lga", []boundary.Polygon{
		square("LGA-1", 0, 0, 2, 2),
	})
	return []Layer{{Column: "sa1_code", Store: sa}, {Column: "lga_code", Store: lga}}
}

func psvRows(t *testing.T, text string) (<-chan fetcher.Row, <-chan error) {
	t.Helper()
	return fetcher.StreamCSV(context.Background(), strings.NewReader(text), fetcher.CSVOptions{
		Delimiter: '|', LazyQuotes: true, TrimSpace: true,
	})
}

func TestRun_AssignsEveryLayer(t *testing.T) {
	input := "id|date_retired|longitude|latitude\n" +
		"p1||0.5|0.5\n" +
		"p2||1.5|0.5\n" +
		"p3|2020-01-01|0.5|0.5\n" +
		"p4||1.5|1.5\n"
	rows, errs := psvRows(t, input)
	sink := &recordingSink{}

	stats, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"sa1_code", "lga_code"}, sink.layers)
	require.Len(t, sink.rows, 3)

	assert.Equal(t, "p1", sink.rows[0].ID)
	assert.Equal(t, []string{"SA-A", "LGA-1"}, sink.rows[0].Codes())
	assert.Equal(t, []string{"SA-B", "LGA-1"}, sink.rows[1].Codes())

	// p4 lies outside sa1 and falls back to the nearest square.
	assert.Equal(t, "p4", sink.rows[2].ID)
	assert.Equal(t, locate.NearestFallback, sink.rows[2].Results[0].Match)
	assert.Equal(t, "SA-B", sink.rows[2].Results[0].Code)
	assert.Equal(t, locate.Contained, sink.rows[2].Results[1].Match)

	assert.Equal(t, 4, stats.Read)
	assert.Equal(t, 1, stats.Retired)
	assert.Equal(t, 0, stats.Rejected)
	assert.Equal(t, 3, stats.Written)
	assert.Equal(t, LayerStats{Layer: "sa1_code", Contained: 2, Nearest: 1}, stats.Layers[0])
	assert.Equal(t, LayerStats{Layer: "lga_code", Contained: 3}, stats.Layers[1])
	assert.Same(t, stats, sink.finished)
}

func TestRun_EchoesCoordinateText(t *testing.T) {
	rows, errs := psvRows(t, "id|longitude|latitude\np1|0.50000|0.5e0\n")
	sink := &recordingSink{}

	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, "0.50000", sink.rows[0].Lon)
	assert.Equal(t, "0.5e0", sink.rows[0].Lat)
}

func TestRun_RejectsBadRecords(t *testing.T) {
	input := "ID|Longitude|Latitude\n" +
		"p1|abc|0.5\n" +
		"p2|0.5|\n" +
		"|0.5|0.5\n" +
		"p4|0|0.5\n" +
		"p5|0.5|north\n" +
		"p6|0.5|0.5\n"
	rows, errs := psvRows(t, input)
	sink := &recordingSink{}

	stats, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)

	require.Len(t, sink.rows, 1)
	assert.Equal(t, "p6", sink.rows[0].ID)
	assert.Equal(t, 6, stats.Read)
	assert.Equal(t, 5, stats.Rejected)
	assert.Equal(t, 0, stats.Retired)
}

func TestRun_RejectsNonFiniteAndOutOfRange(t *testing.T) {
	input := "id|longitude|latitude\n" +
		"nan|NaN|0.5\n" +
		"inf|+Inf|0.5\n" +
		"neginf|0.5|-Inf\n" +
		"huge|1e300|0.5\n" +
		"lon181|180.5|0.5\n" +
		"lat91|0.5|-90.01\n" +
		"edge|180|-90\n" +
		"ok|1.5|0.5\n"
	rows, errs := psvRows(t, input)
	sink := &recordingSink{}

	stats, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)

	require.Len(t, sink.rows, 2)
	assert.Equal(t, "edge", sink.rows[0].ID)
	assert.Equal(t, "ok", sink.rows[1].ID)
	assert.Equal(t, "SA-B", sink.rows[1].Results[0].Code)
	assert.Equal(t, 6, stats.Rejected)
}

func TestParseDegrees(t *testing.T) {
	tests := []struct {
		text  string
		limit float64
		want  float64
		ok    bool
	}{
		{"149.13", 180, 149.13, true},
		{"-35.28", 90, -35.28, true},
		{"180", 180, 180, true},
		{"-180.0001", 180, 0, false},
		{"90.5", 90, 0, false},
		{"NaN", 180, 0, false},
		{"Inf", 180, 0, false},
		{"-infinity", 90, 0, false},
		{"1e300", 180, 0, false},
		{"east", 180, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := parseDegrees(tt.text, tt.limit)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_ZeroCoordinatesAllowed(t *testing.T) {
	rows, errs := psvRows(t, "id|longitude|latitude\np1|0|0.5\n")
	sink := &recordingSink{}
	opts := DefaultOptions()
	opts.SkipZero = false

	stats, err := New(testLayers(), opts).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, "SA-A", sink.rows[0].Results[0].Code)
	assert.Equal(t, 0, stats.Rejected)
}

func TestRun_MissingColumn(t *testing.T) {
	rows, errs := psvRows(t, "id|lon|lat\np1|0.5|0.5\n")

	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, &recordingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"longitude"`)
}

func TestRun_EmptyInput(t *testing.T) {
	rows, errs := psvRows(t, "")

	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, &recordingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header")
}

func TestRun_HeaderOnly(t *testing.T) {
	rows, errs := psvRows(t, "id|longitude|latitude\n")
	sink := &recordingSink{}

	stats, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)
	assert.Empty(t, sink.rows)
	assert.Equal(t, []string{"sa1_code", "lga_code"}, sink.layers)
	assert.Equal(t, 0, stats.Written)
}

func TestRun_EmptyLayerYieldsEmptyCode(t *testing.T) {
	layers := []Layer{{Column: "poa", Store: boundary.NewStore("poa", nil)}}
	rows, errs := psvRows(t, "id|longitude|latitude\np1|0.5|0.5\n")
	sink := &recordingSink{}

	stats, err := New(layers, DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, []string{""}, sink.rows[0].Codes())
	assert.Equal(t, 1, stats.Layers[0].NotFound)
}

func TestRun_ConcurrentPreservesOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("id|longitude|latitude\n")
	for i := range 250 {
		lon := "0.5"
		if i%2 == 1 {
			lon = "1.5"
		}
		b.WriteString("p")
		b.WriteString(strings.Repeat("x", i%3))
		b.WriteString("|" + lon + "|0.5\n")
	}

	sequential := &recordingSink{}
	rows, errs := psvRows(t, b.String())
	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sequential)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Concurrency = 4
	opts.ChunkSize = 16
	parallel := &recordingSink{}
	rows, errs = psvRows(t, b.String())
	stats, err := New(testLayers(), opts).Run(context.Background(), rows, errs, parallel)
	require.NoError(t, err)

	assert.Equal(t, 250, stats.Written)
	assert.Equal(t, sequential.rows, parallel.rows)
}

func TestRun_GroupRollup(t *testing.T) {
	input := "id|postcode|longitude|latitude\n" +
		"p1|2000|0.25|0.25\n" +
		"p2|2000|0.75|0.75\n" +
		"p3|3000|1.5|0.5\n" +
		"p4||1.5|0.5\n"
	rows, errs := psvRows(t, input)
	sink := &recordingSink{}
	opts := DefaultOptions()
	opts.GroupBy = "postcode"

	stats, err := New(testLayers(), opts).Run(context.Background(), rows, errs, sink)
	require.NoError(t, err)

	require.Len(t, sink.rows, 6)
	g1, g2 := sink.rows[4], sink.rows[5]
	assert.Equal(t, "2000", g1.ID)
	assert.Equal(t, "0.5", g1.Lon)
	assert.Equal(t, "0.5", g1.Lat)
	assert.Equal(t, "SA-A", g1.Results[0].Code)
	assert.Equal(t, "3000", g2.ID)
	assert.Equal(t, "SA-B", g2.Results[0].Code)
	assert.Equal(t, 2, stats.Groups)
	assert.Equal(t, 6, stats.Written)
}

func TestRun_GroupColumnMissing(t *testing.T) {
	rows, errs := psvRows(t, "id|longitude|latitude\n")
	opts := DefaultOptions()
	opts.GroupBy = "postcode"

	_, err := New(testLayers(), opts).Run(context.Background(), rows, errs, &recordingSink{})
	assert.Error(t, err)
}

func TestRun_SinkFailure(t *testing.T) {
	rows, errs := psvRows(t, "id|longitude|latitude\np1|0.5|0.5\np2|0.5|0.5\n")
	sink := &recordingSink{failAt: 2}

	stats, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, stats.Written)
}

func TestRun_StreamError(t *testing.T) {
	rows := make(chan fetcher.Row, 1)
	errs := make(chan error, 1)
	rows <- fetcher.Row{Num: 1, Fields: []string{"id", "longitude", "latitude"}}
	close(rows)
	errs <- errors.New("truncated file")
	close(errs)

	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, &recordingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated file")
}

func TestRun_WritesPSV(t *testing.T) {
	var buf bytes.Buffer
	w := NewPSVWriter(&buf)
	rows, errs := psvRows(t, "id|longitude|latitude\np1|0.5|0.5\np2|1.5|1.5\n")

	_, err := New(testLayers(), DefaultOptions()).Run(context.Background(), rows, errs, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t,
		"id|sa1_code|lga_code|longitude|latitude\n"+
			"p1|SA-A|LGA-1|0.5|0.5\n"+
			"p2|SA-B|LGA-1|1.5|1.5\n",
		buf.String())
}

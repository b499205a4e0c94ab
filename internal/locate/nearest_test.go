package locate

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/region-cli/internal/boundary"
)

func TestNearest_UnitSquare(t *testing.T) {
	s := layer(unitSquare("SQ"))

	code, ok := Nearest(Point{Lon: 2, Lat: 2}, s)
	require.True(t, ok)
	assert.Equal(t, "SQ", code)
	assert.Equal(t, 2.0, SegmentDistance2(geom.Coord{2, 2}, geom.Coord{1, 1}, geom.Coord{1, 0}))
}

func TestNearest_PicksClosestPolygon(t *testing.T) {
	s := layer(
		unitSquare("A"),
		boundary.NewPolygon("B", []geom.Coord{{3, 0}, {3, 1}, {4, 1}, {4, 0}}),
	)

	code, ok := Nearest(Point{Lon: 2.6, Lat: 0.5}, s)
	require.True(t, ok)
	assert.Equal(t, "B", code)

	code, ok = Nearest(Point{Lon: 1.4, Lat: 5}, s)
	require.True(t, ok)
	assert.Equal(t, "A", code)
}

func TestNearest_TieKeepsFirst(t *testing.T) {
	a := unitSquare("A")
	b := boundary.NewPolygon("B", []geom.Coord{{3, 0}, {3, 1}, {4, 1}, {4, 0}})
	p := Point{Lon: 2, Lat: 0.5}

	code, _ := Nearest(p, layer(a, b))
	assert.Equal(t, "A", code)
	code, _ = Nearest(p, layer(b, a))
	assert.Equal(t, "B", code)
}

func TestNearest_EmptyAndNonPolygon(t *testing.T) {
	_, ok := Nearest(Point{}, layer())
	assert.False(t, ok)

	other := unitSquare("LINE")
	other.Kind = boundary.KindOther
	_, ok = Nearest(Point{}, layer(other))
	assert.False(t, ok)
}

func TestSegmentDistance2(t *testing.T) {
	a, b := geom.Coord{0, 0}, geom.Coord{2, 0}

	assert.InDelta(t, 1.0, SegmentDistance2(geom.Coord{1, 1}, a, b), 1e-12)
	assert.InDelta(t, 2.0, SegmentDistance2(geom.Coord{-1, 1}, a, b), 1e-12)
	assert.InDelta(t, 5.0, SegmentDistance2(geom.Coord{3, 2}, a, b), 1e-12)
	assert.InDelta(t, 0.0, SegmentDistance2(geom.Coord{1, 0}, a, b), 1e-12)
	// Zero-length segment degrades to point distance.
	assert.InDelta(t, 25.0, SegmentDistance2(geom.Coord{3, 4}, a, a), 1e-12)
}

func TestNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	var polys []boundary.Polygon
	for i := range 8 {
		cx, cy := rng.Float64()*20, rng.Float64()*20
		var coords []geom.Coord
		for k := range 5 {
			angle := float64(k) * 2 * math.Pi / 5
			r := 0.5 + rng.Float64()
			coords = append(coords, geom.Coord{cx + r*math.Cos(angle), cy + r*math.Sin(angle)})
		}
		polys = append(polys, boundary.NewPolygon(string(rune('A'+i)), coords))
	}
	s := layer(polys...)

	for range 300 {
		p := Point{Lon: rng.Float64()*30 - 5, Lat: rng.Float64()*30 - 5}

		bestCode, best := "", math.Inf(1)
		for _, poly := range polys {
			ring := poly.Rings[0]
			for j := 0; j+1 < ring.NumCoords(); j++ {
				a, b := ring.Coord(j), ring.Coord(j+1)
				d := planar.DistanceFromSegmentSquared(orb.Point{a[0], a[1]}, orb.Point{b[0], b[1]}, orb.Point{p.Lon, p.Lat})
				if d < best {
					best, bestCode = d, poly.Code
				}
			}
		}

		code, ok := Nearest(p, s)
		require.True(t, ok)
		assert.Equal(t, bestCode, code, "point %+v", p)
	}
}

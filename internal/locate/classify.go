package locate

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/region-cli/internal/boundary"
)

// Classify returns the first polygon, in load order, that contains p.
// Points on an edge or vertex are contained. The result is NotFound when
// no polygon contains p.
func Classify(p Point, s *boundary.Store) Result {
	pt := p.Coord()
	for i := 0; i < s.Len(); i++ {
		poly := s.At(i)
		if !poly.IsPolygon() || !poly.Covers(p.Lon, p.Lat) {
			continue
		}
		for _, ring := range poly.Rings {
			if ringContains(ring, pt) {
				return Result{Match: Contained, Code: poly.Code}
			}
		}
	}
	return Result{Match: NotFound}
}

// ringContains walks a closed ring counting crossings of the ray east of pt.
func ringContains(ring *geom.LinearRing, pt geom.Coord) bool {
	n := ring.NumCoords()
	count := 0
	for i := 0; i+1 < n; i++ {
		a, b := ring.Coord(i), ring.Coord(i+1)
		if a[0] == pt[0] && a[1] == pt[1] {
			return true
		}

		// A segment ending on the ray is counted as the next one's start.
		if a[1] != b[1] && b[1] == pt[1] {
			continue
		}

		inflection := false
		if a[1] == pt[1] && a[1] != b[1] {
			inflection = IsInflection(ring.Coord(prevOffLatitude(ring, i)), a, b)
		}

		crosses, onEdge := Cross(pt, a, b, inflection)
		if onEdge {
			return true
		}
		if crosses {
			count++
		}
	}
	// A ring of one vertex has no segments; its only point is ring.Coord(0).
	if n == 1 {
		v := ring.Coord(0)
		return v[0] == pt[0] && v[1] == pt[1]
	}
	return count%2 == 1
}

// prevOffLatitude returns the index of the closest vertex before i, going
// backwards around the closed ring, whose latitude differs from vertex i's.
// The ring's last vertex repeats its first, so it is skipped when wrapping.
func prevOffLatitude(ring *geom.LinearRing, i int) int {
	n := ring.NumCoords()
	lat := ring.Coord(i)[1]
	j := i
	for k := 0; k < n-1; k++ {
		j--
		if j < 0 {
			j = n - 2
		}
		if ring.Coord(j)[1] != lat {
			return j
		}
	}
	if i == 0 {
		return n - 2
	}
	return i - 1
}

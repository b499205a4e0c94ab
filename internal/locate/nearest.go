package locate

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/region-cli/internal/boundary"
)

// Nearest returns the code of the polygon with an edge closest to p, by
// planar distance in degrees. Ties keep the polygon met first. It scans
// every segment of every polygon; ok is false when the layer has none.
func Nearest(p Point, s *boundary.Store) (code string, ok bool) {
	pt := p.Coord()
	var best float64
	for i := 0; i < s.Len(); i++ {
		poly := s.At(i)
		if !poly.IsPolygon() {
			continue
		}
		for _, ring := range poly.Rings {
			for j := 0; j+1 < ring.NumCoords(); j++ {
				d := SegmentDistance2(pt, ring.Coord(j), ring.Coord(j+1))
				if !ok || d < best {
					best, code, ok = d, poly.Code, true
				}
			}
		}
	}
	return code, ok
}

// SegmentDistance2 returns the squared distance from p to the closest
// point of segment a→b.
func SegmentDistance2(p, a, b geom.Coord) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	segLen := dx*dx + dy*dy
	if segLen == 0 {
		return dist2(p[0], p[1], a[0], a[1])
	}

	u := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / segLen
	u = min(max(u, 0), 1)
	return dist2(p[0], p[1], a[0]+u*dx, a[1]+u*dy)
}

func dist2(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return dx*dx + dy*dy
}

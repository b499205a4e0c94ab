// Package locate finds the boundary polygon containing a point by even-odd
// ray casting, falling back to the polygon with the nearest edge.
package locate

import (
	"github.com/twpayne/go-geom"
)

// Cross reports whether a ray running east from p crosses the segment a→b,
// and whether p lies exactly on that segment. Coordinates are lon/lat.
// inflection marks a as a vertex where the ring turns back on itself in
// latitude; a ray touching it there is not a crossing.
func Cross(p, a, b geom.Coord, inflection bool) (crosses, onEdge bool) {
	lon, lat := p[0], p[1]

	// The segment is entirely west of p, or does not span p's latitude.
	if lon > a[0] && lon > b[0] {
		return false, false
	}
	if (lat > a[1] && lat > b[1]) || (lat < a[1] && lat < b[1]) {
		return false, false
	}

	// Horizontal at p's latitude: the ray runs along it. p is on the edge
	// if it sits between the endpoints; it is never counted as a crossing.
	if a[1] == b[1] {
		return false, lon >= min(a[0], b[0])
	}

	r := (a[1] - lat) / (a[1] - b[1])
	crossLon := a[0] + r*(b[0]-a[0])

	switch {
	case lon > crossLon:
		return false, false
	case r == 0 && inflection:
		return false, false
	case crossLon == lon:
		return false, true
	}
	return true, false
}

// IsInflection reports whether the ring touches v's latitude and turns
// back: prev and next both lie strictly on the same side of it. A ray at
// v's latitude grazes such a vertex without entering or leaving the ring.
// prev should be the nearest preceding vertex whose latitude differs from
// v's, so that horizontal runs are looked through.
func IsInflection(prev, v, next geom.Coord) bool {
	return (prev[1]-v[1])*(next[1]-v[1]) > 0
}

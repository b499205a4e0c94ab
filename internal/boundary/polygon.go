// Package boundary holds the administrative boundary polygons a point is
// located against, and loads them from shapefiles.
package boundary

import (
	"github.com/twpayne/go-geom"
)

// ShapeKind discriminates the shapefile geometry a Polygon was decoded from.
type ShapeKind int

// Shape kinds. Only KindPolygon takes part in point location.
const (
	KindOther ShapeKind = iota
	KindPolygon
)

// String returns the shape kind name.
func (k ShapeKind) String() string {
	if k == KindPolygon {
		return "polygon"
	}
	return "other"
}

// Polygon is one region of a layer: its region code, bounding box and rings.
// Rings are stored closed; the last vertex always equals the first.
type Polygon struct {
	Code   string
	Kind   ShapeKind
	Bounds *geom.Bounds
	Rings  []*geom.LinearRing
}

// NewPolygon builds a KindPolygon from rings of lon/lat coordinates.
// Open rings are closed and the bounds are computed from the vertices.
func NewPolygon(code string, rings ...[]geom.Coord) Polygon {
	p := Polygon{
		Code:   code,
		Kind:   KindPolygon,
		Bounds: geom.NewBounds(geom.XY),
	}
	for _, coords := range rings {
		ring := closedRing(coords)
		if ring == nil {
			continue
		}
		p.Bounds.Extend(ring)
		p.Rings = append(p.Rings, ring)
	}
	return p
}

// IsPolygon reports whether p takes part in point location.
func (p *Polygon) IsPolygon() bool {
	return p.Kind == KindPolygon
}

// Covers reports whether lon/lat falls inside the bounding box, edges included.
func (p *Polygon) Covers(lon, lat float64) bool {
	if p.Bounds == nil || p.Bounds.IsEmpty() {
		return false
	}
	return p.Bounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

// NumVertices returns the vertex count across all rings.
func (p *Polygon) NumVertices() int {
	var n int
	for _, r := range p.Rings {
		n += r.NumCoords()
	}
	return n
}

// closedRing returns a linear ring over coords with the closing vertex
// appended when the sequence does not already end where it started.
func closedRing(coords []geom.Coord) *geom.LinearRing {
	if len(coords) == 0 {
		return nil
	}
	flat := make([]float64, 0, (len(coords)+1)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		flat = append(flat, first[0], first[1])
	}
	return geom.NewLinearRingFlat(geom.XY, flat)
}

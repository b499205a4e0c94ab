package boundary

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Store is an immutable, ordered collection of polygons for one layer.
// It is built once and shared read-only; nothing may modify the polygons
// it hands out.
type Store struct {
	name     string
	source   string
	polygons []Polygon
	skipped  int
}

// NewStore copies polygons into a new Store named after its layer.
func NewStore(name string, polygons []Polygon) *Store {
	s := &Store{
		name:     name,
		polygons: make([]Polygon, len(polygons)),
	}
	copy(s.polygons, polygons)
	for i := range s.polygons {
		if !s.polygons[i].IsPolygon() {
			s.skipped++
		}
	}
	return s
}

// Name returns the layer name. It doubles as the output column header.
func (s *Store) Name() string { return s.name }

// Source returns the path the store was loaded from, if any.
func (s *Store) Source() string { return s.source }

// Len returns the number of shapes in load order, polygon or not.
func (s *Store) Len() int { return len(s.polygons) }

// At returns the i-th shape in load order.
func (s *Store) At(i int) *Polygon { return &s.polygons[i] }

// Skipped returns how many shapes are not polygons and so never match.
func (s *Store) Skipped() int { return s.skipped }

// Bounds returns the union of all polygon bounding boxes.
func (s *Store) Bounds() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for i := range s.polygons {
		p := &s.polygons[i]
		if !p.IsPolygon() || p.Bounds == nil || p.Bounds.IsEmpty() {
			continue
		}
		minLon = math.Min(minLon, p.Bounds.Min(0))
		minLat = math.Min(minLat, p.Bounds.Min(1))
		maxLon = math.Max(maxLon, p.Bounds.Max(0))
		maxLat = math.Max(maxLat, p.Bounds.Max(1))
	}
	if minLon > maxLon {
		return b
	}
	return b.Set(minLon, minLat, maxLon, maxLat)
}

// Package boundarytest writes small shapefile fixtures for tests.
package boundarytest

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// Shape is one fixture polygon: its region code and rings of lon/lat pairs.
type Shape struct {
	Code  string
	Rings [][][2]float64
}

// Square returns a single-ring axis-aligned rectangle, wound clockwise as
// shapefiles expect for outer rings.
func Square(code string, minLon, minLat, maxLon, maxLat float64) Shape {
	return Shape{
		Code: code,
		Rings: [][][2]float64{{
			{minLon, minLat},
			{minLon, maxLat},
			{maxLon, maxLat},
			{maxLon, minLat},
			{minLon, minLat},
		}},
	}
}

// WriteShapefile writes shapes to dir/name.shp (with .shx and .dbf) using a
// single string attribute named field for the region code. Returns the .shp path.
func WriteShapefile(t testing.TB, dir, name, field string, shapes []Shape) string {
	t.Helper()

	path := filepath.Join(dir, name+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	w.SetFields([]shp.Field{shp.StringField(field, 32)})
	for i, s := range shapes {
		parts := make([][]shp.Point, 0, len(s.Rings))
		for _, ring := range s.Rings {
			pts := make([]shp.Point, 0, len(ring))
			for _, v := range ring {
				pts = append(pts, shp.Point{X: v[0], Y: v[1]})
			}
			parts = append(parts, pts)
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, s.Code))
	}
	w.Close()

	return path
}

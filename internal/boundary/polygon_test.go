package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestNewPolygon_ClosesOpenRing(t *testing.T) {
	p := NewPolygon("SQ", []geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}})

	require.Len(t, p.Rings, 1)
	ring := p.Rings[0]
	require.Equal(t, 5, ring.NumCoords())
	assert.Equal(t, geom.Coord{0, 0}, ring.Coord(4))
}

func TestNewPolygon_KeepsClosedRing(t *testing.T) {
	p := NewPolygon("SQ", []geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}})

	require.Len(t, p.Rings, 1)
	assert.Equal(t, 5, p.Rings[0].NumCoords())
	assert.Equal(t, 5, p.NumVertices())
}

func TestNewPolygon_Bounds(t *testing.T) {
	p := NewPolygon("TRI", []geom.Coord{{-1, 2}, {3, 5}, {4, -2}})

	assert.Equal(t, KindPolygon, p.Kind)
	assert.Equal(t, -1.0, p.Bounds.Min(0))
	assert.Equal(t, -2.0, p.Bounds.Min(1))
	assert.Equal(t, 4.0, p.Bounds.Max(0))
	assert.Equal(t, 5.0, p.Bounds.Max(1))
}

func TestNewPolygon_SkipsEmptyRing(t *testing.T) {
	p := NewPolygon("EMPTY", nil, []geom.Coord{{0, 0}, {1, 0}, {0, 1}})
	assert.Len(t, p.Rings, 1)
}

func TestPolygon_CoversInclusive(t *testing.T) {
	p := NewPolygon("SQ", []geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}})

	tests := []struct {
		name     string
		lon, lat float64
		want     bool
	}{
		{"interior", 0.5, 0.5, true},
		{"west edge", 0, 0.5, true},
		{"corner", 1, 1, true},
		{"east edge", 1, 0.5, true},
		{"south-west corner", 0, 0, true},
		{"east of box", 1.0001, 0.5, false},
		{"south of box", 0.5, -0.1, false},
		{"north of box", 0.5, 2, false},
		{"west of box", -3, 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Covers(tt.lon, tt.lat))
		})
	}
}

func TestPolygon_CoversEmptyBounds(t *testing.T) {
	p := Polygon{Code: "X", Kind: KindPolygon}
	assert.False(t, p.Covers(0, 0))

	p.Bounds = geom.NewBounds(geom.XY)
	assert.False(t, p.Covers(0, 0))
}

func TestShapeKind_String(t *testing.T) {
	assert.Equal(t, "polygon", KindPolygon.String())
	assert.Equal(t, "other", KindOther.String())
}

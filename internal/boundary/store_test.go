package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

func TestNewStore_CopiesInput(t *testing.T) {
	polys := []Polygon{
		NewPolygon("A", []geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}}),
		{Code: "LINE", Kind: KindOther},
		NewPolygon("B", []geom.Coord{{1, 0}, {1, 1}, {2, 1}, {2, 0}}),
	}
	s := NewStore("SA1", polys)
	polys[0].Code = "changed"

	assert.Equal(t, "SA1", s.Name())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, s.Skipped())
	assert.Equal(t, "A", s.At(0).Code)
	assert.Equal(t, "B", s.At(2).Code)
}

func TestStore_Bounds(t *testing.T) {
	s := NewStore("SA1", []Polygon{
		NewPolygon("A", []geom.Coord{{0, 0}, {0, 1}, {1, 1}, {1, 0}}),
		NewPolygon("B", []geom.Coord{{1, -2}, {1, 1}, {5, 1}, {5, -2}}),
		{Code: "LINE", Kind: KindOther},
	})

	b := s.Bounds()
	assert.Equal(t, 0.0, b.Min(0))
	assert.Equal(t, -2.0, b.Min(1))
	assert.Equal(t, 5.0, b.Max(0))
	assert.Equal(t, 1.0, b.Max(1))
}

func TestStore_BoundsEmpty(t *testing.T) {
	s := NewStore("EMPTY", nil)
	assert.True(t, s.Bounds().IsEmpty())
	assert.Equal(t, 0, s.Len())
}

package locate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/region-cli/internal/boundary"
)

func TestLocate(t *testing.T) {
	s := layer(unitSquare("SQ"))

	assert.Equal(t, Result{Match: Contained, Code: "SQ"}, Locate(Point{Lon: 0.5, Lat: 0.5}, s))
	assert.Equal(t, Result{Match: NearestFallback, Code: "SQ"}, Locate(Point{Lon: 2, Lat: 2}, s))
	assert.Equal(t, Result{Match: NotFound}, Locate(Point{Lon: 2, Lat: 2}, layer()))
}

func TestLocateAll(t *testing.T) {
	sa1 := boundary.NewStore("SA1", []boundary.Polygon{unitSquare("S1")})
	lga := boundary.NewStore("LGA", []boundary.Polygon{
		boundary.NewPolygon("L1", []geom.Coord{{5, 5}, {5, 6}, {6, 6}, {6, 5}}),
	})
	empty := boundary.NewStore("POA", nil)

	results := LocateAll(Point{Lon: 0.5, Lat: 0.5}, []*boundary.Store{sa1, lga, empty})
	require.Len(t, results, 3)
	assert.Equal(t, Result{Match: Contained, Code: "S1"}, results[0])
	assert.Equal(t, Result{Match: NearestFallback, Code: "L1"}, results[1])
	assert.Equal(t, Result{Match: NotFound}, results[2])
}

func TestMatch_Text(t *testing.T) {
	assert.Equal(t, "contained", Contained.String())
	assert.Equal(t, "nearest", NearestFallback.String())
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "unknown", Match(9).String())

	data, err := json.Marshal(map[string]Match{"m": NearestFallback})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m":"nearest"}`, string(data))

	_, err = Match(-1).MarshalText()
	assert.Error(t, err)

	var decoded map[string]Match
	require.NoError(t, json.Unmarshal([]byte(`{"a":"contained","b":"not_found"}`), &decoded))
	assert.Equal(t, Contained, decoded["a"])
	assert.Equal(t, NotFound, decoded["b"])
	assert.Error(t, json.Unmarshal([]byte(`{"a":"inside"}`), &decoded))
}

func TestResult_Found(t *testing.T) {
	assert.True(t, Result{Match: Contained}.Found())
	assert.True(t, Result{Match: NearestFallback}.Found())
	assert.False(t, Result{}.Found())
}

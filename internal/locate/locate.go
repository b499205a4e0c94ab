package locate

import (
	"github.com/sells-group/region-cli/internal/boundary"
)

// Locate classifies p against one layer and, when no polygon contains it,
// falls back to the nearest polygon.
func Locate(p Point, s *boundary.Store) Result {
	if r := Classify(p, s); r.Found() {
		return r
	}
	if code, ok := Nearest(p, s); ok {
		return Result{Match: NearestFallback, Code: code}
	}
	return Result{Match: NotFound}
}

// LocateAll runs Locate against each layer, returning results in layer order.
func LocateAll(p Point, layers []*boundary.Store) []Result {
	results := make([]Result, len(layers))
	for i, s := range layers {
		results[i] = Locate(p, s)
	}
	return results
}

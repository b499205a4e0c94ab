package locate

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Match says how a region code was found for a point.
type Match int

// Match kinds.
const (
	NotFound Match = iota
	Contained
	NearestFallback
)

var matchNames = [...]string{"not_found", "contained", "nearest"}

// String returns the match name used in logs and output.
func (m Match) String() string {
	if m < 0 || int(m) >= len(matchNames) {
		return "unknown"
	}
	return matchNames[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m Match) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(matchNames) {
		return nil, eris.Errorf("locate: unknown match %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Match) UnmarshalText(text []byte) error {
	for i, name := range matchNames {
		if string(text) == name {
			*m = Match(i)
			return nil
		}
	}
	return eris.Errorf("locate: unknown match %q", text)
}

// Result is the outcome of locating one point in one layer.
type Result struct {
	Match Match
	Code  string
}

// Found reports whether a region code was assigned.
func (r Result) Found() bool { return r.Match != NotFound }

// Point is a located input: a correlation id and lon/lat degrees.
type Point struct {
	ID  string
	Lon float64
	Lat float64
}

// Coord returns p as a go-geom XY coordinate.
func (p Point) Coord() geom.Coord { return geom.Coord{p.Lon, p.Lat} }

package boundary

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// EncodeEWKB converts a polygon's rings to EWKB with SRID 4326. Each ring
// becomes its own member of a MultiPolygon, mirroring how the point
// locator treats rings independently. Returns nil, nil for polygons with
// nothing to encode.
func EncodeEWKB(p *Polygon) ([]byte, error) {
	if p == nil || !p.IsPolygon() || len(p.Rings) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for i, ring := range p.Rings {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.String("code", p.Code), zap.Int("ring", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.String("code", p.Code), zap.Int("ring", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: encode EWKB for %s", p.Code)
	}
	return data, nil
}

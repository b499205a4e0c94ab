package boundary

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/region-cli/internal/fetcher"
)

// Source describes one boundary layer on disk.
type Source struct {
	Name      string // layer name, also the output column header
	Path      string // .shp file, or a .zip bundle holding one
	CodeField string // attribute field holding the region code
}

// Load reads a layer's shapefile into a Store. The region code attribute is
// resolved once per shape here so lookups never touch the attribute table.
func Load(src Source) (*Store, error) {
	if src.Path == "" {
		return nil, eris.Errorf("boundary: layer %q has no path", src.Name)
	}
	if src.CodeField == "" {
		return nil, eris.Errorf("boundary: layer %q has no code field", src.Name)
	}
	if _, err := os.Stat(src.Path); err != nil {
		return nil, eris.Wrapf(err, "boundary: layer %q", src.Name)
	}

	shpPath := src.Path
	if strings.EqualFold(filepath.Ext(shpPath), ".zip") {
		dir, err := os.MkdirTemp("", "region-cli-*")
		if err != nil {
			return nil, eris.Wrap(err, "boundary: create extract dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		shpPath, err = fetcher.ExtractShapefile(src.Path, dir)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: extract layer %q", src.Name)
		}
	}

	polygons, err := readShapefile(shpPath, src.CodeField)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: load layer %q", src.Name)
	}

	store := NewStore(src.Name, polygons)
	store.source = src.Path

	zap.L().Info("boundary layer loaded",
		zap.String("layer", src.Name),
		zap.String("path", src.Path),
		zap.Int("shapes", store.Len()),
		zap.Int("skipped", store.Skipped()),
	)
	return store, nil
}

// readShapefile decodes every shape of a shapefile with its region code.
func readShapefile(shpPath, codeField string) ([]Polygon, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, codeField)
	if codeIdx < 0 {
		return nil, eris.Errorf("boundary: field %q not found in %s", codeField, shpPath)
	}

	dec, err := attributeDecoder(shpPath)
	if err != nil {
		return nil, err
	}

	var polygons []Polygon
	for reader.Next() {
		_, shape := reader.Shape()
		code := decodeAttribute(dec, reader.Attribute(codeIdx))
		polygons = append(polygons, toPolygon(code, shape))
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: read shapefile %s", shpPath)
	}

	return polygons, nil
}

// toPolygon converts a decoded shape. Anything but a plain polygon becomes
// a KindOther entry so load order and counts still match the shapefile.
func toPolygon(code string, shape shp.Shape) Polygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil {
		return Polygon{Code: code, Kind: KindOther}
	}

	poly := Polygon{
		Code:   code,
		Kind:   KindPolygon,
		Bounds: geom.NewBounds(geom.XY).Set(p.Box.MinX, p.Box.MinY, p.Box.MaxX, p.Box.MaxY),
	}

	numPoints := int32(len(p.Points))
	for i := int32(0); i < p.NumParts && int(i) < len(p.Parts); i++ {
		start := p.Parts[i]
		end := numPoints
		if i+1 < p.NumParts && int(i+1) < len(p.Parts) {
			end = p.Parts[i+1]
		}
		if start < 0 || start >= end || end > numPoints {
			zap.L().Debug("boundary: skipping malformed ring",
				zap.String("code", code),
				zap.Int32("part", i),
			)
			continue
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		if ring := closedRing(coords); ring != nil {
			poly.Rings = append(poly.Rings, ring)
		}
	}

	return poly
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// attributeDecoder returns a decoder for the code page named in the
// shapefile's .cpg sidecar, or nil when attributes are already UTF-8.
func attributeDecoder(shpPath string) (*encoding.Decoder, error) {
	cpgPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg"
	data, err := os.ReadFile(cpgPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", cpgPath)
	}

	name := codePageName(string(data))
	if name == "" || name == "utf-8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: unsupported code page %q", name)
	}
	return enc.NewDecoder(), nil
}

// codePageName maps .cpg contents ("UTF-8", "1252", "ANSI 1252",
// "ISO-8859-1") onto an htmlindex name.
func codePageName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "ansi ")
	switch name {
	case "", "utf8", "utf-8", "65001":
		return "utf-8"
	}
	if strings.IndexFunc(name, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "windows-" + name
	}
	return name
}

func decodeAttribute(dec *encoding.Decoder, raw string) string {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if dec == nil || val == "" {
		return val
	}
	decoded, err := dec.String(val)
	if err != nil {
		return val
	}
	return decoded
}

package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ReadShapefile loads a shapefile and its .prj sidecar. Numeric DBF fields
// become float64 attributes, everything else strings. Records with a null
// shape are skipped; IDs keep the record's position in the file.
func ReadShapefile(path string) (*FeatureSet, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	numeric := make([]bool, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		numeric[i] = f.Fieldtype == 'N' || f.Fieldtype == 'F'
	}

	fs := &FeatureSet{Fields: names}
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]any, len(fields))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			switch {
			case val == "":
				attrs[name] = nil
			case numeric[i]:
				f, perr := strconv.ParseFloat(val, 64)
				if perr != nil {
					attrs[name] = val
					continue
				}
				attrs[name] = f
			default:
				attrs[name] = val
			}
		}
		fs.Features = append(fs.Features, Feature{ID: n, Geom: g, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("vector: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	prj, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	switch {
	case err == nil:
		fs.CRS = strings.TrimSpace(string(prj))
	case os.IsNotExist(err):
		zap.L().Warn("vector: shapefile has no .prj", zap.String("path", path))
	default:
		return nil, eris.Wrapf(err, "vector: read projection for %s", path)
	}
	return fs, nil
}

// WriteShapefile writes a single-class feature set and, when the set has a
// CRS, a .prj sidecar containing it.
func WriteShapefile(path string, fs *FeatureSet) error {
	var shapeType shp.ShapeType
	switch fs.GeomType() {
	case Point:
		shapeType = shp.POINT
		for _, f := range fs.Features {
			if _, ok := f.Geom.(*geom.MultiPoint); ok {
				shapeType = shp.MULTIPOINT
				break
			}
		}
	case Line:
		shapeType = shp.POLYLINE
	case Polygon:
		shapeType = shp.POLYGON
	default:
		return eris.Wrap(ErrGeometryType, "vector: write shapefile needs a single geometry class")
	}

	w, err := shp.Create(path, shapeType)
	if err != nil {
		return eris.Wrapf(err, "vector: create shapefile %s", path)
	}
	defer w.Close()

	dbf := make([]shp.Field, len(fs.Fields))
	for i, name := range fs.Fields {
		short := name
		if len(short) > 10 {
			short = short[:10]
		}
		if isNumericField(fs, name) {
			dbf[i] = shp.FloatField(short, 24, 8)
		} else {
			dbf[i] = shp.StringField(short, 254)
		}
	}
	if len(dbf) > 0 {
		if err := w.SetFields(dbf); err != nil {
			return eris.Wrap(err, "vector: set shapefile fields")
		}
	}

	numeric := make([]bool, len(dbf))
	for i, f := range dbf {
		numeric[i] = f.Fieldtype == 'F'
	}

	for _, f := range fs.Features {
		row := int(w.Write(geomToShape(f.Geom, shapeType)))
		for i, name := range fs.Fields {
			raw := f.Attrs[name]
			if raw == nil {
				continue
			}
			var v any = fmt.Sprint(raw)
			if numeric[i] {
				v, _ = toFloat(raw)
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "vector: write attribute %s row %d", name, row)
			}
		}
	}

	if fs.CRS != "" {
		prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
		if err := os.WriteFile(prj, []byte(fs.CRS), 0o644); err != nil {
			return eris.Wrapf(err, "vector: write projection %s", prj)
		}
	}
	return nil
}

func isNumericField(fs *FeatureSet, name string) bool {
	seen := false
	for _, f := range fs.Features {
		switch f.Attrs[name].(type) {
		case nil:
		case float64, float32, int, int64:
			seen = true
		default:
			return false
		}
	}
	return seen
}

// shapeToGeom converts a go-shp shape to a go-geom geometry. Polygon rings
// are grouped by orientation: clockwise rings start a new polygon and
// counter-clockwise rings are holes of the preceding one.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points))
	case *shp.PolyLine:
		return polyLineToGeom(s.Parts, s.Points)
	case *shp.Polygon:
		return polygonToGeom(s.Parts, s.Points)
	default:
		return nil
	}
}

func partRange(parts []int32, n, i int) (int, int) {
	start := int(parts[i])
	end := n
	if i+1 < len(parts) {
		end = int(parts[i+1])
	}
	return start, end
}

func polyLineToGeom(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}
	mls := geom.NewMultiLineString(geom.XY)
	for i := range parts {
		start, end := partRange(parts, len(points), i)
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("vector: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	switch mls.NumLineStrings() {
	case 0:
		return nil
	case 1:
		return mls.LineString(0)
	default:
		return mls
	}
}

func polygonToGeom(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}
	var polys []*geom.Polygon
	for i := range parts {
		start, end := partRange(parts, len(points), i)
		flat := flatPoints(points[start:end])
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if signedArea(flat) < 0 || len(polys) == 0 {
			polys = append(polys, geom.NewPolygon(geom.XY))
		}
		if err := polys[len(polys)-1].Push(ring); err != nil {
			zap.L().Debug("vector: skipping malformed polygon ring", zap.Int("part", i), zap.Error(err))
		}
	}
	if len(polys) == 1 {
		return polys[0]
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range polys {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("vector: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	return mp
}

func geomToShape(g geom.T, shapeType shp.ShapeType) shp.Shape {
	switch x := g.(type) {
	case *geom.Point:
		if shapeType == shp.MULTIPOINT {
			return multiPoint(x.FlatCoords(), x.Stride())
		}
		return &shp.Point{X: x.X(), Y: x.Y()}
	case *geom.MultiPoint:
		return multiPoint(x.FlatCoords(), x.Stride())
	case *geom.LineString:
		return shp.NewPolyLine([][]shp.Point{toShpPoints(x.FlatCoords(), x.Stride())})
	case *geom.MultiLineString:
		parts := make([][]shp.Point, 0, x.NumLineStrings())
		for i := 0; i < x.NumLineStrings(); i++ {
			ls := x.LineString(i)
			parts = append(parts, toShpPoints(ls.FlatCoords(), ls.Stride()))
		}
		return shp.NewPolyLine(parts)
	case *geom.Polygon:
		p := shp.Polygon(*shp.NewPolyLine(polygonParts(x, nil)))
		return &p
	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < x.NumPolygons(); i++ {
			parts = polygonParts(x.Polygon(i), parts)
		}
		p := shp.Polygon(*shp.NewPolyLine(parts))
		return &p
	default:
		return &shp.Null{}
	}
}

// polygonParts appends a polygon's rings with the shapefile winding: outer
// ring clockwise, holes counter-clockwise.
func polygonParts(p *geom.Polygon, parts [][]shp.Point) [][]shp.Point {
	for i := 0; i < p.NumLinearRings(); i++ {
		r := p.LinearRing(i)
		pts := toShpPoints(r.FlatCoords(), r.Stride())
		clockwise := signedArea(r.FlatCoords()) < 0
		if (i == 0) != clockwise {
			for a, b := 0, len(pts)-1; a < b; a, b = a+1, b-1 {
				pts[a], pts[b] = pts[b], pts[a]
			}
		}
		parts = append(parts, pts)
	}
	return parts
}

func multiPoint(flat []float64, stride int) *shp.MultiPoint {
	pts := toShpPoints(flat, stride)
	return &shp.MultiPoint{
		Box:       shp.BBoxFromPoints(pts),
		NumPoints: int32(len(pts)),
		Points:    pts,
	}
}

func toShpPoints(flat []float64, stride int) []shp.Point {
	pts := make([]shp.Point, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}

// flatPoints converts shapefile points to flat XY pairs for go-geom.
func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// signedArea is the shoelace area of a flat XY ring; positive when the ring
// runs counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

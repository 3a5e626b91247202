// Package vector holds ordered feature sets and the vector geometry
// operations the analysis layer relies on: shapefile I/O, buffering,
// predicate joins, overlay and reprojection.
package vector

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/units"
)

// ErrGeometryType is returned when an operation receives a feature set of the
// wrong geometry type.
var ErrGeometryType = eris.New("vector: unsupported geometry type")

// GeomType classifies a feature set by the geometry of its features.
type GeomType int

// Geometry classes. Multi-part geometries share the class of their parts.
const (
	Unknown GeomType = iota
	Point
	Line
	Polygon
)

// String implements fmt.Stringer.
func (t GeomType) String() string {
	switch t {
	case Point:
		return "point"
	case Line:
		return "line"
	case Polygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// ClassOf returns the class of a single geometry.
func ClassOf(g geom.T) GeomType {
	switch g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return Point
	case *geom.LineString, *geom.MultiLineString, *geom.LinearRing:
		return Line
	case *geom.Polygon, *geom.MultiPolygon:
		return Polygon
	default:
		return Unknown
	}
}

// Feature is one row of a feature set. ID is the row's original position.
type Feature struct {
	ID    int
	Geom  geom.T
	Attrs map[string]any
}

// FeatureSet is an ordered collection of features sharing a CRS.
type FeatureSet struct {
	Features []Feature
	Fields   []string
	CRS      string
}

// Len returns the number of features.
func (fs *FeatureSet) Len() int { return len(fs.Features) }

// IDs returns the feature identifiers in order.
func (fs *FeatureSet) IDs() []int {
	ids := make([]int, len(fs.Features))
	for i, f := range fs.Features {
		ids[i] = f.ID
	}
	return ids
}

// Geoms returns the geometries in order.
func (fs *FeatureSet) Geoms() []geom.T {
	out := make([]geom.T, len(fs.Features))
	for i, f := range fs.Features {
		out[i] = f.Geom
	}
	return out
}

// GeomType returns the shared class of every feature, or Unknown when the set
// is empty or mixed.
func (fs *FeatureSet) GeomType() GeomType {
	if len(fs.Features) == 0 {
		return Unknown
	}
	t := ClassOf(fs.Features[0].Geom)
	for _, f := range fs.Features[1:] {
		if ClassOf(f.Geom) != t {
			return Unknown
		}
	}
	return t
}

// ValidateType fails with ErrGeometryType unless the set's class is one of
// allowed.
func (fs *FeatureSet) ValidateType(allowed ...GeomType) error {
	t := fs.GeomType()
	for _, a := range allowed {
		if t == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = a.String()
	}
	return eris.Wrapf(ErrGeometryType, "vector: got %s, want %s", t, strings.Join(names, " or "))
}

// Bounds returns the total bounds of all geometries.
func (fs *FeatureSet) Bounds() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	for _, f := range fs.Features {
		if f.Geom != nil {
			b.Extend(f.Geom)
		}
	}
	return b
}

// Unit returns the linear unit of the set's CRS.
func (fs *FeatureSet) Unit() (units.Unit, error) {
	if fs.CRS == "" {
		return units.Unit{}, eris.New("vector: feature set has no CRS")
	}
	u, err := crs.LinearUnit(fs.CRS)
	if err != nil {
		return units.Unit{}, eris.Wrap(err, "vector: resolve linear unit")
	}
	return u, nil
}

// HasField reports whether name is one of the set's attribute columns.
func (fs *FeatureSet) HasField(name string) bool {
	for _, f := range fs.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Column returns an attribute column as floats. Missing or empty values are
// NaN; text that does not parse as a number is an error.
func (fs *FeatureSet) Column(name string) ([]float64, error) {
	if !fs.HasField(name) {
		return nil, eris.Errorf("vector: column %q not found", name)
	}
	out := make([]float64, len(fs.Features))
	for i, f := range fs.Features {
		v, err := toFloat(f.Attrs[name])
		if err != nil {
			return nil, eris.Wrapf(err, "vector: column %q row %d", name, f.ID)
		}
		out[i] = v
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, eris.Errorf("vector: value of type %T is not numeric", v)
	}
}

// Subset returns the features at the given positions, in the given order.
func (fs *FeatureSet) Subset(idx []int) *FeatureSet {
	out := fs.empty(len(idx))
	for _, i := range idx {
		out.Features = append(out.Features, fs.Features[i])
	}
	return out
}

// WithGeoms returns a copy of the set whose i-th feature carries geoms[i].
// Attributes are shared with the receiver.
func (fs *FeatureSet) WithGeoms(geoms []geom.T) *FeatureSet {
	out := fs.empty(len(fs.Features))
	for i, f := range fs.Features {
		out.Features = append(out.Features, Feature{ID: f.ID, Geom: geoms[i], Attrs: f.Attrs})
	}
	return out
}

// Clone deep-copies geometries and attribute maps.
func (fs *FeatureSet) Clone() (*FeatureSet, error) {
	out := fs.empty(len(fs.Features))
	for _, f := range fs.Features {
		g, err := cloneGeom(f.Geom)
		if err != nil {
			return nil, err
		}
		attrs := make(map[string]any, len(f.Attrs))
		for k, v := range f.Attrs {
			attrs[k] = v
		}
		out.Features = append(out.Features, Feature{ID: f.ID, Geom: g, Attrs: attrs})
	}
	return out, nil
}

func (fs *FeatureSet) empty(capacity int) *FeatureSet {
	fields := make([]string, len(fs.Fields))
	copy(fields, fs.Fields)
	return &FeatureSet{
		Features: make([]Feature, 0, capacity),
		Fields:   fields,
		CRS:      fs.CRS,
	}
}

func cloneGeom(g geom.T) (geom.T, error) {
	if g == nil {
		return nil, nil
	}
	b, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "vector: encode WKB")
	}
	out, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "vector: decode WKB")
	}
	return out, nil
}

// Area returns the planar area of polygonal geometries and 0 otherwise.
func Area(g geom.T) float64 {
	switch x := g.(type) {
	case *geom.Polygon:
		return x.Area()
	case *geom.MultiPolygon:
		return x.Area()
	default:
		return 0
	}
}

// Length returns the planar length of linear geometries and 0 otherwise.
func Length(g geom.T) float64 {
	switch x := g.(type) {
	case *geom.LineString:
		return x.Length()
	case *geom.MultiLineString:
		return x.Length()
	case *geom.LinearRing:
		return x.Length()
	default:
		return 0
	}
}

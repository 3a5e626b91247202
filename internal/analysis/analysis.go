// Package analysis composes units, grids, rasters and the proximity index
// into per-feature suitability inputs: distances, densities, IDW surfaces
// and zonal summaries. Every result is a series aligned with the input
// feature IDs.
package analysis

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/units"
	"github.com/sells-group/landsuit/internal/vector"
)

// ErrGeometryType is returned when an input or target layer has the wrong
// geometry class.
var ErrGeometryType = vector.ErrGeometryType

// ErrNeighbors is returned when an IDW neighbour count is not between one and
// the number of value points.
var ErrNeighbors = eris.New("analysis: invalid neighbor count")

// validKind resolves an output kind before any work starts.
func validKind(k model.Kind) (model.Kind, error) {
	kind, err := model.ParseKind(string(k))
	if err != nil {
		return "", eris.Wrap(err, "analysis: output kind")
	}
	return kind, nil
}

// newSeries aligns values with fs and casts them to kind.
func newSeries(name string, fs *vector.FeatureSet, values []float64, kind model.Kind) (*model.Series, error) {
	s, err := model.NewSeries(name, fs.IDs(), values)
	if err != nil {
		return nil, err
	}
	if kind == model.KindFloat64 {
		return s, nil
	}
	return s.Cast(kind)
}

// matchCRS brings other into ref's CRS when both are known and differ.
func matchCRS(ref, other *vector.FeatureSet) (*vector.FeatureSet, error) {
	if ref.CRS == "" || other.CRS == "" || crs.Equal(ref.CRS, other.CRS) {
		return other, nil
	}
	out, err := vector.Reproject(other, ref.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: align layers")
	}
	return out, nil
}

// NativeDistance converts a "<number> <unit>" distance into fs's linear unit.
func NativeDistance(fs *vector.FeatureSet, quantity string) (float64, error) {
	v, u, err := units.ParseQuantity(quantity)
	if err != nil {
		return 0, err
	}
	native, err := fs.Unit()
	if err != nil {
		return 0, eris.Wrap(err, "analysis: search distance needs a projected CRS")
	}
	f, err := u.FactorTo(native)
	if err != nil {
		return 0, err
	}
	return v * f, nil
}

// areaFactor converts square native units of fs into areaUnit; an empty
// areaUnit keeps square native units.
func areaFactor(fs *vector.FeatureSet, areaUnit string) (float64, error) {
	if areaUnit == "" {
		return 1, nil
	}
	target, err := units.Parse(areaUnit)
	if err != nil {
		return 0, err
	}
	native, err := fs.Unit()
	if err != nil {
		return 0, eris.Wrap(err, "analysis: area conversion needs a projected CRS")
	}
	sq, err := native.Squared()
	if err != nil {
		return 0, err
	}
	return sq.FactorTo(target)
}

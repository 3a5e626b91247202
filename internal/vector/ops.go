package vector

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/landsuit/internal/crs"
)

// Predicate is a binary spatial relation evaluated as target <rel> join.
type Predicate string

// Supported predicates.
const (
	Intersects Predicate = "intersects"
	Contains   Predicate = "contains"
	Within     Predicate = "within"
)

// ParsePredicate validates a predicate name.
func ParsePredicate(s string) (Predicate, error) {
	switch p := Predicate(strings.ToLower(strings.TrimSpace(s))); p {
	case Intersects, Contains, Within:
		return p, nil
	default:
		return "", eris.Errorf("vector: unknown predicate %q", s)
	}
}

func (p Predicate) eval(a, b *geos.Geom) bool {
	switch p {
	case Contains:
		return a.Contains(b)
	case Within:
		return a.Within(b)
	default:
		return a.Intersects(b)
	}
}

// Pair links a target feature position to a join feature position.
type Pair struct {
	Target int
	Join   int
}

// alignCRS reprojects other into ref's CRS when both are known and differ.
func alignCRS(ref, other *FeatureSet) (*FeatureSet, error) {
	if ref.CRS == "" || other.CRS == "" || crs.Equal(ref.CRS, other.CRS) {
		return other, nil
	}
	zap.L().Debug("vector: reprojecting layer to match",
		zap.Int("features", other.Len()),
	)
	return Reproject(other, ref.CRS)
}

// SpatialJoin returns every (target, join) pair satisfying pred, ordered by
// target position then join position. The join layer is reprojected to the
// target's CRS first when they differ.
func SpatialJoin(target, join *FeatureSet, pred Predicate) ([]Pair, error) {
	join, err := alignCRS(target, join)
	if err != nil {
		return nil, err
	}
	tg, err := toGEOSAll(target)
	if err != nil {
		return nil, err
	}
	jg, err := toGEOSAll(join)
	if err != nil {
		return nil, err
	}
	ix := newBBoxIndex(join)

	var pairs []Pair
	for i, f := range target.Features {
		for _, j := range ix.candidates(f.Geom.Bounds(), 0) {
			if pred.eval(tg[i], jg[j]) {
				pairs = append(pairs, Pair{Target: i, Join: j})
			}
		}
	}
	return pairs, nil
}

// Aggregation reduces the joined values of one target.
type Aggregation string

// Supported aggregations.
const (
	AggCount Aggregation = "count"
	AggSum   Aggregation = "sum"
	AggMean  Aggregation = "mean"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

// Aggregate reduces join values per target position. Targets with no pairs
// get 0 for count and sum and NaN otherwise. NaN join values are ignored.
func Aggregate(nTargets int, pairs []Pair, values []float64, agg Aggregation) ([]float64, error) {
	groups := make([][]float64, nTargets)
	for _, p := range pairs {
		v := 1.0
		if values != nil {
			v = values[p.Join]
		}
		if math.IsNaN(v) {
			continue
		}
		groups[p.Target] = append(groups[p.Target], v)
	}

	out := make([]float64, nTargets)
	for i, g := range groups {
		switch agg {
		case AggCount:
			out[i] = float64(len(g))
		case AggSum:
			out[i] = floats.Sum(g)
		case AggMean, AggMin, AggMax:
			if len(g) == 0 {
				out[i] = math.NaN()
				continue
			}
			switch agg {
			case AggMean:
				out[i] = floats.Sum(g) / float64(len(g))
			case AggMin:
				out[i] = floats.Min(g)
			default:
				out[i] = floats.Max(g)
			}
		default:
			return nil, eris.Errorf("vector: unknown aggregation %q", agg)
		}
	}
	return out, nil
}

// Erase removes the union of eraser from every input geometry. Features
// erased entirely are dropped; the rest keep their IDs and attributes.
func Erase(input, eraser *FeatureSet) (*FeatureSet, error) {
	eraser, err := alignCRS(input, eraser)
	if err != nil {
		return nil, err
	}
	mask, err := unionGEOS(eraser)
	if err != nil {
		return nil, err
	}
	out := input.empty(input.Len())
	for _, f := range input.Features {
		if mask == nil {
			out.Features = append(out.Features, f)
			continue
		}
		g, err := toGEOS(f.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: erase feature %d", f.ID)
		}
		if !g.Intersects(mask) {
			out.Features = append(out.Features, f)
			continue
		}
		diff := g.Difference(mask)
		if diff.IsEmpty() {
			continue
		}
		ng, err := fromGEOS(diff)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: erase feature %d", f.ID)
		}
		out.Features = append(out.Features, Feature{ID: f.ID, Geom: ng, Attrs: f.Attrs})
	}
	return out, nil
}

// SelectByLocation keeps the input features for which pred holds against at
// least one selector feature, in input order.
func SelectByLocation(input, selector *FeatureSet, pred Predicate) (*FeatureSet, error) {
	pairs, err := SpatialJoin(input, selector, pred)
	if err != nil {
		return nil, err
	}
	var idx []int
	last := -1
	for _, p := range pairs {
		if p.Target != last {
			idx = append(idx, p.Target)
			last = p.Target
		}
	}
	return input.Subset(idx), nil
}

// WithinDistance reports, per input feature, whether any target feature lies
// within dist (in the input's units).
func WithinDistance(input, target *FeatureSet, dist float64) ([]bool, error) {
	if dist < 0 {
		return nil, eris.Errorf("vector: negative distance %g", dist)
	}
	target, err := alignCRS(input, target)
	if err != nil {
		return nil, err
	}
	ig, err := toGEOSAll(input)
	if err != nil {
		return nil, err
	}
	tg, err := toGEOSAll(target)
	if err != nil {
		return nil, err
	}
	ix := newBBoxIndex(target)

	out := make([]bool, input.Len())
	for i, f := range input.Features {
		for _, j := range ix.candidates(f.Geom.Bounds(), dist) {
			if ig[i].Distance(tg[j]) <= dist {
				out[i] = true
				break
			}
		}
	}
	return out, nil
}

// Gridify covers the set's extent with square polygons of the given width,
// laid out row by row from the top-left corner. Each cell carries "row" and
// "col" attributes.
func Gridify(fs *FeatureSet, width float64) (*FeatureSet, error) {
	if width <= 0 {
		return nil, eris.Errorf("vector: grid width must be positive, got %g", width)
	}
	b := fs.Bounds()
	if b.IsEmpty() {
		return nil, eris.New("vector: gridify empty feature set")
	}
	minX, maxY := b.Min(0), b.Max(1)
	cols := int(math.Max(1, math.Ceil((b.Max(0)-minX)/width)))
	rows := int(math.Max(1, math.Ceil((maxY-b.Min(1))/width)))

	out := &FeatureSet{
		Features: make([]Feature, 0, rows*cols),
		Fields:   []string{"row", "col"},
		CRS:      fs.CRS,
	}
	for r := 0; r < rows; r++ {
		top := maxY - float64(r)*width
		for c := 0; c < cols; c++ {
			left := minX + float64(c)*width
			ring := geom.NewLinearRingFlat(geom.XY, []float64{
				left, top,
				left + width, top,
				left + width, top - width,
				left, top - width,
				left, top,
			})
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(ring); err != nil {
				return nil, eris.Wrap(err, "vector: build grid cell")
			}
			out.Features = append(out.Features, Feature{
				ID:    len(out.Features),
				Geom:  poly,
				Attrs: map[string]any{"row": float64(r), "col": float64(c)},
			})
		}
	}
	return out, nil
}

// Reproject transforms every coordinate into targetCRS.
func Reproject(fs *FeatureSet, targetCRS string) (*FeatureSet, error) {
	if fs.CRS == "" {
		return nil, eris.New("vector: reproject feature set without CRS")
	}
	if crs.Equal(fs.CRS, targetCRS) {
		out := fs.WithGeoms(fs.Geoms())
		out.CRS = targetCRS
		return out, nil
	}
	tr, err := crs.Transformer(fs.CRS, targetCRS)
	if err != nil {
		return nil, eris.Wrap(err, "vector: reproject")
	}
	out, err := fs.Clone()
	if err != nil {
		return nil, err
	}
	for _, f := range out.Features {
		if err := transformInPlace(f.Geom, tr); err != nil {
			return nil, eris.Wrapf(err, "vector: reproject feature %d", f.ID)
		}
	}
	out.CRS = targetCRS
	return out, nil
}

func transformInPlace(g geom.T, tr func(x, y float64) (float64, float64, error)) error {
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			if err := transformInPlace(child, tr); err != nil {
				return err
			}
		}
		return nil
	}
	flat, stride := g.FlatCoords(), g.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := tr(flat[i], flat[i+1])
		if err != nil {
			return err
		}
		flat[i], flat[i+1] = x, y
	}
	return nil
}

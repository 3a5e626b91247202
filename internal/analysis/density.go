package analysis

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/vector"
	"github.com/sells-group/landsuit/internal/zonal"
)

// PointDensityOptions configures PointDensity.
type PointDensityOptions struct {
	// ValueColumn, when set, sums this point attribute instead of counting.
	ValueColumn string
	// SearchDistance buffers each input feature, e.g. "1 mile".
	SearchDistance string
	// AreaUnit of the denominator; empty keeps square native units.
	AreaUnit string
	Kind     model.Kind
	Name     string
}

// PointDensity divides the points intersecting each search area (counted, or
// summed over ValueColumn) by that area. The search area is the polygon, or
// the feature buffered by SearchDistance. Features without points get 0; a
// zero-area search area gives NaN.
func PointDensity(input, points *vector.FeatureSet, opts PointDensityOptions) (*model.Series, error) {
	kind, err := validKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	allowed := []vector.GeomType{vector.Polygon}
	if opts.SearchDistance != "" {
		allowed = append(allowed, vector.Point)
	}
	if err := input.ValidateType(allowed...); err != nil {
		return nil, eris.Wrap(err, "analysis: point density input")
	}
	if err := points.ValidateType(vector.Point); err != nil {
		return nil, eris.Wrap(err, "analysis: point density points")
	}
	factor, err := areaFactor(input, opts.AreaUnit)
	if err != nil {
		return nil, err
	}

	search := input
	if opts.SearchDistance != "" {
		dist, err := NativeDistance(input, opts.SearchDistance)
		if err != nil {
			return nil, err
		}
		if search, err = vector.Buffer(input, dist); err != nil {
			return nil, err
		}
	}

	var values []float64
	agg := vector.AggCount
	if opts.ValueColumn != "" {
		if values, err = points.Column(opts.ValueColumn); err != nil {
			return nil, eris.Wrap(err, "analysis: point density values")
		}
		agg = vector.AggSum
	}
	pairs, err := vector.SpatialJoin(search, points, vector.Intersects)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: point density join")
	}
	totals, err := vector.Aggregate(search.Len(), pairs, values, agg)
	if err != nil {
		return nil, err
	}

	out := make([]float64, search.Len())
	for i, f := range search.Features {
		out[i] = ratio(totals[i], vector.Area(f.Geom)*factor)
	}

	zap.L().Debug("analysis: point density",
		zap.Int("features", input.Len()),
		zap.Int("points", points.Len()),
		zap.Int("pairs", len(pairs)),
		zap.String("aggregation", string(agg)),
	)
	name := opts.Name
	if name == "" {
		name = "density_point"
	}
	return newSeries(name, input, out, kind)
}

// LineDensityOptions configures LineDensity.
type LineDensityOptions struct {
	// CellSize used to rasterize the lines; ignored when Grid is set.
	CellSize float64
	// SearchRadius draws a circle around each feature's centroid, e.g.
	// "1 mile". Without it the polygon itself is the search area.
	SearchRadius string
	AreaUnit     string
	// Grid is a pre-rasterized line presence grid (0 = absent).
	Grid *grid.Raster
	Kind model.Kind
	Name string
}

// LineDensity estimates line length per area: the line presence cells inside
// each search area times the cell size, over the search area (π·r² for a
// radius, the polygon area otherwise). A zero area gives NaN.
func LineDensity(input, lines *vector.FeatureSet, opts LineDensityOptions) (*model.Series, error) {
	kind, err := validKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	allowed := []vector.GeomType{vector.Polygon}
	if opts.SearchRadius != "" {
		allowed = append(allowed, vector.Point)
	}
	if err := input.ValidateType(allowed...); err != nil {
		return nil, eris.Wrap(err, "analysis: line density input")
	}
	factor, err := areaFactor(input, opts.AreaUnit)
	if err != nil {
		return nil, err
	}

	r := opts.Grid
	if r == nil {
		if err := lines.ValidateType(vector.Line); err != nil {
			return nil, eris.Wrap(err, "analysis: line density lines")
		}
		if lines, err = matchCRS(input, lines); err != nil {
			return nil, err
		}
		cell := opts.CellSize
		if cell == 0 {
			cell = DefaultCellSize
		}
		if r, err = grid.Rasterize(lines, cell, grid.RasterizeOptions{}); err != nil {
			return nil, eris.Wrap(err, "analysis: rasterize lines")
		}
	}

	r = presence(r)

	footprints := input.Geoms()
	areas := make([]float64, input.Len())
	if opts.SearchRadius != "" {
		radius, err := NativeDistance(input, opts.SearchRadius)
		if err != nil {
			return nil, err
		}
		centroids, err := grid.Centroids(input)
		if err != nil {
			return nil, err
		}
		for i, c := range centroids {
			circle, err := vector.BufferGeom(geom.NewPointFlat(geom.XY, []float64{c[0], c[1]}), radius)
			if err != nil {
				return nil, err
			}
			footprints[i] = circle
			areas[i] = math.Pi * radius * radius
		}
	} else {
		for i, g := range footprints {
			areas[i] = vector.Area(g)
		}
	}

	stats, err := zonal.Compute(footprints, r, zonal.Options{Stats: []zonal.Stat{zonal.Count}})
	if err != nil {
		return nil, err
	}
	out := make([]float64, input.Len())
	for i, st := range stats {
		out[i] = ratio(st[string(zonal.Count)]*r.Transform.CellSize, areas[i]*factor)
	}

	zap.L().Debug("analysis: line density",
		zap.Int("features", input.Len()),
		zap.Int("rows", r.Rows),
		zap.Int("cols", r.Cols),
		zap.Float64("cell_size", r.Transform.CellSize),
	)
	name := opts.Name
	if name == "" {
		name = "density_line"
	}
	return newSeries(name, input, out, kind)
}

// presence maps r to 1 where a line is present and 0 elsewhere, with 0 as
// NoData so zonal counts see only line cells. NaN, NoData and zero cells
// are absent.
func presence(r *grid.Raster) *grid.Raster {
	out := &grid.Raster{
		Cells:     make([]float64, len(r.Cells)),
		Rows:      r.Rows,
		Cols:      r.Cols,
		Transform: r.Transform,
	}
	for i, v := range r.Cells {
		if v != 0 && v != r.NoData && !math.IsNaN(v) {
			out.Cells[i] = 1
		}
	}
	return out
}

// ratio divides, returning NaN for a zero or missing denominator.
func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return math.NaN()
	}
	return num / den
}

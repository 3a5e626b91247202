package analysis

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/proximity"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
)

// DefaultCellSize is the line rasterization cell size when none is given.
const DefaultCellSize = 30.0

// TargetKind tags the variant held by a Target.
type TargetKind int

// Target variants.
const (
	TargetPoint TargetKind = iota
	TargetLine
	TargetCell
)

// String implements fmt.Stringer.
func (k TargetKind) String() string {
	switch k {
	case TargetLine:
		return "line"
	case TargetCell:
		return "cell"
	default:
		return "point"
	}
}

// Target is what distances are measured to: a point layer, a line layer
// rasterized at CellSize, or the cells of a surface equal to Value.
type Target struct {
	Kind     TargetKind
	Features *vector.FeatureSet
	CellSize float64
	Surface  *raster.Surface
	Value    float64
}

// PointTarget measures to the features of a point layer.
func PointTarget(points *vector.FeatureSet) Target {
	return Target{Kind: TargetPoint, Features: points}
}

// LineTarget measures to a line layer rasterized at cellSize.
func LineTarget(lines *vector.FeatureSet, cellSize float64) Target {
	return Target{Kind: TargetLine, Features: lines, CellSize: cellSize}
}

// CellTarget measures to the cells of s equal to value.
func CellTarget(s *raster.Surface, value float64) Target {
	return Target{Kind: TargetCell, Surface: s, Value: value}
}

// DistanceOptions configures the distance functions.
type DistanceOptions struct {
	Metric proximity.Metric
	Kind   model.Kind
	// Name of the output series; defaults to "dist_<target kind>".
	Name string
}

// resolved is a target reduced to coordinates in a query space. Sources are
// mapped into the same space by toSpace and distances scaled back by scale.
type resolved struct {
	targets []proximity.Coord
	toSpace func(grid.Coord) proximity.Coord
	scale   float64
}

// resolve turns a target into a coordinate set. Point targets stay in world
// space; line and cell targets live in (row, col) grid space.
func (t Target) resolve(input *vector.FeatureSet) (*resolved, error) {
	switch t.Kind {
	case TargetPoint:
		if t.Features == nil {
			return nil, eris.New("analysis: point target has no features")
		}
		if err := t.Features.ValidateType(vector.Point); err != nil {
			return nil, eris.Wrap(err, "analysis: distance target")
		}
		pts, err := matchCRS(input, t.Features)
		if err != nil {
			return nil, err
		}
		coords, err := grid.Centroids(pts)
		if err != nil {
			return nil, err
		}
		return &resolved{targets: coords, toSpace: func(c grid.Coord) proximity.Coord { return c }, scale: 1}, nil

	case TargetLine:
		if t.Features == nil {
			return nil, eris.New("analysis: line target has no features")
		}
		if err := t.Features.ValidateType(vector.Line); err != nil {
			return nil, eris.Wrap(err, "analysis: distance target")
		}
		lines, err := matchCRS(input, t.Features)
		if err != nil {
			return nil, err
		}
		cell := t.CellSize
		if cell == 0 {
			cell = DefaultCellSize
		}
		r, err := grid.Rasterize(lines, cell, grid.RasterizeOptions{})
		if err != nil {
			return nil, eris.Wrap(err, "analysis: rasterize line target")
		}
		return gridSpace(r.Transform, burnedCells(r)), nil

	case TargetCell:
		if t.Surface == nil {
			return nil, eris.New("analysis: cell target has no surface")
		}
		s := t.Surface
		if input.CRS != "" && s.CRS != "" && !crs.Equal(input.CRS, s.CRS) {
			var err error
			s, err = raster.Reproject(s, input.CRS, raster.ReprojectOptions{})
			if err != nil {
				return nil, eris.Wrap(err, "analysis: align cell target")
			}
		}
		return gridSpace(s.Transform, s.Filter(t.Value)), nil
	}
	return nil, eris.Errorf("analysis: unknown target kind %d", t.Kind)
}

// burnedCells lists the cells a rasterization burned.
func burnedCells(r *grid.Raster) []grid.Cell {
	var out []grid.Cell
	for i, v := range r.Cells {
		if v != r.NoData {
			out = append(out, grid.Cell{Row: i / r.Cols, Col: i % r.Cols})
		}
	}
	return out
}

func gridSpace(t grid.Transform, cells []grid.Cell) *resolved {
	targets := make([]proximity.Coord, len(cells))
	for i, c := range cells {
		targets[i] = proximity.Coord{float64(c.Row), float64(c.Col)}
	}
	return &resolved{
		targets: targets,
		toSpace: func(c grid.Coord) proximity.Coord {
			rc := t.WorldToGrid(c[0], c[1])
			return proximity.Coord{float64(rc.Row), float64(rc.Col)}
		},
		scale: t.CellSize,
	}
}

// Distance measures, for every feature of input, the distance from its
// centroid to the nearest target. Line and cell targets are measured between
// grid indices and scaled by the cell size. When the target resolves to no
// coordinates every value is NaN.
func Distance(input *vector.FeatureSet, target Target, opts DistanceOptions) (*model.Series, error) {
	kind, err := validKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	if opts.Metric != proximity.Euclidean && opts.Metric != proximity.Manhattan {
		return nil, eris.Errorf("analysis: unknown metric %d", opts.Metric)
	}
	name := opts.Name
	if name == "" {
		name = "dist_" + target.Kind.String()
	}

	res, err := target.resolve(input)
	if err != nil {
		return nil, err
	}
	values := make([]float64, input.Len())
	if len(res.targets) == 0 {
		zap.L().Warn("analysis: distance target is empty",
			zap.String("target", target.Kind.String()),
			zap.Float64("value", target.Value),
		)
		for i := range values {
			values[i] = math.NaN()
		}
		return newSeries(name, input, values, kind)
	}

	centroids, err := grid.Centroids(input)
	if err != nil {
		return nil, err
	}
	sources := make([]proximity.Coord, len(centroids))
	for i, c := range centroids {
		sources[i] = res.toSpace(c)
	}

	ix := proximity.Build(res.targets, proximity.Options{})
	q, err := ix.Query(sources, proximity.QueryOptions{Metric: opts.Metric, K: 1})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: distance query")
	}
	for i, d := range q.Nearest() {
		values[i] = d * res.scale
	}

	zap.L().Debug("analysis: distances computed",
		zap.String("target", target.Kind.String()),
		zap.Int("sources", len(sources)),
		zap.Int("targets", len(res.targets)),
		zap.String("metric", opts.Metric.String()),
	)
	return newSeries(name, input, values, kind)
}

// DistanceToPoint measures from each feature's centroid to the nearest point.
func DistanceToPoint(input, points *vector.FeatureSet, opts DistanceOptions) (*model.Series, error) {
	return Distance(input, PointTarget(points), opts)
}

// DistanceToLine measures to the nearest cell of lines rasterized at cellSize.
func DistanceToLine(input, lines *vector.FeatureSet, cellSize float64, opts DistanceOptions) (*model.Series, error) {
	return Distance(input, LineTarget(lines, cellSize), opts)
}

// DistanceToCell measures to the nearest cell of s equal to value.
func DistanceToCell(input *vector.FeatureSet, s *raster.Surface, value float64, opts DistanceOptions) (*model.Series, error) {
	return Distance(input, CellTarget(s, value), opts)
}

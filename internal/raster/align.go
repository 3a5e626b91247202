package raster

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/grid"
)

// Resampling selects how a destination cell draws from the source.
type Resampling int

// Supported methods. Nearest is the default because suitability rasters
// usually hold categorical codes.
const (
	ResampleNearest Resampling = iota
	ResampleBilinear
)

// ParseResampling accepts "nearest" and "bilinear".
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return ResampleNearest, nil
	case "bilinear":
		return ResampleBilinear, nil
	default:
		return 0, eris.Errorf("raster: unknown resampling %q", s)
	}
}

// String implements fmt.Stringer.
func (r Resampling) String() string {
	if r == ResampleBilinear {
		return "bilinear"
	}
	return "nearest"
}

// sample reads the source at world (x, y); outside the grid or on no-data it
// returns the source's no-data value.
func (s *Surface) sample(x, y float64, method Resampling) float64 {
	if method == ResampleBilinear {
		return s.bilinear(x, y)
	}
	v, ok := s.valueAt(x, y)
	if !ok {
		return s.NoData
	}
	return v
}

// bilinear interpolates between the four cell centres around (x, y),
// renormalising the weights over valid neighbours.
func (s *Surface) bilinear(x, y float64) float64 {
	t := s.Transform
	u := (x-t.OriginX)/t.CellSize - 0.5
	v := (t.OriginY-y)/t.CellSize - 0.5
	if u < -0.5 || v < -0.5 || u > float64(s.Cols)-0.5 || v > float64(s.Rows)-0.5 {
		return s.NoData
	}
	c0, r0 := int(math.Floor(u)), int(math.Floor(v))
	fu, fv := u-float64(c0), v-float64(r0)

	var sum, wsum float64
	for dr := 0; dr <= 1; dr++ {
		for dc := 0; dc <= 1; dc++ {
			r, c := r0+dr, c0+dc
			if r < 0 || c < 0 || r >= s.Rows || c >= s.Cols {
				continue
			}
			val := s.At(r, c)
			if s.IsNoData(val) {
				continue
			}
			w := (1 - math.Abs(float64(dc)-fu)) * (1 - math.Abs(float64(dr)-fv))
			sum += w * val
			wsum += w
		}
	}
	if wsum == 0 {
		return s.NoData
	}
	return sum / wsum
}

// resampleOnto fills a new surface on t by sampling src at each cell centre.
func resampleOnto(src *Surface, rows, cols int, t grid.Transform, method Resampling) (*Surface, error) {
	out, err := New(rows, cols, t, src.CRS, src.NoData)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := t.CellCenter(r, c)
			out.Set(r, c, src.sample(x, y, method))
		}
	}
	return out, nil
}

// sameCellSize compares cell sizes up to floating-point rounding.
func sameCellSize(a, b float64) bool {
	return math.Abs(a-b) <= b*1e-9
}

// Rescale resamples s to targetCellSize with nearest neighbour. The shape
// scales by cell/target (rounded) and the top-left corner is kept; the
// effective cell size is the original width divided by the new column count.
// A surface already at the target size is returned as a copy.
func Rescale(s *Surface, targetCellSize float64) (*Surface, error) {
	if !(targetCellSize > 0) {
		return nil, eris.Errorf("raster: target cell size must be positive, got %g", targetCellSize)
	}
	if sameCellSize(s.CellSize(), targetCellSize) {
		return s.Clone(), nil
	}
	scale := s.CellSize() / targetCellSize
	cols := max(1, int(math.Round(float64(s.Cols)*scale)))
	rows := max(1, int(math.Round(float64(s.Rows)*scale)))
	cell := float64(s.Cols) * s.CellSize() / float64(cols)

	zap.L().Debug("raster: rescale",
		zap.Int("rows", s.Rows), zap.Int("cols", s.Cols),
		zap.Int("new_rows", rows), zap.Int("new_cols", cols),
		zap.Float64("cell_size", cell),
	)

	t := grid.Transform{CellSize: cell, OriginX: s.Transform.OriginX, OriginY: s.Transform.OriginY}
	out, err := New(rows, cols, t, s.CRS, s.NoData)
	if err != nil {
		return nil, err
	}
	// Source index = floor((i + 0.5) * n_src / n_dst) on each axis.
	for r := 0; r < rows; r++ {
		sr := min(s.Rows-1, int((float64(r)+0.5)*float64(s.Rows)/float64(rows)))
		for c := 0; c < cols; c++ {
			sc := min(s.Cols-1, int((float64(c)+0.5)*float64(s.Cols)/float64(cols)))
			out.Set(r, c, s.At(sr, sc))
		}
	}
	return out, nil
}

// MatchExtent resamples a onto a grid at b's resolution and CRS covering the
// union of both envelopes, anchored at the union's top-left corner. a is
// reprojected into b's CRS first when they differ.
func MatchExtent(a, b *Surface) (*Surface, error) {
	src := a
	if a.CRS != "" && b.CRS != "" && !crs.Equal(a.CRS, b.CRS) {
		var err error
		src, err = Reproject(a, b.CRS, ReprojectOptions{})
		if err != nil {
			return nil, eris.Wrap(err, "raster: match extent")
		}
	}

	u := src.Extent().Union(b.Extent())
	cell := b.CellSize()
	// Partial cells round up so the output covers both extents.
	cols := max(1, int(math.Ceil(u.Width()/cell-1e-9)))
	rows := max(1, int(math.Ceil(u.Height()/cell-1e-9)))
	t := grid.Transform{CellSize: cell, OriginX: u.MinX, OriginY: u.MaxY}

	out, err := resampleOnto(src, rows, cols, t, ResampleNearest)
	if err != nil {
		return nil, err
	}
	out.CRS = b.CRS
	return out, nil
}

// ReprojectOptions configures Reproject. A zero CellSize derives the output
// resolution from the source.
type ReprojectOptions struct {
	CellSize   float64
	Resampling Resampling
}

// edgeSamples is the number of points sampled along each source edge when
// estimating the output envelope.
const edgeSamples = 21

// Reproject warps s into targetCRS. The output envelope covers the
// transformed source edges; the default cell size keeps the source's cell
// count along the envelope diagonal.
func Reproject(s *Surface, targetCRS string, opts ReprojectOptions) (*Surface, error) {
	if s.CRS == "" {
		return nil, eris.New("raster: reproject surface without CRS")
	}
	if crs.Equal(s.CRS, targetCRS) {
		if opts.CellSize > 0 && !sameCellSize(s.CellSize(), opts.CellSize) {
			return Rescale(s, opts.CellSize)
		}
		out := s.Clone()
		out.CRS = targetCRS
		return out, nil
	}

	fwd, err := crs.Transformer(s.CRS, targetCRS)
	if err != nil {
		return nil, eris.Wrap(err, "raster: reproject")
	}
	inv, err := crs.Transformer(targetCRS, s.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "raster: reproject")
	}

	e := s.Extent()
	dst := grid.Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for i := 0; i < edgeSamples; i++ {
		f := float64(i) / float64(edgeSamples-1)
		x := e.MinX + f*e.Width()
		y := e.MinY + f*e.Height()
		for _, p := range [][2]float64{{x, e.MinY}, {x, e.MaxY}, {e.MinX, y}, {e.MaxX, y}} {
			tx, ty, err := fwd(p[0], p[1])
			if err != nil {
				return nil, eris.Wrap(err, "raster: transform envelope")
			}
			dst = dst.Union(grid.Extent{MinX: tx, MinY: ty, MaxX: tx, MaxY: ty})
		}
	}

	cell := opts.CellSize
	if cell <= 0 {
		cell = math.Hypot(dst.Width(), dst.Height()) / math.Hypot(float64(s.Cols), float64(s.Rows))
	}
	cols := max(1, int(math.Ceil(dst.Width()/cell)))
	rows := max(1, int(math.Ceil(dst.Height()/cell)))
	t := grid.Transform{CellSize: cell, OriginX: dst.MinX, OriginY: dst.MaxY}

	out, err := New(rows, cols, t, targetCRS, s.NoData)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := t.CellCenter(r, c)
			sx, sy, err := inv(x, y)
			if err != nil {
				continue
			}
			out.Set(r, c, s.sample(sx, sy, opts.Resampling))
		}
	}

	zap.L().Debug("raster: reprojected",
		zap.Int("rows", rows), zap.Int("cols", cols),
		zap.Float64("cell_size", cell),
		zap.String("resampling", opts.Resampling.String()),
	)
	return out, nil
}

// Package raster holds single-band raster surfaces and realigns them:
// rescaling, extent matching and reprojection. Every operation returns a new
// Surface; inputs are never modified.
package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/grid"
)

// Surface is a single-band raster in row-major order.
type Surface struct {
	Cells     []float64
	Rows      int
	Cols      int
	Transform grid.Transform
	CRS       string
	NoData    float64
}

// New allocates a surface filled with noData.
func New(rows, cols int, t grid.Transform, crs string, noData float64) (*Surface, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Errorf("raster: invalid shape %dx%d", rows, cols)
	}
	if !(t.CellSize > 0) {
		return nil, eris.Errorf("raster: cell size must be positive, got %g", t.CellSize)
	}
	s := &Surface{
		Cells:     make([]float64, rows*cols),
		Rows:      rows,
		Cols:      cols,
		Transform: t,
		CRS:       crs,
		NoData:    noData,
	}
	for i := range s.Cells {
		s.Cells[i] = noData
	}
	return s, nil
}

// FromGrid wraps a rasterized feature set. The cells are copied.
func FromGrid(r *grid.Raster, crs string) *Surface {
	return &Surface{
		Cells:     append([]float64(nil), r.Cells...),
		Rows:      r.Rows,
		Cols:      r.Cols,
		Transform: r.Transform,
		CRS:       crs,
		NoData:    r.NoData,
	}
}

// Grid exposes the surface as a grid.Raster sharing its cells. Callers must
// not modify the cells.
func (s *Surface) Grid() *grid.Raster {
	return &grid.Raster{Cells: s.Cells, Rows: s.Rows, Cols: s.Cols, Transform: s.Transform, NoData: s.NoData}
}

// Clone returns an independent copy.
func (s *Surface) Clone() *Surface {
	out := *s
	out.Cells = append([]float64(nil), s.Cells...)
	return &out
}

// At returns the value at (row, col).
func (s *Surface) At(row, col int) float64 { return s.Cells[row*s.Cols+col] }

// Set stores v at (row, col).
func (s *Surface) Set(row, col int, v float64) { s.Cells[row*s.Cols+col] = v }

// CellSize returns the transform's cell size.
func (s *Surface) CellSize() float64 { return s.Transform.CellSize }

// Extent returns the world envelope.
func (s *Surface) Extent() grid.Extent { return s.Transform.Extent(s.Rows, s.Cols) }

// IsNoData reports whether v marks a missing cell. NaN is always missing.
func (s *Surface) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == s.NoData
}

// Filter returns the grid coordinates of every cell equal to value, in
// row-major order.
func (s *Surface) Filter(value float64) []grid.Cell {
	var out []grid.Cell
	for i, v := range s.Cells {
		if v == value {
			out = append(out, grid.Cell{Row: i / s.Cols, Col: i % s.Cols})
		}
	}
	return out
}

// Valid returns the values of all cells that are not no-data.
func (s *Surface) Valid() []float64 {
	out := make([]float64, 0, len(s.Cells))
	for _, v := range s.Cells {
		if !s.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// Map applies fn to every valid cell and returns the result as a new
// surface; no-data cells are carried over unchanged.
func (s *Surface) Map(fn func(float64) float64) *Surface {
	out := s.Clone()
	for i, v := range out.Cells {
		if !s.IsNoData(v) {
			out.Cells[i] = fn(v)
		}
	}
	return out
}

// valueAt samples the cell containing (x, y); ok is false outside the grid.
func (s *Surface) valueAt(x, y float64) (float64, bool) {
	c := s.Transform.CellOf(x, y)
	if c.Row < 0 || c.Col < 0 || c.Row >= s.Rows || c.Col >= s.Cols {
		return 0, false
	}
	return s.At(c.Row, c.Col), true
}

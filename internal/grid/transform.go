// Package grid maps between world coordinates and raster cell indices and
// burns vector geometry into cell grids.
package grid

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrOutOfRange is returned when a cell index falls outside a grid.
var ErrOutOfRange = eris.New("grid: cell index out of range")

// Transform is a north-up affine transform with square cells. OriginX is the
// world X of the left edge and OriginY the world Y of the top edge.
type Transform struct {
	CellSize float64
	OriginX  float64
	OriginY  float64
}

// NewTransform validates the cell size.
func NewTransform(cellSize, originX, originY float64) (Transform, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return Transform{}, eris.Errorf("grid: cell size must be positive, got %g", cellSize)
	}
	return Transform{CellSize: cellSize, OriginX: originX, OriginY: originY}, nil
}

// Cell is a (row, col) grid index.
type Cell struct {
	Row int
	Col int
}

// WorldToGrid rounds a world coordinate to the nearest grid node. Exact
// halves round to the even index.
func (t Transform) WorldToGrid(x, y float64) Cell {
	return Cell{
		Row: int(math.RoundToEven((t.OriginY - y) / t.CellSize)),
		Col: int(math.RoundToEven((x - t.OriginX) / t.CellSize)),
	}
}

// CellOf returns the cell containing a world coordinate.
func (t Transform) CellOf(x, y float64) Cell {
	return Cell{
		Row: int(math.Floor((t.OriginY - y) / t.CellSize)),
		Col: int(math.Floor((x - t.OriginX) / t.CellSize)),
	}
}

// GridToWorld returns the world coordinate of a cell's top-left corner.
func (t Transform) GridToWorld(row, col int) (float64, float64) {
	return t.OriginX + float64(col)*t.CellSize, t.OriginY - float64(row)*t.CellSize
}

// CellCenter returns the world coordinate of a cell's centre.
func (t Transform) CellCenter(row, col int) (float64, float64) {
	return t.OriginX + (float64(col)+0.5)*t.CellSize, t.OriginY - (float64(row)+0.5)*t.CellSize
}

// Extent returns the world envelope of a rows×cols grid.
func (t Transform) Extent(rows, cols int) Extent {
	return Extent{
		MinX: t.OriginX,
		MinY: t.OriginY - float64(rows)*t.CellSize,
		MaxX: t.OriginX + float64(cols)*t.CellSize,
		MaxY: t.OriginY,
	}
}

// WorldToGrid maps many coordinates at once. Each coord is (x, y).
func WorldToGrid(coords [][2]float64, cellSize, originY, originX float64) [][2]int {
	t := Transform{CellSize: cellSize, OriginX: originX, OriginY: originY}
	out := make([][2]int, len(coords))
	for i, c := range coords {
		cell := t.WorldToGrid(c[0], c[1])
		out[i] = [2]int{cell.Row, cell.Col}
	}
	return out
}

// CheckCell fails with ErrOutOfRange unless the cell lies in a rows×cols grid.
func CheckCell(c Cell, rows, cols int) error {
	if c.Row < 0 || c.Col < 0 || c.Row >= rows || c.Col >= cols {
		return eris.Wrapf(ErrOutOfRange, "grid: cell (%d, %d) in %dx%d grid", c.Row, c.Col, rows, cols)
	}
	return nil
}

// Extent is an axis-aligned world envelope.
type Extent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns MaxX - MinX.
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns MaxY - MinY.
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Union returns the smallest extent covering both.
func (e Extent) Union(o Extent) Extent {
	return Extent{
		MinX: math.Min(e.MinX, o.MinX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// Intersects reports whether the extents overlap or touch.
func (e Extent) Intersects(o Extent) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Contains reports whether (x, y) lies inside the extent, edges included.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

package grid

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Mask returns the cells of a rows×cols grid on t that g covers, in
// row-major order. Polygons cover the cells whose centres they contain; with
// allTouched, every cell their boundary passes through is added too. Lines
// and points cover the cells they touch either way.
func Mask(g geom.T, t Transform, rows, cols int, allTouched bool) []Cell {
	b := g.Bounds()
	if b.IsEmpty() {
		return nil
	}
	// Cells that only touch the bounds along their far edges stay outside.
	rMin := int(math.Floor((t.OriginY - b.Max(1)) / t.CellSize))
	rMax := max(rMin, int(math.Ceil((t.OriginY-b.Min(1))/t.CellSize))-1)
	cMin := int(math.Floor((b.Min(0) - t.OriginX) / t.CellSize))
	cMax := max(cMin, int(math.Ceil((b.Max(0)-t.OriginX)/t.CellSize))-1)
	if rMax < 0 || cMax < 0 || rMin >= rows || cMin >= cols {
		return nil
	}

	// The window spans the full bounds so edge clamping in set never folds
	// outside cells onto the grid's border.
	x, y := t.GridToWorld(rMin, cMin)
	win := &Raster{
		Cells:     make([]float64, (rMax-rMin+1)*(cMax-cMin+1)),
		Rows:      rMax - rMin + 1,
		Cols:      cMax - cMin + 1,
		Transform: Transform{CellSize: t.CellSize, OriginX: x, OriginY: y},
	}
	win.burn(g, 1)
	if allTouched {
		win.burnBoundary(g)
	}

	var out []Cell
	for i, v := range win.Cells {
		if v != 1 {
			continue
		}
		c := Cell{Row: rMin + i/win.Cols, Col: cMin + i%win.Cols}
		if c.Row >= 0 && c.Col >= 0 && c.Row < rows && c.Col < cols {
			out = append(out, c)
		}
	}
	return out
}

func (r *Raster) burnBoundary(g geom.T) {
	switch x := g.(type) {
	case *geom.Polygon:
		for i := 0; i < x.NumLinearRings(); i++ {
			ring := x.LinearRing(i)
			r.burnPath(ring.FlatCoords(), ring.Stride(), 1)
		}
	case *geom.MultiPolygon:
		for i := 0; i < x.NumPolygons(); i++ {
			r.burnBoundary(x.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range x.Geoms() {
			r.burnBoundary(child)
		}
	}
}

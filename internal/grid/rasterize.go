package grid

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/vector"
)

// Raster is a rasterized feature set: row-major cells plus their transform.
type Raster struct {
	Cells     []float64
	Rows      int
	Cols      int
	Transform Transform
	NoData    float64
}

// At returns the value at (row, col).
func (r *Raster) At(row, col int) float64 { return r.Cells[row*r.Cols+col] }

// Extent returns the raster's world envelope.
func (r *Raster) Extent() Extent { return r.Transform.Extent(r.Rows, r.Cols) }

// RasterizeOptions controls Rasterize. Cells not covered by any geometry take
// Fill, which also becomes the raster's no-data value. When ValueColumn is
// empty covered cells are set to 1.
type RasterizeOptions struct {
	ValueColumn string
	Fill        float64
}

// Rasterize burns a feature set into a grid covering its total bounds.
// Polygons burn the cells whose centres fall inside them (even-odd rule, so
// holes stay empty), lines every cell they pass through and points the cell
// containing them. Later features overwrite earlier ones.
func Rasterize(fs *vector.FeatureSet, cellSize float64, opts RasterizeOptions) (*Raster, error) {
	if fs.Len() == 0 {
		return nil, eris.New("grid: rasterize empty feature set")
	}
	b := fs.Bounds()
	t, err := NewTransform(cellSize, b.Min(0), b.Max(1))
	if err != nil {
		return nil, err
	}

	values := make([]float64, fs.Len())
	if opts.ValueColumn != "" {
		values, err = fs.Column(opts.ValueColumn)
		if err != nil {
			return nil, eris.Wrap(err, "grid: rasterize")
		}
	} else {
		for i := range values {
			values[i] = 1
		}
	}

	rows := max(1, int(math.RoundToEven((b.Max(1)-b.Min(1))/cellSize)))
	cols := max(1, int(math.RoundToEven((b.Max(0)-b.Min(0))/cellSize)))
	r := &Raster{
		Cells:     make([]float64, rows*cols),
		Rows:      rows,
		Cols:      cols,
		Transform: t,
		NoData:    opts.Fill,
	}
	if opts.Fill != 0 {
		for i := range r.Cells {
			r.Cells[i] = opts.Fill
		}
	}

	for i, f := range fs.Features {
		r.burn(f.Geom, values[i])
	}

	zap.L().Debug("grid: rasterized feature set",
		zap.Int("features", fs.Len()),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Float64("cell_size", cellSize),
	)
	return r, nil
}

// set writes v at (row, col). An index one past the last row or column is
// a coordinate on the grid's far edge and maps to the last cell.
func (r *Raster) set(row, col int, v float64) {
	if row == r.Rows {
		row--
	}
	if col == r.Cols {
		col--
	}
	if row < 0 || col < 0 || row >= r.Rows || col >= r.Cols {
		return
	}
	r.Cells[row*r.Cols+col] = v
}

func (r *Raster) burn(g geom.T, v float64) {
	switch x := g.(type) {
	case *geom.Point:
		c := r.Transform.CellOf(x.X(), x.Y())
		r.set(c.Row, c.Col, v)
	case *geom.MultiPoint:
		for i := 0; i < x.NumPoints(); i++ {
			r.burn(x.Point(i), v)
		}
	case *geom.LineString:
		r.burnPath(x.FlatCoords(), x.Stride(), v)
	case *geom.LinearRing:
		r.burnPath(x.FlatCoords(), x.Stride(), v)
	case *geom.MultiLineString:
		for i := 0; i < x.NumLineStrings(); i++ {
			r.burn(x.LineString(i), v)
		}
	case *geom.Polygon:
		r.burnPolygon(x, v)
	case *geom.MultiPolygon:
		for i := 0; i < x.NumPolygons(); i++ {
			r.burnPolygon(x.Polygon(i), v)
		}
	case *geom.GeometryCollection:
		for _, child := range x.Geoms() {
			r.burn(child, v)
		}
	}
}

func (r *Raster) burnPath(flat []float64, stride int, v float64) {
	n := len(flat) / stride
	if n == 1 {
		c := r.Transform.CellOf(flat[0], flat[1])
		r.set(c.Row, c.Col, v)
		return
	}
	for i := 0; i+1 < n; i++ {
		a, b := i*stride, (i+1)*stride
		r.burnSegment(flat[a], flat[a+1], flat[b], flat[b+1], v)
	}
}

// burnSegment walks every cell a segment crosses (Amanatides–Woo traversal
// in fractional grid space).
func (r *Raster) burnSegment(x0, y0, x1, y1, v float64) {
	t := r.Transform
	u0, v0 := (x0-t.OriginX)/t.CellSize, (t.OriginY-y0)/t.CellSize
	u1, v1 := (x1-t.OriginX)/t.CellSize, (t.OriginY-y1)/t.CellSize

	col, row := int(math.Floor(u0)), int(math.Floor(v0))
	endCol, endRow := int(math.Floor(u1)), int(math.Floor(v1))

	du, dv := u1-u0, v1-v0
	stepC, tMaxC, tDeltaC := axisStep(u0, du, col)
	stepR, tMaxR, tDeltaR := axisStep(v0, dv, row)

	steps := abs(endCol-col) + abs(endRow-row)
	r.set(row, col, v)
	for i := 0; i < steps; i++ {
		if tMaxC < tMaxR {
			col += stepC
			tMaxC += tDeltaC
		} else {
			row += stepR
			tMaxR += tDeltaR
		}
		r.set(row, col, v)
	}
}

func axisStep(start, delta float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		return 1, (float64(cell+1) - start) / delta, 1 / delta
	case delta < 0:
		return -1, (start - float64(cell)) / -delta, -1 / delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// burnPolygon fills cells whose centres lie inside p by scanning each row's
// centre line against every ring edge.
func (r *Raster) burnPolygon(p *geom.Polygon, v float64) {
	t := r.Transform
	b := p.Bounds()
	if b.IsEmpty() {
		return
	}
	firstRow := max(0, int(math.Floor((t.OriginY-b.Max(1))/t.CellSize)))
	lastRow := min(r.Rows-1, int(math.Ceil((t.OriginY-b.Min(1))/t.CellSize)))

	var xs []float64
	for row := firstRow; row <= lastRow; row++ {
		yc := t.OriginY - (float64(row)+0.5)*t.CellSize
		xs = scanline(p, yc, xs[:0])
		for i := 0; i+1 < len(xs); i += 2 {
			c0 := int(math.Ceil((xs[i]-t.OriginX)/t.CellSize - 0.5))
			c1 := int(math.Ceil((xs[i+1]-t.OriginX)/t.CellSize-0.5)) - 1
			c0, c1 = max(c0, 0), min(c1, r.Cols-1)
			for col := c0; col <= c1; col++ {
				r.Cells[row*r.Cols+col] = v
			}
		}
	}
}

// scanline appends the sorted X crossings of the horizontal line y with
// every ring of p.
func scanline(p *geom.Polygon, y float64, xs []float64) []float64 {
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		flat, stride := ring.FlatCoords(), ring.Stride()
		n := len(flat) / stride
		for j := 0; j < n; j++ {
			k := (j + 1) % n
			xa, ya := flat[j*stride], flat[j*stride+1]
			xb, yb := flat[k*stride], flat[k*stride+1]
			if (ya > y) == (yb > y) {
				continue
			}
			xs = append(xs, xa+(y-ya)*(xb-xa)/(yb-ya))
		}
	}
	sort.Float64s(xs)
	return xs
}

// containsPoint applies the even-odd rule to every ring of p.
func containsPoint(p *geom.Polygon, x, y float64) bool {
	inside := false
	for _, cx := range scanline(p, y, nil) {
		if cx > x {
			inside = !inside
		}
	}
	return inside
}

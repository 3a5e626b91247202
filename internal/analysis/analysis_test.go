package analysis

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/proximity"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
	"github.com/sells-group/landsuit/internal/zonal"
)

const utm17 = "+proj=utm +zone=17 +datum=NAD83 +units=m +no_defs"

func box(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, minX, maxY, maxX, maxY, maxX, minY, minX, minY,
	}, []int{10})
}

func pt(x, y float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y})
}

// layer builds a feature set whose i-th feature carries values[i] in "value".
func layer(geoms []geom.T, values ...float64) *vector.FeatureSet {
	fs := &vector.FeatureSet{Fields: []string{"value"}, CRS: utm17}
	for i, g := range geoms {
		attrs := map[string]any{"value": float64(i)}
		if i < len(values) {
			attrs["value"] = values[i]
		}
		fs.Features = append(fs.Features, vector.Feature{ID: i, Geom: g, Attrs: attrs})
	}
	return fs
}

func parcels() *vector.FeatureSet {
	return layer([]geom.T{box(0, 0, 10, 10), box(20, 0, 30, 10), box(0, 20, 10, 30)})
}

func sites() *vector.FeatureSet {
	return layer([]geom.T{pt(5, 5), pt(8, 2), pt(25, 25), pt(100, 100)}, 2, 3, 10, 1)
}

func TestPointDensity_Count(t *testing.T) {
	got, err := PointDensity(parcels(), sites(), PointDensityOptions{})
	require.NoError(t, err)
	assert.Equal(t, "density_point", got.Name)
	assert.Equal(t, []int{0, 1, 2}, got.Index)
	assert.InDelta(t, 0.02, got.Values[0], 1e-12)
	assert.Equal(t, 0.0, got.Values[1])
	assert.Equal(t, 0.0, got.Values[2])
}

func TestPointDensity_PointsOnEdges(t *testing.T) {
	edges := layer([]geom.T{pt(10, 5), pt(5, 10), pt(0, 5)})
	got, err := PointDensity(layer([]geom.T{box(0, 0, 10, 10)}), edges, PointDensityOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.03, got.Values[0], 1e-12)
}

func TestPointDensity_SumAndAreaUnit(t *testing.T) {
	got, err := PointDensity(parcels(), sites(), PointDensityOptions{ValueColumn: "value", AreaUnit: "hectare"})
	require.NoError(t, err)
	assert.InDelta(t, 500.0, got.Values[0], 1e-9)
	assert.Equal(t, 0.0, got.Values[1])
}

func TestPointDensity_BufferedPoints(t *testing.T) {
	input := layer([]geom.T{pt(5, 5)})
	got, err := PointDensity(input, sites(), PointDensityOptions{SearchDistance: "4 meters"})
	require.NoError(t, err)
	assert.InEpsilon(t, 1/(math.Pi*16), got.Values[0], 0.01)

	_, err = PointDensity(input, sites(), PointDensityOptions{})
	assert.True(t, eris.Is(err, ErrGeometryType))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.5, ratio(1, 2))
	assert.True(t, math.IsNaN(ratio(1, 0)))
	assert.True(t, math.IsNaN(ratio(0, math.NaN())))
}

// lineGrid is a 2×4 grid at 10 m with the top row burned.
func lineGrid() *grid.Raster {
	return &grid.Raster{
		Cells:     []float64{1, 1, 1, 1, 0, 0, 0, 0},
		Rows:      2,
		Cols:      4,
		Transform: grid.Transform{CellSize: 10, OriginX: 0, OriginY: 20},
		NoData:    0,
	}
}

func TestLineDensity_Polygon(t *testing.T) {
	input := layer([]geom.T{box(0, 0, 20, 20), box(0, 0, 20, 10)})
	got, err := LineDensity(input, nil, LineDensityOptions{Grid: lineGrid()})
	require.NoError(t, err)
	assert.Equal(t, "density_line", got.Name)
	assert.InDelta(t, 0.05, got.Values[0], 1e-12)
	assert.Equal(t, 0.0, got.Values[1])

	ha, err := LineDensity(input, nil, LineDensityOptions{Grid: lineGrid(), AreaUnit: "ha"})
	require.NoError(t, err)
	assert.InDelta(t, 500.0, ha.Values[0], 1e-9)
}

func TestLineDensity_GridPresence(t *testing.T) {
	// Absent cells are 0 with a different NoData; weights do not count twice.
	g := &grid.Raster{
		Cells:     []float64{3, 1, -1, 1, 0, math.NaN(), 0, 0},
		Rows:      2,
		Cols:      4,
		Transform: grid.Transform{CellSize: 10, OriginX: 0, OriginY: 20},
		NoData:    -1,
	}
	input := layer([]geom.T{box(0, 0, 20, 20), box(20, 0, 40, 20)})
	got, err := LineDensity(input, nil, LineDensityOptions{Grid: g})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Values[0], 1e-12)
	assert.InDelta(t, 0.025, got.Values[1], 1e-12)
	assert.Equal(t, -1.0, g.Cells[2])
}

func TestLineDensity_Radius(t *testing.T) {
	input := layer([]geom.T{pt(20, 15)})
	got, err := LineDensity(input, nil, LineDensityOptions{Grid: lineGrid(), SearchRadius: "10 meters"})
	require.NoError(t, err)
	assert.InDelta(t, 20/(math.Pi*100), got.Values[0], 1e-4)

	_, err = LineDensity(input, nil, LineDensityOptions{Grid: lineGrid()})
	assert.True(t, eris.Is(err, ErrGeometryType))
}

func TestLineDensity_Rasterizes(t *testing.T) {
	lines := layer([]geom.T{geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0})})
	input := layer([]geom.T{pt(50, 0)})
	got, err := LineDensity(input, lines, LineDensityOptions{CellSize: 10, SearchRadius: "20 meters"})
	require.NoError(t, err)
	assert.Greater(t, got.Values[0], 0.0)

	_, err = LineDensity(input, sites(), LineDensityOptions{SearchRadius: "20 meters"})
	assert.True(t, eris.Is(err, ErrGeometryType))
}

func TestDistanceToPoint(t *testing.T) {
	got, err := DistanceToPoint(parcels(), sites(), DistanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dist_point", got.Name)
	assert.Equal(t, 0.0, got.Values[0])
	assert.InDelta(t, 17.2627, got.Values[1], 1e-4)
	assert.InDelta(t, 20.0, got.Values[2], 1e-12)

	ints, err := DistanceToPoint(parcels(), sites(), DistanceOptions{Kind: model.KindInt16, Name: "d"})
	require.NoError(t, err)
	assert.Equal(t, "d", ints.Name)
	assert.Equal(t, model.KindInt16, ints.Kind)
	assert.Equal(t, []float64{0, 17, 20}, ints.Values)

	_, err = DistanceToPoint(parcels(), parcels(), DistanceOptions{})
	assert.True(t, eris.Is(err, ErrGeometryType))

	_, err = DistanceToPoint(parcels(), sites(), DistanceOptions{Kind: "float16"})
	assert.True(t, eris.Is(err, model.ErrUnsupportedKind))
}

func TestDistanceToLine(t *testing.T) {
	lines := layer([]geom.T{geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0})})
	input := layer([]geom.T{pt(35, 40), pt(-20, -30)})

	got, err := DistanceToLine(input, lines, 10, DistanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dist_line", got.Name)
	assert.InDelta(t, 40.0, got.Values[0], 1e-9)
	assert.InDelta(t, 36.0555, got.Values[1], 1e-4)

	manhattan, err := DistanceToLine(input, lines, 10, DistanceOptions{Metric: proximity.Manhattan})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, manhattan.Values[1], 1e-9)
}

func cellSurface(t *testing.T) *raster.Surface {
	t.Helper()
	s, err := raster.New(3, 3, grid.Transform{CellSize: 10, OriginX: 0, OriginY: 30}, utm17, -1)
	require.NoError(t, err)
	for i := range s.Cells {
		s.Cells[i] = 0
	}
	s.Set(2, 2, 1)
	return s
}

func TestDistanceToCell(t *testing.T) {
	input := layer([]geom.T{pt(0, 30), pt(20, 10)})
	s := cellSurface(t)

	got, err := DistanceToCell(input, s, 1, DistanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dist_cell", got.Name)
	assert.InDelta(t, 28.2843, got.Values[0], 1e-4)
	assert.Equal(t, 0.0, got.Values[1])

	none, err := DistanceToCell(input, s, 5, DistanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, none.Missing())
}

func idwValues() *vector.FeatureSet {
	return layer([]geom.T{pt(0, 0), pt(10, 0), pt(30, 0)}, 10, 20, 40)
}

func TestIDW(t *testing.T) {
	input := layer([]geom.T{pt(5, 0), pt(10, 0)})

	two, err := IDW(input, idwValues(), IDWOptions{ValueColumn: "value", Neighbors: 2})
	require.NoError(t, err)
	assert.Equal(t, "idw_value", two.Name)
	assert.InDelta(t, 15.0, two.Values[0], 1e-12)
	assert.Equal(t, 20.0, two.Values[1])

	three, err := IDW(input, idwValues(), IDWOptions{ValueColumn: "value", Neighbors: 3})
	require.NoError(t, err)
	assert.InDelta(t, 15.4902, three.Values[0], 1e-4)
}

func TestIDW_NearestAndRadius(t *testing.T) {
	nearest, err := IDW(layer([]geom.T{pt(22, 0)}), idwValues(), IDWOptions{ValueColumn: "value", Neighbors: 1})
	require.NoError(t, err)
	assert.Equal(t, 40.0, nearest.Values[0])

	input := layer([]geom.T{pt(5, 0), pt(100, 0)})
	bounded, err := IDW(input, idwValues(), IDWOptions{ValueColumn: "value", Neighbors: 3, SearchRadius: 6})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, bounded.Values[0], 1e-12)
	assert.True(t, math.IsNaN(bounded.Values[1]))
}

func TestIDW_Validation(t *testing.T) {
	input := layer([]geom.T{pt(5, 0)})

	_, err := IDW(input, idwValues(), IDWOptions{ValueColumn: "value", Neighbors: 4})
	assert.True(t, eris.Is(err, ErrNeighbors))

	_, err = IDW(input, idwValues(), IDWOptions{ValueColumn: "value", Power: -1})
	require.Error(t, err)

	_, err = IDW(input, idwValues(), IDWOptions{Neighbors: 2})
	require.Error(t, err)

	_, err = IDW(input, idwValues(), IDWOptions{ValueColumn: "missing", Neighbors: 2})
	require.Error(t, err)
}

func gridPoints(z func(i int) float64) *vector.FeatureSet {
	var geoms []geom.T
	var values []float64
	for i := 0; i < 10; i++ {
		geoms = append(geoms, pt(float64(i%5)*10, float64(i/5)*10))
		values = append(values, z(i))
	}
	return layer(geoms, values...)
}

func TestIDWCrossValidate(t *testing.T) {
	flat := gridPoints(func(int) float64 { return 5 })
	mse, err := IDWCrossValidate(flat, 5, 7, IDWOptions{ValueColumn: "value", Neighbors: 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mse, 1e-9)

	ramp := gridPoints(func(i int) float64 { return float64(i * i) })
	a, err := IDWCrossValidate(ramp, 5, 42, IDWOptions{ValueColumn: "value", Neighbors: 3})
	require.NoError(t, err)
	b, err := IDWCrossValidate(ramp, 5, 42, IDWOptions{ValueColumn: "value", Neighbors: 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)

	_, err = IDWCrossValidate(ramp, 1, 42, IDWOptions{ValueColumn: "value"})
	require.Error(t, err)
	_, err = IDWCrossValidate(ramp, 5, 42, IDWOptions{ValueColumn: "value", Neighbors: 9})
	assert.True(t, eris.Is(err, ErrNeighbors))
}

func TestFoldLabels(t *testing.T) {
	labels := foldLabels(10, 5, 1)
	require.Len(t, labels, 10)
	counts := map[int]int{}
	for _, l := range labels {
		counts[l]++
	}
	assert.Equal(t, map[int]int{0: 2, 1: 2, 2: 2, 3: 2, 4: 2}, counts)

	short := foldLabels(7, 3, 1)
	require.Len(t, short, 7)
	for _, l := range short {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 3)
	}
	assert.Equal(t, foldLabels(7, 3, 9), foldLabels(7, 3, 9))
}

func zonalSurface(t *testing.T) *raster.Surface {
	t.Helper()
	s, err := raster.New(2, 2, grid.Transform{CellSize: 10, OriginX: 0, OriginY: 20}, utm17, -9999)
	require.NoError(t, err)
	copy(s.Cells, []float64{1, 2, 3, 4})
	return s
}

func TestZonalSummary(t *testing.T) {
	zones := layer([]geom.T{box(0, 0, 20, 20), box(0, 10, 10, 20)})
	opts := ZonalOptions{Stats: []zonal.Stat{zonal.Mean, zonal.Count}, Prefix: "lc"}

	tbl, err := ZonalSummary(zones, zonalSurface(t), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"lc_mean", "lc_count"}, tbl.Names())
	assert.Equal(t, []float64{2.5, 1}, tbl.Column("lc_mean").Values)
	assert.Equal(t, []float64{4, 1}, tbl.Column("lc_count").Values)

	four := 4.0
	opts.NoData = &four
	masked, err := ZonalSummary(zones, zonalSurface(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 2.0, masked.Column("lc_mean").Values[0])
	assert.Equal(t, 3.0, masked.Column("lc_count").Values[0])
}

func TestZonalSummary_Defaults(t *testing.T) {
	tbl, err := ZonalSummary(layer([]geom.T{box(0, 0, 20, 20)}), zonalSurface(t), ZonalOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"zonal_count", "zonal_min", "zonal_max", "zonal_mean"}, tbl.Names())

	_, err = ZonalSummary(layer([]geom.T{pt(1, 1)}), zonalSurface(t), ZonalOptions{})
	assert.True(t, eris.Is(err, ErrGeometryType))
}

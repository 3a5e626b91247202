package datasets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
)

const utm17 = "+proj=utm +zone=17 +datum=WGS84 +units=m +no_defs"

func writeVector(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	fs := &vector.FeatureSet{
		Fields: []string{"value"},
		CRS:    utm17,
		Features: []vector.Feature{
			{ID: 0, Geom: geom.NewPointFlat(geom.XY, []float64{1, 2}), Attrs: map[string]any{"value": 3.0}},
			{ID: 1, Geom: geom.NewPointFlat(geom.XY, []float64{4, 5}), Attrs: map[string]any{"value": 6.0}},
		},
	}
	require.NoError(t, vector.WriteShapefile(filepath.Join(dir, name, name+".shp"), fs))
}

func writeRaster(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	s, err := raster.New(2, 3, grid.Transform{CellSize: 10, OriginX: 0, OriginY: 20}, utm17, -9999)
	require.NoError(t, err)
	for i := range s.Cells {
		s.Cells[i] = float64(i)
	}
	path := filepath.Join(dir, name, name+".tif")
	require.NoError(t, raster.WriteGeoTIFF(path, s, raster.WriteOptions{}))
	return path
}

func TestRegistry_Available(t *testing.T) {
	dir := t.TempDir()
	writeRaster(t, dir, "landcover")
	writeVector(t, dir, "roads")
	writeVector(t, dir, "parcels")
	writeRaster(t, dir, "elevation")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	r := NewRegistry(dir, 0)
	defer r.Close()

	got, err := r.Available()
	require.NoError(t, err)
	var names []string
	for _, d := range got {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"parcels", "roads", "elevation", "landcover"}, names)
	assert.Equal(t, KindVector, got[0].Kind)
	assert.Equal(t, KindRaster, got[3].Kind)
}

func TestRegistry_AvailableMissingDir(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "nope"), 4)
	defer r.Close()
	_, err := r.Available()
	assert.Error(t, err)
}

func TestRegistry_Path(t *testing.T) {
	dir := t.TempDir()
	writeVector(t, dir, "roads")
	r := NewRegistry(dir, 4)
	defer r.Close()

	p, err := r.Path("roads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "roads", "roads.shp"), p)

	for _, bad := range []string{"rivers", "", "../roads", "roads/roads"} {
		_, err := r.Path(bad)
		assert.True(t, eris.Is(err, ErrUnknownDataset), bad)
	}
}

func TestRegistry_Features(t *testing.T) {
	dir := t.TempDir()
	writeVector(t, dir, "sites")
	r := NewRegistry(dir, 4)
	defer r.Close()

	fs, err := r.Features("sites")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.Len())
	vals, err := fs.Column("value")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6}, vals)

	_, err = r.Features("missing")
	assert.True(t, eris.Is(err, ErrUnknownDataset))
}

func TestRegistry_SurfaceCached(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "elevation")
	r := NewRegistry(dir, 4)
	defer r.Close()

	first, err := r.Surface("elevation")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, first.Cells)

	// Callers get copies, and the cache survives the file going away.
	first.Cells[0] = 99
	require.NoError(t, os.Remove(path))
	second, err := r.Surface("elevation")
	assert.True(t, eris.Is(err, ErrUnknownDataset))
	assert.Nil(t, second)

	again, err := r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Cells[0])

	r.Evict(path)
	_, err = r.Open(path)
	assert.Error(t, err)
}

func TestRegistry_OpenConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "elevation")
	r := NewRegistry(dir, 4)
	defer r.Close()

	var wg sync.WaitGroup
	results := make([]*raster.Surface, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Open(path)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 6, len(results[i].Cells))
		if i > 0 {
			assert.NotSame(t, results[0], results[i])
		}
	}
}

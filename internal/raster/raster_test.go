package raster

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/grid"
	"github.com/sells-group/landsuit/internal/model"
)

const utm17 = "EPSG:26917"

// ramp builds a rows×cols surface whose value is row*cols+col.
func ramp(t *testing.T, rows, cols int, cell, x, y float64) *Surface {
	t.Helper()
	s, err := New(rows, cols, grid.Transform{CellSize: cell, OriginX: x, OriginY: y}, utm17, -9999)
	require.NoError(t, err)
	for i := range s.Cells {
		s.Cells[i] = float64(i)
	}
	return s
}

func TestNew_Validates(t *testing.T) {
	_, err := New(0, 3, grid.Transform{CellSize: 1}, "", 0)
	assert.Error(t, err)
	_, err = New(3, 3, grid.Transform{CellSize: 0}, "", 0)
	assert.Error(t, err)

	s, err := New(2, 2, grid.Transform{CellSize: 1}, "", -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1, -1}, s.Cells)
}

func TestSurface_FilterValidMap(t *testing.T) {
	s, err := New(2, 3, grid.Transform{CellSize: 1, OriginY: 2}, "", -9999)
	require.NoError(t, err)
	copy(s.Cells, []float64{2, 1, 2, -9999, math.NaN(), 2})

	assert.Equal(t, []grid.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 2}, {Row: 1, Col: 2}}, s.Filter(2))
	assert.Empty(t, s.Filter(7))
	assert.Equal(t, []float64{2, 1, 2, 2}, s.Valid())

	doubled := s.Map(func(v float64) float64 { return v * 2 })
	assert.Equal(t, 4.0, doubled.At(0, 0))
	assert.Equal(t, -9999.0, doubled.At(1, 0))
	assert.True(t, math.IsNaN(doubled.At(1, 1)))
	assert.Equal(t, 2.0, s.At(0, 0))
}

func TestRescale_Coarser(t *testing.T) {
	s := ramp(t, 10, 10, 30, 1000, 2000)
	out, err := Rescale(s, 60)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Rows)
	assert.Equal(t, 5, out.Cols)
	assert.Equal(t, 60.0, out.CellSize())
	assert.Equal(t, 1000.0, out.Transform.OriginX)
	assert.Equal(t, 2000.0, out.Transform.OriginY)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.Equal(t, s.At(2*r+1, 2*c+1), out.At(r, c), "cell %d,%d", r, c)
		}
	}
}

func TestRescale_SameSizeIsCopy(t *testing.T) {
	s := ramp(t, 3, 4, 30, 0, 90)
	out, err := Rescale(s, 30)
	require.NoError(t, err)
	assert.Equal(t, s.Cells, out.Cells)

	out.Cells[0] = 42
	assert.Equal(t, 0.0, s.Cells[0])
}

func TestRescale_NonDivisibleTarget(t *testing.T) {
	s := ramp(t, 10, 10, 30, 500, 800)
	out, err := Rescale(s, 7)
	require.NoError(t, err)

	assert.Equal(t, 43, out.Cols)
	assert.Equal(t, 43, out.Rows)
	assert.InDelta(t, 7, out.CellSize(), 7*0.005)
	ext, src := out.Extent(), s.Extent()
	assert.Equal(t, src.MinX, ext.MinX)
	assert.Equal(t, src.MaxY, ext.MaxY)
	assert.InDelta(t, src.MaxX, ext.MaxX, 1e-9)
}

func TestRescale_InvalidTarget(t *testing.T) {
	s := ramp(t, 2, 2, 30, 0, 60)
	_, err := Rescale(s, 0)
	assert.Error(t, err)
	_, err = Rescale(s, -5)
	assert.Error(t, err)
}

func TestMatchExtent(t *testing.T) {
	a, err := New(4, 4, grid.Transform{CellSize: 10, OriginX: 0, OriginY: 40}, utm17, -9999)
	require.NoError(t, err)
	for i := range a.Cells {
		a.Cells[i] = 1
	}
	b, err := New(2, 2, grid.Transform{CellSize: 20, OriginX: 20, OriginY: 60}, utm17, -9999)
	require.NoError(t, err)

	out, err := MatchExtent(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Rows)
	assert.Equal(t, 3, out.Cols)
	assert.Equal(t, 20.0, out.CellSize())
	assert.Equal(t, grid.Extent{MinX: 0, MinY: 0, MaxX: 60, MaxY: 60}, out.Extent())
	assert.Equal(t, utm17, out.CRS)

	assert.Equal(t, []float64{-9999, -9999, -9999}, out.Cells[0:3])
	assert.Equal(t, 1.0, out.At(1, 0))
	assert.Equal(t, 1.0, out.At(1, 1))
	assert.Equal(t, -9999.0, out.At(1, 2))

	// Either direction covers the same envelope.
	back, err := MatchExtent(b, a)
	require.NoError(t, err)
	assert.Equal(t, out.Extent(), back.Extent())
	assert.Equal(t, 10.0, back.CellSize())
}

func TestMatchExtent_PartialCellsRoundUp(t *testing.T) {
	a, err := New(4, 9, grid.Transform{CellSize: 5, OriginX: 0, OriginY: 20}, utm17, -9999)
	require.NoError(t, err)
	b, err := New(1, 2, grid.Transform{CellSize: 20, OriginX: 0, OriginY: 20}, utm17, -9999)
	require.NoError(t, err)

	out, err := MatchExtent(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Cols)
	assert.Equal(t, 1, out.Rows)
	assert.GreaterOrEqual(t, out.Extent().MaxX, 45.0)
}

func TestBilinear(t *testing.T) {
	s, err := New(2, 2, grid.Transform{CellSize: 1, OriginX: 0, OriginY: 2}, "", -9999)
	require.NoError(t, err)
	copy(s.Cells, []float64{0, 10, 20, 30})

	assert.InDelta(t, 15, s.sample(1, 1, ResampleBilinear), 1e-12)
	assert.InDelta(t, 0, s.sample(0.5, 1.5, ResampleBilinear), 1e-12)
	assert.Equal(t, -9999.0, s.sample(5, 5, ResampleBilinear))
	assert.Equal(t, 30.0, s.sample(1.9, 0.1, ResampleNearest))

	s.Set(1, 1, -9999)
	assert.InDelta(t, 10, s.sample(1, 1, ResampleBilinear), 1e-12)
}

func TestParseResampling(t *testing.T) {
	r, err := ParseResampling("Bilinear")
	require.NoError(t, err)
	assert.Equal(t, ResampleBilinear, r)
	r, err = ParseResampling("")
	require.NoError(t, err)
	assert.Equal(t, ResampleNearest, r)
	_, err = ParseResampling("cubic")
	assert.Error(t, err)
}

func TestReproject(t *testing.T) {
	s, err := New(10, 10, grid.Transform{CellSize: 100, OriginX: 495000, OriginY: 3300000}, utm17, -9999)
	require.NoError(t, err)
	for i := range s.Cells {
		s.Cells[i] = 5
	}

	out, err := Reproject(s, "EPSG:4269", ReprojectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4269", out.CRS)
	assert.Greater(t, out.CellSize(), 0.0)
	assert.Less(t, out.CellSize(), 0.01)

	fwd, err := crs.Transformer(utm17, "EPSG:4269")
	require.NoError(t, err)
	lon, lat, err := fwd(495500, 3299500)
	require.NoError(t, err)
	ext := out.Extent()
	assert.True(t, ext.Contains(lon, lat), "extent %+v", ext)
	assert.Equal(t, 5.0, out.At(out.Transform.CellOf(lon, lat).Row, out.Transform.CellOf(lon, lat).Col))

	valid := out.Valid()
	require.NotEmpty(t, valid)
	for _, v := range valid {
		assert.Equal(t, 5.0, v)
	}
}

func TestReproject_SameCRS(t *testing.T) {
	s := ramp(t, 4, 4, 30, 0, 120)
	out, err := Reproject(s, "epsg:26917", ReprojectOptions{})
	require.NoError(t, err)
	assert.Equal(t, s.Cells, out.Cells)
	assert.Equal(t, "epsg:26917", out.CRS)

	coarse, err := Reproject(s, utm17, ReprojectOptions{CellSize: 60})
	require.NoError(t, err)
	assert.Equal(t, 2, coarse.Rows)

	s.CRS = ""
	_, err = Reproject(s, utm17, ReprojectOptions{})
	assert.Error(t, err)
}

func TestGeoTIFF_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		opts   WriteOptions
		offset float64
	}{
		{"float64 strips", WriteOptions{}, 0.25},
		{"float32 deflate", WriteOptions{Kind: model.KindFloat32, Compress: true}, 0.5},
		{"int16 tiled predictor", WriteOptions{Kind: model.KindInt16, Compress: true, Predictor: true, TileSize: 16}, -100},
		{"uint8 tiled", WriteOptions{Kind: model.KindUint8, TileSize: 16}, 0},
		{"int32 predictor", WriteOptions{Kind: model.KindInt32, Predictor: true}, -100},
		{"uint16 deflate", WriteOptions{Kind: model.KindUint16, Compress: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(20, 37, grid.Transform{CellSize: 30, OriginX: 400000, OriginY: 3300000}, utm17, 250)
			require.NoError(t, err)
			for i := range s.Cells {
				s.Cells[i] = float64(i%200) + tt.offset
			}
			s.Set(3, 4, 250)

			path := filepath.Join(t.TempDir(), "out.tif")
			require.NoError(t, WriteGeoTIFF(path, s, tt.opts))

			got, err := Open(path)
			require.NoError(t, err)
			assert.Equal(t, s.Rows, got.Rows)
			assert.Equal(t, s.Cols, got.Cols)
			assert.Equal(t, s.Transform, got.Transform)
			assert.Equal(t, 250.0, got.NoData)
			assert.Equal(t, utm17, got.CRS)
			assert.Equal(t, s.Cells, got.Cells)
			assert.NoFileExists(t, filepath.Join(filepath.Dir(path), "out.prj"))
		})
	}
}

// shortReaderAt serves data but stops at cut for reads that start before
// limit, as if the pixel data ended early.
type shortReaderAt struct {
	data       []byte
	cut, limit int64
}

func (r shortReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < r.limit && off+int64(len(p)) > r.cut {
		if off >= r.cut {
			return 0, io.EOF
		}
		n := copy(p, r.data[off:r.cut])
		return n, io.EOF
	}
	return bytes.NewReader(r.data).ReadAt(p, off)
}

func TestGeoTIFF_ShortChunkRead(t *testing.T) {
	s := ramp(t, 20, 20, 30, 400000, 3300000)
	path := filepath.Join(t.TempDir(), "short.tif")
	require.NoError(t, WriteGeoTIFF(path, s, WriteOptions{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// The writer puts pixel data first and the IFD after it.
	ifd := int64(binary.LittleEndian.Uint32(data[4:8]))
	_, _, err = decodeGeoTIFF(shortReaderAt{data: data, cut: ifd / 2, limit: ifd})
	require.Error(t, err)
	assert.True(t, eris.Is(err, io.ErrUnexpectedEOF))

	tf := &tiffFile{r: bytes.NewReader(make([]byte, 10)), order: binary.LittleEndian}
	_, err = tf.readChunk(4, 16, 2, 1, chunkLayout{bits: 64, format: sampleFloat, compression: compressionNone, predictor: 1})
	assert.True(t, eris.Is(err, io.ErrUnexpectedEOF))
}

func TestGeoTIFF_TruncatesIntegerKinds(t *testing.T) {
	s, err := New(1, 3, grid.Transform{CellSize: 1, OriginY: 1}, utm17, 0)
	require.NoError(t, err)
	copy(s.Cells, []float64{1.9, 300, -4})

	path := filepath.Join(t.TempDir(), "u8.tif")
	require.NoError(t, WriteGeoTIFF(path, s, WriteOptions{Kind: model.KindUint8}))
	got, err := ReadGeoTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 255, 0}, got.Cells)
}

func TestGeoTIFF_SidecarCRSAndNaNNoData(t *testing.T) {
	const def = "+proj=aea +lat_0=24 +lon_0=-84 +lat_1=24 +lat_2=31.5 +x_0=400000 +y_0=-4000000 +datum=NAD83 +units=m +no_defs"
	s, err := New(2, 2, grid.Transform{CellSize: 10, OriginX: 5, OriginY: 25}, def, math.NaN())
	require.NoError(t, err)
	copy(s.Cells, []float64{1, math.NaN(), 3, 4})

	path := filepath.Join(t.TempDir(), "albers.tif")
	require.NoError(t, WriteGeoTIFF(path, s, WriteOptions{Kind: model.KindFloat32}))
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "albers.prj"))

	got, err := ReadGeoTIFF(path)
	require.NoError(t, err)
	assert.Equal(t, def, got.CRS)
	assert.True(t, math.IsNaN(got.NoData))
	assert.True(t, math.IsNaN(got.At(0, 1)))
	assert.Equal(t, 4.0, got.At(1, 1))
}

func TestWriteGeoTIFF_InvalidOptions(t *testing.T) {
	s := ramp(t, 2, 2, 1, 0, 2)
	dir := t.TempDir()

	err := WriteGeoTIFF(filepath.Join(dir, "a.tif"), s, WriteOptions{Predictor: true})
	assert.Error(t, err)
	err = WriteGeoTIFF(filepath.Join(dir, "b.tif"), s, WriteOptions{TileSize: 10})
	assert.Error(t, err)
	err = WriteGeoTIFF(filepath.Join(dir, "c.tif"), s, WriteOptions{Kind: "complex64"})
	assert.True(t, eris.Is(err, model.ErrUnsupportedKind))

	s.NoData = math.NaN()
	err = WriteGeoTIFF(filepath.Join(dir, "d.tif"), s, WriteOptions{Kind: model.KindInt32})
	assert.Error(t, err)
}

func TestReadGeoTIFF_NotTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a not a tiff"), 0o644))
	_, err := ReadGeoTIFF(path)
	assert.Error(t, err)

	_, err = ReadGeoTIFF(filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
}

func TestASCII_RoundTrip(t *testing.T) {
	s := ramp(t, 3, 4, 25, 100, 200)
	s.Cells[5] = math.NaN()

	path := filepath.Join(t.TempDir(), "grid.asc")
	require.NoError(t, Save(path, s, WriteOptions{}))

	got, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, s.Transform, got.Transform)
	assert.Equal(t, -9999.0, got.NoData)
	assert.Equal(t, utm17, got.CRS)

	want := append([]float64(nil), s.Cells...)
	want[5] = -9999
	assert.Equal(t, want, got.Cells)
}

func TestReadASCII_CenterHeaderAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.asc")
	body := "NCOLS 2\nNROWS 2\nXLLCENTER 5\nYLLCENTER 5\nCELLSIZE 10\n1 2\n3 4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := ReadASCII(path)
	require.NoError(t, err)
	assert.Equal(t, grid.Transform{CellSize: 10, OriginX: 0, OriginY: 20}, got.Transform)
	assert.Equal(t, -9999.0, got.NoData)
	assert.Equal(t, []float64{1, 2, 3, 4}, got.Cells)
	assert.Empty(t, got.CRS)
}

func TestReadASCII_Malformed(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"short.asc":      "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"long.asc":       "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n",
		"nocorner.asc":   "ncols 1\nnrows 1\ncellsize 1\n1\n",
		"badvalue.asc":   "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nx1\n",
		"nocellsize.asc": "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\n1\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := ReadASCII(path)
		assert.Error(t, err, name)
	}
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	_, err := Open("elevation.img")
	assert.True(t, eris.Is(err, ErrFormat))
	err = Save("elevation.png", ramp(t, 1, 1, 1, 0, 1), WriteOptions{})
	assert.True(t, eris.Is(err, ErrFormat))
}

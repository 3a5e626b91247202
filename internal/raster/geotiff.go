package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/tiff/lzw"

	"github.com/sells-group/landsuit/internal/grid"
)

// TIFF tags read or written by this package.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// Compression codes.
const (
	compressionNone     = 1
	compressionLZW      = 5
	compressionDeflate  = 8
	compressionDeflate2 = 32946
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// GeoKeys.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072
	userDefined       = 32767
	rasterPixelIsArea = 1
	rasterPixelIsPt   = 2
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
	typeLong8  = 16
)

var typeSize = map[uint16]uint64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, 16: 8, 17: 8, 18: 8,
}

type ifdEntry struct {
	typ   uint16
	count uint64
	data  []byte
}

type tiffFile struct {
	r       io.ReaderAt
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

// ReadGeoTIFF reads the first band of a GeoTIFF. The CRS comes from a .prj
// sidecar when present, else from the EPSG code in the GeoKey directory.
func ReadGeoTIFF(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()

	s, epsg, err := decodeGeoTIFF(f)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: decode %s", path)
	}

	if prj, ok, err := readSidecarPRJ(path); err != nil {
		return nil, err
	} else if ok {
		s.CRS = prj
	} else if epsg > 0 {
		s.CRS = "EPSG:" + strconv.Itoa(epsg)
	}
	if s.CRS == "" {
		zap.L().Warn("raster: GeoTIFF has no CRS", zap.String("path", path))
	}
	return s, nil
}

func decodeGeoTIFF(r io.ReaderAt) (*Surface, int, error) {
	tf, err := readIFD(r)
	if err != nil {
		return nil, 0, err
	}

	width, ok := tf.value(tagImageWidth)
	if !ok {
		return nil, 0, eris.New("raster: missing ImageWidth")
	}
	height, ok := tf.value(tagImageLength)
	if !ok {
		return nil, 0, eris.New("raster: missing ImageLength")
	}
	if spp, ok := tf.value(tagSamplesPerPixel); ok && spp != 1 {
		return nil, 0, eris.Errorf("raster: %d samples per pixel, only single-band rasters are supported", spp)
	}
	bits := tf.uintOr(tagBitsPerSample, 1)
	format := tf.uintOr(tagSampleFormat, sampleUint)
	compression := tf.uintOr(tagCompression, compressionNone)
	predictor := tf.uintOr(tagPredictor, 1)

	if bits != 8 && bits != 16 && bits != 32 && bits != 64 {
		return nil, 0, eris.Errorf("raster: unsupported bits per sample %d", bits)
	}
	if format == sampleFloat && bits < 32 {
		return nil, 0, eris.Errorf("raster: unsupported float width %d", bits)
	}
	if predictor != 1 && (predictor != 2 || format == sampleFloat) {
		return nil, 0, eris.Errorf("raster: unsupported predictor %d for sample format %d", predictor, format)
	}

	t, err := tf.transform()
	if err != nil {
		return nil, 0, err
	}
	keys := tf.geoKeys()
	if keys[keyRasterType] == rasterPixelIsPt {
		t.OriginX -= t.CellSize / 2
		t.OriginY += t.CellSize / 2
	}

	noData := math.NaN()
	if e, ok := tf.entries[tagGDALNoData]; ok {
		txt := strings.TrimSpace(strings.TrimRight(string(e.data), "\x00"))
		if v, err := strconv.ParseFloat(txt, 64); err == nil {
			noData = v
		}
	}

	s := &Surface{
		Cells:     make([]float64, int(width)*int(height)),
		Rows:      int(height),
		Cols:      int(width),
		Transform: t,
		NoData:    noData,
	}
	layout := chunkLayout{bits: int(bits), format: int(format), compression: int(compression), predictor: int(predictor)}

	if tw, ok := tf.value(tagTileWidth); ok {
		th, _ := tf.value(tagTileLength)
		offsets, counts := tf.uints(tagTileOffsets), tf.uints(tagTileByteCounts)
		if th == 0 || len(offsets) != len(counts) {
			return nil, 0, eris.New("raster: malformed tile tags")
		}
		across := (int(width) + int(tw) - 1) / int(tw)
		for i := range offsets {
			vals, err := tf.readChunk(offsets[i], counts[i], int(tw), int(th), layout)
			if err != nil {
				return nil, 0, eris.Wrapf(err, "raster: tile %d", i)
			}
			r0, c0 := (i/across)*int(th), (i%across)*int(tw)
			s.place(vals, r0, c0, int(tw), int(th))
		}
	} else {
		rps := int(tf.uintOr(tagRowsPerStrip, height))
		offsets, counts := tf.uints(tagStripOffsets), tf.uints(tagStripByteCounts)
		if len(offsets) == 0 || len(offsets) != len(counts) {
			return nil, 0, eris.New("raster: malformed strip tags")
		}
		for i := range offsets {
			r0 := i * rps
			rows := min(rps, int(height)-r0)
			if rows <= 0 {
				break
			}
			vals, err := tf.readChunk(offsets[i], counts[i], int(width), rows, layout)
			if err != nil {
				return nil, 0, eris.Wrapf(err, "raster: strip %d", i)
			}
			s.place(vals, r0, 0, int(width), rows)
		}
	}

	epsg := keys[keyProjectedType]
	if epsg == 0 || epsg == userDefined {
		epsg = keys[keyGeographicType]
	}
	if epsg == userDefined {
		epsg = 0
	}
	return s, epsg, nil
}

// place copies a w×h chunk to (r0, c0), clipping padding beyond the image.
func (s *Surface) place(vals []float64, r0, c0, w, h int) {
	for r := 0; r < h && r0+r < s.Rows; r++ {
		for c := 0; c < w && c0+c < s.Cols; c++ {
			s.Cells[(r0+r)*s.Cols+c0+c] = vals[r*w+c]
		}
	}
}

func readIFD(r io.ReaderAt) (*tiffFile, error) {
	hdr := make([]byte, 16)
	if _, err := r.ReadAt(hdr[:8], 0); err != nil {
		return nil, eris.Wrap(err, "raster: read TIFF header")
	}
	tf := &tiffFile{r: r, entries: make(map[uint16]ifdEntry)}
	switch string(hdr[:2]) {
	case "II":
		tf.order = binary.LittleEndian
	case "MM":
		tf.order = binary.BigEndian
	default:
		return nil, eris.New("raster: not a TIFF file")
	}

	var (
		offset    uint64
		big       bool
		entrySize uint64 = 12
		countSize uint64 = 2
		valueSize uint64 = 4
	)
	switch tf.order.Uint16(hdr[2:4]) {
	case 42:
		offset = uint64(tf.order.Uint32(hdr[4:8]))
	case 43:
		big = true
		if _, err := r.ReadAt(hdr[8:16], 8); err != nil {
			return nil, eris.Wrap(err, "raster: read BigTIFF header")
		}
		offset = tf.order.Uint64(hdr[8:16])
		entrySize, countSize, valueSize = 20, 8, 8
	default:
		return nil, eris.New("raster: bad TIFF magic number")
	}

	nbuf := make([]byte, countSize)
	if _, err := r.ReadAt(nbuf, int64(offset)); err != nil {
		return nil, eris.Wrap(err, "raster: read IFD")
	}
	var n uint64
	if big {
		n = tf.order.Uint64(nbuf)
	} else {
		n = uint64(tf.order.Uint16(nbuf))
	}

	block := make([]byte, n*entrySize)
	if _, err := r.ReadAt(block, int64(offset+countSize)); err != nil {
		return nil, eris.Wrap(err, "raster: read IFD entries")
	}
	for i := uint64(0); i < n; i++ {
		e := block[i*entrySize : (i+1)*entrySize]
		tag, typ := tf.order.Uint16(e[0:2]), tf.order.Uint16(e[2:4])
		size, known := typeSize[typ]
		if !known {
			continue
		}
		var count uint64
		var field []byte
		if big {
			count, field = tf.order.Uint64(e[4:12]), e[12:20]
		} else {
			count, field = uint64(tf.order.Uint32(e[4:8])), e[8:12]
		}
		total := size * count
		data := make([]byte, total)
		if total <= valueSize {
			copy(data, field[:total])
		} else {
			var at uint64
			if big {
				at = tf.order.Uint64(field)
			} else {
				at = uint64(tf.order.Uint32(field))
			}
			if _, err := r.ReadAt(data, int64(at)); err != nil {
				return nil, eris.Wrapf(err, "raster: read tag %d", tag)
			}
		}
		tf.entries[tag] = ifdEntry{typ: typ, count: count, data: data}
	}
	return tf, nil
}

func (tf *tiffFile) uints(tag uint16) []uint64 {
	e, ok := tf.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint64(e.data[i])
		case typeShort:
			out[i] = uint64(tf.order.Uint16(e.data[2*i:]))
		case typeLong:
			out[i] = uint64(tf.order.Uint32(e.data[4*i:]))
		case typeLong8:
			out[i] = tf.order.Uint64(e.data[8*i:])
		default:
			return nil
		}
	}
	return out
}

func (tf *tiffFile) value(tag uint16) (uint64, bool) {
	v := tf.uints(tag)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

func (tf *tiffFile) uintOr(tag uint16, def uint64) uint64 {
	if v, ok := tf.value(tag); ok {
		return v
	}
	return def
}

func (tf *tiffFile) doubles(tag uint16) []float64 {
	e, ok := tf.entries[tag]
	if !ok || e.typ != typeDouble {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(tf.order.Uint64(e.data[8*i:]))
	}
	return out
}

// geoKeys decodes the short-valued keys of the GeoKey directory.
func (tf *tiffFile) geoKeys() map[int]int {
	keys := make(map[int]int)
	dir := tf.uints(tagGeoKeyDirectory)
	if len(dir) < 4 {
		return keys
	}
	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		k := dir[4+4*i:]
		if k[1] == 0 && k[2] == 1 {
			keys[int(k[0])] = int(k[3])
		}
	}
	return keys
}

// transform derives a north-up transform from the pixel-scale and tiepoint
// tags, or from a rotation-free ModelTransformation.
func (tf *tiffFile) transform() (grid.Transform, error) {
	if m := tf.doubles(tagModelTransform); len(m) >= 16 {
		if m[1] != 0 || m[4] != 0 {
			return grid.Transform{}, eris.New("raster: rotated rasters are not supported")
		}
		return squareTransform(m[0], -m[5], m[3], m[7])
	}
	scale, tie := tf.doubles(tagModelPixelScale), tf.doubles(tagModelTiepoint)
	if len(scale) < 2 || len(tie) < 6 {
		return grid.Transform{}, eris.New("raster: missing georeferencing tags")
	}
	sx, sy := scale[0], math.Abs(scale[1])
	return squareTransform(sx, sy, tie[3]-tie[0]*sx, tie[4]+tie[1]*sy)
}

func squareTransform(sx, sy, originX, originY float64) (grid.Transform, error) {
	if !(sx > 0) || math.Abs(sx-sy) > sx*1e-6 {
		return grid.Transform{}, eris.Errorf("raster: non-square cells %g x %g", sx, sy)
	}
	return grid.Transform{CellSize: sx, OriginX: originX, OriginY: originY}, nil
}

type chunkLayout struct {
	bits, format, compression, predictor int
}

func (tf *tiffFile) readChunk(offset, count uint64, w, h int, l chunkLayout) ([]float64, error) {
	raw := make([]byte, count)
	got, err := tf.r.ReadAt(raw, int64(offset))
	if got < len(raw) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, eris.Wrapf(err, "raster: read chunk at %d: got %d of %d bytes", offset, got, len(raw))
	}

	var buf []byte
	switch l.compression {
	case compressionNone:
		buf = raw
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer func() { _ = rc.Close() }()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, eris.Wrap(err, "raster: LZW decode")
		}
		buf = b
	case compressionDeflate, compressionDeflate2:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, eris.Wrap(err, "raster: deflate header")
		}
		defer func() { _ = zr.Close() }()
		b, err := io.ReadAll(zr)
		if err != nil {
			return nil, eris.Wrap(err, "raster: deflate decode")
		}
		buf = b
	default:
		return nil, eris.Errorf("raster: unsupported compression %d", l.compression)
	}

	bps := l.bits / 8
	n := w * h
	if len(buf) < n*bps {
		return nil, eris.Errorf("raster: chunk holds %d bytes, need %d", len(buf), n*bps)
	}

	words := make([]uint64, n)
	for i := range words {
		b := buf[i*bps:]
		switch bps {
		case 1:
			words[i] = uint64(b[0])
		case 2:
			words[i] = uint64(tf.order.Uint16(b))
		case 4:
			words[i] = uint64(tf.order.Uint32(b))
		default:
			words[i] = tf.order.Uint64(b)
		}
	}
	if l.predictor == 2 {
		mask := uint64(math.MaxUint64)
		if l.bits < 64 {
			mask = 1<<uint(l.bits) - 1
		}
		for r := 0; r < h; r++ {
			row := words[r*w : (r+1)*w]
			for c := 1; c < w; c++ {
				row[c] = (row[c] + row[c-1]) & mask
			}
		}
	}

	out := make([]float64, n)
	for i, word := range words {
		out[i] = wordToFloat(word, l.bits, l.format)
	}
	return out, nil
}

func wordToFloat(w uint64, bits, format int) float64 {
	switch format {
	case sampleFloat:
		if bits == 32 {
			return float64(math.Float32frombits(uint32(w)))
		}
		return math.Float64frombits(w)
	case sampleInt:
		switch bits {
		case 8:
			return float64(int8(w))
		case 16:
			return float64(int16(w))
		case 32:
			return float64(int32(w))
		default:
			return float64(int64(w))
		}
	default:
		return float64(w)
	}
}

func readSidecarPRJ(path string) (string, bool, error) {
	prj := prjPath(path)
	b, err := os.ReadFile(prj)
	switch {
	case err == nil:
		return strings.TrimSpace(string(b)), true, nil
	case os.IsNotExist(err):
		return "", false, nil
	default:
		return "", false, eris.Wrapf(err, "raster: read %s", prj)
	}
}

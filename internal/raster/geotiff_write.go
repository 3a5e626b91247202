package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/model"
)

// WriteOptions controls GeoTIFF encoding.
type WriteOptions struct {
	// Kind is the sample type; empty means float64.
	Kind model.Kind
	// Compress deflates every chunk.
	Compress bool
	// Predictor applies horizontal differencing; integer kinds only.
	Predictor bool
	// TileSize writes square tiles of this edge (a multiple of 16); zero
	// writes strips.
	TileSize int
}

const stripTargetBytes = 8192

// WriteGeoTIFF writes s as a little-endian single-band GeoTIFF. A CRS of the
// form EPSG:n is stored in the GeoKey directory; any other CRS definition is
// written to a .prj sidecar.
func WriteGeoTIFF(path string, s *Surface, opts WriteOptions) error {
	kind, err := model.ParseKind(string(opts.Kind))
	if err != nil {
		return eris.Wrap(err, "raster: write GeoTIFF")
	}
	if opts.Predictor && kind.IsFloat() {
		return eris.Errorf("raster: predictor requires an integer kind, got %s", kind)
	}
	if opts.TileSize < 0 || opts.TileSize%16 != 0 {
		return eris.Errorf("raster: tile size must be a multiple of 16, got %d", opts.TileSize)
	}
	if !kind.IsFloat() && math.IsNaN(s.NoData) {
		return eris.Errorf("raster: %s output needs a finite nodata value", kind)
	}

	enc := sampleEncoder{kind: kind, noData: s.NoData, predictor: opts.Predictor, compress: opts.Compress}
	var buf bytes.Buffer
	buf.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0})

	var tags []tiffTag
	if opts.TileSize > 0 {
		ts := opts.TileSize
		across, down := (s.Cols+ts-1)/ts, (s.Rows+ts-1)/ts
		offsets := make([]uint32, 0, across*down)
		counts := make([]uint32, 0, across*down)
		for tr := 0; tr < down; tr++ {
			for tc := 0; tc < across; tc++ {
				chunk, err := enc.encode(s, tr*ts, tc*ts, ts, ts)
				if err != nil {
					return err
				}
				offsets = append(offsets, uint32(buf.Len()))
				counts = append(counts, uint32(len(chunk)))
				buf.Write(chunk)
			}
		}
		tags = append(tags,
			longTag(tagTileWidth, uint32(ts)),
			longTag(tagTileLength, uint32(ts)),
			longTag(tagTileOffsets, offsets...),
			longTag(tagTileByteCounts, counts...),
		)
	} else {
		rps := max(1, stripTargetBytes/(s.Cols*kind.Bits()/8))
		rps = min(rps, s.Rows)
		var offsets, counts []uint32
		for r0 := 0; r0 < s.Rows; r0 += rps {
			rows := min(rps, s.Rows-r0)
			chunk, err := enc.encode(s, r0, 0, s.Cols, rows)
			if err != nil {
				return err
			}
			offsets = append(offsets, uint32(buf.Len()))
			counts = append(counts, uint32(len(chunk)))
			buf.Write(chunk)
		}
		tags = append(tags,
			longTag(tagStripOffsets, offsets...),
			longTag(tagRowsPerStrip, uint32(rps)),
			longTag(tagStripByteCounts, counts...),
		)
	}

	compression := uint16(compressionNone)
	if opts.Compress {
		compression = compressionDeflate
	}
	format := uint16(sampleUint)
	switch {
	case kind.IsFloat():
		format = sampleFloat
	case kind.IsSigned():
		format = sampleInt
	}
	t := s.Transform
	tags = append(tags,
		longTag(tagImageWidth, uint32(s.Cols)),
		longTag(tagImageLength, uint32(s.Rows)),
		shortTag(tagBitsPerSample, uint16(kind.Bits())),
		shortTag(tagCompression, compression),
		shortTag(tagPhotometric, 1),
		shortTag(tagSamplesPerPixel, 1),
		shortTag(tagPlanarConfig, 1),
		shortTag(tagSampleFormat, format),
		doubleTag(tagModelPixelScale, t.CellSize, t.CellSize, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, t.OriginX, t.OriginY, 0),
		asciiTag(tagGDALNoData, strconv.FormatFloat(s.NoData, 'g', -1, 64)),
	)
	if opts.Predictor {
		tags = append(tags, shortTag(tagPredictor, 2))
	}

	sidecar := ""
	if code, ok := epsgCode(s.CRS); ok {
		tags = append(tags, geoKeyTag(code, s.CRS))
	} else if s.CRS != "" {
		sidecar = s.CRS
		tags = append(tags, geoKeyTag(0, ""))
	}

	writeIFD(&buf, tags)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "raster: write %s", path)
	}
	if sidecar != "" {
		prj := prjPath(path)
		if err := os.WriteFile(prj, []byte(sidecar), 0o644); err != nil {
			return eris.Wrapf(err, "raster: write %s", prj)
		}
	}
	return nil
}

// epsgCode extracts n from an "EPSG:n" definition.
func epsgCode(def string) (int, bool) {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(def)), "EPSG:")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 || n >= userDefined {
		return 0, false
	}
	return n, true
}

// geoKeyTag builds the GeoKey directory. A zero code marks the CRS as
// user-defined.
func geoKeyTag(code int, def string) tiffTag {
	modelType, crsKey := 1, keyProjectedType
	if code > 0 {
		if _, err := crs.LinearUnit(def); eris.Is(err, crs.ErrGeographic) {
			modelType, crsKey = 2, keyGeographicType
		}
	} else {
		code = userDefined
	}
	return shortTag(tagGeoKeyDirectory,
		1, 1, 0, 3,
		keyModelType, 0, 1, uint16(modelType),
		keyRasterType, 0, 1, rasterPixelIsArea,
		uint16(crsKey), 0, 1, uint16(code),
	)
}

type sampleEncoder struct {
	kind      model.Kind
	noData    float64
	predictor bool
	compress  bool
}

// encode packs a w×h chunk at (r0, c0); cells past the image edge are padded
// with nodata.
func (e sampleEncoder) encode(s *Surface, r0, c0, w, h int) ([]byte, error) {
	bits := e.kind.Bits()
	words := make([]uint64, w*h)
	pad := e.word(e.noData)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			row, col := r0+r, c0+c
			if row >= s.Rows || col >= s.Cols {
				words[r*w+c] = pad
				continue
			}
			v := s.At(row, col)
			if s.IsNoData(v) {
				v = e.noData
			}
			words[r*w+c] = e.word(v)
		}
	}
	if e.predictor {
		mask := uint64(math.MaxUint64)
		if bits < 64 {
			mask = 1<<uint(bits) - 1
		}
		for r := 0; r < h; r++ {
			row := words[r*w : (r+1)*w]
			for c := w - 1; c > 0; c-- {
				row[c] = (row[c] - row[c-1]) & mask
			}
		}
	}

	bps := bits / 8
	raw := make([]byte, len(words)*bps)
	for i, word := range words {
		b := raw[i*bps:]
		switch bps {
		case 1:
			b[0] = byte(word)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(word))
		case 4:
			binary.LittleEndian.PutUint32(b, uint32(word))
		default:
			binary.LittleEndian.PutUint64(b, word)
		}
	}
	if !e.compress {
		return raw, nil
	}

	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(raw); err != nil {
		return nil, eris.Wrap(err, "raster: deflate encode")
	}
	if err := zw.Close(); err != nil {
		return nil, eris.Wrap(err, "raster: deflate flush")
	}
	return out.Bytes(), nil
}

// word converts v to the kind's bit pattern.
func (e sampleEncoder) word(v float64) uint64 {
	switch e.kind {
	case model.KindFloat32:
		return uint64(math.Float32bits(float32(v)))
	case model.KindFloat64:
		return math.Float64bits(v)
	}
	v = e.kind.Cast(v)
	if e.kind.IsSigned() {
		if v >= math.MaxInt64 {
			return math.MaxInt64
		}
		return uint64(int64(v))
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

type tiffTag struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortTag(tag uint16, vals ...uint16) tiffTag {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return tiffTag{tag: tag, typ: typeShort, count: uint32(len(vals)), data: data}
}

func longTag(tag uint16, vals ...uint32) tiffTag {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return tiffTag{tag: tag, typ: typeLong, count: uint32(len(vals)), data: data}
}

func doubleTag(tag uint16, vals ...float64) tiffTag {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return tiffTag{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: data}
}

func asciiTag(tag uint16, s string) tiffTag {
	data := append([]byte(s), 0)
	return tiffTag{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

// writeIFD appends a single IFD after the image data and patches the header
// to point at it. Values wider than four bytes follow the IFD.
func writeIFD(buf *bytes.Buffer, tags []tiffTag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].tag < tags[j].tag })
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
	ifdOffset := uint32(buf.Len())
	extraOffset := ifdOffset + 2 + 12*uint32(len(tags)) + 4

	var ifd, extra bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&ifd, le, uint16(len(tags)))
	for _, t := range tags {
		_ = binary.Write(&ifd, le, t.tag)
		_ = binary.Write(&ifd, le, t.typ)
		_ = binary.Write(&ifd, le, t.count)
		if len(t.data) <= 4 {
			field := make([]byte, 4)
			copy(field, t.data)
			ifd.Write(field)
			continue
		}
		_ = binary.Write(&ifd, le, extraOffset+uint32(extra.Len()))
		extra.Write(t.data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	_ = binary.Write(&ifd, le, uint32(0))

	buf.Write(ifd.Bytes())
	buf.Write(extra.Bytes())
	le.PutUint32(buf.Bytes()[4:8], ifdOffset)
}

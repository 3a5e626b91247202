package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/grid"
)

// Esri grids without a NODATA_value line use this marker.
const asciiDefaultNoData = -9999

// ReadASCII reads an Esri ASCII grid. The CRS is taken from a .prj sidecar.
func ReadASCII(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()

	s, err := decodeASCII(f)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: decode %s", path)
	}
	prj, ok, err := readSidecarPRJ(path)
	if err != nil {
		return nil, err
	}
	if ok {
		s.CRS = prj
	}
	return s, nil
}

func decodeASCII(r io.Reader) (*Surface, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("raster: header %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: header %q", key)
		}
		header[key] = v
	}

	for _, key := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, eris.Errorf("raster: missing %s header", key)
		}
	}
	cols, rows, cs := int(header["ncols"]), int(header["nrows"]), header["cellsize"]

	var x, y float64
	switch {
	case hasKeys(header, "xllcorner", "yllcorner"):
		x, y = header["xllcorner"], header["yllcorner"]
	case hasKeys(header, "xllcenter", "yllcenter"):
		x, y = header["xllcenter"]-cs/2, header["yllcenter"]-cs/2
	default:
		return nil, eris.New("raster: missing lower-left corner headers")
	}
	noData := float64(asciiDefaultNoData)
	if v, ok := header["nodata_value"]; ok {
		noData = v
	}

	t := grid.Transform{CellSize: cs, OriginX: x, OriginY: y + float64(rows)*cs}
	s, err := New(rows, cols, t, "", noData)
	if err != nil {
		return nil, err
	}

	n := 0
	tok := first
	for tok != "" {
		if n >= len(s.Cells) {
			return nil, eris.Errorf("raster: more than %d values", len(s.Cells))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: value %d", n)
		}
		s.Cells[n] = v
		n++
		tok = ""
		if sc.Scan() {
			tok = sc.Text()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan grid")
	}
	if n != len(s.Cells) {
		return nil, eris.Errorf("raster: got %d values, want %d", n, len(s.Cells))
	}
	return s, nil
}

func hasKeys(m map[string]float64, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// WriteASCII writes s as an Esri ASCII grid, plus a .prj sidecar when the
// surface has a CRS. NaN cells are written as the nodata value.
func WriteASCII(path string, s *Surface) error {
	noData := s.NoData
	if math.IsNaN(noData) {
		noData = asciiDefaultNoData
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	w := bufio.NewWriter(f)
	ext := s.Extent()
	fmt.Fprintf(w, "ncols %d\nnrows %d\n", s.Cols, s.Rows)
	fmt.Fprintf(w, "xllcorner %s\nyllcorner %s\n", formatFloat(ext.MinX), formatFloat(ext.MinY))
	fmt.Fprintf(w, "cellsize %s\nNODATA_value %s\n", formatFloat(s.CellSize()), formatFloat(noData))
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			if c > 0 {
				_ = w.WriteByte(' ')
			}
			v := s.At(r, c)
			if s.IsNoData(v) {
				v = noData
			}
			_, _ = w.WriteString(formatFloat(v))
		}
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "raster: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "raster: close %s", path)
	}

	if s.CRS != "" {
		prj := prjPath(path)
		if err := os.WriteFile(prj, []byte(s.CRS), 0o644); err != nil {
			return eris.Wrapf(err, "raster: write %s", prj)
		}
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

package raster

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrFormat is returned for file extensions no codec handles.
var ErrFormat = eris.New("raster: unsupported format")

// Open reads a raster by extension: .tif/.tiff as GeoTIFF, .asc as an Esri
// ASCII grid.
func Open(path string) (*Surface, error) {
	switch extOf(path) {
	case ".tif", ".tiff":
		return ReadGeoTIFF(path)
	case ".asc":
		return ReadASCII(path)
	default:
		return nil, eris.Wrapf(ErrFormat, "raster: open %s", path)
	}
}

// Save writes s by extension. GeoTIFF output uses opts; ASCII ignores them.
func Save(path string, s *Surface, opts WriteOptions) error {
	switch extOf(path) {
	case ".tif", ".tiff":
		return WriteGeoTIFF(path, s, opts)
	case ".asc":
		return WriteASCII(path, s)
	default:
		return eris.Wrapf(ErrFormat, "raster: save %s", path)
	}
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// prjPath returns the .prj sidecar next to path.
func prjPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}

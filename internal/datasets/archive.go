package datasets

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Files kept when a dataset is added. Anything else in an archive is skipped.
var datasetFiles = map[string]Kind{
	".shp": KindVector, ".shx": KindVector, ".dbf": KindVector, ".prj": KindVector, ".cpg": KindVector,
	".tif": KindRaster, ".tiff": KindRaster,
}

// Add copies a shapefile (with its sidecars), a GeoTIFF, or a ZIP archive
// holding exactly one of either into the registry as name. An empty name
// uses the source's base name. Existing files of the dataset are replaced.
func (r *Registry) Add(src, name string) (Dataset, error) {
	ext := strings.ToLower(filepath.Ext(src))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return Dataset{}, eris.Errorf("datasets: invalid dataset name %q", name)
	}
	dest := filepath.Join(r.dir, name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Dataset{}, eris.Wrap(err, "datasets: create dataset directory")
	}

	var err error
	switch {
	case ext == ".zip":
		err = extractDataset(src, dest, name)
	case datasetFiles[ext] == KindVector:
		err = copyShapefile(src, dest, name)
	case datasetFiles[ext] == KindRaster:
		err = copyFile(src, filepath.Join(dest, name+".tif"))
	default:
		err = eris.Errorf("datasets: cannot add %s files", ext)
	}
	if err != nil {
		return Dataset{}, err
	}

	d, ok := r.lookup(name)
	if !ok {
		return Dataset{}, eris.Errorf("datasets: %s holds no shapefile or GeoTIFF", src)
	}
	r.Evict(d.Path)
	zap.L().Info("datasets: added dataset",
		zap.String("name", d.Name),
		zap.String("kind", string(d.Kind)),
		zap.String("source", src),
	)
	return d, nil
}

// extractDataset writes the dataset members of a ZIP archive into dest,
// renamed to name. Directories inside the archive are flattened.
func extractDataset(zipPath, dest, name string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "zip: open archive")
	}
	defer zr.Close() //nolint:errcheck

	var members []*zip.File
	bases := make(map[string]bool)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, ok := datasetFiles[strings.ToLower(filepath.Ext(f.Name))]; !ok {
			continue
		}
		members = append(members, f)
		base := filepath.Base(f.Name)
		bases[strings.TrimSuffix(base, filepath.Ext(base))] = true
	}
	if len(members) == 0 {
		return eris.Errorf("zip: %s has no shapefile or GeoTIFF", zipPath)
	}
	if len(bases) != 1 {
		return eris.Errorf("zip: %s holds %d datasets, expected 1", zipPath, len(bases))
	}

	for _, f := range members {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == ".tiff" {
			ext = ".tif"
		}
		if err := extractZIPEntry(f, dest, name+ext); err != nil {
			return err
		}
	}
	return nil
}

// extractZIPEntry writes f to dest/target.
func extractZIPEntry(f *zip.File, dest, target string) error {
	// Sanitize against zip slip
	destPath := filepath.Join(dest, target)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(dest)+string(os.PathSeparator)) {
		return eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrap(err, "zip: write file")
	}
	return out.Close()
}

// copyShapefile copies src and whichever sidecars exist next to it.
func copyShapefile(src, dest, name string) error {
	stem := strings.TrimSuffix(src, filepath.Ext(src))
	if _, err := os.Stat(stem + ".shp"); err != nil {
		return eris.Wrapf(err, "datasets: shapefile %s", stem+".shp")
	}
	for ext, kind := range datasetFiles {
		if kind != KindVector {
			continue
		}
		from := stem + ext
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyFile(from, filepath.Join(dest, name+ext)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return eris.Wrapf(err, "datasets: open %s", from)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(to)
	if err != nil {
		return eris.Wrapf(err, "datasets: create %s", to)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return eris.Wrapf(err, "datasets: copy %s", from)
	}
	return out.Close()
}

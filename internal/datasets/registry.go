// Package datasets resolves named sample datasets stored as
// <dir>/<name>/<name>.shp or <dir>/<name>/<name>.tif and caches loaded rasters.
package datasets

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
)

// ErrUnknownDataset is returned by Path for names the directory does not hold.
var ErrUnknownDataset = eris.New("datasets: unknown dataset")

// DefaultCacheSize bounds the number of cached rasters.
const DefaultCacheSize = 32

const cacheTTL = 30 * time.Minute

// Kind tells vector datasets from raster ones.
type Kind string

const (
	KindVector Kind = "vector"
	KindRaster Kind = "raster"
)

var extensions = map[Kind]string{KindVector: ".shp", KindRaster: ".tif"}

// Dataset is one entry of the registry.
type Dataset struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
}

// Registry finds datasets under a directory and loads them. It is safe for
// concurrent use; cached surfaces are never handed out directly.
type Registry struct {
	dir      string
	cache    *ccache.Cache[*raster.Surface]
	inflight singleflight.Group
}

// NewRegistry creates a registry over dir. cacheSize <= 0 uses DefaultCacheSize.
func NewRegistry(dir string, cacheSize int) *Registry {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	prune := uint32(cacheSize / 4)
	if prune == 0 {
		prune = 1
	}
	return &Registry{
		dir:   dir,
		cache: ccache.New(ccache.Configure[*raster.Surface]().MaxSize(int64(cacheSize)).ItemsToPrune(prune)),
	}
}

// Dir returns the registry root.
func (r *Registry) Dir() string { return r.dir }

// Available lists vector datasets then raster datasets, each sorted by name.
func (r *Registry) Available() ([]Dataset, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "datasets: read %s", r.dir)
	}
	var vectors, rasters []Dataset
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if d, ok := r.lookup(e.Name()); ok {
			if d.Kind == KindVector {
				vectors = append(vectors, d)
			} else {
				rasters = append(rasters, d)
			}
		}
	}
	byName := func(ds []Dataset) {
		sort.Slice(ds, func(i, j int) bool { return ds[i].Name < ds[j].Name })
	}
	byName(vectors)
	byName(rasters)
	return append(vectors, rasters...), nil
}

// Path returns the file backing name.
func (r *Registry) Path(name string) (string, error) {
	d, ok := r.lookup(name)
	if !ok {
		return "", eris.Wrapf(ErrUnknownDataset, "datasets: %q in %s", name, r.dir)
	}
	return d.Path, nil
}

func (r *Registry) lookup(name string) (Dataset, bool) {
	if name == "" || filepath.Base(name) != name {
		return Dataset{}, false
	}
	for _, kind := range []Kind{KindVector, KindRaster} {
		p := filepath.Join(r.dir, name, name+extensions[kind])
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return Dataset{Name: name, Kind: kind, Path: p}, true
		}
	}
	return Dataset{}, false
}

// Features loads a vector dataset.
func (r *Registry) Features(name string) (*vector.FeatureSet, error) {
	p, err := r.Path(name)
	if err != nil {
		return nil, err
	}
	return vector.ReadShapefile(p)
}

// Surface loads a raster dataset through the cache.
func (r *Registry) Surface(name string) (*raster.Surface, error) {
	p, err := r.Path(name)
	if err != nil {
		return nil, err
	}
	return r.Open(p)
}

// Open reads any raster file through the cache. Concurrent calls for the same
// path share one read. The caller owns the returned copy.
func (r *Registry) Open(path string) (*raster.Surface, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "datasets: resolve %s", path)
	}
	if item := r.cache.Get(key); item != nil && !item.Expired() {
		return item.Value().Clone(), nil
	}

	v, err, shared := r.inflight.Do(key, func() (interface{}, error) {
		s, err := raster.Open(key)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, s, cacheTTL)
		zap.L().Debug("datasets: cached raster",
			zap.String("path", key),
			zap.Int("rows", s.Rows),
			zap.Int("cols", s.Cols),
		)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("datasets: shared raster load", zap.String("path", key))
	}
	return v.(*raster.Surface).Clone(), nil
}

// Evict drops a cached raster, e.g. after the file was rewritten.
func (r *Registry) Evict(path string) {
	if key, err := filepath.Abs(path); err == nil {
		r.cache.Delete(key)
	}
}

// Close stops the cache's background worker.
func (r *Registry) Close() {
	r.cache.Stop()
}

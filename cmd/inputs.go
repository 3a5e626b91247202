package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/datasets"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/proximity"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
)

// newRegistry opens the configured dataset directory.
func newRegistry() *datasets.Registry {
	return datasets.NewRegistry(cfg.Datasets.Dir, cfg.Datasets.CacheSize)
}

// loadLayer reads a shapefile path, or a vector dataset by name.
func loadLayer(reg *datasets.Registry, ref string) (*vector.FeatureSet, error) {
	if strings.EqualFold(filepath.Ext(ref), ".shp") {
		return vector.ReadShapefile(ref)
	}
	return reg.Features(ref)
}

// loadSurface reads a raster file, or a raster dataset by name.
func loadSurface(reg *datasets.Registry, ref string) (*raster.Surface, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".tif", ".tiff", ".asc":
		return reg.Open(ref)
	}
	return reg.Surface(ref)
}

// metricFlag resolves --metric, falling back to the configured metric.
func metricFlag(cmd *cobra.Command) (proximity.Metric, error) {
	m, _ := cmd.Flags().GetString("metric")
	if m == "" {
		m = cfg.Analysis.Metric
	}
	return proximity.ParseMetric(m)
}

// kindFlag resolves --kind; empty means float64.
func kindFlag(cmd *cobra.Command) (model.Kind, error) {
	k, _ := cmd.Flags().GetString("kind")
	return model.ParseKind(k)
}

// cellSizeFlag resolves --cell-size, falling back to the configured size.
func cellSizeFlag(cmd *cobra.Command) float64 {
	if v, _ := cmd.Flags().GetFloat64("cell-size"); v > 0 {
		return v
	}
	return cfg.Raster.CellSize
}

// addSeriesFlags registers the flags shared by per-feature commands.
func addSeriesFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "output numeric kind (int8..int64, uint8..uint64, float32, float64)")
	cmd.Flags().String("name", "", "output column name")
}

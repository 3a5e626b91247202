package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30.0, cfg.Raster.CellSize)
	assert.Equal(t, -9999.0, cfg.Raster.NoData)
	assert.Equal(t, "nearest", cfg.Raster.Resampling)
	assert.Equal(t, "euclidean", cfg.Analysis.Metric)
	assert.Equal(t, 2.0, cfg.Analysis.IDWPower)
	assert.Equal(t, 12, cfg.Analysis.IDWNeighbors)
	assert.Equal(t, 1e-12, cfg.Analysis.IDWMinDist)
	assert.Equal(t, 14, cfg.Analysis.LeafSize)
	assert.Equal(t, uint64(42), cfg.Analysis.Seed)
	assert.Equal(t, "square meters", cfg.Analysis.AreaUnit)
	assert.Equal(t, "./datasets", cfg.Datasets.Dir)
	assert.Equal(t, 32, cfg.Datasets.CacheSize)
	assert.Equal(t, "landsuit.db", cfg.Store.Path)
	assert.Equal(t, "csv", cfg.Export.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
raster:
  cell_size: 10
  resampling: bilinear
analysis:
  metric: manhattan
  idw_neighbors: 6
store:
  path: /tmp/results.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10.0, cfg.Raster.CellSize)
	assert.Equal(t, "bilinear", cfg.Raster.Resampling)
	assert.Equal(t, "manhattan", cfg.Analysis.Metric)
	assert.Equal(t, 6, cfg.Analysis.IDWNeighbors)
	assert.Equal(t, "/tmp/results.db", cfg.Store.Path)
	// Defaults still apply for unset values
	assert.Equal(t, -9999.0, cfg.Raster.NoData)
	assert.Equal(t, 14, cfg.Analysis.LeafSize)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("raster: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
raster:
  cell_size: 10
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LANDSUIT_RASTER_CELL_SIZE", "90")
	t.Setenv("LANDSUIT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 90.0, cfg.Raster.CellSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LANDSUIT_DATASETS_DIR", "/data/samples")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/samples", cfg.Datasets.Dir)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Raster.CellSize = 30
	cfg.Raster.Resampling = "nearest"
	cfg.Analysis.Metric = "euclidean"
	cfg.Analysis.IDWPower = 2
	cfg.Analysis.IDWNeighbors = 12
	cfg.Analysis.LeafSize = 14
	cfg.Analysis.AreaUnit = "square meters"
	cfg.Datasets.CacheSize = 32
	cfg.Export.Format = "csv"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())

	cfg := validDefaults()
	cfg.Export.Format = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"zero cell size", func(c *Config) { c.Raster.CellSize = 0 }, "raster.cell_size must be > 0"},
		{"negative cell size", func(c *Config) { c.Raster.CellSize = -30 }, "raster.cell_size must be > 0"},
		{"unknown resampling", func(c *Config) { c.Raster.Resampling = "cubic" }, "raster.resampling"},
		{"unknown metric", func(c *Config) { c.Analysis.Metric = "chebyshev" }, "analysis.metric"},
		{"negative power", func(c *Config) { c.Analysis.IDWPower = -1 }, "analysis.idw_power"},
		{"no neighbors", func(c *Config) { c.Analysis.IDWNeighbors = 0 }, "analysis.idw_neighbors"},
		{"zero leaf size", func(c *Config) { c.Analysis.LeafSize = 0 }, "analysis.leaf_size"},
		{"linear area unit", func(c *Config) { c.Analysis.AreaUnit = "meters" }, "analysis.area_unit"},
		{"bad area unit", func(c *Config) { c.Analysis.AreaUnit = "furlongs squared" }, "analysis.area_unit"},
		{"negative cache", func(c *Config) { c.Datasets.CacheSize = -1 }, "datasets.cache_size"},
		{"unknown export", func(c *Config) { c.Export.Format = "parquet" }, "export.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := validDefaults()
	cfg.Raster.CellSize = 0
	cfg.Analysis.Metric = "bogus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raster.cell_size")
	assert.Contains(t, err.Error(), "analysis.metric")
}

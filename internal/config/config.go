package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/landsuit/internal/export"
	"github.com/sells-group/landsuit/internal/proximity"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/units"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RasterConfig sets the grid used when vector inputs are rasterized and the
// resampling used by realignment.
type RasterConfig struct {
	CellSize   float64 `yaml:"cell_size" mapstructure:"cell_size"`
	NoData     float64 `yaml:"nodata" mapstructure:"nodata"`
	Resampling string  `yaml:"resampling" mapstructure:"resampling"`
}

// AnalysisConfig holds defaults for distance, interpolation and density.
type AnalysisConfig struct {
	Metric       string  `yaml:"metric" mapstructure:"metric"`
	IDWPower     float64 `yaml:"idw_power" mapstructure:"idw_power"`
	IDWNeighbors int     `yaml:"idw_neighbors" mapstructure:"idw_neighbors"`
	IDWMinDist   float64 `yaml:"idw_min_dist" mapstructure:"idw_min_dist"`
	LeafSize     int     `yaml:"leaf_size" mapstructure:"leaf_size"`
	Seed         uint64  `yaml:"seed" mapstructure:"seed"`
	AreaUnit     string  `yaml:"area_unit" mapstructure:"area_unit"`
}

// DatasetsConfig locates the sample dataset directory.
type DatasetsConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// StoreConfig configures the SQLite result store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig sets the default export format.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LANDSUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("raster.cell_size", 30)
	v.SetDefault("raster.nodata", -9999)
	v.SetDefault("raster.resampling", "nearest")
	v.SetDefault("analysis.metric", "euclidean")
	v.SetDefault("analysis.idw_power", 2)
	v.SetDefault("analysis.idw_neighbors", 12)
	v.SetDefault("analysis.idw_min_dist", 1e-12)
	v.SetDefault("analysis.leaf_size", 14)
	v.SetDefault("analysis.seed", 42)
	v.SetDefault("analysis.area_unit", "square meters")
	v.SetDefault("datasets.dir", "./datasets")
	v.SetDefault("datasets.cache_size", 32)
	v.SetDefault("store.path", "landsuit.db")
	v.SetDefault("export.format", "csv")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that every setting can be used, reporting all problems at
// once.
func (c *Config) Validate() error {
	var errs []string

	if !(c.Raster.CellSize > 0) {
		errs = append(errs, "raster.cell_size must be > 0")
	}
	if _, err := raster.ParseResampling(c.Raster.Resampling); err != nil {
		errs = append(errs, "raster.resampling must be nearest or bilinear")
	}
	if _, err := proximity.ParseMetric(c.Analysis.Metric); err != nil {
		errs = append(errs, "analysis.metric must be euclidean or manhattan")
	}
	if c.Analysis.IDWPower < 0 {
		errs = append(errs, "analysis.idw_power must be >= 0")
	}
	if c.Analysis.IDWNeighbors < 1 {
		errs = append(errs, "analysis.idw_neighbors must be >= 1")
	}
	if c.Analysis.LeafSize < 1 {
		errs = append(errs, "analysis.leaf_size must be >= 1")
	}
	if u, err := units.Parse(c.Analysis.AreaUnit); err != nil || u.Dimension != units.Areal {
		errs = append(errs, "analysis.area_unit must be an area unit")
	}
	if c.Datasets.CacheSize < 0 {
		errs = append(errs, "datasets.cache_size must be >= 0")
	}
	if c.Export.Format != "sqlite" {
		if _, err := export.ParseFormat(c.Export.Format); err != nil {
			errs = append(errs, "export.format must be csv, xlsx or sqlite")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

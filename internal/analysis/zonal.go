package analysis

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/raster"
	"github.com/sells-group/landsuit/internal/vector"
	"github.com/sells-group/landsuit/internal/zonal"
)

// ZonalOptions configures ZonalSummary.
type ZonalOptions struct {
	Stats []zonal.Stat
	// Prefix of the output columns; defaults to "zonal".
	Prefix string
	// NoData overrides the surface's own nodata value.
	NoData     *float64
	AllTouched bool
}

// ZonalSummary computes statistics of s under each polygon of zones. The
// surface is reprojected to the zones' CRS when they differ. Columns are
// named <prefix>_<stat> in the requested order.
func ZonalSummary(zones *vector.FeatureSet, s *raster.Surface, opts ZonalOptions) (*model.Table, error) {
	if err := zones.ValidateType(vector.Polygon); err != nil {
		return nil, eris.Wrap(err, "analysis: zonal zones")
	}
	if s == nil {
		return nil, eris.New("analysis: zonal summary needs a surface")
	}
	stats := opts.Stats
	if len(stats) == 0 {
		stats = zonal.DefaultStats
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "zonal"
	}

	if zones.CRS != "" && s.CRS != "" && !crs.Equal(zones.CRS, s.CRS) {
		var err error
		if s, err = raster.Reproject(s, zones.CRS, raster.ReprojectOptions{}); err != nil {
			return nil, eris.Wrap(err, "analysis: align zonal surface")
		}
	}
	r := s.Grid()
	if opts.NoData != nil {
		r.NoData = *opts.NoData
	}

	res, err := zonal.Compute(zones.Geoms(), r, zonal.Options{Stats: stats, AllTouched: opts.AllTouched})
	if err != nil {
		return nil, err
	}

	index := zones.IDs()
	columns := make([]*model.Series, len(stats))
	for j, st := range stats {
		values := make([]float64, len(res))
		for i, m := range res {
			values[i] = m[string(st)]
		}
		if columns[j], err = model.NewSeries(prefix+"_"+string(st), index, values); err != nil {
			return nil, err
		}
	}

	zap.L().Debug("analysis: zonal summary",
		zap.Int("zones", zones.Len()),
		zap.Int("stats", len(stats)),
		zap.Bool("all_touched", opts.AllTouched),
	)
	return model.NewTable(index, columns...)
}

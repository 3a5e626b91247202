package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/analysis"
	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/vector"
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Geometry operations on vector layers",
	Long:  "Overlay, selection, buffering and fishnet helpers that prepare layers for the distance, density and zonal commands. Outputs are shapefiles.",
}

var vectorEraseCmd = &cobra.Command{
	Use:   "erase <input> <eraser> <output.shp>",
	Short: "Remove the area covered by eraser from every input feature",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transformLayers(args[0], args[1], args[2], func(in, other *vector.FeatureSet) (*vector.FeatureSet, error) {
			return vector.Erase(in, other)
		})
	},
}

var vectorSelectCmd = &cobra.Command{
	Use:   "select <input> <selector> <output.shp>",
	Short: "Keep input features related to any selector feature",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("predicate")
		pred, err := vector.ParsePredicate(name)
		if err != nil {
			return err
		}
		return transformLayers(args[0], args[1], args[2], func(in, other *vector.FeatureSet) (*vector.FeatureSet, error) {
			return vector.SelectByLocation(in, other, pred)
		})
	},
}

var vectorWithinCmd = &cobra.Command{
	Use:     "within <input> <target>",
	Short:   "Flag input features lying within a distance of any target feature",
	Example: `  landsuit vector within parcels wells --distance "500 feet"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, _ := cmd.Flags().GetString("distance")
		name, _ := cmd.Flags().GetString("name")

		reg := newRegistry()
		defer reg.Close()
		in, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}
		target, err := loadLayer(reg, args[1])
		if err != nil {
			return err
		}
		dist, err := analysis.NativeDistance(in, quantity)
		if err != nil {
			return err
		}
		flags, err := vector.WithinDistance(in, target, dist)
		if err != nil {
			return err
		}

		values := make([]float64, len(flags))
		for i, ok := range flags {
			if ok {
				values[i] = 1
			}
		}
		s, err := model.NewSeries(name, in.IDs(), values)
		if err != nil {
			return err
		}
		if s, err = s.Cast(model.KindUint8); err != nil {
			return err
		}
		t, err := seriesTable(s)
		if err != nil {
			return err
		}
		return emit(cmd, result{
			Operation: "vector within",
			Input:     args[0],
			Params:    map[string]any{"target": args[1], "distance": quantity},
			Table:     t,
		})
	},
}

var vectorBufferCmd = &cobra.Command{
	Use:     "buffer <input> <output.shp>",
	Short:   "Buffer every feature by a distance",
	Example: `  landsuit vector buffer roads roads_buf.shp --distance "1 mile"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, _ := cmd.Flags().GetString("distance")
		return transformLayer(args[0], args[1], func(in *vector.FeatureSet) (*vector.FeatureSet, error) {
			dist, err := analysis.NativeDistance(in, quantity)
			if err != nil {
				return nil, err
			}
			return vector.Buffer(in, dist)
		})
	},
}

var vectorDissolveCmd = &cobra.Command{
	Use:   "dissolve <input> <output.shp>",
	Short: "Union every feature into one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transformLayer(args[0], args[1], func(in *vector.FeatureSet) (*vector.FeatureSet, error) {
			g, err := vector.Union(in)
			if err != nil {
				return nil, err
			}
			return &vector.FeatureSet{
				CRS:      in.CRS,
				Features: []vector.Feature{{ID: 0, Geom: g, Attrs: map[string]any{}}},
			}, nil
		})
	},
}

var vectorGridifyCmd = &cobra.Command{
	Use:   "gridify <input> <output.shp>",
	Short: "Cover a layer's extent with square cells",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, _ := cmd.Flags().GetFloat64("width")
		return transformLayer(args[0], args[1], func(in *vector.FeatureSet) (*vector.FeatureSet, error) {
			return vector.Gridify(in, width)
		})
	},
}

var vectorReprojectCmd = &cobra.Command{
	Use:     "reproject <input> <output.shp>",
	Short:   "Transform a layer into another coordinate reference system",
	Example: `  landsuit vector reproject parcels parcels_utm.shp --crs EPSG:32617`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, _ := cmd.Flags().GetString("crs")
		target, err := crs.Resolve(def)
		if err != nil {
			return err
		}
		return transformLayer(args[0], args[1], func(in *vector.FeatureSet) (*vector.FeatureSet, error) {
			return vector.Reproject(in, target)
		})
	},
}

// transformLayer applies fn to one layer and writes the result to out.
func transformLayer(in, out string, fn func(*vector.FeatureSet) (*vector.FeatureSet, error)) error {
	return transformLayers(in, "", out, func(fs, _ *vector.FeatureSet) (*vector.FeatureSet, error) {
		return fn(fs)
	})
}

// transformLayers loads in (and other, when named), applies fn and writes
// the result to out.
func transformLayers(in, other, out string, fn func(in, other *vector.FeatureSet) (*vector.FeatureSet, error)) error {
	reg := newRegistry()
	defer reg.Close()

	fs, err := loadLayer(reg, in)
	if err != nil {
		return err
	}
	var second *vector.FeatureSet
	if other != "" {
		if second, err = loadLayer(reg, other); err != nil {
			return err
		}
	}
	res, err := fn(fs, second)
	if err != nil {
		return err
	}
	if res.Len() == 0 {
		return eris.Errorf("vector: %s produced no features", in)
	}
	if err := vector.WriteShapefile(out, res); err != nil {
		return err
	}
	zap.L().Info("vector: wrote layer",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("features", res.Len()),
	)
	return nil
}

func init() {
	vectorSelectCmd.Flags().String("predicate", string(vector.Intersects), "spatial relation: intersects, contains or within")

	vectorWithinCmd.Flags().String("distance", "", `search distance with unit, e.g. "1 mile"`)
	_ = vectorWithinCmd.MarkFlagRequired("distance")
	vectorWithinCmd.Flags().String("name", "within", "output column name")

	vectorBufferCmd.Flags().String("distance", "", `buffer distance with unit, e.g. "100 meters"`)
	_ = vectorBufferCmd.MarkFlagRequired("distance")

	vectorGridifyCmd.Flags().Float64("width", 0, "cell width in the layer's units")
	_ = vectorGridifyCmd.MarkFlagRequired("width")

	vectorReprojectCmd.Flags().String("crs", "", "target CRS: EPSG:<code>, proj4 or WKT")
	_ = vectorReprojectCmd.MarkFlagRequired("crs")

	vectorCmd.AddCommand(vectorEraseCmd, vectorSelectCmd, vectorWithinCmd, vectorBufferCmd,
		vectorDissolveCmd, vectorGridifyCmd, vectorReprojectCmd)
	rootCmd.AddCommand(vectorCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/analysis"
	"github.com/sells-group/landsuit/internal/datasets"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/vector"
)

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Distance from each feature's centroid to the nearest target",
	Long: `Measures, for every feature of an input layer, the distance from its
centroid to the nearest point, the nearest rasterized line cell, or the
nearest raster cell holding a given value.

Layers are shapefile paths or dataset names; rasters are .tif/.asc paths or
dataset names.`,
}

var distancePointCmd = &cobra.Command{
	Use:   "point <input> <points>",
	Short: "Distance to the nearest point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDistance(cmd, args, func(in distanceInputs, opts analysis.DistanceOptions) (*model.Series, error) {
			points, err := loadLayer(in.registry, args[1])
			if err != nil {
				return nil, err
			}
			return analysis.DistanceToPoint(in.input, points, opts)
		})
	},
}

var distanceLineCmd = &cobra.Command{
	Use:   "line <input> <lines>",
	Short: "Distance to the nearest cell of the rasterized lines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDistance(cmd, args, func(in distanceInputs, opts analysis.DistanceOptions) (*model.Series, error) {
			lines, err := loadLayer(in.registry, args[1])
			if err != nil {
				return nil, err
			}
			return analysis.DistanceToLine(in.input, lines, cellSizeFlag(cmd), opts)
		})
	},
}

var distanceCellCmd = &cobra.Command{
	Use:   "cell <input> <raster>",
	Short: "Distance to the nearest raster cell equal to --value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDistance(cmd, args, func(in distanceInputs, opts analysis.DistanceOptions) (*model.Series, error) {
			s, err := loadSurface(in.registry, args[1])
			if err != nil {
				return nil, err
			}
			value, _ := cmd.Flags().GetFloat64("value")
			return analysis.DistanceToCell(in.input, s, value, opts)
		})
	},
}

type distanceInputs struct {
	registry *datasets.Registry
	input    *vector.FeatureSet
}

func runDistance(cmd *cobra.Command, args []string, measure func(distanceInputs, analysis.DistanceOptions) (*model.Series, error)) error {
	kind, err := kindFlag(cmd)
	if err != nil {
		return err
	}
	metric, err := metricFlag(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	reg := newRegistry()
	defer reg.Close()
	input, err := loadLayer(reg, args[0])
	if err != nil {
		return err
	}

	s, err := measure(distanceInputs{registry: reg, input: input}, analysis.DistanceOptions{Metric: metric, Kind: kind, Name: name})
	if err != nil {
		return err
	}
	t, err := seriesTable(s)
	if err != nil {
		return err
	}
	return emit(cmd, result{
		Operation: "distance " + cmd.Name(),
		Input:     args[0],
		Params:    map[string]any{"target": args[1], "metric": metric.String(), "kind": string(kind)},
		Table:     t,
	})
}

func init() {
	for _, c := range []*cobra.Command{distancePointCmd, distanceLineCmd, distanceCellCmd} {
		c.Flags().String("metric", "", "euclidean or manhattan (default from config)")
		addSeriesFlags(c)
		distanceCmd.AddCommand(c)
	}
	distanceLineCmd.Flags().Float64("cell-size", 0, "rasterization cell size in native units (default from config)")
	distanceCellCmd.Flags().Float64("value", 1, "target cell value")
	rootCmd.AddCommand(distanceCmd)
}

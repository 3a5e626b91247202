package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/analysis"
)

var interpolateCmd = &cobra.Command{
	Use:   "interpolate",
	Short: "Inverse distance weighted interpolation",
}

var interpolateIDWCmd = &cobra.Command{
	Use:   "idw <input> <values>",
	Short: "Interpolate a point attribute at each feature's centroid",
	Example: `  landsuit interpolate idw parcels.shp wells.shp --column depth --neighbors 8`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		opts := idwFlags(cmd)
		opts.Kind = kind
		opts.Name, _ = cmd.Flags().GetString("name")

		reg := newRegistry()
		defer reg.Close()
		input, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}
		values, err := loadLayer(reg, args[1])
		if err != nil {
			return err
		}

		s, err := analysis.IDW(input, values, opts)
		if err != nil {
			return err
		}
		t, err := seriesTable(s)
		if err != nil {
			return err
		}
		return emit(cmd, result{
			Operation: "interpolate idw",
			Input:     args[0],
			Params: map[string]any{
				"values":    args[1],
				"column":    opts.ValueColumn,
				"power":     opts.Power,
				"neighbors": opts.Neighbors,
				"radius":    opts.SearchRadius,
			},
			Table: t,
		})
	},
}

var interpolateCVCmd = &cobra.Command{
	Use:   "cv <values>",
	Short: "K-fold cross-validated mean squared error of IDW",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := idwFlags(cmd)
		folds, _ := cmd.Flags().GetInt("folds")
		seed, _ := cmd.Flags().GetUint64("seed")
		if !cmd.Flags().Changed("seed") {
			seed = cfg.Analysis.Seed
		}

		reg := newRegistry()
		defer reg.Close()
		values, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}

		mse, err := analysis.IDWCrossValidate(values, folds, seed, opts)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "mse\t%s\n", formatFloat(mse))
		return err
	},
}

// idwFlags collects the interpolation flags, defaulting from config.
func idwFlags(cmd *cobra.Command) analysis.IDWOptions {
	f := cmd.Flags()
	opts := analysis.IDWOptions{
		Power:     cfg.Analysis.IDWPower,
		Neighbors: cfg.Analysis.IDWNeighbors,
		MinDist:   cfg.Analysis.IDWMinDist,
		LeafSize:  cfg.Analysis.LeafSize,
	}
	opts.ValueColumn, _ = f.GetString("column")
	opts.SearchRadius, _ = f.GetFloat64("radius")
	if f.Changed("power") {
		opts.Power, _ = f.GetFloat64("power")
	}
	if f.Changed("neighbors") {
		opts.Neighbors, _ = f.GetInt("neighbors")
	}
	return opts
}

func init() {
	for _, c := range []*cobra.Command{interpolateIDWCmd, interpolateCVCmd} {
		c.Flags().String("column", "", "numeric attribute of the value points")
		c.Flags().Float64("power", 0, "distance exponent (default from config)")
		c.Flags().Int("neighbors", 0, "nearest value points to weigh (default from config)")
		c.Flags().Float64("radius", 0, "search radius in native units; 0 is unbounded")
		_ = c.MarkFlagRequired("column")
		interpolateCmd.AddCommand(c)
	}
	addSeriesFlags(interpolateIDWCmd)
	interpolateCVCmd.Flags().Int("folds", analysis.DefaultFolds, "number of folds")
	interpolateCVCmd.Flags().Uint64("seed", 0, "fold shuffle seed (default from config)")
	rootCmd.AddCommand(interpolateCmd)
}

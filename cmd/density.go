package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/analysis"
)

var densityCmd = &cobra.Command{
	Use:   "density",
	Short: "Point and line density per feature",
}

var densityPointCmd = &cobra.Command{
	Use:   "point <input> <points>",
	Short: "Points (or a summed attribute) per unit of search area",
	Example: `  landsuit density point parcels schools --search-distance "1 mile" --area-unit "square miles"
  landsuit density point tracts.shp wells.shp --value-column yield`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		reg := newRegistry()
		defer reg.Close()
		input, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}
		points, err := loadLayer(reg, args[1])
		if err != nil {
			return err
		}

		opts := analysis.PointDensityOptions{Kind: kind}
		opts.ValueColumn, _ = cmd.Flags().GetString("value-column")
		opts.SearchDistance, _ = cmd.Flags().GetString("search-distance")
		opts.AreaUnit = areaUnitFlag(cmd)
		opts.Name, _ = cmd.Flags().GetString("name")

		s, err := analysis.PointDensity(input, points, opts)
		if err != nil {
			return err
		}
		t, err := seriesTable(s)
		if err != nil {
			return err
		}
		return emit(cmd, result{
			Operation: "density point",
			Input:     args[0],
			Params: map[string]any{
				"points":          args[1],
				"value_column":    opts.ValueColumn,
				"search_distance": opts.SearchDistance,
				"area_unit":       opts.AreaUnit,
			},
			Table: t,
		})
	},
}

var densityLineCmd = &cobra.Command{
	Use:   "line <input> <lines>",
	Short: "Line length per unit of search area",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		reg := newRegistry()
		defer reg.Close()
		input, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}
		lines, err := loadLayer(reg, args[1])
		if err != nil {
			return err
		}

		opts := analysis.LineDensityOptions{Kind: kind, CellSize: cellSizeFlag(cmd)}
		opts.SearchRadius, _ = cmd.Flags().GetString("search-radius")
		opts.AreaUnit = areaUnitFlag(cmd)
		opts.Name, _ = cmd.Flags().GetString("name")

		s, err := analysis.LineDensity(input, lines, opts)
		if err != nil {
			return err
		}
		t, err := seriesTable(s)
		if err != nil {
			return err
		}
		return emit(cmd, result{
			Operation: "density line",
			Input:     args[0],
			Params: map[string]any{
				"lines":         args[1],
				"cell_size":     opts.CellSize,
				"search_radius": opts.SearchRadius,
				"area_unit":     opts.AreaUnit,
			},
			Table: t,
		})
	},
}

func areaUnitFlag(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("area-unit"); u != "" {
		return u
	}
	return cfg.Analysis.AreaUnit
}

func init() {
	densityPointCmd.Flags().String("value-column", "", "sum this point attribute instead of counting")
	densityPointCmd.Flags().String("search-distance", "", `buffer each feature by this distance, e.g. "1 mile"`)
	densityLineCmd.Flags().String("search-radius", "", `search circle around each centroid, e.g. "500 meters"`)
	densityLineCmd.Flags().Float64("cell-size", 0, "line rasterization cell size (default from config)")

	for _, c := range []*cobra.Command{densityPointCmd, densityLineCmd} {
		c.Flags().String("area-unit", "", "area unit of the denominator (default from config)")
		addSeriesFlags(c)
		densityCmd.AddCommand(c)
	}
	rootCmd.AddCommand(densityCmd)
}

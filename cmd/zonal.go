package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/analysis"
	"github.com/sells-group/landsuit/internal/zonal"
)

var zonalCmd = &cobra.Command{
	Use:   "zonal <zones> <raster>",
	Short: "Raster statistics under each polygon",
	Example: `  landsuit zonal parcels landcover --stats majority,count --prefix lc
  landsuit zonal tracts.shp slope.tif --stats mean,max --all-touched`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		statList, _ := f.GetString("stats")
		opts := analysis.ZonalOptions{}
		if statList != "" {
			stats, err := zonal.ParseStats(statList)
			if err != nil {
				return err
			}
			opts.Stats = stats
		}
		opts.Prefix, _ = f.GetString("prefix")
		opts.AllTouched, _ = f.GetBool("all-touched")
		if f.Changed("nodata") {
			nd, _ := f.GetFloat64("nodata")
			opts.NoData = &nd
		}

		reg := newRegistry()
		defer reg.Close()
		zones, err := loadLayer(reg, args[0])
		if err != nil {
			return err
		}
		s, err := loadSurface(reg, args[1])
		if err != nil {
			return err
		}

		t, err := analysis.ZonalSummary(zones, s, opts)
		if err != nil {
			return err
		}
		return emit(cmd, result{
			Operation: "zonal",
			Input:     args[0],
			Params:    map[string]any{"raster": args[1], "stats": statList, "all_touched": opts.AllTouched},
			Table:     t,
		})
	},
}

func init() {
	f := zonalCmd.Flags()
	f.String("stats", "", "comma-separated statistics (count,min,max,mean,sum,std,median,majority,minority,unique,range,nodata,nan)")
	f.String("prefix", "", "output column prefix")
	f.Bool("all-touched", false, "include every cell a polygon touches")
	f.Float64("nodata", 0, "override the raster's nodata value")
	rootCmd.AddCommand(zonalCmd)
}

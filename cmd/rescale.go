package main

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/export"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/rescale"
)

var rescaleCmd = &cobra.Command{
	Use:   "rescale",
	Short: "Map factor values onto a common suitability scale",
	Long: `Rescales either the cells of a raster (written to <output>) or one column of
a CSV/XLSX result table (--column). A rescaled table column is appended as
<column>_rescaled unless --name is set; without <output> the table is
printed or exported like any other result.`,
}

var rescaleLinearCmd = &cobra.Command{
	Use:   "linear <input> [output]",
	Short: "Linear stretch from [start, end] onto [min, max]",
	Example: `  landsuit rescale linear dist_roads.csv --column dist_line --start 5000 --end 0
  landsuit rescale linear slope.tif slope_scaled.tif --min 0 --max 100`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		opts := rescale.LinearOptions{}
		if f.Changed("start") {
			v, _ := f.GetFloat64("start")
			opts.Start = &v
		}
		if f.Changed("end") {
			v, _ := f.GetFloat64("end")
			opts.End = &v
		}
		opts.Min, opts.Max = outputRange(cmd)
		return runRescale(cmd, args, func(values []float64, _ float64) ([]float64, error) {
			return rescale.Linear(values, opts)
		})
	},
}

var rescaleReclassifyCmd = &cobra.Command{
	Use:   "reclassify <input> [output]",
	Short: "Map categories or right-closed intervals to new values",
	Example: `  landsuit rescale reclassify landcover.tif suit.tif --rules "11=1,21=5,41=9"
  landsuit rescale reclassify slope.tif slope_cls.tif --rules "0:5=9,5:15=5,15:90=1"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleList, _ := cmd.Flags().GetString("rules")
		rules, err := rescale.ParseRules(ruleList)
		if err != nil {
			return err
		}
		return runRescale(cmd, args, func(values []float64, nodata float64) ([]float64, error) {
			return rescale.Reclassify(values, rules, nodata)
		})
	},
}

var rescaleGammaCmd = &cobra.Command{
	Use:   "gamma <input> [output]",
	Short: "Rescale through a fitted gamma CDF",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lo, hi := outputRange(cmd)
		return runRescale(cmd, args, func(values []float64, _ float64) ([]float64, error) {
			return rescale.Gamma(values, lo, hi)
		})
	},
}

func outputRange(cmd *cobra.Command) (float64, float64) {
	lo, _ := cmd.Flags().GetFloat64("min")
	hi, _ := cmd.Flags().GetFloat64("max")
	return lo, hi
}

func isTable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// runRescale applies fn to a table column or to raster cells. fn receives
// missing values as NaN along with the value to use for unmapped cells.
func runRescale(cmd *cobra.Command, args []string, fn func(values []float64, nodata float64) ([]float64, error)) error {
	if isTable(args[0]) {
		return rescaleTable(cmd, args, fn)
	}
	if len(args) < 2 {
		return eris.New("rescale: raster input needs an output path")
	}

	reg := newRegistry()
	defer reg.Close()
	s, err := loadSurface(reg, args[0])
	if err != nil {
		return err
	}
	values := make([]float64, len(s.Cells))
	for i, v := range s.Cells {
		if s.IsNoData(v) {
			v = math.NaN()
		}
		values[i] = v
	}
	scaled, err := fn(values, s.NoData)
	if err != nil {
		return err
	}
	out := s.Clone()
	for i, v := range scaled {
		if math.IsNaN(v) {
			v = s.NoData
		}
		out.Cells[i] = v
	}
	return saveRaster(cmd, args[1], out)
}

func rescaleTable(cmd *cobra.Command, args []string, fn func([]float64, float64) ([]float64, error)) error {
	column, _ := cmd.Flags().GetString("column")
	if column == "" {
		return eris.New("rescale: --column is required for table input")
	}
	t, err := export.Read(args[0])
	if err != nil {
		return err
	}
	src := t.Column(column)
	if src == nil {
		return eris.Errorf("rescale: column %q not in %s", column, args[0])
	}
	scaled, err := fn(append([]float64(nil), src.Values...), math.NaN())
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = column + "_rescaled"
	}
	s, err := model.NewSeries(name, t.Index, scaled)
	if err != nil {
		return err
	}
	if existing := t.Column(name); existing != nil {
		*existing = *s
	} else {
		t.Columns = append(t.Columns, s)
	}

	if len(args) == 2 {
		f, err := export.FormatOf(args[1])
		if err != nil {
			return err
		}
		return export.Write(args[1], f, t)
	}
	return emit(cmd, result{
		Operation: "rescale " + cmd.Name(),
		Input:     args[0],
		Params:    map[string]any{"column": column, "name": name},
		Table:     t,
	})
}

func init() {
	rescaleLinearCmd.Flags().Float64("start", 0, "input value mapped to --min (default: minimum)")
	rescaleLinearCmd.Flags().Float64("end", 0, "input value mapped to --max (default: maximum)")
	rescaleReclassifyCmd.Flags().String("rules", "", `"v=new,..." categories or "lo:hi=new,..." intervals`)
	_ = rescaleReclassifyCmd.MarkFlagRequired("rules")

	for _, c := range []*cobra.Command{rescaleLinearCmd, rescaleGammaCmd} {
		c.Flags().Float64("min", 0, "output minimum (default 1 when --min and --max are unset)")
		c.Flags().Float64("max", 0, "output maximum (default 9 when --min and --max are unset)")
	}
	for _, c := range []*cobra.Command{rescaleLinearCmd, rescaleReclassifyCmd, rescaleGammaCmd} {
		c.Flags().String("column", "", "table column to rescale")
		c.Flags().String("name", "", "name of the rescaled column")
		addRasterOutputFlags(c)
		rescaleCmd.AddCommand(c)
	}
	rootCmd.AddCommand(rescaleCmd)
}

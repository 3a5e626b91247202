package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/landsuit/internal/crs"
	"github.com/sells-group/landsuit/internal/datasets"
	"github.com/sells-group/landsuit/internal/model"
	"github.com/sells-group/landsuit/internal/raster"
)

var rasterCmd = &cobra.Command{
	Use:   "raster",
	Short: "Realign raster surfaces",
	Long: `Resamples, extent-matches and reprojects rasters so they can be compared
cell by cell. Inputs are .tif/.asc paths or dataset names; outputs are
written by extension (.tif or .asc).`,
}

var rasterRescaleCmd = &cobra.Command{
	Use:   "rescale <input> <output>",
	Short: "Resample to a new cell size with nearest neighbour",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newRegistry()
		defer reg.Close()
		return transformRaster(cmd, reg, args[0], args[1], func(s *raster.Surface) (*raster.Surface, error) {
			return raster.Rescale(s, cellSizeFlag(cmd))
		})
	},
}

var rasterMatchCmd = &cobra.Command{
	Use:   "match <input> <reference> <output>",
	Short: "Resample onto the reference grid covering both extents",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newRegistry()
		defer reg.Close()
		ref, err := loadSurface(reg, args[1])
		if err != nil {
			return err
		}
		return transformRaster(cmd, reg, args[0], args[2], func(s *raster.Surface) (*raster.Surface, error) {
			return raster.MatchExtent(s, ref)
		})
	},
}

var rasterReprojectCmd = &cobra.Command{
	Use:   "reproject <input> <output>",
	Short: "Warp into another coordinate system",
	Example: `  landsuit raster reproject dem.tif dem_utm.tif --crs EPSG:32617 --resampling bilinear`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("crs")
		def, err := crs.Resolve(target)
		if err != nil {
			return err
		}
		method, _ := cmd.Flags().GetString("resampling")
		if method == "" {
			method = cfg.Raster.Resampling
		}
		resampling, err := raster.ParseResampling(method)
		if err != nil {
			return err
		}
		cell, _ := cmd.Flags().GetFloat64("cell-size")
		reg := newRegistry()
		defer reg.Close()
		return transformRaster(cmd, reg, args[0], args[1], func(s *raster.Surface) (*raster.Surface, error) {
			return raster.Reproject(s, def, raster.ReprojectOptions{CellSize: cell, Resampling: resampling})
		})
	},
}

var rasterInfoCmd = &cobra.Command{
	Use:   "info <input>",
	Short: "Print a raster's grid, CRS and value range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newRegistry()
		defer reg.Close()
		s, err := loadSurface(reg, args[0])
		if err != nil {
			return err
		}
		formatRasterInfo(cmd.OutOrStdout(), args[0], s)
		return nil
	},
}

// transformRaster loads in, applies fn and saves the result to out.
func transformRaster(cmd *cobra.Command, reg *datasets.Registry, in, out string, fn func(*raster.Surface) (*raster.Surface, error)) error {
	s, err := loadSurface(reg, in)
	if err != nil {
		return err
	}
	res, err := fn(s)
	if err != nil {
		return err
	}
	return saveRaster(cmd, out, res)
}

// saveRaster writes s by extension using the --kind and --compress flags.
func saveRaster(cmd *cobra.Command, out string, s *raster.Surface) error {
	kindName, _ := cmd.Flags().GetString("kind")
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return err
	}
	compress, _ := cmd.Flags().GetBool("compress")
	if err := raster.Save(out, s, raster.WriteOptions{Kind: kind, Compress: compress}); err != nil {
		return eris.Wrapf(err, "save %s", out)
	}
	zap.L().Info("raster written",
		zap.String("command", cmd.CommandPath()),
		zap.String("path", out),
		zap.Int("rows", s.Rows),
		zap.Int("cols", s.Cols),
		zap.Float64("cell_size", s.CellSize()),
	)
	return nil
}

// formatRasterInfo writes a summary of s to out.
func formatRasterInfo(out io.Writer, name string, s *raster.Surface) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	e := s.Extent()
	_, _ = fmt.Fprintf(w, "Raster:\t%s\n", name)
	_, _ = fmt.Fprintf(w, "Size:\t%d x %d\n", s.Cols, s.Rows)
	_, _ = fmt.Fprintf(w, "Cell size:\t%s\n", formatFloat(s.CellSize()))
	_, _ = fmt.Fprintf(w, "Extent:\t%s %s %s %s\n", formatFloat(e.MinX), formatFloat(e.MinY), formatFloat(e.MaxX), formatFloat(e.MaxY))
	crsName := s.CRS
	if crsName == "" {
		crsName = "(none)"
	}
	_, _ = fmt.Fprintf(w, "CRS:\t%s\n", crsName)
	_, _ = fmt.Fprintf(w, "NoData:\t%s\n", formatFloat(s.NoData))

	valid := s.Valid()
	_, _ = fmt.Fprintf(w, "Valid cells:\t%d of %d\n", len(valid), len(s.Cells))
	if len(valid) > 0 {
		_, _ = fmt.Fprintf(w, "Min:\t%s\n", formatFloat(floats.Min(valid)))
		_, _ = fmt.Fprintf(w, "Max:\t%s\n", formatFloat(floats.Max(valid)))
		_, _ = fmt.Fprintf(w, "Mean:\t%s\n", formatFloat(floats.Sum(valid)/float64(len(valid))))
	}
	_ = w.Flush()
}

// addRasterOutputFlags registers the GeoTIFF encoding flags.
func addRasterOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "output sample kind (default float64)")
	cmd.Flags().Bool("compress", false, "deflate GeoTIFF output")
}

func init() {
	rasterRescaleCmd.Flags().Float64("cell-size", 0, "target cell size (default from config)")
	rasterReprojectCmd.Flags().String("crs", "", "target CRS: EPSG:n or a proj string")
	rasterReprojectCmd.Flags().String("resampling", "", "nearest or bilinear (default from config)")
	rasterReprojectCmd.Flags().Float64("cell-size", 0, "output cell size; 0 derives it from the input")
	_ = rasterReprojectCmd.MarkFlagRequired("crs")

	for _, c := range []*cobra.Command{rasterRescaleCmd, rasterMatchCmd, rasterReprojectCmd} {
		addRasterOutputFlags(c)
		rasterCmd.AddCommand(c)
	}
	rasterCmd.AddCommand(rasterInfoCmd)
	rootCmd.AddCommand(rasterCmd)
}

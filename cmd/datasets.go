package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/datasets"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the sample datasets available by name",
	Long:  "Lists datasets stored as <dir>/<name>/<name>.shp or <dir>/<name>/<name>.tif under the configured datasets.dir. Any command taking a layer or raster accepts these names.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := newRegistry()
		defer reg.Close()

		list, err := reg.Available()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No datasets in %s.\n", reg.Dir())
			return nil
		}
		formatDatasets(cmd.OutOrStdout(), list)
		return nil
	},
}

var datasetsAddCmd = &cobra.Command{
	Use:   "add <source> [name]",
	Short: "Add a shapefile, GeoTIFF or ZIP archive to the datasets directory",
	Long:  "Copies a shapefile with its sidecars, a GeoTIFF, or a ZIP archive holding one of either into datasets.dir. The name defaults to the source file's base name.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newRegistry()
		defer reg.Close()

		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		d, err := reg.Add(args[0], name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s dataset %s at %s\n", d.Kind, d.Name, d.Path)
		return nil
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsAddCmd)
	rootCmd.AddCommand(datasetsCmd)
}

// formatDatasets writes a tabular list of datasets to out.
func formatDatasets(out io.Writer, list []datasets.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tPATH")
	_, _ = fmt.Fprintln(w, "----\t----\t----")
	for _, d := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Kind, d.Path)
	}
	_ = w.Flush()
}

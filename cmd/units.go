package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/landsuit/internal/units"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Linear and areal unit conversions",
}

var unitsConvertCmd = &cobra.Command{
	Use:   "convert <value> <from> <to>",
	Short: "Convert a value between units of the same dimension",
	Example: `  landsuit units convert 1 mile kilometers
  landsuit units convert 2.5 "square miles" hectares`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "units convert: value %q", args[0])
		}
		factor, err := units.Convert(args[1], args[2])
		if err != nil {
			return err
		}
		to, _ := units.Parse(args[2])
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", formatFloat(v*factor), to.Plural())
		return err
	},
}

func init() {
	unitsCmd.AddCommand(unitsConvertCmd)
	rootCmd.AddCommand(unitsCmd)
}

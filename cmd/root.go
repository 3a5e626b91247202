package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/landsuit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "landsuit",
	Short: "Land-use suitability analysis",
	Long:  "Turns vector and raster layers into per-feature distances, densities, interpolated values and zonal statistics, rescales them and combines them into weighted suitability scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("out", "", "write results to this file instead of stdout")
	pf.String("export", "", "result format: csv, xlsx or sqlite (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

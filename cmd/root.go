package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sedfit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sedfit",
	Short: "Bayesian SED fitting against a stellar model grid",
	Long: "Fits catalogs of stellar photometry against a precomputed model grid, " +
		"marginalizing over distance, extinction and Rv, and stores posterior samples per star.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

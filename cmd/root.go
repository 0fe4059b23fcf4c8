package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "safety-kpi",
	Short: "Workplace injury KPI pipeline for OSHA ITA data",
	Long:  "Cleans OSHA Injury Tracking Application establishment data, computes TRIR, LTIFR, DART, severity, and fatality rates by industry, year, and size, and ranks industries against each other.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

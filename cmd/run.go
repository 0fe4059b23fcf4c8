package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/config"
	"github.com/sells-group/safety-kpi/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clean the input, compute KPIs, and write benchmark tables",
	Long:  "Loads an ITA or canonical CSV/XLSX file, excludes structurally invalid rows and hours outliers, winsorizes case counts, computes every configured KPI per grouping, ranks the rank grouping, and writes the results to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyPipelineFlags(cmd, cfg); err != nil {
			return err
		}
		return runPipeline(cmd, cfg, pipeline.ModeRun)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the input and write the cleaned table and audit only",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyPipelineFlags(cmd, cfg); err != nil {
			return err
		}
		return runPipeline(cmd, cfg, pipeline.ModeClean)
	},
}

func runPipeline(cmd *cobra.Command, c *config.Config, mode pipeline.Mode) error {
	if err := c.Validate(string(mode)); err != nil {
		return eris.Wrap(err, "invalid configuration")
	}

	res, err := pipeline.New(c).Run(cmd.Context(), mode)
	if err != nil {
		return eris.Wrapf(err, "%s", mode)
	}

	if err := printSummary(os.Stdout, res, c.KPI.TopN); err != nil {
		zap.L().Warn("failed to print summary", zap.Error(err))
	}
	return nil
}

// applyPipelineFlags copies explicitly set flags over the loaded config.
// Flags a command does not define are never Changed.
func applyPipelineFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	str := func(name string, dst *string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
		return nil
	}
	list := func(name string, dst *[]string) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetStringSlice(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
		return nil
	}
	num := func(name string, dst *int) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
		return nil
	}
	boolean := func(name string, dst *bool) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return eris.Wrapf(err, "flag --%s", name)
		}
		*dst = v
		return nil
	}

	for _, err := range []error{
		str("input", &c.Input.Path),
		str("format", &c.Input.Format),
		str("encoding", &c.Input.Encoding),
		str("sheet", &c.Input.Sheet),
		str("output", &c.Output.Dir),
		list("kpis", &c.KPI.Names),
		list("groupings", &c.KPI.Groupings),
		str("rank-by", &c.KPI.RankGrouping),
		num("digits", &c.KPI.IndustryDigits),
		num("top", &c.KPI.TopN),
		boolean("excluded", &c.Output.Excluded),
		boolean("workbook", &c.Output.Workbook),
		boolean("metrics", &c.Output.Metrics),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "input CSV or XLSX file")
	f.String("format", "auto", "input format: auto, csv, or xlsx")
	f.String("encoding", "", "CSV character encoding (default UTF-8)")
	f.String("sheet", "", "XLSX sheet name (default first sheet)")
	f.StringP("output", "o", "", "output directory")
	f.Bool("excluded", true, "write excluded.csv")
	f.Bool("metrics", false, "write metrics.prom in Prometheus text format")
}

func init() {
	addInputFlags(runCmd)
	runCmd.Flags().StringSlice("kpis", nil, "KPIs to compute (default all)")
	runCmd.Flags().StringSlice("groupings", nil, "groupings to compute (default overall,industry,year,size,industry_year,industry_size)")
	runCmd.Flags().String("rank-by", "", "grouping to rank (default industry)")
	runCmd.Flags().Int("digits", 0, "NAICS prefix length for industry grouping (2-6)")
	runCmd.Flags().Int("top", 0, "entries shown per ranking in the summary")
	runCmd.Flags().Bool("workbook", false, "write benchmarks.xlsx")

	addInputFlags(cleanCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)
}

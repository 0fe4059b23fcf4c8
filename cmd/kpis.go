package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/safety-kpi/internal/kpi"
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "List supported KPIs and groupings",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KPI\tNUMERATOR\tPER HOURS\tDESCRIPTION")
		for _, d := range kpi.Definitions {
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\n", d.Name, d.Numerator, d.Multiplier, d.Description)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "GROUPING\tDIMENSIONS\t\t")
		for _, g := range kpi.Groupings {
			fmt.Fprintf(w, "%s\t%s\t\t\n", g.Name, dimensions(g))
		}
		return w.Flush()
	},
}

func dimensions(g kpi.Grouping) string {
	var dims []string
	if g.Industry {
		dims = append(dims, "industry")
	}
	if g.Year {
		dims = append(dims, "year")
	}
	if g.Size {
		dims = append(dims, "size")
	}
	if len(dims) == 0 {
		return "-"
	}
	return strings.Join(dims, " x ")
}

func init() {
	rootCmd.AddCommand(kpisCmd)
}

package main

import (
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/safety-kpi/internal/industry"
	"github.com/sells-group/safety-kpi/internal/kpi"
	"github.com/sells-group/safety-kpi/internal/model"
	"github.com/sells-group/safety-kpi/internal/pipeline"
)

// printSummary writes a human-readable run summary: cleaning counters,
// overall KPIs, the head and tail of each ranking, and the artifacts.
func printSummary(out io.Writer, res *pipeline.Result, topN int) error {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	rep := res.Report
	a := rep.Cleaning.Audit
	p.Fprintf(w, "Run %s\n", res.RunID)
	p.Fprintf(w, "Input\t%s (%s)\n", rep.Source, rep.Schema)
	p.Fprintf(w, "Records read\t%d\n", a.Input)
	p.Fprintf(w, "Structurally invalid\t%d\n", a.ExcludedStructural)
	for _, reason := range a.Validity.Reasons() {
		p.Fprintf(w, "  %s\t%d\n", reason, a.Validity.ByReason[reason])
	}
	p.Fprintf(w, "Outliers excluded\t%d\n", a.ExcludedOutlier)
	p.Fprintf(w, "Values winsorized\t%d in %d records\n", a.WinsorizedValues, a.WinsorizedRecords)
	p.Fprintf(w, "Retained\t%d (%.1f%%)\n", a.Retained, a.RetentionRate()*100)

	if len(rep.Results) > 0 {
		p.Fprintf(w, "\nOverall\tValue\tRecords\n")
		for _, def := range kpi.Definitions {
			r, ok := rep.Results.Get(def.Name, kpi.Overall.Name, model.GroupKey{})
			if !ok {
				continue
			}
			if r.Undefined {
				p.Fprintf(w, "%s\tundefined\t%d\n", r.KPI, r.NRecords)
				continue
			}
			p.Fprintf(w, "%s\t%.2f\t%d\n", r.KPI, r.Value, r.NRecords)
		}
		if r, ok := rep.Results.Get(model.KPIFatality, kpi.Overall.Name, model.GroupKey{}); ok {
			p.Fprintf(w, "Total fatalities\t%.0f\t\n", r.Numerator)
		}

		if bySize := rep.Results.Select(model.KPITRIR, kpi.BySize.Name); len(bySize) > 0 {
			p.Fprintf(w, "\nTRIR by size\tValue\tRecords\n")
			for _, r := range bySize {
				if r.Undefined {
					p.Fprintf(w, "%s\tundefined\t%d\n", r.Key.Size.Label(), r.NRecords)
					continue
				}
				p.Fprintf(w, "%s\t%.2f\t%d\n", r.Key.Size.Label(), r.Value, r.NRecords)
			}
		}
	}

	for _, rk := range rep.Rankings {
		p.Fprintf(w, "\nHighest %s by %s\t\t\n", rk.KPI, rk.Grouping)
		for _, e := range rk.Top(topN) {
			p.Fprintf(w, "%d. %s\t%s\t%.2f\n", e.Rank, e.Key, industry.Title(e.Key.Industry), e.Value)
		}
		p.Fprintf(w, "Lowest %s by %s\t\t\n", rk.KPI, rk.Grouping)
		for _, e := range rk.Bottom(topN) {
			p.Fprintf(w, "%d. %s\t%s\t%.2f\n", e.Rank, e.Key, industry.Title(e.Key.Industry), e.Value)
		}
		if n := len(rk.Undefined); n > 0 {
			p.Fprintf(w, "Undefined (no hours)\t%d\t\n", n)
		}
	}

	if len(rep.Risks) > 0 {
		p.Fprintf(w, "\nRisk\tScore\tLevel\n")
		for i, r := range rep.Risks {
			if i == topN {
				break
			}
			p.Fprintf(w, "%s %s\t%.2f\t%s\n", r.Key.IndustryOrAll(), industry.Title(r.Key.Industry), r.Score, r.Level)
		}
	}

	if len(res.Artifacts) > 0 {
		p.Fprintf(w, "\nArtifacts\t\t\n")
		for _, path := range res.Artifacts {
			p.Fprintf(w, "  %s\t\t\n", path)
		}
	}

	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "summary: flush")
	}
	return nil
}

package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/safety-kpi/internal/kpi"
	"github.com/sells-group/safety-kpi/internal/model"
)

// WriteMetrics writes the cleaning counters and overall rates in the
// Prometheus text format, for pickup by a node_exporter textfile collector.
func WriteMetrics(path string, rep *Report) error {
	reg := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "safetykpi",
		Subsystem: "cleaning",
		Name:      "records",
		Help:      "Records per cleaning outcome in the last run.",
	}, []string{"bucket"})
	structural := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "safetykpi",
		Subsystem: "cleaning",
		Name:      "structural_invalid_records",
		Help:      "Structurally invalid records by reason in the last run.",
	}, []string{"reason"})
	winsorized := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "safetykpi",
		Subsystem: "cleaning",
		Name:      "winsorized_values",
		Help:      "Values capped at the percentile limit by field in the last run.",
	}, []string{"field"})
	rates := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "safetykpi",
		Subsystem: "kpi",
		Name:      "overall_rate",
		Help:      "All-industry KPI value in the last run.",
	}, []string{"kpi"})

	for _, c := range []prometheus.Collector{records, structural, winsorized, rates} {
		if err := reg.Register(c); err != nil {
			return eris.Wrap(err, "export: register metric")
		}
	}

	if rep.Cleaning != nil {
		a := rep.Cleaning.Audit
		records.WithLabelValues("input").Set(float64(a.Input))
		records.WithLabelValues("excluded_structural").Set(float64(a.ExcludedStructural))
		records.WithLabelValues("excluded_outlier").Set(float64(a.ExcludedOutlier))
		records.WithLabelValues("retained").Set(float64(a.Retained))
		for reason, n := range a.Validity.ByReason {
			structural.WithLabelValues(string(reason)).Set(float64(n))
		}
		for field, n := range a.WinsorizedByField {
			winsorized.WithLabelValues(string(field)).Set(float64(n))
		}
	}
	for _, name := range model.KPINames {
		r, ok := rep.Results.Get(name, kpi.Overall.Name, model.GroupKey{})
		if !ok || r.Undefined {
			continue
		}
		rates.WithLabelValues(string(name)).Set(r.Value)
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return eris.Wrap(err, "export: write metrics textfile")
	}
	return nil
}

package kpi

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/model"
)

// Normalization bases.
const (
	Per100FTE   = 200_000.0   // 100 full-time workers for one year
	PerMillionH = 1_000_000.0 // one million hours worked
)

// Definition describes how a KPI is derived from group totals.
type Definition struct {
	Name        model.KPIName
	Numerator   model.Field
	Multiplier  float64
	Description string
}

// Definitions lists every KPI in report order.
var Definitions = []Definition{
	{model.KPITRIR, model.FieldRecordable, Per100FTE, "Total recordable cases per 100 full-time workers"},
	{model.KPILTIFR, model.FieldLostTime, PerMillionH, "Lost-time cases per 1,000,000 hours worked"},
	{model.KPIDART, model.FieldDART, Per100FTE, "Days-away, restricted, or transferred cases per 100 full-time workers"},
	{model.KPISeverity, model.FieldLostDays, Per100FTE, "Lost workdays per 100 full-time workers"},
	{model.KPIFatality, model.FieldFatalities, Per100FTE, "Fatalities per 100 full-time workers"},
}

// Lookup returns the definition of name.
func Lookup(name model.KPIName) (Definition, error) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, model.NewConfigError("kpi", string(name))
}

// Rate computes one KPI from aggregated totals. A group with no hours yields
// an Undefined result with a zero Value.
func (d Definition) Rate(t GroupTotals) model.KPIResult {
	res := model.KPIResult{
		KPI:         d.Name,
		Key:         t.Key,
		Grouping:    t.Grouping,
		Numerator:   t.Sum(d.Numerator),
		Denominator: t.Hours,
		NRecords:    t.NRecords,
	}
	if !(t.Hours > 0) {
		res.Undefined = true
		return res
	}
	res.Value = res.Numerator * d.Multiplier / t.Hours
	return res
}

// Options configures Compute.
type Options struct {
	// IndustryDigits is the NAICS prefix length of the industry dimension.
	IndustryDigits int
}

// DefaultOptions groups industries by 2-digit sector.
func DefaultOptions() Options {
	return Options{IndustryDigits: 2}
}

// Validate rejects parameters outside their domain.
func (o Options) Validate() error {
	if o.IndustryDigits < 2 || o.IndustryDigits > 6 {
		return &model.ConfigError{
			Kind:  "industry digits",
			Value: formatInt(o.IndustryDigits),
			Err:   eris.New("must be between 2 and 6"),
		}
	}
	return nil
}

// Compute aggregates records under each grouping and derives each named KPI
// from the group sums. Results are ordered by grouping, then key, then KPI.
func Compute(records []model.InjuryRecord, groupings []Grouping, names []model.KPIName, opts Options) (ResultSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, eris.Wrap(err, "kpi: options")
	}
	if len(records) == 0 {
		return nil, eris.Wrap(model.ErrEmptyDataset, "kpi: no records")
	}
	if len(names) == 0 {
		names = model.KPINames
	}
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		d, err := Lookup(n)
		if err != nil {
			return nil, eris.Wrap(err, "kpi: compute")
		}
		defs = append(defs, d)
	}

	var out ResultSet
	for _, g := range groupings {
		totals := Aggregate(records, g, opts.IndustryDigits)
		out = append(out, RatesFor(totals, defs)...)
		zap.L().Debug("kpi: grouping computed",
			zap.String("grouping", g.Name),
			zap.Int("groups", len(totals)),
		)
	}
	return out, nil
}

// RatesFor derives each definition's rate for every group in totals.
func RatesFor(totals []GroupTotals, defs []Definition) ResultSet {
	out := make(ResultSet, 0, len(totals)*len(defs))
	for _, t := range totals {
		for _, d := range defs {
			out = append(out, d.Rate(t))
		}
	}
	return out
}

package cleaning

import (
	"math"
	"slices"

	"github.com/sells-group/safety-kpi/internal/model"
)

// DefaultCapPercentile is the winsorization threshold.
const DefaultCapPercentile = 0.99

// Cap is the upper winsorization limit for one field. Count fields are
// capped at floor(percentile) rather than the interpolated percentile so
// capped case and day counts stay whole numbers.
type Cap struct {
	Field      model.Field `yaml:"field"`
	Percentile float64     `yaml:"percentile"`
	// Raw is the interpolated percentile; Value is the applied cap, floored
	// for count fields.
	Raw   float64 `yaml:"raw"`
	Value float64 `yaml:"value"`
}

// ComputeCaps computes the p-th percentile cap for each field over the
// retained population. It must run before any record is capped.
func ComputeCaps(retained []model.InjuryRecord, fields []model.Field, p float64) []Cap {
	out := make([]Cap, 0, len(fields))
	for _, f := range fields {
		raw := Quantile(sortedValues(retained, f), p)
		v := raw
		if f.IsCount() {
			v = math.Floor(raw)
		}
		out = append(out, Cap{Field: f, Percentile: p, Raw: raw, Value: v})
	}
	return out
}

// Winsorizer replaces values above their cap with the cap.
type Winsorizer struct {
	caps []Cap
}

// NewWinsorizer creates a Winsorizer over precomputed caps.
func NewWinsorizer(caps []Cap) *Winsorizer {
	return &Winsorizer{caps: caps}
}

// boundedByRecordable are the counts that may never exceed recordable cases.
var boundedByRecordable = []model.Field{model.FieldLostTime, model.FieldFatalities}

// Apply returns a capped copy of r and the fields that were capped. After
// the caps, lost-time cases and fatalities are clamped to the capped
// recordable count; a clamped field is reported as capped. r itself is not
// modified.
func (w *Winsorizer) Apply(r model.InjuryRecord) (model.InjuryRecord, []model.Field) {
	out := r
	var capped []model.Field
	for _, c := range w.caps {
		if math.IsNaN(c.Value) {
			continue
		}
		if out.Value(c.Field) > c.Value {
			out = out.WithValue(c.Field, c.Value)
			capped = append(capped, c.Field)
		}
	}
	limit := float64(out.RecordableCases)
	for _, f := range boundedByRecordable {
		if out.Value(f) > limit {
			out = out.WithValue(f, limit)
			if !slices.Contains(capped, f) {
				capped = append(capped, f)
			}
		}
	}
	return out, capped
}

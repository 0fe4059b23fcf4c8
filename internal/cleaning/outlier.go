package cleaning

import (
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/model"
)

// DefaultIQRMultiplier is the Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// Bounds is the inclusive acceptance interval for one screened field.
type Bounds struct {
	Field model.Field `yaml:"field"`
	Q1    float64     `yaml:"q1"`
	Q3    float64     `yaml:"q3"`
	Lower float64     `yaml:"lower"`
	Upper float64     `yaml:"upper"`
	// Skipped is set when the IQR is zero and screening is disabled for
	// the field.
	Skipped bool `yaml:"skipped,omitempty"`
}

// IQR returns Q3 - Q1.
func (b Bounds) IQR() float64 { return b.Q3 - b.Q1 }

// Contains reports whether v lies within the bounds. Skipped bounds accept
// everything.
func (b Bounds) Contains(v float64) bool {
	if b.Skipped {
		return true
	}
	return v >= b.Lower && v <= b.Upper
}

// ComputeIQRBounds computes Tukey fences for each field over the population.
// With skipDegenerate, a field whose IQR is zero is marked Skipped instead
// of excluding every non-median value.
func ComputeIQRBounds(population []model.InjuryRecord, fields []model.Field, k float64, skipDegenerate bool) []Bounds {
	out := make([]Bounds, 0, len(fields))
	for _, f := range fields {
		vals := sortedValues(population, f)
		q1 := Quantile(vals, 0.25)
		q3 := Quantile(vals, 0.75)
		iqr := q3 - q1
		b := Bounds{
			Field: f,
			Q1:    q1,
			Q3:    q3,
			Lower: q1 - k*iqr,
			Upper: q3 + k*iqr,
		}
		if iqr == 0 && skipDegenerate {
			b.Skipped = true
			zap.L().Warn("cleaning: zero IQR, outlier screening skipped",
				zap.String("field", string(f)),
				zap.Float64("q1", q1),
			)
		}
		out = append(out, b)
	}
	return out
}

// OutlierFilter flags records that fall outside any screened field's bounds.
type OutlierFilter struct {
	bounds []Bounds
}

// NewOutlierFilter creates a filter over precomputed bounds.
func NewOutlierFilter(bounds []Bounds) *OutlierFilter {
	return &OutlierFilter{bounds: bounds}
}

// Flag returns the screened fields on which r is an outlier. A non-empty
// result excludes the whole record.
func (o *OutlierFilter) Flag(r model.InjuryRecord) []model.Field {
	var flagged []model.Field
	for _, b := range o.bounds {
		if !b.Contains(r.Value(b.Field)) {
			flagged = append(flagged, b.Field)
		}
	}
	return flagged
}

package cleaning

import (
	"math"
	"sort"

	"github.com/sells-group/safety-kpi/internal/model"
)

// Quantile returns the q-quantile of sorted using linear interpolation
// between closest ranks. sorted must be ascending. Returns NaN for an empty
// slice.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// sortedValues copies the values of f out of records and sorts them. The
// copy keeps detection and capping statistics independent of any later
// mutation.
func sortedValues(records []model.InjuryRecord, f model.Field) []float64 {
	vals := make([]float64, len(records))
	for i := range records {
		vals[i] = records[i].Value(f)
	}
	sort.Float64s(vals)
	return vals
}

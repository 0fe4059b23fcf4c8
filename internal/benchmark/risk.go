package benchmark

import (
	"math"
	"sort"

	"github.com/sells-group/safety-kpi/internal/model"
)

// RiskLevel buckets a composite risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Composite score weights.
const (
	weightTRIR     = 0.4
	weightDART     = 0.3
	weightFatality = 0.3
)

// Risk is the composite score of one group.
type Risk struct {
	Key      model.GroupKey
	TRIR     float64
	DART     float64
	Fatality float64
	Score    float64
	Level    RiskLevel
}

// ClassifyScore maps a score onto a RiskLevel: Low up to 2, Medium up to 5,
// High above.
func ClassifyScore(score float64) RiskLevel {
	switch {
	case score <= 2:
		return RiskLow
	case score <= 5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Score combines the aggregated TRIR, DART, and fatality rates of each
// group in results. Groups missing any of the three, or with an undefined
// one, are skipped. Output is sorted by score descending, then key.
func Score(results []model.KPIResult, grouping string) []Risk {
	byKey := make(map[model.GroupKey]*Risk)
	seen := make(map[model.GroupKey]int)
	bad := make(map[model.GroupKey]bool)
	for _, r := range results {
		if r.Grouping != grouping {
			continue
		}
		switch r.KPI {
		case model.KPITRIR, model.KPIDART, model.KPIFatality:
		default:
			continue
		}
		if r.Undefined {
			bad[r.Key] = true
			continue
		}
		risk, ok := byKey[r.Key]
		if !ok {
			risk = &Risk{Key: r.Key}
			byKey[r.Key] = risk
		}
		switch r.KPI {
		case model.KPITRIR:
			risk.TRIR = r.Value
		case model.KPIDART:
			risk.DART = r.Value
		case model.KPIFatality:
			risk.Fatality = r.Value
		}
		seen[r.Key]++
	}

	out := make([]Risk, 0, len(byKey))
	for key, risk := range byKey {
		if bad[key] || seen[key] != 3 {
			continue
		}
		score := weightTRIR*risk.TRIR + weightDART*risk.DART + weightFatality*risk.Fatality
		risk.Score = math.Round(score*100) / 100
		risk.Level = ClassifyScore(risk.Score)
		out = append(out, *risk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

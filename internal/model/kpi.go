package model

import "strings"

// KPIName identifies a safety rate indicator.
type KPIName string

const (
	KPITRIR     KPIName = "TRIR"
	KPILTIFR    KPIName = "LTIFR"
	KPIDART     KPIName = "DART"
	KPISeverity KPIName = "SEVERITY"
	KPIFatality KPIName = "FATALITY"
)

// KPINames lists every supported KPI in report order.
var KPINames = []KPIName{KPITRIR, KPILTIFR, KPIDART, KPISeverity, KPIFatality}

// ParseKPIName accepts a KPI name case-insensitively. "dart_rate" and
// "severity_rate" style aliases are accepted.
func ParseKPIName(s string) (KPIName, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimSuffix(n, "_RATE")
	n = strings.TrimSuffix(n, " RATE")
	for _, k := range KPINames {
		if KPIName(n) == k {
			return k, nil
		}
	}
	return "", NewConfigError("kpi", s)
}

// KPIResult is one computed rate for one group. Undefined is set when the
// group's hours denominator is zero; Value is then meaningless and must not
// be reported as a number.
type KPIResult struct {
	KPI         KPIName  `json:"kpi_name"`
	Key         GroupKey `json:"group_key"`
	Grouping    string   `json:"grouping"`
	Value       float64  `json:"value"`
	Numerator   float64  `json:"numerator"`
	Denominator float64  `json:"denominator"`
	NRecords    int64    `json:"n_records"`
	Undefined   bool     `json:"undefined"`
}

// RankEntry is one position in a BenchmarkRanking.
type RankEntry struct {
	Rank  int      `json:"rank"`
	Key   GroupKey `json:"group_key"`
	Value float64  `json:"value"`
}

// BenchmarkRanking orders the groups of one KPI from riskiest to safest.
// Groups with an undefined value are listed separately and never ranked.
type BenchmarkRanking struct {
	KPI       KPIName     `json:"kpi_name"`
	Grouping  string      `json:"grouping"`
	Entries   []RankEntry `json:"entries"`
	Undefined []GroupKey  `json:"undefined,omitempty"`
}

// Package benchmark ranks groups by KPI and derives the industry risk
// indicators built on those rankings.
package benchmark

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/safety-kpi/internal/model"
)

// Ranking is a BenchmarkRanking with top/bottom extraction.
type Ranking struct {
	model.BenchmarkRanking
}

// Rank orders the results for name from riskiest to safest. Higher values
// are riskier for every supported KPI; ties go to the lexicographically
// smaller group key. Undefined results are listed separately and never
// ranked. All results for name must share one grouping.
func Rank(results []model.KPIResult, name model.KPIName) (*Ranking, error) {
	if _, err := model.ParseKPIName(string(name)); err != nil {
		return nil, eris.Wrap(err, "benchmark: rank")
	}

	r := &Ranking{BenchmarkRanking: model.BenchmarkRanking{KPI: name}}
	var defined []model.KPIResult
	for _, res := range results {
		if res.KPI != name {
			continue
		}
		if r.Grouping == "" {
			r.Grouping = res.Grouping
		} else if res.Grouping != r.Grouping {
			return nil, eris.Errorf("benchmark: rank %s: mixed groupings %q and %q", name, r.Grouping, res.Grouping)
		}
		if res.Undefined {
			r.Undefined = append(r.Undefined, res.Key)
			continue
		}
		defined = append(defined, res)
	}

	sort.SliceStable(defined, func(i, j int) bool {
		if defined[i].Value != defined[j].Value {
			return defined[i].Value > defined[j].Value
		}
		return defined[i].Key.String() < defined[j].Key.String()
	})
	sort.Slice(r.Undefined, func(i, j int) bool {
		return r.Undefined[i].String() < r.Undefined[j].String()
	})

	r.Entries = make([]model.RankEntry, len(defined))
	for i, res := range defined {
		r.Entries[i] = model.RankEntry{Rank: i + 1, Key: res.Key, Value: res.Value}
	}
	return r, nil
}

// Top returns up to n of the riskiest entries, riskiest first.
func (r *Ranking) Top(n int) []model.RankEntry {
	if n <= 0 {
		return nil
	}
	if n > len(r.Entries) {
		n = len(r.Entries)
	}
	return r.Entries[:n]
}

// Bottom returns up to n of the safest entries, safest first.
func (r *Ranking) Bottom(n int) []model.RankEntry {
	if n <= 0 {
		return nil
	}
	if n > len(r.Entries) {
		n = len(r.Entries)
	}
	out := make([]model.RankEntry, n)
	for i := 0; i < n; i++ {
		out[i] = r.Entries[len(r.Entries)-1-i]
	}
	return out
}

// RankGrouping ranks every KPI in names over one grouping's results.
func RankGrouping(results []model.KPIResult, grouping string, names []model.KPIName) ([]*Ranking, error) {
	var scoped []model.KPIResult
	for _, res := range results {
		if res.Grouping == grouping {
			scoped = append(scoped, res)
		}
	}
	out := make([]*Ranking, 0, len(names))
	for _, name := range names {
		r, err := Rank(scoped, name)
		if err != nil {
			return nil, err
		}
		r.Grouping = grouping
		out = append(out, r)
	}
	return out, nil
}

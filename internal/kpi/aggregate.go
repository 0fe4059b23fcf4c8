package kpi

import (
	"sort"

	"github.com/sells-group/safety-kpi/internal/model"
)

// GroupTotals holds the summed numerators and hours denominator of one group.
type GroupTotals struct {
	Grouping   string
	Key        model.GroupKey
	Hours      float64
	Recordable int64
	LostTime   int64
	DART       int64
	Fatalities int64
	LostDays   int64
	NRecords   int64
}

// Add folds one record into the totals.
func (t *GroupTotals) Add(r model.InjuryRecord) {
	t.Hours += r.HoursWorked
	t.Recordable += r.RecordableCases
	t.LostTime += r.LostTimeCases
	t.DART += r.DARTCases
	t.Fatalities += r.Fatalities
	t.LostDays += r.LostDays
	t.NRecords++
}

// Merge folds another group's totals into t.
func (t *GroupTotals) Merge(o GroupTotals) {
	t.Hours += o.Hours
	t.Recordable += o.Recordable
	t.LostTime += o.LostTime
	t.DART += o.DART
	t.Fatalities += o.Fatalities
	t.LostDays += o.LostDays
	t.NRecords += o.NRecords
}

// Sum returns the summed value of a numerator field, or the hours
// denominator for FieldHours.
func (t GroupTotals) Sum(f model.Field) float64 {
	switch f {
	case model.FieldHours:
		return t.Hours
	case model.FieldRecordable:
		return float64(t.Recordable)
	case model.FieldLostTime:
		return float64(t.LostTime)
	case model.FieldDART:
		return float64(t.DART)
	case model.FieldFatalities:
		return float64(t.Fatalities)
	case model.FieldLostDays:
		return float64(t.LostDays)
	}
	return 0
}

// Aggregate groups records by g and sums each group. Every record
// contributes its hours whether or not it reported any case. Output is
// sorted by key string.
func Aggregate(records []model.InjuryRecord, g Grouping, digits int) []GroupTotals {
	groups := make(map[model.GroupKey]*GroupTotals)
	for i := range records {
		key := g.Key(records[i], digits)
		t, ok := groups[key]
		if !ok {
			t = &GroupTotals{Grouping: g.Name, Key: key}
			groups[key] = t
		}
		t.Add(records[i])
	}

	out := make([]GroupTotals, 0, len(groups))
	for _, t := range groups {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

package kpi

import (
	"strconv"

	"github.com/sells-group/safety-kpi/internal/model"
)

// ResultSet is an ordered collection of KPI results.
type ResultSet []model.KPIResult

// Select returns the results for one KPI under one grouping, in key order.
func (rs ResultSet) Select(name model.KPIName, grouping string) []model.KPIResult {
	var out []model.KPIResult
	for _, r := range rs {
		if r.KPI == name && r.Grouping == grouping {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the result for a specific KPI, grouping, and key.
func (rs ResultSet) Get(name model.KPIName, grouping string, key model.GroupKey) (model.KPIResult, bool) {
	for _, r := range rs {
		if r.KPI == name && r.Grouping == grouping && r.Key == key {
			return r, true
		}
	}
	return model.KPIResult{}, false
}

// Groupings returns the distinct grouping names in first-seen order.
func (rs ResultSet) Groupings() []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range rs {
		if !seen[r.Grouping] {
			seen[r.Grouping] = true
			out = append(out, r.Grouping)
		}
	}
	return out
}

// Undefined counts results whose hours denominator was zero.
func (rs ResultSet) Undefined() int {
	n := 0
	for _, r := range rs {
		if r.Undefined {
			n++
		}
	}
	return n
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

// Package kpi aggregates cleaned injury records into group totals and
// derives OSHA-style safety rates from those totals.
package kpi

import (
	"strings"

	"github.com/sells-group/safety-kpi/internal/industry"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Grouping selects which dimensions form the group key. Dimensions not
// selected render as ALL.
type Grouping struct {
	Name     string
	Industry bool
	Year     bool
	Size     bool
}

// Supported groupings.
var (
	Overall          = Grouping{Name: "overall"}
	ByIndustry       = Grouping{Name: "industry", Industry: true}
	ByYear           = Grouping{Name: "year", Year: true}
	BySize           = Grouping{Name: "size", Size: true}
	ByIndustryYear   = Grouping{Name: "industry_year", Industry: true, Year: true}
	ByIndustrySize   = Grouping{Name: "industry_size", Industry: true, Size: true}
	ByIndustryYrSize = Grouping{Name: "industry_year_size", Industry: true, Year: true, Size: true}
)

// Groupings lists every supported grouping in report order.
var Groupings = []Grouping{
	Overall,
	ByIndustry,
	ByYear,
	BySize,
	ByIndustryYear,
	ByIndustrySize,
	ByIndustryYrSize,
}

// DefaultGroupings are computed when none are configured.
var DefaultGroupings = []Grouping{Overall, ByIndustry, ByYear, BySize, ByIndustryYear, ByIndustrySize}

// ParseGrouping resolves a grouping name. "industry×year" style spellings
// and "all" for overall are accepted.
func ParseGrouping(s string) (Grouping, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("×", "_", "-", "_", " ", "_").Replace(n)
	if n == "all" {
		n = Overall.Name
	}
	for _, g := range Groupings {
		if g.Name == n {
			return g, nil
		}
	}
	return Grouping{}, model.NewConfigError("grouping", s)
}

// ParseGroupings resolves a list of names, rejecting unknown ones and
// dropping duplicates. An empty list yields DefaultGroupings.
func ParseGroupings(names []string) ([]Grouping, error) {
	if len(names) == 0 {
		return DefaultGroupings, nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]Grouping, 0, len(names))
	for _, name := range names {
		g, err := ParseGrouping(name)
		if err != nil {
			return nil, err
		}
		if seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		out = append(out, g)
	}
	return out, nil
}

// Key derives the group key of r. Industry codes are truncated to digits
// (2 folds into combined NAICS sectors).
func (g Grouping) Key(r model.InjuryRecord, digits int) model.GroupKey {
	var k model.GroupKey
	if g.Industry {
		k.Industry = industry.Prefix(r.IndustryCode, digits)
	}
	if g.Year {
		k.Year = r.Year
	}
	if g.Size {
		k.Size = r.Size
	}
	return k
}

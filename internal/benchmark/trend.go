package benchmark

import (
	"sort"

	"github.com/sells-group/safety-kpi/internal/model"
)

// Direction classifies a year-over-year slope.
type Direction string

const (
	Improving Direction = "Improving"
	Stable    Direction = "Stable"
	Worsening Direction = "Worsening"
)

// TrendThreshold is the absolute slope (rate points per year) beyond which a
// trend is no longer Stable.
const TrendThreshold = 0.1

// Trend is the least-squares slope of one industry's yearly KPI values.
type Trend struct {
	Industry  string
	KPI       model.KPIName
	Years     int
	Slope     float64
	Direction Direction
}

// ClassifySlope maps a slope onto a Direction.
func ClassifySlope(slope float64) Direction {
	switch {
	case slope > TrendThreshold:
		return Worsening
	case slope < -TrendThreshold:
		return Improving
	default:
		return Stable
	}
}

// Trends fits a line through each industry's per-year values of name.
// results should come from a grouping keyed on industry and year; other
// results are ignored. Industries with fewer than two defined years are
// skipped. Output is sorted by industry.
func Trends(results []model.KPIResult, name model.KPIName) []Trend {
	type point struct{ x, y float64 }
	series := make(map[string][]point)
	for _, r := range results {
		if r.KPI != name || r.Undefined || r.Key.Industry == "" || r.Key.Year == 0 || r.Key.Size != "" {
			continue
		}
		series[r.Key.Industry] = append(series[r.Key.Industry], point{float64(r.Key.Year), r.Value})
	}

	out := make([]Trend, 0, len(series))
	for ind, pts := range series {
		if len(pts) < 2 {
			continue
		}
		var sx, sy, sxx, sxy float64
		n := float64(len(pts))
		for _, p := range pts {
			sx += p.x
			sy += p.y
			sxx += p.x * p.x
			sxy += p.x * p.y
		}
		denom := n*sxx - sx*sx
		if denom == 0 {
			continue
		}
		slope := (n*sxy - sx*sy) / denom
		out = append(out, Trend{
			Industry:  ind,
			KPI:       name,
			Years:     len(pts),
			Slope:     slope,
			Direction: ClassifySlope(slope),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Industry < out[j].Industry })
	return out
}

package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/safety-kpi/internal/model"
)

func result(name model.KPIName, industry string, v float64) model.KPIResult {
	return model.KPIResult{
		KPI:      name,
		Grouping: "industry",
		Key:      model.GroupKey{Industry: industry},
		Value:    v,
	}
}

func industries(entries []model.RankEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key.Industry
	}
	return out
}

func TestRank_DescendingWithTieBreak(t *testing.T) {
	results := []model.KPIResult{
		result(model.KPITRIR, "62", 3.5),
		result(model.KPITRIR, "23", 3.5),
		result(model.KPITRIR, "11", 5.1),
		result(model.KPITRIR, "52", 0.4),
		result(model.KPIDART, "52", 9.9),
	}

	r, err := Rank(results, model.KPITRIR)
	require.NoError(t, err)
	assert.Equal(t, model.KPITRIR, r.KPI)
	assert.Equal(t, "industry", r.Grouping)
	assert.Equal(t, []string{"11", "23", "62", "52"}, industries(r.Entries))
	for i, e := range r.Entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestRank_TieOrderIndependentOfInput(t *testing.T) {
	a := []model.KPIResult{result(model.KPITRIR, "48-49", 2), result(model.KPITRIR, "31-33", 2), result(model.KPITRIR, "44-45", 2)}
	b := []model.KPIResult{a[2], a[0], a[1]}

	ra, err := Rank(a, model.KPITRIR)
	require.NoError(t, err)
	rb, err := Rank(b, model.KPITRIR)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
	assert.Equal(t, []string{"31-33", "44-45", "48-49"}, industries(ra.Entries))
}

func TestRank_UndefinedListedSeparately(t *testing.T) {
	undef := result(model.KPITRIR, "92", 0)
	undef.Undefined = true
	zero := result(model.KPITRIR, "55", 0)

	r, err := Rank([]model.KPIResult{undef, zero, result(model.KPITRIR, "23", 1)}, model.KPITRIR)
	require.NoError(t, err)
	assert.Equal(t, []string{"23", "55"}, industries(r.Entries), "zero is ranked, undefined is not")
	require.Len(t, r.Undefined, 1)
	assert.Equal(t, "92", r.Undefined[0].Industry)
}

func TestRank_TopBottom(t *testing.T) {
	var results []model.KPIResult
	for i, code := range []string{"11", "21", "22", "23", "42"} {
		results = append(results, result(model.KPILTIFR, code, float64(i)))
	}
	r, err := Rank(results, model.KPILTIFR)
	require.NoError(t, err)

	assert.Equal(t, []string{"42", "23"}, industries(r.Top(2)))
	assert.Equal(t, []string{"11", "21"}, industries(r.Bottom(2)))
	assert.Len(t, r.Top(10), 5)
	assert.Len(t, r.Bottom(10), 5)
	assert.Nil(t, r.Top(0))
	assert.Nil(t, r.Bottom(-1))
}

func TestRank_Errors(t *testing.T) {
	_, err := Rank(nil, "EMR")
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))

	mixed := []model.KPIResult{result(model.KPITRIR, "23", 1), result(model.KPITRIR, "23", 1)}
	mixed[1].Grouping = "overall"
	_, err = Rank(mixed, model.KPITRIR)
	assert.Error(t, err)
}

func TestRank_Empty(t *testing.T) {
	r, err := Rank(nil, model.KPITRIR)
	require.NoError(t, err)
	assert.Empty(t, r.Entries)
	assert.Empty(t, r.Top(3))
}

func TestRankGrouping(t *testing.T) {
	results := []model.KPIResult{
		result(model.KPITRIR, "23", 1),
		result(model.KPIDART, "23", 2),
		{KPI: model.KPITRIR, Grouping: "overall", Value: 7},
	}
	rs, err := RankGrouping(results, "industry", []model.KPIName{model.KPITRIR, model.KPIDART})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, model.KPIDART, rs[1].KPI)
	assert.Len(t, rs[0].Entries, 1)
}

func TestTrends(t *testing.T) {
	yearly := func(ind string, year int, v float64) model.KPIResult {
		return model.KPIResult{
			KPI:      model.KPITRIR,
			Grouping: "industry_year",
			Key:      model.GroupKey{Industry: ind, Year: year},
			Value:    v,
		}
	}
	results := []model.KPIResult{
		yearly("23", 2016, 3.0), yearly("23", 2017, 3.5), yearly("23", 2018, 4.0),
		yearly("62", 2016, 5.0), yearly("62", 2017, 4.0),
		yearly("11", 2016, 2.0), yearly("11", 2017, 2.05),
		yearly("92", 2019, 1.0),
	}

	trends := Trends(results, model.KPITRIR)
	require.Len(t, trends, 3)
	assert.Equal(t, "11", trends[0].Industry)
	assert.Equal(t, Stable, trends[0].Direction)
	assert.Equal(t, "23", trends[1].Industry)
	assert.InDelta(t, 0.5, trends[1].Slope, 1e-9)
	assert.Equal(t, Worsening, trends[1].Direction)
	assert.Equal(t, 3, trends[1].Years)
	assert.InDelta(t, -1.0, trends[2].Slope, 1e-9)
	assert.Equal(t, Improving, trends[2].Direction)
}

func TestClassifySlope(t *testing.T) {
	assert.Equal(t, Stable, ClassifySlope(0.1))
	assert.Equal(t, Stable, ClassifySlope(-0.1))
	assert.Equal(t, Worsening, ClassifySlope(0.11))
	assert.Equal(t, Improving, ClassifySlope(-0.11))
}

func TestScore(t *testing.T) {
	results := []model.KPIResult{
		result(model.KPITRIR, "23", 5), result(model.KPIDART, "23", 3), result(model.KPIFatality, "23", 0.1),
		result(model.KPITRIR, "52", 1), result(model.KPIDART, "52", 0.5), result(model.KPIFatality, "52", 0),
		result(model.KPITRIR, "11", 10), result(model.KPIDART, "11", 8), result(model.KPIFatality, "11", 1),
		result(model.KPITRIR, "92", 4),
	}
	risks := Score(results, "industry")
	require.Len(t, risks, 3, "92 lacks DART and fatality rates")

	assert.Equal(t, "11", risks[0].Key.Industry)
	assert.InDelta(t, 6.7, risks[0].Score, 1e-9)
	assert.Equal(t, RiskHigh, risks[0].Level)

	assert.Equal(t, "23", risks[1].Key.Industry)
	assert.InDelta(t, 2.93, risks[1].Score, 1e-9)
	assert.Equal(t, RiskMedium, risks[1].Level)

	assert.Equal(t, "52", risks[2].Key.Industry)
	assert.InDelta(t, 0.55, risks[2].Score, 1e-9)
	assert.Equal(t, RiskLow, risks[2].Level)
}

func TestClassifyScore(t *testing.T) {
	assert.Equal(t, RiskLow, ClassifyScore(0))
	assert.Equal(t, RiskLow, ClassifyScore(2))
	assert.Equal(t, RiskMedium, ClassifyScore(2.01))
	assert.Equal(t, RiskMedium, ClassifyScore(5))
	assert.Equal(t, RiskHigh, ClassifyScore(5.01))
}

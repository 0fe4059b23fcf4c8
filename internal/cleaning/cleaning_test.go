package cleaning

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/safety-kpi/internal/model"
)

func raw(line int, vals ...string) model.RawRecord {
	r := model.RawRecord{Line: line, Fields: make(map[string]string)}
	for i, col := range model.Columns {
		if i < len(vals) {
			r.Fields[col] = vals[i]
		}
	}
	return r
}

func validRaw(line int) model.RawRecord {
	return raw(line, "E"+strconv.Itoa(line), "2019", "236220", "small", "500000", "10", "2", "3", "0", "40")
}

func TestQuantile(t *testing.T) {
	assert.InDelta(t, 1.75, Quantile([]float64{1, 2, 3, 4}, 0.25), 1e-9)
	assert.InDelta(t, 2.5, Quantile([]float64{1, 2, 3, 4}, 0.5), 1e-9)
	assert.InDelta(t, 1.0, Quantile([]float64{1, 2, 3, 4}, 0), 1e-9)
	assert.InDelta(t, 4.0, Quantile([]float64{1, 2, 3, 4}, 1), 1e-9)
	assert.InDelta(t, 7.0, Quantile([]float64{7}, 0.99), 1e-9)

	hundred := make([]float64, 100)
	for i := range hundred {
		hundred[i] = float64(i + 1)
	}
	assert.InDelta(t, 99.01, Quantile(hundred, 0.99), 1e-9)

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestNormalizer_Reasons(t *testing.T) {
	tests := []struct {
		name   string
		row    model.RawRecord
		reason model.Reason
		column string
	}{
		{"missing id", raw(2, "", "2019", "236220", "small", "500000", "10", "2", "3", "0", "40"), model.ReasonMissingField, model.ColEstablishmentID},
		{"missing hours cell", raw(2, "E1", "2019", "236220", "small"), model.ReasonMissingField, string(model.FieldHours)},
		{"nan count", raw(2, "E1", "2019", "236220", "small", "500000", "NaN", "2", "3", "0", "40"), model.ReasonMissingField, string(model.FieldRecordable)},
		{"bad year", raw(2, "E1", "twenty", "236220", "small", "500000", "10", "2", "3", "0", "40"), model.ReasonBadNumber, model.ColYear},
		{"year out of range", raw(2, "E1", "2015", "236220", "small", "500000", "10", "2", "3", "0", "40"), model.ReasonYearOutOfRange, model.ColYear},
		{"industry letters", raw(2, "E1", "2019", "ABC", "small", "500000", "10", "2", "3", "0", "40"), model.ReasonInvalidIndustry, model.ColIndustryCode},
		{"unknown sector", raw(2, "E1", "2019", "999999", "small", "500000", "10", "2", "3", "0", "40"), model.ReasonInvalidIndustry, model.ColIndustryCode},
		{"unknown size", raw(2, "E1", "2019", "236220", "tiny", "500000", "10", "2", "3", "0", "40"), model.ReasonUnknownSize, model.ColSize},
		{"zero hours", raw(2, "E1", "2019", "236220", "small", "0", "10", "2", "3", "0", "40"), model.ReasonNonPositiveHours, string(model.FieldHours)},
		{"negative hours", raw(2, "E1", "2019", "236220", "small", "-5", "10", "2", "3", "0", "40"), model.ReasonNonPositiveHours, string(model.FieldHours)},
		{"fractional count", raw(2, "E1", "2019", "236220", "small", "500000", "1.5", "2", "3", "0", "40"), model.ReasonBadNumber, string(model.FieldRecordable)},
		{"negative count", raw(2, "E1", "2019", "236220", "small", "500000", "10", "2", "-3", "0", "40"), model.ReasonNegativeCount, string(model.FieldDART)},
		{"lost time exceeds recordable", raw(2, "E1", "2019", "236220", "small", "500000", "1", "2", "3", "0", "40"), model.ReasonCountInvariant, string(model.FieldLostTime)},
		{"fatalities exceed recordable", raw(2, "E1", "2019", "236220", "small", "500000", "1", "0", "0", "2", "40"), model.ReasonCountInvariant, string(model.FieldFatalities)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer()
			_, inv := n.Normalize(tt.row)
			require.NotNil(t, inv)
			assert.Equal(t, tt.reason, inv.Reason)
			assert.Equal(t, tt.column, inv.Column)
			assert.Equal(t, 2, inv.Line)

			rep := n.Report()
			assert.Equal(t, int64(1), rep.ByReason[tt.reason])
			assert.Equal(t, int64(1), rep.Invalid())
		})
	}
}

func TestNormalizer_Valid(t *testing.T) {
	n := NewNormalizer()
	rec, inv := n.Normalize(raw(5, " E7 ", "2020.0", "622110.0", "3", "1,000,000", "12", "4", "9", "1", "42"))
	require.Nil(t, inv)
	assert.Equal(t, model.InjuryRecord{
		EstablishmentID: "E7",
		Year:            2020,
		IndustryCode:    "622110",
		Size:            model.SizeLarge,
		HoursWorked:     1000000,
		RecordableCases: 12,
		LostTimeCases:   4,
		DARTCases:       9,
		Fatalities:      1,
		LostDays:        42,
	}, rec)
	assert.Equal(t, int64(1), n.Report().Valid)
}

func TestNormalizer_MissingByColumn(t *testing.T) {
	n := NewNormalizer()
	n.Normalize(raw(2, "E1", "2019", "", "small", "500000", "10", "2", "3", "0", "40"))
	n.Normalize(raw(3, "E2", "2019", "", "", "500000"))
	rep := n.Report()
	assert.Equal(t, int64(2), rep.MissingByColumn[model.ColIndustryCode])
	assert.Equal(t, int64(1), rep.MissingByColumn[model.ColSize])
	assert.Equal(t, int64(1), rep.MissingByColumn[string(model.FieldLostDays)])
	assert.Equal(t, []model.Reason{model.ReasonMissingField}, rep.Reasons())
}

func TestComputeIQRBounds(t *testing.T) {
	pop := []model.InjuryRecord{
		{HoursWorked: 10}, {HoursWorked: 20}, {HoursWorked: 30}, {HoursWorked: 40}, {HoursWorked: 1000},
	}
	bounds := ComputeIQRBounds(pop, []model.Field{model.FieldHours}, 1.5, true)
	require.Len(t, bounds, 1)
	b := bounds[0]
	assert.InDelta(t, 20, b.Q1, 1e-9)
	assert.InDelta(t, 40, b.Q3, 1e-9)
	assert.InDelta(t, 20, b.IQR(), 1e-9)
	assert.InDelta(t, -10, b.Lower, 1e-9)
	assert.InDelta(t, 70, b.Upper, 1e-9)
	assert.False(t, b.Skipped)

	f := NewOutlierFilter(bounds)
	assert.Equal(t, []model.Field{model.FieldHours}, f.Flag(model.InjuryRecord{HoursWorked: 1000}))
	assert.Empty(t, f.Flag(model.InjuryRecord{HoursWorked: 70}))
}

func TestComputeIQRBounds_Degenerate(t *testing.T) {
	pop := []model.InjuryRecord{{HoursWorked: 100}, {HoursWorked: 100}, {HoursWorked: 100}, {HoursWorked: 100}, {HoursWorked: 5000}}
	b := ComputeIQRBounds(pop, []model.Field{model.FieldHours}, 1.5, true)[0]
	assert.True(t, b.Skipped)
	assert.True(t, b.Contains(5000))

	strict := ComputeIQRBounds(pop, []model.Field{model.FieldHours}, 1.5, false)[0]
	assert.False(t, strict.Skipped)
	assert.False(t, strict.Contains(5000))
}

func TestWinsorizer(t *testing.T) {
	pop := make([]model.InjuryRecord, 0, 100)
	for i := 1; i <= 100; i++ {
		pop = append(pop, model.InjuryRecord{HoursWorked: float64(i), RecordableCases: int64(i)})
	}
	caps := ComputeCaps(pop, []model.Field{model.FieldRecordable, model.FieldHours}, 0.99)
	require.Len(t, caps, 2)
	assert.InDelta(t, 99.01, caps[0].Raw, 1e-9)
	assert.InDelta(t, 99, caps[0].Value, 1e-9, "count caps are floored")
	assert.InDelta(t, 99.01, caps[1].Value, 1e-9)

	w := NewWinsorizer(caps)
	orig := pop[99]
	capped, fields := w.Apply(orig)
	assert.Equal(t, []model.Field{model.FieldRecordable, model.FieldHours}, fields)
	assert.Equal(t, int64(99), capped.RecordableCases)
	assert.InDelta(t, 99.01, capped.HoursWorked, 1e-9)
	assert.Equal(t, int64(100), orig.RecordableCases)

	_, fields = w.Apply(pop[10])
	assert.Empty(t, fields)
}

// cleaningFixture: 99 ordinary rows, one hours outlier carrying huge case and
// day counts, one heavy recordable row that gets capped, and three
// structurally invalid rows.
func cleaningFixture() []model.RawRecord {
	var rows []model.RawRecord
	line := 2
	for i := 0; i < 99; i++ {
		recordable := "1"
		if i == 98 {
			recordable = "500"
		}
		rows = append(rows, raw(line, "E"+strconv.Itoa(i), "2019", "236220", "small",
			strconv.Itoa(10000+i*100), recordable, "0", "0", "0", "0"))
		line++
	}
	rows = append(rows,
		raw(line, "OUT", "2019", "236220", "large", "10000000", "5000", "0", "0", "0", "90000"),
		raw(line+1, "BAD1", "2019", "236220", "small", "", "1", "0", "0", "0", "0"),
		raw(line+2, "BAD2", "2015", "236220", "small", "1000", "1", "0", "0", "0", "0"),
		raw(line+3, "BAD3", "2019", "236220", "small", "1000", "1", "5", "0", "0", "0"),
	)
	return rows
}

func TestClean_AuditAndConservation(t *testing.T) {
	rows := cleaningFixture()
	res, err := Clean(context.Background(), rows, DefaultOptions())
	require.NoError(t, err)

	a := res.Audit
	assert.Equal(t, int64(103), a.Input)
	assert.Equal(t, int64(3), a.ExcludedStructural)
	assert.Equal(t, int64(1), a.ExcludedOutlier)
	assert.Equal(t, int64(99), a.Retained)
	assert.Equal(t, int64(1), a.WinsorizedValues)
	assert.Equal(t, int64(1), a.WinsorizedRecords)
	assert.Equal(t, int64(1), a.WinsorizedByField[model.FieldRecordable])
	assert.NoError(t, a.CheckConservation())
	assert.Equal(t, a.Input, a.ExcludedStructural+a.ExcludedOutlier+a.Retained)
	assert.Len(t, res.Excluded, 4)
	assert.InDelta(t, 99.0/103.0, a.RetentionRate(), 1e-9)

	assert.Equal(t, int64(1), a.Validity.ByReason[model.ReasonMissingField])
	assert.Equal(t, int64(1), a.Validity.ByReason[model.ReasonYearOutOfRange])
	assert.Equal(t, int64(1), a.Validity.ByReason[model.ReasonCountInvariant])
}

func TestClean_RecordInvariants(t *testing.T) {
	res, err := Clean(context.Background(), cleaningFixture(), DefaultOptions())
	require.NoError(t, err)

	caps := make(map[model.Field]float64)
	for _, c := range res.Audit.Caps {
		caps[c.Field] = c.Value
	}
	require.Contains(t, caps, model.FieldRecordable)
	assert.InDelta(t, 10, caps[model.FieldRecordable], 1e-9)

	var winsorized int
	for _, r := range res.Records {
		assert.Greater(t, r.Record.HoursWorked, 0.0)
		for f, limit := range caps {
			assert.LessOrEqual(t, r.Record.Value(f), limit, "%s on line %d", f, r.Line)
		}
		assert.True(t, r.Classification.Retained())
		if r.Classification.Class == model.ClassWinsorized {
			winsorized++
			assert.Equal(t, int64(500), r.Original.RecordableCases, "original kept for audit")
			assert.Equal(t, int64(10), r.Record.RecordableCases)
			assert.Equal(t, "recordable_cases", r.CappedList())
		}
	}
	assert.Equal(t, 1, winsorized)

	for _, ex := range res.Excluded {
		if ex.Classification.Class == model.ClassOutlierExcluded {
			assert.Equal(t, "OUT", ex.Record.EstablishmentID)
			assert.Equal(t, []model.Field{model.FieldHours}, ex.Classification.OutlierFields)
		}
	}
}

func TestClean_CapsFromRetainedOnly(t *testing.T) {
	rows := cleaningFixture()
	res, err := Clean(context.Background(), rows, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Audit.ExcludedOutlier)

	retained := make([]model.InjuryRecord, len(res.Records))
	for i, r := range res.Records {
		retained[i] = r.Original
	}
	caps := make(map[model.Field]float64)
	for _, c := range res.Audit.Caps {
		caps[c.Field] = c.Value
	}
	for _, f := range []model.Field{model.FieldRecordable, model.FieldLostDays} {
		want := math.Floor(Quantile(sortedValues(retained, f), DefaultCapPercentile))
		assert.InDelta(t, want, caps[f], 1e-9, "%s cap", f)
	}
	assert.InDelta(t, 10, caps[model.FieldRecordable], 1e-9)
	assert.InDelta(t, 0, caps[model.FieldLostDays], 1e-9)

	// Dropping the outlier row must not move any cap.
	var without []model.RawRecord
	for _, r := range rows {
		if r.Fields[model.ColEstablishmentID] != "OUT" {
			without = append(without, r)
		}
	}
	res2, err := Clean(context.Background(), without, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res2.Audit.ExcludedOutlier)
	assert.Equal(t, res.Audit.Caps, res2.Audit.Caps)
}

// countInvariantFixture: 99 rows with one recordable case each and one row
// whose recordable count is capped below its lost-time and fatality counts.
func countInvariantFixture() []model.RawRecord {
	var rows []model.RawRecord
	for i := 0; i < 99; i++ {
		rows = append(rows, raw(i+2, "E"+strconv.Itoa(i), "2019", "236220", "small",
			strconv.Itoa(10000+i*100), "1", "1", "1", "0", "5"))
	}
	return append(rows, raw(101, "HEAVY", "2019", "236220", "small", "15000", "40", "30", "35", "12", "200"))
}

func TestClean_CappedRecordsKeepCountInvariants(t *testing.T) {
	onlyRecordable := DefaultOptions()
	onlyRecordable.CapFields = []model.Field{model.FieldRecordable}

	tests := []struct {
		name    string
		opts    Options
		clamped []model.Field
	}{
		{"default caps", DefaultOptions(), []model.Field{model.FieldFatalities}},
		{"recordable only", onlyRecordable, []model.Field{model.FieldLostTime, model.FieldFatalities}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Clean(context.Background(), countInvariantFixture(), tt.opts)
			require.NoError(t, err)
			require.Equal(t, int64(100), res.Audit.Retained)

			for _, r := range res.Records {
				rec := r.Record
				assert.LessOrEqual(t, rec.LostTimeCases, rec.RecordableCases, "lost time on line %d", r.Line)
				assert.LessOrEqual(t, rec.Fatalities, rec.RecordableCases, "fatalities on line %d", r.Line)
			}

			heavy := res.Records[len(res.Records)-1]
			require.Equal(t, "HEAVY", heavy.Record.EstablishmentID)
			assert.Equal(t, int64(1), heavy.Record.RecordableCases)
			assert.Equal(t, int64(1), heavy.Record.Fatalities)
			assert.Equal(t, int64(12), heavy.Original.Fatalities)
			assert.Equal(t, int64(30), heavy.Original.LostTimeCases)
			for _, f := range tt.clamped {
				assert.Contains(t, heavy.Classification.CappedFields, f)
				assert.Equal(t, int64(1), res.Audit.WinsorizedByField[f], "%s clamps counted", f)
			}
		})
	}
}

func TestWinsorizer_ClampsToCappedRecordable(t *testing.T) {
	w := NewWinsorizer([]Cap{{Field: model.FieldRecordable, Percentile: 0.99, Raw: 2.5, Value: 2}})
	orig := model.InjuryRecord{RecordableCases: 9, LostTimeCases: 4, Fatalities: 3, DARTCases: 7}

	capped, fields := w.Apply(orig)
	assert.Equal(t, []model.Field{model.FieldRecordable, model.FieldLostTime, model.FieldFatalities}, fields)
	assert.Equal(t, int64(2), capped.RecordableCases)
	assert.Equal(t, int64(2), capped.LostTimeCases)
	assert.Equal(t, int64(2), capped.Fatalities)
	assert.Equal(t, int64(7), capped.DARTCases, "DART is not bounded by recordable")
	assert.Equal(t, int64(3), orig.Fatalities)

	_, fields = w.Apply(model.InjuryRecord{RecordableCases: 2, LostTimeCases: 2, Fatalities: 1})
	assert.Empty(t, fields)
}

func TestClean_Deterministic(t *testing.T) {
	a, err := Clean(context.Background(), cleaningFixture(), DefaultOptions())
	require.NoError(t, err)
	b, err := Clean(context.Background(), cleaningFixture(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClean_Empty(t *testing.T) {
	_, err := Clean(context.Background(), nil, DefaultOptions())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrEmptyDataset))
}

func TestClean_AllInvalid(t *testing.T) {
	rows := []model.RawRecord{raw(2, "E1", "2010"), raw(3, "", "2019")}
	_, err := Clean(context.Background(), rows, DefaultOptions())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrEmptyDataset))
}

func TestClean_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.CapPercentile = 1.5
	_, err := Clean(context.Background(), []model.RawRecord{validRaw(2)}, opts)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))

	opts = DefaultOptions()
	opts.ScreenFields = []model.Field{"employees"}
	_, err = Clean(context.Background(), []model.RawRecord{validRaw(2)}, opts)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestClean_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Clean(ctx, []model.RawRecord{validRaw(2)}, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

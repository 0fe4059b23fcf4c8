package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeBucket(t *testing.T) {
	tests := []struct {
		input string
		want  SizeBucket
	}{
		{"small", SizeSmall},
		{"Medium", SizeMedium},
		{" LARGE ", SizeLarge},
		{"1", SizeSmall},
		{"2.0", SizeMedium},
		{"3", SizeLarge},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSizeBucket(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSizeBucket("huge")
	assert.Error(t, err)
	_, err = ParseSizeBucket("21")
	assert.Error(t, err)
}

func TestSizeBucket_Label(t *testing.T) {
	assert.Equal(t, "Small (<20)", SizeSmall.Label())
	assert.Equal(t, "Large (250+)", SizeLarge.Label())
	assert.Equal(t, "odd", SizeBucket("odd").Label())
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" Recordable_Cases ")
	require.NoError(t, err)
	assert.Equal(t, FieldRecordable, f)

	_, err = ParseField("employees")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), `unknown field "employees"`)
}

func TestField_IsCount(t *testing.T) {
	assert.False(t, FieldHours.IsCount())
	for _, f := range NumericFields[1:] {
		assert.True(t, f.IsCount(), f)
	}
}

func TestInjuryRecord_WithValueCopies(t *testing.T) {
	orig := InjuryRecord{HoursWorked: 1000, RecordableCases: 40, LostDays: 900}

	capped := orig.WithValue(FieldRecordable, 12.9)
	assert.Equal(t, int64(12), capped.RecordableCases)
	assert.Equal(t, int64(40), orig.RecordableCases, "original must be untouched")

	capped = capped.WithValue(FieldHours, 500.5)
	assert.InDelta(t, 500.5, capped.HoursWorked, 1e-9)
	assert.InDelta(t, 900, capped.Value(FieldLostDays), 1e-9)
	assert.True(t, math.IsNaN(orig.Value(Field("bogus"))))
}

func TestGroupKey_String(t *testing.T) {
	assert.Equal(t, "ALL/ALL/ALL", GroupKey{}.String())
	assert.Equal(t, "23/2019/ALL", GroupKey{Industry: "23", Year: 2019}.String())
	assert.Equal(t, "ALL/ALL/small", GroupKey{Size: SizeSmall}.String())
}

func TestParseKPIName(t *testing.T) {
	for in, want := range map[string]KPIName{
		"trir":          KPITRIR,
		"LTIFR":         KPILTIFR,
		"dart_rate":     KPIDART,
		"Severity Rate": KPISeverity,
		"fatality":      KPIFatality,
	} {
		got, err := ParseKPIName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKPIName("EMR")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestClassification_Flags(t *testing.T) {
	tests := []struct {
		class    Class
		retained bool
		flags    ValidationFlags
	}{
		{ClassValid, true, ValidationFlags{Valid: true}},
		{ClassWinsorized, true, ValidationFlags{Valid: true, Winsorized: true}},
		{ClassOutlierExcluded, false, ValidationFlags{Valid: true, Outlier: true}},
		{ClassStructuralInvalid, false, ValidationFlags{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			c := Classification{Class: tt.class}
			assert.Equal(t, tt.retained, c.Retained())
			assert.Equal(t, tt.flags, c.Flags())
		})
	}
}

func TestCleanedRecord_CappedList(t *testing.T) {
	r := CleanedRecord{Classification: Classification{
		Class:        ClassWinsorized,
		CappedFields: []Field{FieldRecordable, FieldLostDays},
	}}
	assert.Equal(t, "recordable_cases;total_lost_days", r.CappedList())
	assert.Equal(t, "", CleanedRecord{}.CappedList())
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Kind: "cap percentile", Value: "1.5", Err: ErrBadNumber}
	assert.Contains(t, err.Error(), `invalid cap percentile "1.5"`)
	assert.ErrorIs(t, err, ErrBadNumber)
	assert.False(t, IsConfigError(ErrEmptyDataset))
}

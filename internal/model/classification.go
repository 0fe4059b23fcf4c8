package model

import "strings"

// Class tags the cleaning outcome of a single record.
type Class string

const (
	ClassValid             Class = "valid"
	ClassStructuralInvalid Class = "structural_invalid"
	ClassOutlierExcluded   Class = "outlier_excluded"
	ClassWinsorized        Class = "winsorized"
)

// Reason explains why a row was marked structurally invalid.
type Reason string

const (
	ReasonMissingField     Reason = "missing_field"
	ReasonBadNumber        Reason = "bad_number"
	ReasonYearOutOfRange   Reason = "year_out_of_range"
	ReasonUnknownSize      Reason = "unknown_size_bucket"
	ReasonInvalidIndustry  Reason = "invalid_industry_code"
	ReasonNegativeCount    Reason = "negative_count"
	ReasonNonPositiveHours Reason = "non_positive_hours"
	ReasonCountInvariant   Reason = "count_invariant"
)

// Classification is the tagged cleaning verdict attached to a record.
// Reason is set for ClassStructuralInvalid, OutlierFields for
// ClassOutlierExcluded, CappedFields for ClassWinsorized.
type Classification struct {
	Class         Class   `json:"class" yaml:"class"`
	Reason        Reason  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail        string  `json:"detail,omitempty" yaml:"detail,omitempty"`
	OutlierFields []Field `json:"outlier_fields,omitempty" yaml:"outlier_fields,omitempty"`
	CappedFields  []Field `json:"capped_fields,omitempty" yaml:"capped_fields,omitempty"`
}

// Retained reports whether the record belongs to the cleaned dataset.
func (c Classification) Retained() bool {
	return c.Class == ClassValid || c.Class == ClassWinsorized
}

// Flags projects the classification onto the {valid, outlier, winsorized}
// columns of the cleaned-dataset table.
func (c Classification) Flags() ValidationFlags {
	return ValidationFlags{
		Valid:      c.Class != ClassStructuralInvalid,
		Outlier:    c.Class == ClassOutlierExcluded,
		Winsorized: c.Class == ClassWinsorized,
	}
}

// ValidationFlags is the boolean view of a Classification.
type ValidationFlags struct {
	Valid      bool `json:"valid"`
	Outlier    bool `json:"outlier"`
	Winsorized bool `json:"winsorized"`
}

// CleanedRecord is a retained record after winsorization. Record holds the
// capped copy; Original is the untouched normalized record.
type CleanedRecord struct {
	Line           int            `json:"line"`
	Record         InjuryRecord   `json:"record"`
	Original       InjuryRecord   `json:"original"`
	Classification Classification `json:"classification"`
}

// CappedList renders the capped field names for tabular output.
func (c CleanedRecord) CappedList() string {
	names := make([]string, len(c.Classification.CappedFields))
	for i, f := range c.Classification.CappedFields {
		names[i] = string(f)
	}
	return strings.Join(names, ";")
}

package model

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Reporting window covered by the ITA establishment-year filings.
const (
	MinYear = 2016
	MaxYear = 2021
)

// Canonical column names for the descriptive attributes. Numeric columns
// are named by their Field.
const (
	ColEstablishmentID = "establishment_id"
	ColYear            = "year"
	ColIndustryCode    = "industry_code"
	ColSize            = "company_size_bucket"
)

// SizeBucket is the establishment size class reported on the ITA form.
type SizeBucket string

const (
	SizeSmall  SizeBucket = "small"  // fewer than 20 employees
	SizeMedium SizeBucket = "medium" // 20 to 249 employees
	SizeLarge  SizeBucket = "large"  // 250 or more employees
)

// SizeBuckets lists the valid buckets in ascending size order.
var SizeBuckets = []SizeBucket{SizeSmall, SizeMedium, SizeLarge}

// Label returns the human-readable bucket label used in reports.
func (s SizeBucket) Label() string {
	switch s {
	case SizeSmall:
		return "Small (<20)"
	case SizeMedium:
		return "Medium (20-249)"
	case SizeLarge:
		return "Large (250+)"
	default:
		return string(s)
	}
}

// ParseSizeBucket accepts bucket names ("small") and ITA size codes ("1", "2", "3").
func ParseSizeBucket(s string) (SizeBucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "1", "1.0":
		return SizeSmall, nil
	case "medium", "2", "2.0":
		return SizeMedium, nil
	case "large", "3", "3.0":
		return SizeLarge, nil
	default:
		return "", eris.Errorf("unknown company size bucket: %q", s)
	}
}

// Field names a numeric InjuryRecord attribute that can be screened or capped.
type Field string

const (
	FieldHours      Field = "total_hours_worked"
	FieldRecordable Field = "recordable_cases"
	FieldLostTime   Field = "lost_time_cases"
	FieldDART       Field = "days_away_restricted_transferred"
	FieldFatalities Field = "fatalities"
	FieldLostDays   Field = "total_lost_days"
)

// NumericFields lists every numeric field in canonical column order.
var NumericFields = []Field{
	FieldHours,
	FieldRecordable,
	FieldLostTime,
	FieldDART,
	FieldFatalities,
	FieldLostDays,
}

// ParseField converts a column name into a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range NumericFields {
		if f == known {
			return f, nil
		}
	}
	return "", NewConfigError("field", s)
}

// Columns lists every canonical column in output order.
var Columns = []string{
	ColEstablishmentID,
	ColYear,
	ColIndustryCode,
	ColSize,
	string(FieldHours),
	string(FieldRecordable),
	string(FieldLostTime),
	string(FieldDART),
	string(FieldFatalities),
	string(FieldLostDays),
}

// IsCount reports whether the field holds an integer case or day count.
func (f Field) IsCount() bool {
	return f != FieldHours
}

// InjuryRecord is one establishment-year entry. It is read-only after
// normalization; capping produces a new value via WithValue.
type InjuryRecord struct {
	EstablishmentID string     `json:"establishment_id" validate:"required"`
	Year            int        `json:"year" validate:"gte=2016,lte=2021"`
	IndustryCode    string     `json:"industry_code" validate:"required,naics"`
	Size            SizeBucket `json:"company_size_bucket" validate:"oneof=small medium large"`
	HoursWorked     float64    `json:"total_hours_worked" validate:"gt=0"`
	RecordableCases int64      `json:"recordable_cases" validate:"gte=0"`
	LostTimeCases   int64      `json:"lost_time_cases" validate:"gte=0,ltefield=RecordableCases"`
	DARTCases       int64      `json:"days_away_restricted_transferred" validate:"gte=0"`
	Fatalities      int64      `json:"fatalities" validate:"gte=0,ltefield=RecordableCases"`
	LostDays        int64      `json:"total_lost_days" validate:"gte=0"`
}

// Value returns the numeric value of f.
func (r InjuryRecord) Value(f Field) float64 {
	switch f {
	case FieldHours:
		return r.HoursWorked
	case FieldRecordable:
		return float64(r.RecordableCases)
	case FieldLostTime:
		return float64(r.LostTimeCases)
	case FieldDART:
		return float64(r.DARTCases)
	case FieldFatalities:
		return float64(r.Fatalities)
	case FieldLostDays:
		return float64(r.LostDays)
	default:
		return math.NaN()
	}
}

// WithValue returns a copy of r with f set to v. Count fields are truncated
// toward zero.
func (r InjuryRecord) WithValue(f Field, v float64) InjuryRecord {
	out := r
	switch f {
	case FieldHours:
		out.HoursWorked = v
	case FieldRecordable:
		out.RecordableCases = int64(v)
	case FieldLostTime:
		out.LostTimeCases = int64(v)
	case FieldDART:
		out.DARTCases = int64(v)
	case FieldFatalities:
		out.Fatalities = int64(v)
	case FieldLostDays:
		out.LostDays = int64(v)
	}
	return out
}

// RawRecord is an untyped input row keyed by canonical field name.
type RawRecord struct {
	Line   int               // 1-based source line, header included
	Fields map[string]string // canonical column name -> raw cell value
}

// Get returns the raw value for a column and whether it was present.
func (r RawRecord) Get(col string) (string, bool) {
	v, ok := r.Fields[col]
	return v, ok
}

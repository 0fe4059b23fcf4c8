// Package cleaning turns raw injury rows into the validated dataset: it
// rejects structurally invalid rows, excludes IQR outliers, and winsorizes
// right-tailed counts.
package cleaning

import (
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/safety-kpi/internal/industry"
	"github.com/sells-group/safety-kpi/internal/model"
)

// ValidityReport counts rows rejected by the normalizer.
type ValidityReport struct {
	Rows            int64                  `yaml:"rows"`
	Valid           int64                  `yaml:"valid"`
	ByReason        map[model.Reason]int64 `yaml:"by_reason"`
	MissingByColumn map[string]int64       `yaml:"missing_by_column"`
}

// Invalid returns the number of rejected rows.
func (r *ValidityReport) Invalid() int64 {
	return r.Rows - r.Valid
}

// Reasons returns the reasons with a non-zero count in sorted order.
func (r *ValidityReport) Reasons() []model.Reason {
	out := make([]model.Reason, 0, len(r.ByReason))
	for reason, n := range r.ByReason {
		if n > 0 {
			out = append(out, reason)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Normalizer coerces RawRecords into InjuryRecords and keeps a running
// ValidityReport. Not safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
	report   ValidityReport
}

// NewNormalizer creates a Normalizer with the record validation rules
// registered.
func NewNormalizer() *Normalizer {
	v := validator.New()
	// Error cannot occur: tag and func are both non-empty.
	_ = v.RegisterValidation("naics", func(fl validator.FieldLevel) bool {
		return industry.IsValidSector(fl.Field().String())
	})
	return &Normalizer{
		validate: v,
		report: ValidityReport{
			ByReason:        make(map[model.Reason]int64),
			MissingByColumn: make(map[string]int64),
		},
	}
}

// Report returns a snapshot of the validity counters.
func (n *Normalizer) Report() ValidityReport {
	out := ValidityReport{
		Rows:            n.report.Rows,
		Valid:           n.report.Valid,
		ByReason:        make(map[model.Reason]int64, len(n.report.ByReason)),
		MissingByColumn: make(map[string]int64, len(n.report.MissingByColumn)),
	}
	for k, v := range n.report.ByReason {
		out.ByReason[k] = v
	}
	for k, v := range n.report.MissingByColumn {
		out.MissingByColumn[k] = v
	}
	return out
}

// Normalize coerces and validates one raw row. A non-nil
// *model.StructuralInvalidity means the row is dropped; it has already been
// counted in the report.
func (n *Normalizer) Normalize(raw model.RawRecord) (model.InjuryRecord, *model.StructuralInvalidity) {
	n.report.Rows++
	for _, col := range model.Columns {
		if v, ok := raw.Get(col); !ok || model.IsNull(v) {
			n.report.MissingByColumn[col]++
		}
	}

	rec, inv := n.coerce(raw)
	if inv == nil {
		inv = n.check(rec)
	}
	if inv != nil {
		inv.Line = raw.Line
		n.report.ByReason[inv.Reason]++
		return model.InjuryRecord{}, inv
	}
	n.report.Valid++
	return rec, nil
}

func (n *Normalizer) coerce(raw model.RawRecord) (model.InjuryRecord, *model.StructuralInvalidity) {
	var rec model.InjuryRecord

	id, _ := raw.Get(model.ColEstablishmentID)
	rec.EstablishmentID = model.TrimCell(id)
	if model.IsNull(rec.EstablishmentID) {
		return rec, missing(model.ColEstablishmentID)
	}

	yearCell, _ := raw.Get(model.ColYear)
	year, err := model.ParseYear(yearCell)
	if err != nil {
		return rec, coercionFailure(model.ColYear, err)
	}
	rec.Year = year

	codeCell, _ := raw.Get(model.ColIndustryCode)
	codeCell = model.TrimCell(codeCell)
	if model.IsNull(codeCell) {
		return rec, missing(model.ColIndustryCode)
	}
	rec.IndustryCode = industry.Normalize(codeCell)
	if rec.IndustryCode == "" {
		return rec, &model.StructuralInvalidity{
			Reason: model.ReasonInvalidIndustry,
			Column: model.ColIndustryCode,
			Detail: codeCell,
		}
	}

	sizeCell, _ := raw.Get(model.ColSize)
	if model.IsNull(sizeCell) {
		return rec, missing(model.ColSize)
	}
	size, err := model.ParseSizeBucket(model.TrimCell(sizeCell))
	if err != nil {
		return rec, &model.StructuralInvalidity{
			Reason: model.ReasonUnknownSize,
			Column: model.ColSize,
			Detail: sizeCell,
		}
	}
	rec.Size = size

	hoursCell, _ := raw.Get(string(model.FieldHours))
	hours, err := model.ParseHours(hoursCell)
	if err != nil {
		return rec, coercionFailure(string(model.FieldHours), err)
	}
	rec.HoursWorked = hours

	for _, f := range model.NumericFields {
		if !f.IsCount() {
			continue
		}
		cell, _ := raw.Get(string(f))
		v, err := model.ParseCount(cell)
		if err != nil {
			return rec, coercionFailure(string(f), err)
		}
		rec = rec.WithValue(f, float64(v))
	}
	return rec, nil
}

// check applies the struct validation rules and maps the first failing rule
// onto a structural reason.
func (n *Normalizer) check(rec model.InjuryRecord) *model.StructuralInvalidity {
	err := n.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &model.StructuralInvalidity{Reason: model.ReasonBadNumber, Detail: err.Error()}
	}
	fe := verrs[0]
	inv := &model.StructuralInvalidity{Column: columnFor(fe.StructField()), Detail: fe.Tag()}
	switch {
	case fe.Tag() == "required":
		inv.Reason = model.ReasonMissingField
	case fe.StructField() == "Year":
		inv.Reason = model.ReasonYearOutOfRange
	case fe.Tag() == "naics":
		inv.Reason = model.ReasonInvalidIndustry
	case fe.Tag() == "oneof":
		inv.Reason = model.ReasonUnknownSize
	case fe.StructField() == "HoursWorked":
		inv.Reason = model.ReasonNonPositiveHours
	case fe.Tag() == "ltefield":
		inv.Reason = model.ReasonCountInvariant
		inv.Detail = fe.StructField() + " exceeds " + fe.Param()
	default:
		inv.Reason = model.ReasonNegativeCount
	}
	return inv
}

var structColumns = map[string]string{
	"EstablishmentID": model.ColEstablishmentID,
	"Year":            model.ColYear,
	"IndustryCode":    model.ColIndustryCode,
	"Size":            model.ColSize,
	"HoursWorked":     string(model.FieldHours),
	"RecordableCases": string(model.FieldRecordable),
	"LostTimeCases":   string(model.FieldLostTime),
	"DARTCases":       string(model.FieldDART),
	"Fatalities":      string(model.FieldFatalities),
	"LostDays":        string(model.FieldLostDays),
}

func columnFor(structField string) string {
	if col, ok := structColumns[structField]; ok {
		return col
	}
	return structField
}

func missing(col string) *model.StructuralInvalidity {
	return &model.StructuralInvalidity{Reason: model.ReasonMissingField, Column: col}
}

func coercionFailure(col string, err error) *model.StructuralInvalidity {
	if eris.Is(err, model.ErrMissingValue) {
		return missing(col)
	}
	return &model.StructuralInvalidity{Reason: model.ReasonBadNumber, Column: col, Detail: err.Error()}
}

// Package ingest loads raw injury rows from CSV or XLSX files and maps
// their columns onto the canonical record fields.
package ingest

import (
	"strconv"
	"strings"

	"github.com/sells-group/safety-kpi/internal/model"
)

// Canonical column names. Raw records are always keyed by these.
const (
	ColEstablishmentID = model.ColEstablishmentID
	ColYear            = model.ColYear
	ColIndustryCode    = model.ColIndustryCode
	ColSize            = model.ColSize
)

// CanonicalColumns lists every column a RawRecord carries, in output order.
var CanonicalColumns = model.Columns

// Schema identifies the input column layout.
type Schema string

const (
	SchemaCanonical Schema = "canonical"
	SchemaITA       Schema = "ita"
)

// source lists the input columns that feed one canonical column. Multiple
// sources are summed; alternatives are tried in order.
type source struct {
	alternatives []string // first present header wins
	sum          []string // all must be present; values are summed
}

var itaSources = map[string]source{
	ColEstablishmentID:            {alternatives: []string{"establishment_id", "id"}},
	ColYear:                       {alternatives: []string{"year_filing_for"}},
	ColIndustryCode:               {alternatives: []string{"naics_code"}},
	ColSize:                       {alternatives: []string{"size"}},
	string(model.FieldHours):      {alternatives: []string{"total_hours_worked"}},
	string(model.FieldRecordable): {alternatives: []string{"total_injuries"}},
	string(model.FieldLostTime):   {alternatives: []string{"total_dafw_cases"}},
	string(model.FieldDART):       {sum: []string{"total_dafw_cases", "total_djtr_cases"}},
	string(model.FieldFatalities): {alternatives: []string{"total_deaths"}},
	string(model.FieldLostDays):   {sum: []string{"total_dafw_days", "total_djtr_days"}},
}

// Mapper converts a positional input row into a RawRecord.
type Mapper struct {
	schema  Schema
	columns map[string][]int // canonical column -> input indices
	summed  map[string]bool
}

// Schema returns the detected input layout.
func (m *Mapper) Schema() Schema { return m.schema }

// NewMapper detects the schema from the header and resolves column indices.
// Returns a *MissingColumnsError when a required column is absent.
func NewMapper(header []string) (*Mapper, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[normalizeHeader(h)] = i
	}

	m := &Mapper{columns: make(map[string][]int), summed: make(map[string]bool)}
	if _, ok := idx["year_filing_for"]; ok {
		m.schema = SchemaITA
	} else {
		m.schema = SchemaCanonical
	}

	var missing []string
	for _, col := range CanonicalColumns {
		if m.schema == SchemaCanonical {
			i, ok := idx[col]
			if !ok {
				missing = append(missing, col)
				continue
			}
			m.columns[col] = []int{i}
			continue
		}

		src := itaSources[col]
		if len(src.sum) > 0 {
			var indices []int
			for _, name := range src.sum {
				i, ok := idx[name]
				if !ok {
					missing = append(missing, name)
					continue
				}
				indices = append(indices, i)
			}
			m.columns[col] = indices
			m.summed[col] = true
			continue
		}

		found := false
		for _, name := range src.alternatives {
			if i, ok := idx[name]; ok {
				m.columns[col] = []int{i}
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, src.alternatives[0])
		}
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{Schema: m.schema, Columns: missing}
	}
	return m, nil
}

// Map builds a RawRecord from a data row. Cells beyond the row length are
// left absent so the normalizer reports them as missing.
func (m *Mapper) Map(line int, row []string) model.RawRecord {
	rec := model.RawRecord{Line: line, Fields: make(map[string]string, len(CanonicalColumns))}
	for _, col := range CanonicalColumns {
		indices := m.columns[col]
		if m.summed[col] {
			if v, ok := sumCells(row, indices); ok {
				rec.Fields[col] = v
			}
			continue
		}
		if i := indices[0]; i < len(row) {
			rec.Fields[col] = row[i]
		}
	}
	return rec
}

// sumCells adds integer cells. An unparseable component is passed through
// verbatim so the normalizer rejects the row with the original text.
func sumCells(row []string, indices []int) (string, bool) {
	var total int64
	for _, i := range indices {
		if i >= len(row) {
			return "", false
		}
		v, err := model.ParseCount(row[i])
		if err != nil {
			return row[i], true
		}
		total += v
	}
	return strconv.FormatInt(total, 10), true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// MissingColumnsError reports required columns absent from the header.
type MissingColumnsError struct {
	Schema  Schema
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required " + string(e.Schema) + " columns: " + strings.Join(e.Columns, ", ")
}

package export

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/safety-kpi/internal/benchmark"
	"github.com/sells-group/safety-kpi/internal/cleaning"
	"github.com/sells-group/safety-kpi/internal/industry"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Undefined is rendered in place of a KPI value whose denominator was zero.
const Undefined = "undefined"

var cleanedColumns = []string{
	"line",
	model.ColEstablishmentID,
	model.ColYear,
	model.ColIndustryCode,
	model.ColSize,
	string(model.FieldHours),
	string(model.FieldRecordable),
	string(model.FieldLostTime),
	string(model.FieldDART),
	string(model.FieldFatalities),
	string(model.FieldLostDays),
	"valid",
	"outlier",
	"winsorized",
	"capped_fields",
	"original_" + string(model.FieldHours),
	"original_" + string(model.FieldRecordable),
	"original_" + string(model.FieldLostTime),
	"original_" + string(model.FieldDART),
	"original_" + string(model.FieldFatalities),
	"original_" + string(model.FieldLostDays),
}

// numericFields are the record fields that can be capped or screened.
var numericFields = []model.Field{
	model.FieldHours,
	model.FieldRecordable,
	model.FieldLostTime,
	model.FieldDART,
	model.FieldFatalities,
	model.FieldLostDays,
}

var excludedColumns = []string{
	"line",
	"class",
	"reason",
	"outlier_fields",
	"detail",
	model.ColEstablishmentID,
	model.ColYear,
	model.ColIndustryCode,
	model.ColSize,
	string(model.FieldHours),
	string(model.FieldRecordable),
	string(model.FieldLostTime),
	string(model.FieldDART),
	string(model.FieldFatalities),
	string(model.FieldLostDays),
}

var kpiColumns = []string{
	"grouping",
	model.ColIndustryCode,
	"industry_title",
	model.ColYear,
	model.ColSize,
	"kpi_name",
	"value",
	"numerator",
	"denominator",
	"n_records",
	"undefined",
}

var rankingColumns = []string{
	"kpi_name",
	"grouping",
	"rank",
	"group_key",
	model.ColIndustryCode,
	"industry_title",
	model.ColYear,
	model.ColSize,
	"value",
}

var riskColumns = []string{
	model.ColIndustryCode,
	"industry_title",
	"trir",
	"dart_rate",
	"fatality_rate",
	"risk_score",
	"risk_level",
	"trir_trend_slope",
	"trir_trend_direction",
}

// WriteCleaned writes the cleaned dataset with its validation flags. The
// original_<field> columns hold the pre-cap value of each capped field and
// are empty otherwise.
func WriteCleaned(out io.Writer, records []model.CleanedRecord) error {
	return writeCSV(out, "cleaned", cleanedColumns, func(w *csv.Writer) error {
		for i := range records {
			r := &records[i]
			flags := r.Classification.Flags()
			row := recordCells(r.Record)
			row = append([]string{strconv.Itoa(r.Line)}, row...)
			row = append(row,
				strconv.FormatBool(flags.Valid),
				strconv.FormatBool(flags.Outlier),
				strconv.FormatBool(flags.Winsorized),
				r.CappedList(),
			)
			for _, f := range numericFields {
				orig := ""
				if slices.Contains(r.Classification.CappedFields, f) {
					orig = formatField(r.Original, f)
				}
				row = append(row, orig)
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteExcluded writes every structurally invalid and outlier-excluded row.
// Outlier rows carry their normalized record; structural rejections never
// produced one and leave those columns empty.
func WriteExcluded(out io.Writer, excluded []cleaning.Exclusion) error {
	blank := make([]string, len(excludedColumns)-5)
	return writeCSV(out, "excluded", excludedColumns, func(w *csv.Writer) error {
		for _, ex := range excluded {
			fields := make([]string, len(ex.Classification.OutlierFields))
			for i, f := range ex.Classification.OutlierFields {
				fields[i] = string(f)
			}
			row := []string{
				strconv.Itoa(ex.Line),
				string(ex.Classification.Class),
				string(ex.Classification.Reason),
				strings.Join(fields, ";"),
				ex.Classification.Detail,
			}
			if ex.Classification.Class == model.ClassStructuralInvalid {
				row = append(row, blank...)
			} else {
				row = append(row, recordCells(ex.Record)...)
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// recordCells renders the key and numeric columns of a record.
func recordCells(rec model.InjuryRecord) []string {
	row := []string{
		rec.EstablishmentID,
		strconv.Itoa(rec.Year),
		rec.IndustryCode,
		string(rec.Size),
	}
	for _, f := range numericFields {
		row = append(row, formatField(rec, f))
	}
	return row
}

func formatField(rec model.InjuryRecord, f model.Field) string {
	if f.IsCount() {
		return formatCount(rec.Value(f))
	}
	return formatHours(rec.Value(f))
}

// WriteKPIResults writes one row per KPI result. Undefined results carry
// "undefined" in the value column.
func WriteKPIResults(out io.Writer, results []model.KPIResult) error {
	return writeCSV(out, "kpi results", kpiColumns, func(w *csv.Writer) error {
		for _, r := range results {
			value := formatRate(r.Value)
			if r.Undefined {
				value = Undefined
			}
			row := []string{
				r.Grouping,
				r.Key.IndustryOrAll(),
				industry.Title(r.Key.Industry),
				r.Key.YearOrAll(),
				r.Key.SizeOrAll(),
				string(r.KPI),
				value,
				formatCount(r.Numerator),
				formatHours(r.Denominator),
				strconv.FormatInt(r.NRecords, 10),
				strconv.FormatBool(r.Undefined),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteRankings writes every ranking entry, then the ranking's undefined
// groups with an empty rank.
func WriteRankings(out io.Writer, rankings []*benchmark.Ranking) error {
	return writeCSV(out, "rankings", rankingColumns, func(w *csv.Writer) error {
		for _, r := range rankings {
			for _, e := range r.Entries {
				if err := w.Write(rankingRow(r, strconv.Itoa(e.Rank), e.Key, formatRate(e.Value))); err != nil {
					return err
				}
			}
			for _, key := range r.Undefined {
				if err := w.Write(rankingRow(r, "", key, Undefined)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func rankingRow(r *benchmark.Ranking, rank string, key model.GroupKey, value string) []string {
	return []string{
		string(r.KPI),
		r.Grouping,
		rank,
		key.String(),
		key.IndustryOrAll(),
		industry.Title(key.Industry),
		key.YearOrAll(),
		key.SizeOrAll(),
		value,
	}
}

// WriteRisk writes the composite risk score of each industry, joined with
// its TRIR trend when one could be fitted.
func WriteRisk(out io.Writer, risks []benchmark.Risk, trends []benchmark.Trend) error {
	byIndustry := make(map[string]benchmark.Trend, len(trends))
	for _, t := range trends {
		byIndustry[t.Industry] = t
	}
	return writeCSV(out, "risk", riskColumns, func(w *csv.Writer) error {
		for _, r := range risks {
			slope, direction := "", ""
			if t, ok := byIndustry[r.Key.Industry]; ok {
				slope = formatRate(t.Slope)
				direction = string(t.Direction)
			}
			row := []string{
				r.Key.IndustryOrAll(),
				industry.Title(r.Key.Industry),
				formatRate(r.TRIR),
				formatRate(r.DART),
				formatRate(r.Fatality),
				strconv.FormatFloat(r.Score, 'f', 2, 64),
				string(r.Level),
				slope,
				direction,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(out io.Writer, name string, header []string, rows func(*csv.Writer) error) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "export: write %s header", name)
	}
	if err := rows(w); err != nil {
		return eris.Wrapf(err, "export: write %s row", name)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", name)
	}
	return nil
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

package export

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/safety-kpi/internal/industry"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Workbook sheet names.
const (
	sheetKPIs     = "KPI Results"
	sheetRankings = "Rankings"
	sheetRisk     = "Industry Risk"
	sheetAudit    = "Audit"
)

// WriteWorkbook saves the KPI, ranking, risk, and audit tables as one XLSX
// workbook for spreadsheet consumers.
func WriteWorkbook(path string, rep *Report) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "export: close workbook")
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "export: workbook style")
	}

	if err := f.SetSheetName("Sheet1", sheetKPIs); err != nil {
		return eris.Wrap(err, "export: rename default sheet")
	}
	for _, name := range []string{sheetRankings, sheetRisk, sheetAudit} {
		if _, err := f.NewSheet(name); err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}
	}

	kpiRows := make([][]any, 0, len(rep.Results))
	for _, r := range rep.Results {
		var value any = r.Value
		if r.Undefined {
			value = Undefined
		}
		kpiRows = append(kpiRows, []any{
			r.Grouping, r.Key.IndustryOrAll(), industry.Title(r.Key.Industry),
			r.Key.YearOrAll(), r.Key.SizeOrAll(), string(r.KPI),
			value, r.Numerator, r.Denominator, r.NRecords, r.Undefined,
		})
	}
	if err := writeSheet(f, sheetKPIs, kpiColumns, kpiRows, bold); err != nil {
		return err
	}

	var rankRows [][]any
	for _, rk := range rep.Rankings {
		for _, e := range rk.Entries {
			rankRows = append(rankRows, rankingCells(string(rk.KPI), rk.Grouping, e.Rank, e.Key, e.Value))
		}
		for _, key := range rk.Undefined {
			rankRows = append(rankRows, rankingCells(string(rk.KPI), rk.Grouping, "", key, Undefined))
		}
	}
	if err := writeSheet(f, sheetRankings, rankingColumns, rankRows, bold); err != nil {
		return err
	}

	trendBy := make(map[string]int, len(rep.Trends))
	for i, t := range rep.Trends {
		trendBy[t.Industry] = i
	}
	riskRows := make([][]any, 0, len(rep.Risks))
	for _, r := range rep.Risks {
		row := []any{
			r.Key.IndustryOrAll(), industry.Title(r.Key.Industry),
			r.TRIR, r.DART, r.Fatality, r.Score, string(r.Level), "", "",
		}
		if i, ok := trendBy[r.Key.Industry]; ok {
			row[7] = rep.Trends[i].Slope
			row[8] = string(rep.Trends[i].Direction)
		}
		riskRows = append(riskRows, row)
	}
	if err := writeSheet(f, sheetRisk, riskColumns, riskRows, bold); err != nil {
		return err
	}

	var auditRows [][]any
	if rep.Cleaning != nil {
		a := rep.Cleaning.Audit
		auditRows = [][]any{
			{"input", a.Input},
			{"excluded_structural", a.ExcludedStructural},
			{"excluded_outlier", a.ExcludedOutlier},
			{"winsorized_values", a.WinsorizedValues},
			{"retained", a.Retained},
			{"retention_rate", a.RetentionRate()},
		}
		for _, reason := range a.Validity.Reasons() {
			auditRows = append(auditRows, []any{"structural_" + string(reason), a.Validity.ByReason[reason]})
		}
	}
	if err := writeSheet(f, sheetAudit, []string{"counter", "value"}, auditRows, bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func rankingCells(kpi, grouping string, rank any, key model.GroupKey, value any) []any {
	return []any{
		kpi, grouping, rank, key.String(), key.IndustryOrAll(), industry.Title(key.Industry),
		key.YearOrAll(), key.SizeOrAll(), value,
	}
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return eris.Wrapf(err, "export: %s header", sheet)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return eris.Wrapf(err, "export: %s header style", sheet)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrapf(err, "export: %s cell", sheet)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return eris.Wrapf(err, "export: %s row %d", sheet, i+2)
		}
	}
	return nil
}

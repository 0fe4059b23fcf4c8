package fetcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures StreamXLSX.
type XLSXOptions struct {
	// Sheet selects a worksheet by name; the first sheet when empty.
	Sheet string
}

// StreamXLSX sends every non-blank row of one worksheet, header included,
// on the row channel. The workbook is loaded fully before the first row is
// sent. Both channels are closed when done.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}

		sheet, err := selectSheet(f, opts.Sheet)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells, blank := rowCells(row)
			if blank {
				continue
			}
			if err := send(ctx, rowCh, Row{Line: i + 1, Cells: cells}); err != nil {
				errCh <- eris.Wrap(err, "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func selectSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		return f.Sheets[0], nil
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	return sheet, nil
}

// rowCells renders a row's cells as strings and reports whether all of
// them are empty. Spreadsheet tools pad sheets with such rows.
func rowCells(row *xlsx.Row) ([]string, bool) {
	cells := make([]string, len(row.Cells))
	blank := true
	for j, cell := range row.Cells {
		cells[j] = cell.String()
		if strings.TrimSpace(cells[j]) != "" {
			blank = false
		}
	}
	return cells, blank
}

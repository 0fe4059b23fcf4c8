package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/fetcher"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Format selects the input file reader.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", model.NewConfigError("input format", s)
	}
}

// Options configures Load.
type Options struct {
	Format   Format
	Encoding string // CSV only
	Sheet    string // XLSX only; first sheet when empty
}

// Dataset is the raw, unvalidated content of one input file.
type Dataset struct {
	Source  string
	Schema  Schema
	Records []model.RawRecord
}

// Load reads every row of the file at path into RawRecords. A missing file,
// unreadable content, or missing required columns yield ErrMalformedInput;
// a file without data rows yields ErrEmptyDataset.
func Load(ctx context.Context, path string, opts Options) (*Dataset, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(path)
	}

	var (
		rowCh <-chan fetcher.Row
		errCh <-chan error
	)
	switch format {
	case FormatXLSX:
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(model.ErrMalformedInput, "ingest: open %s: %v", path, err)
		}
		rowCh, errCh = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{Sheet: opts.Sheet})
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(model.ErrMalformedInput, "ingest: open %s: %v", path, err)
		}
		defer f.Close() //nolint:errcheck
		rowCh, errCh = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
			Encoding:   opts.Encoding,
			LazyQuotes: true,
		})
	}

	ds := &Dataset{Source: path}
	var (
		mapper  *Mapper
		headErr error
	)
	for row := range rowCh {
		if mapper == nil {
			if headErr != nil {
				continue // drain
			}
			m, err := NewMapper(row.Cells)
			if err != nil {
				headErr = err
				continue
			}
			mapper = m
			ds.Schema = m.Schema()
			continue
		}
		ds.Records = append(ds.Records, mapper.Map(row.Line, row.Cells))
	}

	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "ingest: load cancelled")
		}
		return nil, eris.Wrapf(model.ErrMalformedInput, "ingest: read %s: %v", path, err)
	}
	if headErr != nil {
		return nil, eris.Wrapf(model.ErrMalformedInput, "ingest: %s: %v", path, headErr)
	}
	if mapper == nil || len(ds.Records) == 0 {
		return nil, eris.Wrapf(model.ErrEmptyDataset, "ingest: %s has no data rows", path)
	}

	zap.L().Info("loaded input",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.String("schema", string(ds.Schema)),
		zap.Int("rows", len(ds.Records)),
	)
	return ds, nil
}

func detectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}


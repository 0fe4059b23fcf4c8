package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	// Encoding names the input charset (e.g. "windows-1252"); UTF-8 when empty.
	Encoding string
	// LazyQuotes tolerates bare quotes inside unquoted fields, which the ITA
	// establishment-name column contains.
	LazyQuotes bool
}

// StreamCSV parses r on a goroutine and sends every record, header included,
// on the row channel. Ragged rows are passed through for the caller to judge.
// The error channel receives at most one error; both channels are closed
// when parsing stops.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		src, err := decodeCharset(r, opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(src)
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line, _ := reader.FieldPos(0)
			if err := send(ctx, rowCh, Row{Line: line, Cells: record}); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// decodeCharset wraps r with a decoder for the named charset.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

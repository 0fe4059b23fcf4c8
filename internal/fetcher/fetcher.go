// Package fetcher downloads ITA data files and streams rows out of CSV and
// XLSX sources.
package fetcher

import "context"

// Row is one record of a tabular source. Line is the 1-based physical line
// (CSV) or row number (XLSX) where the record starts; the header is line 1.
type Row struct {
	Line  int
	Cells []string
}

// Download describes a completed transfer.
type Download struct {
	URL         string
	Path        string
	Bytes       int64
	ContentType string
	Attempts    int
}

// Downloader retrieves a remote file to local disk.
type Downloader interface {
	Download(ctx context.Context, url, path string) (*Download, error)
}

// send delivers row unless ctx is done first.
func send(ctx context.Context, ch chan<- Row, row Row) error {
	select {
	case ch <- row:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

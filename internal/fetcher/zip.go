package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxExtractBytes bounds how much one archive entry may inflate to. The
// full ITA combined file is a few hundred megabytes.
const MaxExtractBytes int64 = 8 << 30

// ExtractSingle extracts the one entry of a ZIP archive whose name ends in
// ext (case-insensitive) into destDir and returns its path. ITA archives
// ship the data file beside a data dictionary, so zero or several matches
// are an error. Directory components of the entry name are dropped.
func ExtractSingle(zipPath, destDir, ext string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var match *zip.File
	var n int
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(ext)) {
			continue
		}
		match = f
		n++
	}
	if n != 1 {
		return "", eris.Errorf("zip: expected exactly 1 %s entry, got %d", ext, n)
	}

	return extractEntry(match, destDir)
}

func extractEntry(f *zip.File, destDir string) (string, error) {
	name := filepath.Base(filepath.FromSlash(f.Name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", eris.Errorf("zip: unusable entry name %q", f.Name)
	}
	if f.UncompressedSize64 > uint64(MaxExtractBytes) {
		return "", eris.Errorf("zip: entry %q declares %d bytes, limit is %d", f.Name, f.UncompressedSize64, MaxExtractBytes)
	}
	dest := filepath.Join(destDir, name)

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	written, err := io.Copy(out, io.LimitReader(rc, MaxExtractBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > MaxExtractBytes {
		err = eris.Errorf("zip: entry %q exceeds %d bytes", f.Name, MaxExtractBytes)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", eris.Wrap(err, "zip: write file")
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", eris.Wrap(err, "zip: rename file")
	}
	return dest, nil
}

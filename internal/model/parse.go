package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Cell coercion failures. The normalizer maps these onto structural reasons.
var (
	ErrMissingValue = eris.New("missing value")
	ErrBadNumber    = eris.New("bad number")
)

// TrimCell strips whitespace and surrounding double quotes from a raw cell.
func TrimCell(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// isNullCell reports whether a cell is one of the null spellings found in
// pandas and spreadsheet exports.
func isNullCell(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

// IsNull reports whether a raw cell holds no value.
func IsNull(s string) bool {
	return isNullCell(TrimCell(s))
}

// ParseCount parses an integer count. Float spellings of whole numbers
// ("3.0") are accepted since the raw ITA export round-trips through pandas.
func ParseCount(s string) (int64, error) {
	s = TrimCell(s)
	if isNullCell(s) {
		return 0, ErrMissingValue
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, eris.Wrapf(ErrBadNumber, "count %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, eris.Wrapf(ErrBadNumber, "count %q out of range", s)
	}
	return int64(f), nil
}

// ParseHours parses a finite hours value.
func ParseHours(s string) (float64, error) {
	s = TrimCell(s)
	if isNullCell(s) {
		return 0, ErrMissingValue
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Wrapf(ErrBadNumber, "hours %q", s)
	}
	return f, nil
}

// ParseYear parses a filing year, accepting "2019" and "2019.0".
func ParseYear(s string) (int, error) {
	v, err := ParseCount(s)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

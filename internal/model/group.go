package model

import (
	"strconv"
	"strings"
)

// All is the placeholder rendered for a dimension that is not grouped on.
const All = "ALL"

// GroupKey scopes an aggregate to (industry | ALL, year | ALL, size | ALL).
// Zero values mean ALL for that dimension.
type GroupKey struct {
	Industry string     `json:"industry_code,omitempty"`
	Year     int        `json:"year,omitempty"`
	Size     SizeBucket `json:"company_size_bucket,omitempty"`
}

// IndustryOrAll returns the industry dimension as rendered in tables.
func (k GroupKey) IndustryOrAll() string {
	if k.Industry == "" {
		return All
	}
	return k.Industry
}

// YearOrAll returns the year dimension as rendered in tables.
func (k GroupKey) YearOrAll() string {
	if k.Year == 0 {
		return All
	}
	return strconv.Itoa(k.Year)
}

// SizeOrAll returns the size dimension as rendered in tables.
func (k GroupKey) SizeOrAll() string {
	if k.Size == "" {
		return All
	}
	return string(k.Size)
}

// String renders the key as industry/year/size. Lexicographic order on this
// string is the ranking tie-break.
func (k GroupKey) String() string {
	return strings.Join([]string{k.IndustryOrAll(), k.YearOrAll(), k.SizeOrAll()}, "/")
}

// Package industry normalizes NAICS industry codes and maps them to the
// sector groupings used for benchmarking.
package industry

import (
	"strings"
	"unicode"
)

// sectorTitles contains every valid 2-digit NAICS sector and its title.
var sectorTitles = map[string]string{
	"11": "Agriculture, Forestry, Fishing and Hunting",
	"21": "Mining, Quarrying, and Oil and Gas Extraction",
	"22": "Utilities",
	"23": "Construction",
	"31": "Manufacturing",
	"32": "Manufacturing",
	"33": "Manufacturing",
	"42": "Wholesale Trade",
	"44": "Retail Trade",
	"45": "Retail Trade",
	"48": "Transportation and Warehousing",
	"49": "Transportation and Warehousing",
	"51": "Information",
	"52": "Finance and Insurance",
	"53": "Real Estate and Rental and Leasing",
	"54": "Professional, Scientific, and Technical Services",
	"55": "Management of Companies and Enterprises",
	"56": "Administrative and Support and Waste Management",
	"61": "Educational Services",
	"62": "Health Care and Social Assistance",
	"71": "Arts, Entertainment, and Recreation",
	"72": "Accommodation and Food Services",
	"81": "Other Services (except Public Administration)",
	"92": "Public Administration",
}

// combinedSectors folds the split 2-digit sectors into their official
// range codes so Manufacturing, Retail, and Transportation each form one group.
var combinedSectors = map[string]string{
	"31": "31-33", "32": "31-33", "33": "31-33",
	"44": "44-45", "45": "44-45",
	"48": "48-49", "49": "48-49",
}

// Normalize cleans a raw NAICS cell. Spreadsheet exports often carry the
// code as a float ("236220.0") or with trailing dashes ("5221--").
// Returns "" when no digits remain.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, '.'); i >= 0 && strings.Trim(code[i+1:], "0") == "" {
		code = code[:i]
	}
	code = strings.TrimRight(code, "- ")
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return code
}

// IsValidSector reports whether code is 2-6 digits and starts with a known
// NAICS sector.
func IsValidSector(code string) bool {
	code = Normalize(code)
	if len(code) < 2 || len(code) > 6 {
		return false
	}
	_, ok := sectorTitles[code[:2]]
	return ok
}

// Sector returns the benchmarking sector for a code: the 2-digit sector,
// with 31-33, 44-45, and 48-49 folded into their range codes.
func Sector(code string) string {
	code = Normalize(code)
	if len(code) < 2 {
		return ""
	}
	s := code[:2]
	if combined, ok := combinedSectors[s]; ok {
		return combined
	}
	return s
}

// Prefix returns the grouping key for a code at the given digit depth.
// Depth 2 yields the combined sector; deeper levels return the raw prefix.
func Prefix(code string, digits int) string {
	if digits <= 2 {
		return Sector(code)
	}
	code = Normalize(code)
	if len(code) <= digits {
		return code
	}
	return code[:digits]
}

// Title returns the sector title for a code or grouping key, or "" if unknown.
func Title(code string) string {
	if code == "" {
		return ""
	}
	if len(code) >= 2 {
		if t, ok := sectorTitles[code[:2]]; ok {
			return t
		}
	}
	return ""
}

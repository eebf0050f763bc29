package core

// convert.go normalizes raw spreadsheet cells.
//
// User-provided files carry the usual artifacts:
//   - Excel formula wrappers used to keep leading zeros (="00123")
//   - Surrounding quotes and stray whitespace, including non-breaking spaces
//   - Thousands separators and trailing ".0" on whole quantities

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace (including non-breaking spaces)
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimFunc(s, isSpace)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// normalizeHeader lower-cases a header cell and collapses separators so
// "Item_Code", " item code " and "ITEM-CODE" compare equal. A trailing
// required-field marker ("SKU *") is dropped.
func normalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.TrimSuffix(h, "*")
	h = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' {
			return ' '
		}
		return r
	}, h)
	return strings.Join(strings.Fields(h), " ")
}

// MaxQuantity is the largest qty_on_hand the stores hold (a 32-bit column).
const MaxQuantity = math.MaxInt32

var (
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	spaceGrouped = regexp.MustCompile(`^\d{1,3}([ \x{00a0}]\d{3})+(\.\d+)?$`)
	groupSeps    = strings.NewReplacer(",", "", " ", "", "\u00a0", "")
)

// ParseQuantity parses a cell as a non-negative whole quantity.
// Accepts thousands separators in groups of three ("1,200", "1 200") and
// integral decimals ("12.0"). Returns false for empty, non-numeric,
// fractional, negative or out-of-range input, and for commas that are not
// grouping ("1,5").
func ParseQuantity(s string) (int, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	if strings.ContainsAny(s, ", \u00a0") {
		if !commaGrouped.MatchString(s) && !spaceGrouped.MatchString(s) {
			return 0, false
		}
		s = groupSeps.Replace(s)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 || n > MaxQuantity {
			return 0, false
		}
		return int(n), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > MaxQuantity {
		return 0, false
	}
	return int(f), true
}

// isEmptyRow reports whether every cell of a record is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimFunc(v, isSpace) != "" {
			return false
		}
	}
	return true
}

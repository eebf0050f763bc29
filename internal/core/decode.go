package core

// decode.go turns uploaded delimited-text bytes into clean UTF-8.
//
// Spreadsheet exports arrive in whatever encoding the user's tool picked:
//
//   - UTF-8 with or without a BOM (Excel "CSV UTF-8")
//   - UTF-16 LE/BE with a BOM (Excel "Unicode Text")
//   - Windows-1252 (legacy Excel "CSV" on Windows)
//
// A BOM always wins. Without one, valid UTF-8 is taken as is and anything
// else is decoded as Windows-1252, which maps every byte to a rune.

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffLines is how many leading lines are inspected to pick a delimiter.
const sniffLines = 10

// decodeText returns data as UTF-8 with any byte order mark removed.
func decodeText(data []byte) ([]byte, error) {
	var fallback encoding.Encoding = unicode.UTF8
	if !utf8.Valid(data) && !hasUTF16BOM(data) {
		fallback = charmap.Windows1252
	}

	decoder := unicode.BOMOverride(fallback.NewDecoder())
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return out, nil
}

func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 &&
		((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}

// sniffDelimiter picks the field separator that occurs most consistently
// across the first lines of text. Commas win ties.
func sniffDelimiter(text []byte) rune {
	candidates := []rune{',', ';', '\t'}
	best, bestScore := ',', 0

	lines := bytes.SplitN(text, []byte("\n"), sniffLines+1)
	if len(lines) > sniffLines {
		lines = lines[:sniffLines]
	}

	for _, c := range candidates {
		score := 0
		for _, line := range lines {
			score += countOutsideQuotes(line, c)
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// countOutsideQuotes counts occurrences of sep that are not inside a
// double-quoted field.
func countOutsideQuotes(line []byte, sep rune) int {
	n := 0
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == sep && !inQuotes:
			n++
		}
	}
	return n
}

// detectFileType infers the file type from the filename extension, falling
// back to a content sniff. Legacy binary .xls workbooks are rejected.
func detectFileType(filename string, data []byte) (FileType, error) {
	if ext := extension(filename); ext != "" {
		if ext == "xls" {
			return "", formatErrorf("legacy .xls workbooks are not supported, save as .xlsx or .csv")
		}
		if ft := ParseFileType(ext); ft != "" {
			return ft, nil
		}
	}

	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FileTypeXLSX, nil
	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		return "", formatErrorf("legacy .xls workbooks are not supported, save as .xlsx or .csv")
	default:
		return FileTypeCSV, nil
	}
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

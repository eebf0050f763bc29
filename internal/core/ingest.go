package core

// ingest.go turns uploaded bytes into an ordered sequence of RawRows.
//
// Ingestion happens in three steps:
//  1. Decode: delimited text is transcoded to UTF-8 and split with a sniffed
//     delimiter; xlsx workbooks are read through excelize.
//  2. Header detection: the first row (within MaxHeaderSearchRows) whose
//     cells cover the SKU and Quantity roles becomes the header.
//  3. Row numbering: every physical row after the header, blank or not,
//     advances the row number, so retained rows keep their file position.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultMaxHeaderSearchRows is the number of leading rows scanned for a header.
const DefaultMaxHeaderSearchRows = 20

// Header synonyms per semantic role, compared after normalizeHeader.
var (
	SKUHeaders      = []string{"sku", "code"}
	NameHeaders     = []string{"name", "description"}
	QuantityHeaders = []string{"quantity", "count"}
)

// preferredSheets are picked over the first sheet when a workbook has them.
var preferredSheets = []string{"supplies", "inventory"}

// ColumnRoles holds the header position of each semantic role, -1 if absent.
type ColumnRoles struct {
	SKU      int
	Name     int
	Quantity int
}

func detectRoles(header []string) ColumnRoles {
	roles := ColumnRoles{SKU: -1, Name: -1, Quantity: -1}
	for i, h := range header {
		n := normalizeHeader(h)
		switch {
		case roles.SKU < 0 && containsString(SKUHeaders, n):
			roles.SKU = i
		case roles.Name < 0 && containsString(NameHeaders, n):
			roles.Name = i
		case roles.Quantity < 0 && containsString(QuantityHeaders, n):
			roles.Quantity = i
		}
	}
	return roles
}

func (c ColumnRoles) complete() bool { return c.SKU >= 0 && c.Quantity >= 0 }

// missing lists the required roles a header does not satisfy.
func (c ColumnRoles) missing() []string {
	var out []string
	if c.SKU < 0 {
		out = append(out, fmt.Sprintf("SKU (accepted headers: %s)", strings.Join(SKUHeaders, ", ")))
	}
	if c.Quantity < 0 {
		out = append(out, fmt.Sprintf("Quantity (accepted headers: %s)", strings.Join(QuantityHeaders, ", ")))
	}
	return out
}

// FileIngester reads uploaded files. The zero value is ready to use.
type FileIngester struct {
	// MaxHeaderSearchRows bounds the header search; <= 0 means the default.
	MaxHeaderSearchRows int
}

// dataRow is one non-blank record after the header.
type dataRow struct {
	rowNumber int
	values    []string
}

// Ingestion is the decoded content of one file. Rows may be iterated any
// number of times; each pass starts from the first data row.
type Ingestion struct {
	FileType  FileType
	Headers   []string
	Columns   ColumnRoles
	HeaderRow int // 1-indexed physical row of the header
	EmptyRows int // blank rows after the header

	rows []dataRow
}

// Len returns the number of retained (non-blank) rows.
func (in *Ingestion) Len() int { return len(in.rows) }

// Rows yields retained rows in file order.
func (in *Ingestion) Rows() iter.Seq[RawRow] {
	return func(yield func(RawRow) bool) {
		for _, r := range in.rows {
			if !yield(in.rawRow(r)) {
				return
			}
		}
	}
}

func (in *Ingestion) rawRow(r dataRow) RawRow {
	n := max(len(in.Headers), len(r.values))
	cells := make([]Cell, n)
	for i := range n {
		header := fmt.Sprintf("column %d", i+1)
		if i < len(in.Headers) {
			header = in.Headers[i]
		}
		value := ""
		if i < len(r.values) {
			value = r.values[i]
		}
		cells[i] = Cell{Header: header, Value: value}
	}
	return RawRow{RowNumber: r.rowNumber, Cells: cells}
}

// Ingest decodes data according to ft and locates the header row.
// Returns a *FormatError when the file cannot be read or lacks a SKU or
// Quantity column.
func (fi *FileIngester) Ingest(data []byte, ft FileType) (*Ingestion, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, formatErrorf("empty file")
	}

	var (
		records [][]string
		err     error
	)
	switch ft {
	case FileTypeCSV:
		records, err = readDelimited(data)
	case FileTypeXLSX:
		records, err = readWorkbook(data)
	default:
		return nil, formatErrorf("unsupported file type %q", ft)
	}
	if err != nil {
		return nil, err
	}

	return fi.build(ft, records)
}

func (fi *FileIngester) build(ft FileType, records [][]string) (*Ingestion, error) {
	limit := fi.MaxHeaderSearchRows
	if limit <= 0 {
		limit = DefaultMaxHeaderSearchRows
	}

	headerIdx := -1
	firstNonEmpty := -1
	var roles ColumnRoles
	for i := 0; i < len(records) && i < limit; i++ {
		if isEmptyRow(records[i]) {
			continue
		}
		if firstNonEmpty < 0 {
			firstNonEmpty = i
		}
		if r := detectRoles(records[i]); r.complete() {
			headerIdx, roles = i, r
			break
		}
	}

	if headerIdx < 0 {
		if firstNonEmpty < 0 {
			return nil, formatErrorf("file contains no rows")
		}
		missing := detectRoles(records[firstNonEmpty]).missing()
		return nil, formatErrorf("missing required column: %s", strings.Join(missing, "; "))
	}

	in := &Ingestion{
		FileType:  ft,
		Headers:   make([]string, len(records[headerIdx])),
		Columns:   roles,
		HeaderRow: headerIdx + 1,
	}
	for i, h := range records[headerIdx] {
		if h = CleanCell(h); h == "" {
			h = fmt.Sprintf("column %d", i+1)
		}
		in.Headers[i] = h
	}

	for i := headerIdx + 1; i < len(records); i++ {
		if isEmptyRow(records[i]) {
			in.EmptyRows++
			continue
		}
		in.rows = append(in.rows, dataRow{rowNumber: i - headerIdx, values: records[i]})
	}

	if len(in.rows) == 0 {
		return nil, formatErrorf("no data rows after header")
	}
	return in, nil
}

// readDelimited splits decoded text into physical rows. Blank lines, which
// encoding/csv skips, are re-inserted as empty rows so numbering matches
// what a spreadsheet application shows.
func readDelimited(data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, &FormatError{Reason: "unreadable text encoding", Err: err}
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	prevEnd := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Reason: "malformed delimited text", Err: err}
		}

		start, _ := r.FieldPos(0)
		for blank := start - prevEnd - 1; blank > 0; blank-- {
			rows = append(rows, nil)
		}

		last := len(rec) - 1
		lastLine, _ := r.FieldPos(last)
		prevEnd = lastLine + strings.Count(rec[last], "\n")

		rows = append(rows, rec)
	}
	return rows, nil
}

// readWorkbook returns the rows of the import sheet: a sheet named after
// preferredSheets when present, otherwise the first sheet.
func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Reason: "unreadable spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, formatErrorf("workbook has no sheets")
	}

	sheet := sheets[0]
pick:
	for _, want := range preferredSheets {
		for _, name := range sheets {
			if strings.EqualFold(strings.TrimSpace(name), want) {
				sheet = name
				break pick
			}
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("unreadable sheet %q", sheet), Err: err}
	}
	return rows, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

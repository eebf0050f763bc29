package core

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateHeaders is the canonical header row of a supply import.
var TemplateHeaders = []string{"SKU", "Name", "Quantity"}

var templateExample = []string{"BOX-1", "Shipping box, small", "50"}

const templateSheet = "Supplies"

// TemplateFilename returns the download name for a blank import file.
func TemplateFilename(ft FileType) string {
	return "supply-import-template." + string(ft)
}

// TemplateContentType returns the MIME type of a template download.
func TemplateContentType(ft FileType) string {
	if ft == FileTypeXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// WriteTemplate writes a blank import file with one example row.
// The output is accepted as-is by FileIngester.
func WriteTemplate(w io.Writer, ft FileType) error {
	switch ft {
	case FileTypeCSV:
		cw := csv.NewWriter(w)
		if err := cw.WriteAll([][]string{TemplateHeaders, templateExample}); err != nil {
			return fmt.Errorf("write csv template: %w", err)
		}
		return nil
	case FileTypeXLSX:
		return writeWorkbookTemplate(w)
	default:
		return fmt.Errorf("unsupported template format %q", ft)
	}
}

func writeWorkbookTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(TemplateHeaders))
	for i, h := range TemplateHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	example := []any{templateExample[0], templateExample[1], 50}
	if err := f.SetSheetRow(templateSheet, "A2", &example); err != nil {
		return fmt.Errorf("write example row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(templateSheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(templateSheet, "A", "B", 24); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx template: %w", err)
	}
	return nil
}

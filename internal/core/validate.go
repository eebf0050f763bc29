package core

import (
	"fmt"
	"strings"
)

// Row warning messages.
const (
	WarnMissingSKU      = "missing SKU"
	WarnInvalidQuantity = "invalid quantity"
)

// Validation is the output of RowValidator: typed candidate rows in file
// order with match fields still unset.
type Validation struct {
	Rows          []ParsedRow
	Warnings      []string // file-level
	DuplicateSKUs []string // first spelling of each repeated SKU, in order of first repeat
}

// RowValidator projects raw rows onto typed candidates. It never drops a
// row: problems become warnings and the row stays eligible for inclusion.
type RowValidator struct {
	Columns ColumnRoles
}

// Validate converts every row of the ingestion.
func (v RowValidator) Validate(in *Ingestion) Validation {
	var out Validation
	if n := in.Len(); n > 0 {
		out.Rows = make([]ParsedRow, 0, n)
	}

	type seen struct {
		sku      string
		firstRow int
		repeated bool
	}
	skus := make(map[string]*seen)

	for raw := range in.Rows() {
		row := v.project(raw)

		if row.SKU != "" {
			key := strings.ToLower(row.SKU)
			switch s, ok := skus[key]; {
			case !ok:
				skus[key] = &seen{sku: row.SKU, firstRow: row.RowIndex}
			case !s.repeated:
				s.repeated = true
				out.DuplicateSKUs = append(out.DuplicateSKUs, s.sku)
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("duplicate SKU %q (rows %d and %d)", s.sku, s.firstRow, row.RowIndex))
			}
		}

		out.Rows = append(out.Rows, row)
	}
	return out
}

func (v RowValidator) project(raw RawRow) ParsedRow {
	row := ParsedRow{
		RowIndex: raw.RowNumber,
		SKU:      CleanCell(raw.at(v.Columns.SKU)),
		Warnings: []string{},
	}
	if v.Columns.Name >= 0 {
		row.Name = CleanCell(raw.at(v.Columns.Name))
	}

	if row.SKU == "" {
		row.Warnings = append(row.Warnings, WarnMissingSKU)
	}

	if qty, ok := ParseQuantity(raw.at(v.Columns.Quantity)); ok {
		row.Quantity = qty
	} else {
		row.Warnings = append(row.Warnings, WarnInvalidQuantity)
	}
	return row
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validateCSV(t *testing.T, body string) Validation {
	t.Helper()
	in := ingestCSV(t, body)
	return RowValidator{Columns: in.Columns}.Validate(in)
}

func TestValidate_Projection(t *testing.T) {
	v := validateCSV(t, "SKU,Name,Quantity\n  BOX-1 , Box ,50\n")

	require.Len(t, v.Rows, 1)
	row := v.Rows[0]
	assert.Equal(t, 1, row.RowIndex)
	assert.Equal(t, "BOX-1", row.SKU)
	assert.Equal(t, "Box", row.Name)
	assert.Equal(t, 50, row.Quantity)
	assert.Empty(t, row.Warnings)
	assert.False(t, row.IsNew, "match fields are set later")
	assert.Nil(t, row.ExistingSupplyID)
}

func TestValidate_InvalidQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  string
	}{
		{name: "text", qty: "abc"},
		{name: "negative", qty: "-3"},
		{name: "fraction", qty: "2.5"},
		{name: "blank", qty: ""},
		{name: "above 32-bit range", qty: "4294967346"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validateCSV(t, "SKU,Quantity\nBOX-1,"+tt.qty+"\n")
			require.Len(t, v.Rows, 1)
			assert.Equal(t, 0, v.Rows[0].Quantity)
			assert.Equal(t, []string{WarnInvalidQuantity}, v.Rows[0].Warnings)
		})
	}
}

func TestValidate_DecimalCommaIsNotGrouping(t *testing.T) {
	v := validateCSV(t, "SKU;Quantity\nBOX-1;1,5\nBOX-2;1,200\n")

	require.Len(t, v.Rows, 2)
	assert.Equal(t, 0, v.Rows[0].Quantity)
	assert.Equal(t, []string{WarnInvalidQuantity}, v.Rows[0].Warnings)
	assert.Equal(t, 1200, v.Rows[1].Quantity)
	assert.Empty(t, v.Rows[1].Warnings)
}

func TestValidate_MissingSKUKeepsRow(t *testing.T) {
	v := validateCSV(t, "SKU,Name,Quantity\n,Loose tape,4\n")

	require.Len(t, v.Rows, 1)
	assert.Equal(t, "", v.Rows[0].SKU)
	assert.Equal(t, 4, v.Rows[0].Quantity)
	assert.Equal(t, []string{WarnMissingSKU}, v.Rows[0].Warnings)
}

func TestValidate_NoNameColumn(t *testing.T) {
	v := validateCSV(t, "SKU,Quantity\nBOX-1,3\n")
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "", v.Rows[0].Name)
}

func TestValidate_DuplicateSKUs(t *testing.T) {
	v := validateCSV(t, "SKU,Quantity\nTAPE-5,1\nBOX-1,2\ntape-5,3\nTAPE-5,4\n,5\n,6\n")

	assert.Equal(t, []string{"TAPE-5"}, v.DuplicateSKUs, "recorded once, empty SKUs never count")
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "rows 1 and 3")
	assert.Len(t, v.Rows, 6, "duplicates are retained")
}

func TestValidate_RowIndexStrictlyIncreasing(t *testing.T) {
	v := validateCSV(t, "SKU,Quantity\nA,1\n\nB,2\n,\nC,3\n")

	prev := 0
	for _, r := range v.Rows {
		assert.Greater(t, r.RowIndex, prev)
		prev = r.RowIndex
	}
}

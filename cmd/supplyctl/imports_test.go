package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/supplysync/internal/core"
)

func intPtr(v int) *int { return &v }

func TestPrintPlan(t *testing.T) {
	id := "s1"
	v := core.View{
		Total:    4,
		Included: 3,
		Rows: []core.ReviewRow{
			{ParsedRow: core.ParsedRow{RowIndex: 1, SKU: "BOX-1", Name: "Box", ExistingSupplyID: &id},
				Included: true, FinalQuantity: 50, ExistingQuantity: intPtr(40), Diff: intPtr(10)},
			{ParsedRow: core.ParsedRow{RowIndex: 2, SKU: "BOX-NEW", Name: "New box", IsNew: true},
				Included: true, FinalQuantity: 10},
			{ParsedRow: core.ParsedRow{RowIndex: 3, SKU: "TAPE", ExistingSupplyID: &id},
				Included: true, FinalQuantity: 5, ExistingQuantity: intPtr(5), Diff: intPtr(0)},
			{ParsedRow: core.ParsedRow{RowIndex: 5, Warnings: []string{"missing SKU"}, IsNew: true}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printPlan(&buf, v))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "ACTION")
	assert.Regexp(t, `BOX-1\s+Box\s+update\s+40\s+50\s+\+10`, lines[1])
	assert.Regexp(t, `BOX-NEW\s+New box\s+create\s+-\s+10\s+-`, lines[2])
	assert.Regexp(t, `TAPE\s+unchanged\s+5\s+5\s+\+0`, lines[3])
	assert.Contains(t, lines[4], "skip")
	assert.Contains(t, lines[4], "[missing SKU]")
	assert.Equal(t, "3 of 4 rows included", strings.TrimSpace(lines[6]))
}

func TestPrintResult(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	var buf bytes.Buffer
	printResult(&buf, core.ApplyResult{
		Stats:  core.ApplyStats{SuppliesCreated: 1, InventoryUpdated: 2, RowsSkipped: 1, ErrorsCount: 1},
		Errors: []core.ApplyRowError{{Row: 4, SKU: "X", Error: "supply not found"}},
	})

	out := buf.String()
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "supplies created: 1, inventory updated: 2, rows skipped: 1, errors: 1")
	assert.Contains(t, out, "row 4 (X): supply not found")

	buf.Reset()
	printResult(&buf, core.ApplyResult{Stats: core.ApplyStats{InventoryUpdated: 2}})
	assert.Contains(t, buf.String(), "SUCCESS")
	assert.NotContains(t, buf.String(), "row ")
}

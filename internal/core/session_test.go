package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// reviewFixture has two matched rows and two new rows, one with a warning.
func reviewFixture() *ParseResult {
	return &ParseResult{
		ImportID:   "imp-1",
		Filename:   "supplies.csv",
		FileType:   FileTypeCSV,
		LocationID: "L1",
		Rows: []ParsedRow{
			{RowIndex: 1, SKU: "BOX-1", Name: "Box", Quantity: 50, Warnings: []string{}, ExistingSupplyID: strPtr("s1"), ExistingSupplyName: strPtr("Box")},
			{RowIndex: 2, SKU: "TAPE", Name: "Tape", Quantity: 5, Warnings: []string{}, ExistingSupplyID: strPtr("s2"), ExistingSupplyName: strPtr("Tape")},
			{RowIndex: 3, SKU: "BOX-NEW", Name: "New box", Quantity: 10, Warnings: []string{}, IsNew: true},
			{RowIndex: 5, SKU: "", Name: "Mystery", Quantity: 0, Warnings: []string{WarnMissingSKU}, IsNew: true},
		},
		Warnings:          []string{},
		ExistingInventory: map[string]int{"s1": 40, "s2": 5},
	}
}

func TestSession_Defaults(t *testing.T) {
	s := NewSession(reviewFixture())

	assert.Equal(t, 4, s.IncludedCount())

	q, err := s.FinalQuantity(1)
	require.NoError(t, err)
	assert.Equal(t, 50, q)

	d, err := s.Diff(1)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 10, *d)

	d, err = s.Diff(3)
	require.NoError(t, err)
	assert.Nil(t, d, "new rows have no diff")
}

func TestSession_Overrides(t *testing.T) {
	s := NewSession(reviewFixture())

	require.NoError(t, s.SetQuantityOverride(1, 30))
	q, _ := s.FinalQuantity(1)
	assert.Equal(t, 30, q)
	d, _ := s.Diff(1)
	assert.Equal(t, -10, *d)

	require.NoError(t, s.ClearQuantityOverride(1))
	q, _ = s.FinalQuantity(1)
	assert.Equal(t, 50, q)

	assert.Error(t, s.SetQuantityOverride(1, -1))
	assert.ErrorIs(t, s.SetQuantityOverride(99, 1), ErrUnknownRow)
	assert.ErrorIs(t, s.SetIncluded(4, false), ErrUnknownRow, "row 4 was a blank line")
}

func TestSession_Inclusion(t *testing.T) {
	s := NewSession(reviewFixture())

	require.NoError(t, s.SetIncluded(2, false))
	inc, err := s.Included(2)
	require.NoError(t, err)
	assert.False(t, inc)
	assert.Equal(t, 3, s.IncludedCount())

	n := s.BulkSetIncluded(false, FilterNew)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.IncludedCount())

	n = s.BulkSetIncluded(true, FilterAll)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, s.IncludedCount())
}

func TestSession_Filters(t *testing.T) {
	s := NewSession(reviewFixture())
	require.NoError(t, s.SetIncluded(3, false))

	indexes := func(f RowFilter) []int {
		var out []int
		for _, r := range s.View(ViewOptions{Filter: f}).Rows {
			out = append(out, r.RowIndex)
		}
		return out
	}

	assert.Equal(t, []int{1, 2, 3, 5}, indexes(FilterAll))
	assert.Equal(t, []int{3, 5}, indexes(FilterNew))
	assert.Equal(t, []int{1, 2}, indexes(FilterMatched))
	assert.Equal(t, []int{5}, indexes(FilterWarnings))
	assert.Equal(t, []int{1, 2, 5}, indexes(FilterIncluded))
	assert.Equal(t, []int{3}, indexes(FilterExcluded))
	assert.Equal(t, []int{1}, indexes(FilterChanged), "TAPE matches its current level")
}

func TestSession_ViewSortAndPage(t *testing.T) {
	s := NewSession(reviewFixture())

	v := s.View(ViewOptions{SortBy: SortByQuantity, Desc: true})
	require.Len(t, v.Rows, 4)
	assert.Equal(t, 1, v.Rows[0].RowIndex)
	assert.Equal(t, 5, v.Rows[3].RowIndex)

	v = s.View(ViewOptions{SortBy: SortByDiff})
	assert.Equal(t, []int{2, 1, 3, 5}, []int{v.Rows[0].RowIndex, v.Rows[1].RowIndex, v.Rows[2].RowIndex, v.Rows[3].RowIndex},
		"rows without a diff sort last")

	v = s.View(ViewOptions{SortBy: SortBySKU, Page: 2, PageSize: 3})
	assert.Equal(t, 4, v.Total)
	assert.Equal(t, 2, v.Pages)
	assert.Equal(t, 2, v.Page)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "TAPE", v.Rows[0].SKU)

	v = s.View(ViewOptions{Page: 9, PageSize: 3})
	assert.Equal(t, 2, v.Page, "page is clamped")
}

func TestSession_ReviewRow(t *testing.T) {
	s := NewSession(reviewFixture())
	require.NoError(t, s.SetQuantityOverride(1, 45))

	rows := s.Rows()
	require.Len(t, rows, 4)

	r := rows[0]
	assert.True(t, r.Included)
	require.NotNil(t, r.QuantityOverride)
	assert.Equal(t, 45, *r.QuantityOverride)
	assert.Equal(t, 45, r.FinalQuantity)
	require.NotNil(t, r.ExistingQuantity)
	assert.Equal(t, 40, *r.ExistingQuantity)
	assert.Equal(t, 5, *r.Diff)

	assert.Nil(t, rows[2].ExistingQuantity)
}

func TestSession_ApplyRequest(t *testing.T) {
	s := NewSession(reviewFixture())
	require.NoError(t, s.SetIncluded(2, false))
	require.NoError(t, s.SetQuantityOverride(3, 12))

	req := s.ApplyRequest()
	assert.Equal(t, "imp-1", req.ImportID)
	assert.Equal(t, "L1", req.LocationID)
	assert.Equal(t, FileTypeCSV, req.FileType)
	require.Len(t, req.Rows, 4, "excluded rows are submitted too")

	assert.True(t, req.Rows[0].Included)
	assert.Equal(t, "s1", *req.Rows[0].ExistingSupplyID)
	assert.False(t, req.Rows[1].Included)
	assert.Equal(t, 12, req.Rows[2].Quantity)
	assert.True(t, req.Rows[2].IsNew)
	assert.Nil(t, req.Rows[2].ExistingSupplyID)

	// the request must not alias the session's result
	*req.Rows[0].ExistingSupplyID = "changed"
	assert.Equal(t, "s1", *s.Result().Rows[0].ExistingSupplyID)
}

func TestSession_Clone(t *testing.T) {
	s := NewSession(reviewFixture())
	require.NoError(t, s.SetQuantityOverride(1, 7))

	c := s.Clone()
	require.NoError(t, c.SetQuantityOverride(1, 8))
	require.NoError(t, c.SetIncluded(2, false))

	q, _ := s.FinalQuantity(1)
	assert.Equal(t, 7, q)
	assert.Equal(t, 4, s.IncludedCount())
	assert.Equal(t, 3, c.IncludedCount())
}

package core

// session.go holds the review-stage state of one import.
//
// A Session wraps an immutable ParseResult with the user's per-row edits
// (inclusion flag and quantity override). Everything else, counts, diffs and
// display pages, is derived on read. A Session performs no I/O and is not
// safe for concurrent use; Pipeline serializes access when shared.

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// RowFilter selects a subset of review rows.
type RowFilter string

const (
	FilterAll      RowFilter = ""
	FilterNew      RowFilter = "new"
	FilterMatched  RowFilter = "matched"
	FilterWarnings RowFilter = "warnings"
	FilterIncluded RowFilter = "included"
	FilterExcluded RowFilter = "excluded"
	FilterChanged  RowFilter = "changed" // matched rows whose diff is non-zero
)

// SortKey orders a View.
type SortKey string

const (
	SortByRow      SortKey = ""
	SortBySKU      SortKey = "sku"
	SortByName     SortKey = "name"
	SortByQuantity SortKey = "quantity"
	SortByDiff     SortKey = "diff"
)

// rowEdit is the zero-value-is-default edit state: included, no override.
type rowEdit struct {
	excluded bool
	override *int
}

// Session is the review state of one ParseResult.
type Session struct {
	result *ParseResult
	pos    map[int]int // rowIndex -> position in result.Rows
	edits  []rowEdit
}

// NewSession starts a review with every row included and no overrides.
func NewSession(result *ParseResult) *Session {
	s := &Session{
		result: result,
		pos:    make(map[int]int, len(result.Rows)),
		edits:  make([]rowEdit, len(result.Rows)),
	}
	for i, r := range result.Rows {
		s.pos[r.RowIndex] = i
	}
	return s
}

// Result returns the underlying parse result. Callers must not modify it.
func (s *Session) Result() *ParseResult { return s.result }

// Clone returns an independent copy of the session's edits over the same result.
func (s *Session) Clone() *Session {
	c := &Session{result: s.result, pos: s.pos, edits: make([]rowEdit, len(s.edits))}
	for i, e := range s.edits {
		c.edits[i].excluded = e.excluded
		if e.override != nil {
			v := *e.override
			c.edits[i].override = &v
		}
	}
	return c
}

func (s *Session) index(rowIndex int) (int, error) {
	i, ok := s.pos[rowIndex]
	if !ok {
		return 0, fmt.Errorf("row %d: %w", rowIndex, ErrUnknownRow)
	}
	return i, nil
}

// SetIncluded includes or excludes one row.
func (s *Session) SetIncluded(rowIndex int, included bool) error {
	i, err := s.index(rowIndex)
	if err != nil {
		return err
	}
	s.edits[i].excluded = !included
	return nil
}

// BulkSetIncluded applies included to every row matching filter and returns
// how many rows matched.
func (s *Session) BulkSetIncluded(included bool, filter RowFilter) int {
	n := 0
	for i := range s.result.Rows {
		if s.matches(i, filter) {
			s.edits[i].excluded = !included
			n++
		}
	}
	return n
}

// SetQuantityOverride replaces the parsed quantity of one row.
func (s *Session) SetQuantityOverride(rowIndex, qty int) error {
	if qty < 0 {
		return fmt.Errorf("row %d: quantity override must be non-negative, got %d", rowIndex, qty)
	}
	i, err := s.index(rowIndex)
	if err != nil {
		return err
	}
	s.edits[i].override = &qty
	return nil
}

// ClearQuantityOverride reverts a row to its parsed quantity.
func (s *Session) ClearQuantityOverride(rowIndex int) error {
	i, err := s.index(rowIndex)
	if err != nil {
		return err
	}
	s.edits[i].override = nil
	return nil
}

// Included reports whether the row will be committed.
func (s *Session) Included(rowIndex int) (bool, error) {
	i, err := s.index(rowIndex)
	if err != nil {
		return false, err
	}
	return !s.edits[i].excluded, nil
}

// IncludedCount returns the number of rows that will be committed.
func (s *Session) IncludedCount() int {
	n := 0
	for _, e := range s.edits {
		if !e.excluded {
			n++
		}
	}
	return n
}

// FinalQuantity is the override when set, otherwise the parsed quantity.
func (s *Session) FinalQuantity(rowIndex int) (int, error) {
	i, err := s.index(rowIndex)
	if err != nil {
		return 0, err
	}
	return s.finalQuantity(i), nil
}

func (s *Session) finalQuantity(i int) int {
	if o := s.edits[i].override; o != nil {
		return *o
	}
	return s.result.Rows[i].Quantity
}

// Diff is finalQuantity minus the current qty_on_hand of the matched
// supply. It is nil for rows without an existing supply.
func (s *Session) Diff(rowIndex int) (*int, error) {
	i, err := s.index(rowIndex)
	if err != nil {
		return nil, err
	}
	return s.diff(i), nil
}

func (s *Session) diff(i int) *int {
	id := s.result.Rows[i].ExistingSupplyID
	if id == nil {
		return nil
	}
	d := s.finalQuantity(i) - s.result.ExistingInventory[*id]
	return &d
}

func (s *Session) matches(i int, filter RowFilter) bool {
	r := s.result.Rows[i]
	switch filter {
	case FilterNew:
		return r.ExistingSupplyID == nil
	case FilterMatched:
		return r.ExistingSupplyID != nil
	case FilterWarnings:
		return r.HasWarnings()
	case FilterIncluded:
		return !s.edits[i].excluded
	case FilterExcluded:
		return s.edits[i].excluded
	case FilterChanged:
		d := s.diff(i)
		return d != nil && *d != 0
	default:
		return true
	}
}

// ReviewRow is a ParsedRow together with its edit state and derived values.
type ReviewRow struct {
	ParsedRow
	Included         bool `json:"included"`
	QuantityOverride *int `json:"quantityOverride"`
	FinalQuantity    int  `json:"finalQuantity"`
	ExistingQuantity *int `json:"existingQuantity"`
	Diff             *int `json:"diff"`
}

func (s *Session) reviewRow(i int) ReviewRow {
	r := s.result.Rows[i]
	rr := ReviewRow{
		ParsedRow:     r,
		Included:      !s.edits[i].excluded,
		FinalQuantity: s.finalQuantity(i),
		Diff:          s.diff(i),
	}
	if o := s.edits[i].override; o != nil {
		v := *o
		rr.QuantityOverride = &v
	}
	if r.ExistingSupplyID != nil {
		q := s.result.ExistingInventory[*r.ExistingSupplyID]
		rr.ExistingQuantity = &q
	}
	return rr
}

// Rows returns every row in file order.
func (s *Session) Rows() []ReviewRow {
	out := make([]ReviewRow, len(s.result.Rows))
	for i := range s.result.Rows {
		out[i] = s.reviewRow(i)
	}
	return out
}

// ViewOptions controls a display page. Page is 1-indexed; PageSize <= 0
// returns all matching rows on one page.
type ViewOptions struct {
	Filter   RowFilter
	SortBy   SortKey
	Desc     bool
	Page     int
	PageSize int
}

// View is one filtered, sorted page of review rows.
type View struct {
	Rows     []ReviewRow `json:"rows"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	Pages    int         `json:"pages"`
	Included int         `json:"included"`
}

// View derives a display page. It does not change the session.
func (s *Session) View(opts ViewOptions) View {
	var rows []ReviewRow
	for i := range s.result.Rows {
		if s.matches(i, opts.Filter) {
			rows = append(rows, s.reviewRow(i))
		}
	}

	slices.SortStableFunc(rows, func(a, b ReviewRow) int {
		c := compareRows(a, b, opts.SortBy)
		if c == 0 {
			c = cmp.Compare(a.RowIndex, b.RowIndex)
		}
		if opts.Desc {
			return -c
		}
		return c
	})

	v := View{Total: len(rows), Page: 1, Pages: 1, Included: s.IncludedCount()}
	if opts.PageSize <= 0 || len(rows) == 0 {
		v.Rows = rows
		return v
	}

	v.Pages = (len(rows) + opts.PageSize - 1) / opts.PageSize
	v.Page = min(max(opts.Page, 1), v.Pages)
	start := (v.Page - 1) * opts.PageSize
	end := min(start+opts.PageSize, len(rows))
	v.Rows = rows[start:end]
	return v
}

func compareRows(a, b ReviewRow, key SortKey) int {
	switch key {
	case SortBySKU:
		return cmp.Compare(strings.ToLower(a.SKU), strings.ToLower(b.SKU))
	case SortByName:
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortByQuantity:
		return cmp.Compare(a.FinalQuantity, b.FinalQuantity)
	case SortByDiff:
		// rows without a diff sort after all others
		switch {
		case a.Diff == nil && b.Diff == nil:
			return 0
		case a.Diff == nil:
			return 1
		case b.Diff == nil:
			return -1
		}
		return cmp.Compare(*a.Diff, *b.Diff)
	default:
		return cmp.Compare(a.RowIndex, b.RowIndex)
	}
}

// ApplyRequest snapshots the session for commit. Every row is submitted,
// excluded rows with Included=false, so the engine can account for them.
func (s *Session) ApplyRequest() ApplyRequest {
	req := ApplyRequest{
		ImportID:   s.result.ImportID,
		Filename:   s.result.Filename,
		FileType:   s.result.FileType,
		LocationID: s.result.LocationID,
		Rows:       make([]ApplyRequestRow, len(s.result.Rows)),
	}
	for i, r := range s.result.Rows {
		var id *string
		if r.ExistingSupplyID != nil {
			v := *r.ExistingSupplyID
			id = &v
		}
		req.Rows[i] = ApplyRequestRow{
			RowIndex:         r.RowIndex,
			SKU:              r.SKU,
			Name:             r.Name,
			Quantity:         s.finalQuantity(i),
			ExistingSupplyID: id,
			Included:         !s.edits[i].excluded,
			IsNew:            r.IsNew,
		}
	}
	return req
}

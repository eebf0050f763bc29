package core

import (
	"context"
	"strings"
)

// FileType identifies how uploaded bytes are decoded.
type FileType string

const (
	FileTypeCSV  FileType = "csv"  // Delimited text (comma, semicolon or tab)
	FileTypeXLSX FileType = "xlsx" // Office Open XML workbook
)

// ParseFileType normalizes a declared file type or MIME type.
// Returns "" for anything unrecognised.
func ParseFileType(s string) FileType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "tsv", "txt", "text/csv", "text/plain", "text/tab-separated-values":
		return FileTypeCSV
	case "xlsx", "xlsm", "spreadsheet",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FileTypeXLSX
	default:
		return ""
	}
}

// Cell is one header/value pair of a raw row.
type Cell struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// RawRow is a data row exactly as read from the file. Cells follow header
// order; RowNumber is 1-indexed relative to the header row.
type RawRow struct {
	RowNumber int    `json:"rowNumber"`
	Cells     []Cell `json:"cells"`
}

// Get returns the value under header, compared case-insensitively.
func (r RawRow) Get(header string) (string, bool) {
	for _, c := range r.Cells {
		if strings.EqualFold(c.Header, header) {
			return c.Value, true
		}
	}
	return "", false
}

// at returns the value at column position i, or "" when the row is short.
func (r RawRow) at(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i].Value
}

// ParsedRow is the typed projection of a RawRow after validation and
// catalog matching.
type ParsedRow struct {
	RowIndex           int      `json:"rowIndex"`
	SKU                string   `json:"sku"`
	Name               string   `json:"name"`
	Quantity           int      `json:"quantity"`
	Warnings           []string `json:"warnings"`
	ExistingSupplyID   *string  `json:"existingSupplyId"`
	ExistingSupplyName *string  `json:"existingSupplyName"`
	IsNew              bool     `json:"isNew"`
}

// HasWarnings reports whether validation attached any warning to the row.
func (r ParsedRow) HasWarnings() bool { return len(r.Warnings) > 0 }

// ParseStats summarises one parsed file.
type ParseStats struct {
	TotalRows       int      `json:"totalRows"`
	ValidRows       int      `json:"validRows"`
	EmptyRows       int      `json:"emptyRows"`
	MatchedSupplies int      `json:"matchedSupplies"`
	NewSupplies     int      `json:"newSupplies"`
	DuplicateSKUs   []string `json:"duplicateSkus"`
}

// ParseResult is the immutable outcome of ingesting and matching one file.
// It is the only input a ReconciliationSession needs.
type ParseResult struct {
	ImportID          string         `json:"importId"`
	Filename          string         `json:"filename"`
	FileType          FileType       `json:"fileType"`
	LocationID        string         `json:"locationId"`
	Rows              []ParsedRow    `json:"rows"`
	Warnings          []string       `json:"warnings"`
	ExistingInventory map[string]int `json:"existingInventory"`
	Stats             ParseStats     `json:"stats"`
}

// ApplyRequestRow is one finalized row submitted for commit.
type ApplyRequestRow struct {
	RowIndex         int     `json:"rowIndex"`
	SKU              string  `json:"sku"`
	Name             string  `json:"name"`
	Quantity         int     `json:"quantity"`
	ExistingSupplyID *string `json:"existingSupplyId"`
	Included         bool    `json:"included"`
	IsNew            bool    `json:"isNew"`
}

// createsSupply reports whether committing the row creates a catalog entry.
func (r ApplyRequestRow) createsSupply() bool {
	return r.IsNew || r.ExistingSupplyID == nil || *r.ExistingSupplyID == ""
}

// ApplyRequest is the complete, edited row set for one commit.
// ImportID is optional; when set, concurrent applies for the same id are rejected.
type ApplyRequest struct {
	ImportID   string            `json:"importId,omitempty"`
	Filename   string            `json:"filename"`
	FileType   FileType          `json:"fileType"`
	LocationID string            `json:"locationId"`
	Rows       []ApplyRequestRow `json:"rows"`
}

// ApplyStats counts what an apply did. Every submitted row lands in exactly
// one of RowsSkipped, InventoryUpdated or ErrorsCount.
type ApplyStats struct {
	SuppliesCreated  int `json:"suppliesCreated"`
	InventoryUpdated int `json:"inventoryUpdated"`
	RowsSkipped      int `json:"rowsSkipped"`
	ErrorsCount      int `json:"errorsCount"`
}

// ApplyRowError isolates the failure of a single row.
type ApplyRowError struct {
	Row   int    `json:"row"`
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// ApplyResult is produced once per apply invocation.
type ApplyResult struct {
	Stats  ApplyStats      `json:"stats"`
	Errors []ApplyRowError `json:"errors"`
}

// Supply is a catalog entry for a packing or consumable item.
type Supply struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	UnitCostCents int64  `json:"unitCostCents"`
}

// NewSupply holds the fields needed to create a catalog entry.
type NewSupply struct {
	SKU           string
	Name          string
	Category      string
	UnitCostCents int64
}

// InventoryRecord is the qty_on_hand of one supply at one location.
// Version is 0 when no record exists yet.
type InventoryRecord struct {
	SupplyID   string
	LocationID string
	QtyOnHand  int
	Version    int64
	Exists     bool
}

// Catalog is the supply catalog collaborator.
type Catalog interface {
	// FindBySKUs returns matching supplies keyed by lower-cased SKU.
	// SKUs without a match are absent from the map.
	FindBySKUs(ctx context.Context, skus []string) (map[string]Supply, error)

	// CreateSupply inserts a new catalog entry and returns it with its id.
	CreateSupply(ctx context.Context, s NewSupply) (Supply, error)
}

// Inventory is the per-location stock collaborator. Writes use optimistic
// concurrency: SetQtyOnHand succeeds only when the stored version still
// equals expectedVersion (0 meaning "no record yet") and returns
// ErrVersionConflict otherwise.
type Inventory interface {
	QtyOnHand(ctx context.Context, locationID string, supplyIDs []string) (map[string]int, error)
	InventoryRecord(ctx context.Context, supplyID, locationID string) (InventoryRecord, error)
	SetQtyOnHand(ctx context.Context, supplyID, locationID string, qty int, expectedVersion int64) (int64, error)
}

// Locations answers whether a location may receive inventory.
type Locations interface {
	IsActive(ctx context.Context, locationID string) (bool, error)
}

// Store bundles every collaborator the pipeline consumes.
type Store interface {
	Catalog
	Inventory
	Locations
}

// Transactor is implemented by stores that can run a row's mutations
// atomically. fn receives a Store bound to the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

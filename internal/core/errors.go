package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrApplyInProgress is returned when an apply for the same import is
	// already running. The second attempt is rejected, never queued.
	ErrApplyInProgress = errors.New("apply already in progress for this import")

	// ErrVersionConflict is returned by Inventory.SetQtyOnHand when another
	// writer changed the record since it was read.
	ErrVersionConflict = errors.New("inventory version conflict")

	// ErrSupplyNotFound is returned when a supply id does not exist.
	ErrSupplyNotFound = errors.New("supply not found")

	// ErrDuplicateSKU is returned by Catalog.CreateSupply when the SKU exists.
	ErrDuplicateSKU = errors.New("duplicate key: sku already exists in catalog")

	// ErrQuantityOutOfRange is returned for a quantity above MaxQuantity.
	ErrQuantityOutOfRange = fmt.Errorf("quantity exceeds maximum of %d", MaxQuantity)

	// ErrUnknownRow is returned by session edits for a row index not in the file.
	ErrUnknownRow = errors.New("unknown row index")
)

// ValidateQuantity reports whether qty can be stored as qty_on_hand.
func ValidateQuantity(qty int) error {
	switch {
	case qty < 0:
		return fmt.Errorf("quantity must be non-negative, got %d", qty)
	case qty > MaxQuantity:
		return fmt.Errorf("%w: got %d", ErrQuantityOutOfRange, qty)
	}
	return nil
}

// FormatError reports an unparseable file or a missing required column.
// It is fatal at parse time.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid file: %s: %v", e.Reason, e.Err)
	}
	return "invalid file: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// LocationInvalidError reports a location that is unknown or inactive.
// It is fatal at parse and at apply start, before any mutation.
type LocationInvalidError struct {
	LocationID string
	Err        error
}

func (e *LocationInvalidError) Error() string {
	if e.LocationID == "" {
		return "invalid location: location id is required"
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid location %q: %v", e.LocationID, e.Err)
	}
	return fmt.Sprintf("invalid location %q: not found or inactive", e.LocationID)
}

func (e *LocationInvalidError) Unwrap() error { return e.Err }

// RequestError reports a structurally malformed apply request.
type RequestError struct {
	Problems []string
}

func (e *RequestError) Error() string {
	return "invalid apply request: " + strings.Join(e.Problems, "; ")
}

// IsFatal reports whether err stops the pipeline and should surface as a
// transport-level failure rather than a row-level entry.
func IsFatal(err error) bool {
	var fe *FormatError
	var le *LocationInvalidError
	var re *RequestError
	return errors.As(err, &fe) || errors.As(err, &le) || errors.As(err, &re) ||
		errors.Is(err, ErrApplyInProgress) || errors.Is(err, ErrTooManyImports)
}

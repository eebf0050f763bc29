// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis. Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
// Errors raised by the catalog and inventory stores:
//
//	DB001 - A supply with this SKU already exists
//	        Action: Exclude the row or match it to the existing supply
//	        Patterns: "duplicate key"
//
//	DB002 - A duplicate value was found
//	        Action: Review your file for repeated SKUs
//	        Patterns: "violates unique"
//
//	DB003 - Referenced supply or location does not exist
//	        Action: Re-upload the file to refresh catalog matches
//	        Patterns: "foreign key"
//
//	DB004 - Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB005 - Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
//	DB006 - Database was busy with conflicting operations
//	        Action: Please try again
//	        Patterns: "deadlock"
//
//	DB007 - Database was busy with conflicting operations
//	        Action: Please try again
//	        Patterns: "database is locked"
//
// # Inventory Errors (INV001-INV099)
//
// Errors raised while writing stock levels:
//
//	INV001 - Inventory was changed by someone else during the import
//	         Action: Re-upload the file to see current quantities
//	         Patterns: "inventory version conflict"
//
//	INV002 - The matched supply no longer exists
//	         Action: Re-upload the file to refresh catalog matches
//	         Patterns: "supply not found"
//
//	INV003 - Quantity cannot be negative
//	         Action: Enter a quantity of zero or more
//	         Patterns: "quantity must be non-negative"
//
//	INV004 - A new supply needs a SKU
//	         Action: Enter a SKU or exclude the row
//	         Patterns: "without a sku"
//
//	INV005 - Quantity is too large
//	         Action: Enter a quantity of at most 2147483647
//	         Patterns: "quantity exceeds maximum"
//
// # File Errors (FILE001-FILE099)
//
// Errors raised while reading the uploaded file:
//
//	FILE001 - File exceeds the maximum upload size
//	          Action: Split the file into smaller files
//	          Patterns: "file too large"
//
//	FILE002 - File is not valid delimited text
//	          Action: Save the sheet as CSV UTF-8 and upload again
//	          Patterns: "malformed delimited text"
//
//	FILE003 - File contains invalid characters
//	          Action: Save the file as UTF-8
//	          Patterns: "unreadable text encoding"
//
//	FILE004 - No file was selected
//	          Action: Please select a file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - The uploaded file is empty
//	          Action: Please upload a file with data rows
//	          Patterns: "empty file"
//
//	FILE006 - The uploaded file is empty
//	          Action: Please upload a file with data rows
//	          Patterns: "file contains no rows"
//
//	FILE007 - The file has a header but no data rows
//	          Action: Add at least one supply row below the header
//	          Patterns: "no data rows after header"
//
//	FILE008 - Legacy Excel workbooks are not supported
//	          Action: Save the file as .xlsx or .csv
//	          Patterns: "legacy .xls"
//
//	FILE009 - The workbook could not be opened
//	          Action: Re-save the file in Excel and upload again
//	          Patterns: "unreadable spreadsheet"
//
//	FILE010 - This file type is not supported
//	          Action: Upload a .csv or .xlsx file
//	          Patterns: "unsupported file type"
//
// # Validation Errors (VAL001-VAL099)
//
// Errors raised by header detection and request checks:
//
//	VAL001 - Required column is missing from the file
//	         Action: Add SKU and Quantity columns, or download the template
//	         Patterns: "missing required column"
//
//	VAL002 - The submitted rows are inconsistent
//	         Action: Reload the preview and apply again
//	         Patterns: "invalid apply request"
//
// # Location Errors (LOC001-LOC099)
//
// Errors raised by the location check:
//
//	LOC001 - Location not found or inactive
//	         Action: Choose an active location and try again
//	         Patterns: "invalid location"
//
// # Import Errors (IMP001-IMP099)
//
// Errors raised by import scheduling:
//
//	IMP001 - This import is already being applied
//	         Action: Wait for the current apply to finish
//	         Patterns: "apply already in progress"
//
//	IMP002 - System is busy processing other imports
//	         Action: Please wait a moment and try again
//	         Patterns: "too many imports"
//
//	IMP003 - Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	IMP004 - Request timed out
//	         Action: Try a smaller file or check your connection
//	         Patterns: "context deadline exceeded"
//
//	IMP005 - Operation timed out
//	         Action: Try a smaller file or try again later
//	         Patterns: "timeout"
//
// # Rate Limiting (RATE001-RATE099)
//
// Errors related to request throttling:
//
//	RATE001 - Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Patterns are matched case-insensitively using strings.Contains. The first
// matching pattern wins, so more specific patterns come before general ones
// ("context deadline exceeded" before "timeout").

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// Database Errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A supply with this SKU already exists",
			Action:  "Exclude the row or match it to the existing supply",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your file for repeated SKUs",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced supply or location does not exist",
			Action:  "Re-upload the file to refresh catalog matches",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Inventory Errors
	{
		pattern: "inventory version conflict",
		msg: UserMessage{
			Message: "Inventory was changed by someone else during the import",
			Action:  "Re-upload the file to see current quantities",
			Code:    "INV001",
		},
	},
	{
		pattern: "supply not found",
		msg: UserMessage{
			Message: "The matched supply no longer exists",
			Action:  "Re-upload the file to refresh catalog matches",
			Code:    "INV002",
		},
	},
	{
		pattern: "quantity must be non-negative",
		msg: UserMessage{
			Message: "Quantity cannot be negative",
			Action:  "Enter a quantity of zero or more",
			Code:    "INV003",
		},
	},
	{
		pattern: "without a sku",
		msg: UserMessage{
			Message: "A new supply needs a SKU",
			Action:  "Enter a SKU or exclude the row",
			Code:    "INV004",
		},
	},
	{
		pattern: "quantity exceeds maximum",
		msg: UserMessage{
			Message: "Quantity is too large",
			Action:  "Enter a quantity of at most 2147483647",
			Code:    "INV005",
		},
	},

	// File Errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "malformed delimited text",
		msg: UserMessage{
			Message: "File is not valid delimited text",
			Action:  "Save the sheet as CSV UTF-8 and upload again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unreadable text encoding",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "file contains no rows",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no data rows after header",
		msg: UserMessage{
			Message: "The file has a header but no data rows",
			Action:  "Add at least one supply row below the header",
			Code:    "FILE007",
		},
	},
	{
		pattern: "legacy .xls",
		msg: UserMessage{
			Message: "Legacy Excel workbooks are not supported",
			Action:  "Save the file as .xlsx or .csv",
			Code:    "FILE008",
		},
	},
	{
		pattern: "unreadable spreadsheet",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Re-save the file in Excel and upload again",
			Code:    "FILE009",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE010",
		},
	},

	// Validation Errors
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "Add SKU and Quantity columns, or download the template",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid apply request",
		msg: UserMessage{
			Message: "The submitted rows are inconsistent",
			Action:  "Reload the preview and apply again",
			Code:    "VAL002",
		},
	},

	// Location Errors
	{
		pattern: "invalid location",
		msg: UserMessage{
			Message: "Location not found or inactive",
			Action:  "Choose an active location and try again",
			Code:    "LOC001",
		},
	},

	// Import Errors
	{
		pattern: "apply already in progress",
		msg: UserMessage{
			Message: "This import is already being applied",
			Action:  "Wait for the current apply to finish",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "IMP005",
		},
	},

	// Rate Limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or the ERR000 fallback.
//
//	msg := MapError(&LocationInvalidError{LocationID: "L9"})
//	// msg.Code == "LOC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logs, with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

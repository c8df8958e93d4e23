// Error Codes Reference
//
// This file defines operator-friendly error messages with codes for support
// reference. When an import fails, the code printed next to the message can
// be quoted to support staff for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Import Errors (IMP001-IMP099)
//
// Errors ending a run as a whole:
//
//	IMP001 - Import rolled back: at least one unit failed outright
//	         Action: Review the failed units in the summary, fix the sheet, re-run
//	         Patterns: "import rolled back"
//
//	IMP002 - Begin failed: the master transaction could not be opened
//	         Action: Check database connectivity and credentials
//	         Patterns: "begin transaction"
//
//	IMP003 - Commit failed: all units succeeded but the commit was refused
//	         Action: Nothing was saved; re-run the import
//	         Patterns: "commit transaction"
//
//	IMP004 - Busy: another import is in progress
//	         Action: Wait for the running import to finish
//	         Patterns: "import already running"
//
//	IMP005 - Shutting down: the server stopped accepting imports
//	         Action: Retry once the service is back
//	         Patterns: "import service shutting down"
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source not found          Patterns: "source not found"
//	SRC002 - Unsupported format        Patterns: "unsupported format"
//	SRC003 - Empty sheet               Patterns: "empty sheet"
//	SRC004 - File too large            Patterns: "file too large"
//	SRC005 - Invalid CSV               Patterns: "invalid csv"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key              Patterns: "duplicate key", "duplicate entry"
//	DB002 - Unique constraint          Patterns: "unique constraint"
//	DB003 - Foreign key                Patterns: "foreign key"
//	DB004 - Connection refused         Patterns: "connection refused"
//	DB005 - Connection reset           Patterns: "connection reset"
//	DB006 - Timeout                    Patterns: "timeout"
//	DB007 - Deadlock                   Patterns: "deadlock"
//	DB008 - Missing table              Patterns: "no such table", "does not exist", "doesn't exist"
//
// # Geocoding Errors (GEO001-GEO099)
//
//	GEO001 - Cache not writable        Patterns: "geocode cache"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Cancelled                 Patterns: "context canceled"
//	REQ002 - Timed out                 Patterns: "context deadline exceeded"
//	REQ003 - Unknown run               Patterns: "import run not found"
//
// # Troubleshooting
//
//  1. Find the code in the run summary or the HTTP error body
//  2. Follow the action listed for it above
//  3. For DB008 run "traumaimport migrate up" against the target database
//  4. If ERR000, check application logs for the original technical error

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters: run-level errors embed
// the database error that caused them and must come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Import Errors (IMP001-IMP005)
	// =========================================================================
	{
		pattern: "import rolled back",
		msg: UserMessage{
			Message: "Import failed and all changes were rolled back",
			Action:  "Review the failed units in the summary, fix the sheet and re-run",
			Code:    "IMP001",
		},
	},
	{
		pattern: "begin transaction",
		msg: UserMessage{
			Message: "Could not start the import transaction",
			Action:  "Check database connectivity and credentials",
			Code:    "IMP002",
		},
	},
	{
		pattern: "commit transaction",
		msg: UserMessage{
			Message: "Import could not be committed; nothing was saved",
			Action:  "Re-run the import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "import already running",
		msg: UserMessage{
			Message: "Another import is in progress",
			Action:  "Wait for the running import to finish and try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "import service shutting down",
		msg: UserMessage{
			Message: "The import service is shutting down",
			Action:  "Retry once the service is back",
			Code:    "IMP005",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC005)
	// =========================================================================
	{
		pattern: "source not found",
		msg: UserMessage{
			Message: "The input file does not exist",
			Action:  "Check the path or object key",
			Code:    "SRC001",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "The input file format is not supported",
			Action:  "Export the sheet as .xlsx or UTF-8 .csv",
			Code:    "SRC002",
		},
	},
	{
		pattern: "empty sheet",
		msg: UserMessage{
			Message: "The sheet has no header row",
			Action:  "Make sure the first row holds the column titles",
			Code:    "SRC003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (100MB)",
			Action:  "Split the sheet into smaller files",
			Code:    "SRC004",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent quoting",
			Code:    "SRC005",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Check the sheet for repeated patient numbers",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate entry",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Check the sheet for repeated patient numbers",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in the sheet",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced patient does not exist",
			Action:  "Ensure every row has a valid patient number",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
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
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later or raise IMPORT_TIMEOUT",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Schema Errors (DB008)
	// =========================================================================
	{
		pattern: "no such table",
		msg: UserMessage{
			Message: "A destination table is missing",
			Action:  "Run \"traumaimport migrate up\" first",
			Code:    "DB008",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "A destination table is missing",
			Action:  "Run \"traumaimport migrate up\" first",
			Code:    "DB008",
		},
	},
	{
		pattern: "doesn't exist",
		msg: UserMessage{
			Message: "A destination table is missing",
			Action:  "Run \"traumaimport migrate up\" first",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// Geocoding Errors (GEO001)
	// =========================================================================
	{
		pattern: "geocode cache",
		msg: UserMessage{
			Message: "The geocode cache file could not be written",
			Action:  "Check permissions of GEOCODE_CACHE_FILE",
			Code:    "GEO001",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ003)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again later or raise IMPORT_TIMEOUT",
			Code:    "REQ002",
		},
	},
	{
		pattern: "import run not found",
		msg: UserMessage{
			Message: "No report exists for this run",
			Action:  "Reports are kept for one day; check the run ID",
			Code:    "REQ003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := errors.New("ERROR: relation \"gcs_score\" does not exist")
//	msg := MapError(err)
//	// msg.Code == "DB008"
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

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

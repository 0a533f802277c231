package core

// error_messages.go maps technical errors to user-facing messages with
// support codes.
//
// # Error Codes Reference
//
// # Session and Request Errors (SES, REQ)
//
//	SES001 - Import session not found
//	         Action: The import may have expired. Create a new import
//	         Patterns: "import session not found"
//
//	REQ001 - Start parameter out of range
//	         Action: Request a batch between 0 and numBatches
//	         Patterns: "start parameter out of range"
//
//	REQ002 - Malformed request form (web layer fallback, no pattern)
//
// # File Errors (FILE, CSV)
//
//	FILE001 - Source file not found
//	          Action: Upload the file again
//	          Patterns: "source file not found"
//
//	FILE002 - File too large
//	          Action: Split the file into smaller chunks
//	          Patterns: "file too large"
//
//	FILE003 - No file
//	          Action: Please select a CSV file to upload
//	          Patterns: "no file provided"
//
//	CSV001 - Malformed CSV
//	         Action: Check the enclosure character and unbalanced quotes
//	         Patterns: "malformed csv"
//
// # Configuration Errors (CFG)
//
//	CFG001 - Invalid import configuration
//	         Action: Review delimiter, mapping, batch size and max rows
//	         Patterns: "invalid import configuration"
//
//	CFG002 - Unknown schema
//	         Action: Choose one of the registered schemas
//	         Patterns: "unknown schema"
//
// # Row Errors (ROW)
//
// Row errors fail a single row; the batch continues.
//
//	ROW001 - Record name missing
//	         Action: Map a title or name column and fill it in
//	         Patterns: "record name missing"
//
//	ROW002 - Existing record has a different schema
//	         Action: Import into the schema of the existing record or rename it
//	         Patterns: "existing record has a different schema"
//
//	ROW003 - Required reference not resolved
//	         Action: Check the referenced ids, names or titles
//	         Patterns: "required reference not resolved"
//
//	ROW004 - Invalid value
//	         Action: Fix the cell format (dates, numbers, booleans, options)
//	         Patterns: "invalid value"
//
// # Database Errors (DB001-DB007)
//
//	DB001 - Duplicate key            Patterns: "duplicate key"
//	DB002 - Unique constraint        Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key              Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused       Patterns: "connection refused"
//	DB005 - Connection reset         Patterns: "connection reset"
//	DB006 - Timeout                  Patterns: "timeout"
//	DB007 - Deadlock                 Patterns: "deadlock"
//
// # Upload and Batch Errors (UPL)
//
//	UPL001 - System busy             Patterns: "too many concurrent batches"
//	UPL002 - Request cancelled       Patterns: "context canceled"
//	UPL003 - Request timeout         Patterns: "context deadline exceeded"
//	UPL004 - Attachment failed       Patterns: "attach "
//
// # Rate Limiting (RATE)
//
//	RATE001 - Too many requests      Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check application logs for the
// original technical error.
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Session, request and file
	{
		pattern: "import session not found",
		msg:     UserMessage{Message: "Import session not found", Action: "The import may have expired. Create a new import", Code: "SES001"},
	},
	{
		pattern: "start parameter out of range",
		msg:     UserMessage{Message: "Start parameter out of range", Action: "Request a batch between 0 and numBatches", Code: "REQ001"},
	},
	{
		pattern: "source file not found",
		msg:     UserMessage{Message: "Source file not found", Action: "Upload the file again", Code: "FILE001"},
	},
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE002"},
	},
	{
		pattern: "no file provided",
		msg:     UserMessage{Message: "No file was selected", Action: "Please select a CSV file to upload", Code: "FILE003"},
	},
	{
		pattern: "malformed csv",
		msg:     UserMessage{Message: "Malformed CSV", Action: "Check the enclosure character and unbalanced quotes", Code: "CSV001"},
	},

	// Configuration
	{
		pattern: "invalid import configuration",
		msg:     UserMessage{Message: "Invalid import configuration", Action: "Review delimiter, mapping, batch size and max rows", Code: "CFG001"},
	},
	{
		pattern: "unknown schema",
		msg:     UserMessage{Message: "Unknown schema", Action: "Choose one of the registered schemas", Code: "CFG002"},
	},

	// Rows
	{
		pattern: "record name missing",
		msg:     UserMessage{Message: "Record name missing", Action: "Map a title or name column and fill it in", Code: "ROW001"},
	},
	{
		pattern: "existing record has a different schema",
		msg:     UserMessage{Message: "Existing record has a different schema", Action: "Import into the schema of the existing record or rename it", Code: "ROW002"},
	},
	{
		pattern: "required reference not resolved",
		msg:     UserMessage{Message: "Required reference not resolved", Action: "Check the referenced ids, names or titles", Code: "ROW003"},
	},
	{
		pattern: "invalid value",
		msg:     UserMessage{Message: "Invalid value", Action: "Fix the cell format (dates, numbers, booleans, options)", Code: "ROW004"},
	},

	// Database
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this name already exists", Action: "Use the skip or create_unique policy", Code: "DB001"},
	},
	{
		pattern: "unique constraint",
		msg:     UserMessage{Message: "This value must be unique but already exists", Action: "Check for duplicate entries in your CSV", Code: "DB002"},
	},
	{
		pattern: "violates unique",
		msg:     UserMessage{Message: "This value must be unique but already exists", Action: "Check for duplicate entries in your CSV", Code: "DB002"},
	},
	{
		pattern: "foreign key constraint",
		msg:     UserMessage{Message: "Referenced record does not exist", Action: "Ensure parent records exist first", Code: "DB003"},
	},
	{
		pattern: "violates foreign key",
		msg:     UserMessage{Message: "Referenced record does not exist", Action: "Ensure parent records exist first", Code: "DB003"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB004"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB005"},
	},

	// Batches (before the generic timeout pattern)
	{
		pattern: "too many concurrent batches",
		msg:     UserMessage{Message: "System busy", Action: "Please wait a moment and try again", Code: "UPL001"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL002"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Request timed out", Action: "Use a smaller batch size", Code: "UPL003"},
	},
	{
		pattern: "attach ",
		msg:     UserMessage{Message: "Attachment could not be stored", Action: "Check that the file path or URL is reachable", Code: "UPL004"},
	},

	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Operation timed out", Action: "Use a smaller batch size or try again later", Code: "DB006"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"},
	},

	{
		pattern: "rate limit",
		msg:     UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
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
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// ProtocolMessage returns the text placed in the "error" key of a batch
// response. Request-level errors have fixed wording clients may match on.
func ProtocolMessage(err error) string {
	var perr *ParseError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionNotFound):
		return "Import session not found"
	case errors.Is(err, ErrSourceNotFound):
		return "Source file not found"
	case errors.Is(err, ErrStartOutOfRange):
		return "Start parameter out of range"
	case errors.As(err, &perr):
		return fmt.Sprintf("Malformed CSV at record %d: %v", perr.Line, perr.Err)
	default:
		return MapError(err).Message
	}
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

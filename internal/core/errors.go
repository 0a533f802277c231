package core

import (
	"errors"
	"fmt"
)

// Request-level errors abort a batch request before any row is processed.
var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrSourceNotFound  = errors.New("source file not found")
	ErrStartOutOfRange = errors.New("start parameter out of range")
	ErrInvalidConfig   = errors.New("invalid import configuration")
	ErrUnknownSchema   = errors.New("unknown schema")
)

// Row-level errors fail a single row; the batch continues.
var (
	ErrNameMissing       = errors.New("record name missing")
	ErrCrossSchemaModify = errors.New("existing record has a different schema")
	ErrReferenceRequired = errors.New("required reference not resolved")
	ErrInvalidValue      = errors.New("invalid value")
)

// ParseError reports a structurally malformed CSV record.
type ParseError struct {
	Line int   // 1-based record number where the broken record starts
	Err  error // underlying cause
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed csv at record %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// errUnterminatedEnclosure is wrapped by ParseError when EOF is reached
// inside an enclosed field.
var errUnterminatedEnclosure = errors.New("unterminated enclosure")

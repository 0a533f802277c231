package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Record is one persisted entity created or updated by an import.
type Record struct {
	ID         int64          `json:"id"`
	ParentID   int64          `json:"parentId"`
	SchemaID   string         `json:"schemaId"`
	Name       string         `json:"name"`
	Title      string         `json:"title"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
}

// RecordQuery selects at most one record. Zero values are ignored, except
// that at least one of ID, Name or Title must be set.
type RecordQuery struct {
	ID       int64
	ParentID int64
	SchemaID string
	Name     string
	Title    string
}

// RecordStore is the persistence collaborator used by the importer.
//
// FindOne returns (nil, nil) when nothing matches. Create assigns rec.ID.
// UpdateFields merges the given fields into an existing record without
// touching name, title or the other fields.
type RecordStore interface {
	FindOne(ctx context.Context, q RecordQuery) (*Record, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	ListByParent(ctx context.Context, parentID int64, schemaID string) ([]Record, error)
}

// ConfigStore persists ImportConfig values for the lifetime of an import.
// Load returns ErrSessionNotFound for unknown or expired ids.
type ConfigStore interface {
	Save(ctx context.Context, cfg *ImportConfig) error
	Load(ctx context.Context, id string) (*ImportConfig, error)
	Delete(ctx context.Context, id string) error
}

// AttachmentSink copies one attachment locator (path or URL) into storage
// owned by the record and returns the stored key.
type AttachmentSink interface {
	Attach(ctx context.Context, recordID int64, field, locator string) (string, error)
}

// Outcome is the terminal state of one imported row.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSkipped
	OutcomeCreated
	OutcomeCreatedUnique
	OutcomeModified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeCreatedUnique:
		return "created_unique"
	case OutcomeModified:
		return "modified"
	default:
		return "failed"
	}
}

// RowResult is the outcome of importing a single row.
// Err is set only when Outcome is OutcomeFailed.
type RowResult struct {
	Line     int
	Name     string
	RecordID int64
	Outcome  Outcome
	Err      error
}

// Counters aggregate row outcomes for one batch.
//
// Imported counts every row that did not fail, skipped rows included.
// Created includes rows created under a uniquified name.
type Counters struct {
	Imported int `json:"numImported"`
	Skipped  int `json:"numSkipped"`
	Created  int `json:"numCreated"`
	Modified int `json:"numModified"`
	Failed   int `json:"numFailed"`
}

// Add folds a row result into the counters.
func (c *Counters) Add(r RowResult) {
	switch r.Outcome {
	case OutcomeFailed:
		c.Failed++
		return
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeCreated, OutcomeCreatedUnique:
		c.Created++
	case OutcomeModified:
		c.Modified++
	}
	c.Imported++
}

// RowError describes a failed row for the client.
type RowError struct {
	Line    int    `json:"line"`
	Name    string `json:"name,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResult contains the result of one batch run.
type BatchResult struct {
	BatchIndex int
	Window     BatchWindow
	Counters   Counters
	Errors     []RowError
	Truncated  bool // maxRows reached; no further batches
	Duration   time.Duration
}

// MaxReportedRowErrors caps the row errors returned per batch.
var MaxReportedRowErrors = 100

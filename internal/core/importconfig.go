package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DuplicatePolicy decides what happens when a record with the derived name
// already exists under the target parent.
type DuplicatePolicy string

const (
	PolicySkip         DuplicatePolicy = "skip"
	PolicyCreateUnique DuplicatePolicy = "create_unique"
	PolicyModify       DuplicatePolicy = "modify"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	switch p {
	case PolicySkip, PolicyCreateUnique, PolicyModify:
		return true
	}
	return false
}

// NameField is the mapping target that sets the record name directly.
const NameField = "name"

// ImportConfig is captured once when an import is created and is read-only
// for the lifetime of the import. Every batch request derives its work from
// it alone.
type ImportConfig struct {
	ID                      string          `json:"id"`
	SchemaID                string          `json:"schemaId"`
	ParentID                int64           `json:"parentId"`
	FilePath                string          `json:"filePath"`
	FileName                string          `json:"fileName"`
	Delimiter               rune            `json:"delimiter"`
	Enclosure               rune            `json:"enclosure"`
	Policy                  DuplicatePolicy `json:"policy"`
	CreateMissingReferences bool            `json:"createMissingReferences"`

	// ColumnFields maps column index to target field name; "" ignores the column.
	ColumnFields []string `json:"columnFields"`

	MaxRows   int `json:"maxRows"`
	BatchSize int `json:"batchSize"`

	// Derived at creation time.
	Header       []string `json:"header"`
	NumRows      int      `json:"numRows"`
	NumDataRows  int      `json:"numDataRows"`
	NumBatches   int      `json:"numBatches"`
	BatchOffsets []int64  `json:"batchOffsets,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ApplyAnalysis copies the derived counts from a source analysis.
func (c *ImportConfig) ApplyAnalysis(a *Analysis) {
	c.Header = a.Header
	c.NumRows = a.NumRows()
	c.NumDataRows = c.NumRows - a.NumEmptyRows
	c.NumBatches = batchCount(c.NumRows, c.BatchSize)
	c.BatchOffsets = a.BatchOffsets
}

// Validate checks the configuration invariants. All failures are reported
// together, wrapped in ErrInvalidConfig.
func (c *ImportConfig) Validate() error {
	var errs []string

	if c.SchemaID == "" {
		errs = append(errs, "schema is required")
	}
	if c.ParentID <= 0 {
		errs = append(errs, "parent must be a positive id")
	}
	if c.FilePath == "" {
		errs = append(errs, "source file is required")
	}
	errs = append(errs, c.separatorProblems()...)
	if !c.Policy.Valid() {
		errs = append(errs, fmt.Sprintf("unknown duplicate policy %q", c.Policy))
	}
	if c.MaxRows < 0 {
		errs = append(errs, "max rows must be non-negative")
	}
	if c.BatchSize < 0 {
		errs = append(errs, "batch size must be non-negative")
	}
	// A cutoff inside a later batch would depend on which batches ran.
	if c.BatchSize > 0 && c.MaxRows > 0 && c.BatchSize < c.MaxRows {
		errs = append(errs, fmt.Sprintf("batch size (%d) must be 0 or >= max rows (%d)", c.BatchSize, c.MaxRows))
	}

	mapped := 0
	for _, f := range c.ColumnFields {
		if f != "" {
			mapped++
		}
	}
	if mapped == 0 {
		errs = append(errs, "at least one column must be mapped to a field")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func (c *ImportConfig) separatorProblems() []string {
	var errs []string
	if !validSeparator(c.Delimiter) {
		errs = append(errs, fmt.Sprintf("delimiter %q is not usable", c.Delimiter))
	}
	if !validSeparator(c.Enclosure) {
		errs = append(errs, fmt.Sprintf("enclosure %q is not usable", c.Enclosure))
	}
	if c.Delimiter == c.Enclosure {
		errs = append(errs, "delimiter and enclosure must differ")
	}
	return errs
}

// validateSeparators checks only the delimiter and enclosure, which must be
// usable before the source can be analyzed.
func (c *ImportConfig) validateSeparators() error {
	if errs := c.separatorProblems(); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func validSeparator(r rune) bool {
	return r != 0 && r != utf8.RuneError && r != '\n' && r != '\r'
}

// BatchWindow is the inclusive record-number range a batch covers.
// Record 1 is the header; data records start at 2.
type BatchWindow struct {
	RowStart int `json:"rowStart"`
	RowStop  int `json:"rowStop"`
}

// Empty reports whether the window covers no records.
func (w BatchWindow) Empty() bool {
	return w.RowStart > w.RowStop
}

// Contains reports whether record number line lies in the window.
func (w BatchWindow) Contains(line int) bool {
	return line >= w.RowStart && line <= w.RowStop
}

// Window computes the row window of batch batchIndex. It never fails; an
// index at or past NumBatches yields an empty window.
func (c *ImportConfig) Window(batchIndex int) BatchWindow {
	if c.BatchSize <= 0 {
		if batchIndex > 0 {
			return BatchWindow{RowStart: c.NumRows + 2, RowStop: c.NumRows + 1}
		}
		return BatchWindow{RowStart: 2, RowStop: c.NumRows + 1}
	}
	start := batchIndex*c.BatchSize + 2
	stop := min(start+c.BatchSize-1, c.NumRows+1)
	return BatchWindow{RowStart: start, RowStop: stop}
}

// CheckBatchIndex validates a requested batch index against [0, NumBatches].
func (c *ImportConfig) CheckBatchIndex(batchIndex int) error {
	if batchIndex < 0 || batchIndex > c.NumBatches {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrStartOutOfRange, batchIndex, c.NumBatches)
	}
	return nil
}

// batchOffset returns the seek position for a batch, or 0 when the offset
// index does not cover it.
func (c *ImportConfig) batchOffset(batchIndex int) int64 {
	if c.BatchSize <= 0 || batchIndex < 0 || batchIndex >= len(c.BatchOffsets) {
		return 0
	}
	return c.BatchOffsets[batchIndex]
}

// batchCount returns ceil(numRows/batchSize), or 1 when batchSize is 0.
func batchCount(numRows, batchSize int) int {
	if batchSize <= 0 {
		return 1
	}
	return (numRows + batchSize - 1) / batchSize
}

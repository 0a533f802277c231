package core

import (
	"fmt"
	"math"
	"time"
)

// BatchResponse is the JSON body returned for a successful batch request.
type BatchResponse struct {
	// Counter carries the percentage inside a single {N} placeholder.
	Counter    string `json:"counter"`
	NumBatches int    `json:"numBatches"` // 0 once maxRows ended the import
	Counters
	Usage      string     `json:"usage"`
	RowStart   int        `json:"rowStart"`
	RowStop    int        `json:"rowStop"`
	CSVNumRows int        `json:"csvNumRows"`
	Errors     []RowError `json:"errors,omitempty"`
}

// ErrorResponse is the JSON body of a failed batch request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewBatchResponse builds the progress response for a finished batch.
func NewBatchResponse(cfg *ImportConfig, res *BatchResult) BatchResponse {
	numBatches := cfg.NumBatches
	if res.Truncated {
		numBatches = 0
	}

	return BatchResponse{
		Counter:    CounterText(res.BatchIndex, cfg.NumBatches, res.Truncated),
		NumBatches: numBatches,
		Counters:   res.Counters,
		Usage:      UsageText(res.Counters, res.Duration),
		RowStart:   res.Window.RowStart,
		RowStop:    res.Window.RowStop,
		CSVNumRows: cfg.NumRows,
		Errors:     res.Errors,
	}
}

// CounterText renders the progress line for batch batchIndex of numBatches.
func CounterText(batchIndex, numBatches int, truncated bool) string {
	k := batchIndex + 1
	if truncated || numBatches <= 0 || k >= numBatches {
		return "All done - {100}% complete"
	}
	pct := int(math.Round(float64(k) * 100 / float64(numBatches)))
	return fmt.Sprintf("Processing batch %d out of %d - {%d}%% complete", k, numBatches, pct)
}

// UsageText renders the per-batch summary line.
func UsageText(c Counters, d time.Duration) string {
	return fmt.Sprintf("(skipped: %d, imported: %d, updated: %d) in %.2f s",
		c.Skipped, c.Created, c.Modified, d.Seconds())
}

// Done reports whether a client that just received resp for batchIndex
// should stop requesting batches.
func (resp BatchResponse) Done(batchIndex int) bool {
	return batchIndex+1 >= resp.NumBatches
}

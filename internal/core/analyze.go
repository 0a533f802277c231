package core

import (
	"errors"
	"fmt"
	"io"
)

// Analysis is the result of a single pass over an import source.
type Analysis struct {
	NumAllRows   int      `json:"numAllRows"`   // every record, header included
	NumEmptyRows int      `json:"numEmptyRows"` // data records whose first field is empty
	Header       []string `json:"header"`

	// BatchOffsets[i] is the byte offset of the first record of batch i.
	// Only populated when the analyzer has a positive BatchSize.
	BatchOffsets []int64 `json:"batchOffsets,omitempty"`
}

// NumRows returns the number of data records (header excluded).
func (a *Analysis) NumRows() int {
	if a.NumAllRows == 0 {
		return 0
	}
	return a.NumAllRows - 1
}

// CSVAnalyzer counts rows, extracts the header and optionally indexes batch
// boundaries in one sequential pass with constant memory.
type CSVAnalyzer struct {
	Delimiter rune
	Enclosure rune
	BatchSize int // > 0 enables the batch offset index
}

// AnalyzeFile runs a CSVAnalyzer without an offset index.
func AnalyzeFile(path string, delimiter, enclosure rune) (*Analysis, error) {
	return CSVAnalyzer{Delimiter: delimiter, Enclosure: enclosure}.Analyze(path)
}

// Analyze reads path once. It returns ErrSourceNotFound if the file cannot be
// opened and a *ParseError if a record is structurally broken.
func (a CSVAnalyzer) Analyze(path string) (*Analysis, error) {
	src, err := openSource(path, a.Delimiter, a.Enclosure, 0, 0)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	result := &Analysis{}
	for {
		// Offset of the record about to be read; record numbers are 1-based
		// and data starts at 2, so batch i starts at record i*BatchSize+2.
		offset := src.Offset()
		next := src.Line() + 1
		if a.BatchSize > 0 && next >= 2 && (next-2)%a.BatchSize == 0 {
			result.BatchOffsets = append(result.BatchOffsets, offset)
		}

		row, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", path, err)
		}

		result.NumAllRows++
		if result.NumAllRows == 1 {
			result.Header = row
			continue
		}
		if len(row) == 0 || row[0] == "" {
			result.NumEmptyRows++
		}
	}

	// An offset recorded at EOF points past the last record
	if n := batchCount(result.NumRows(), a.BatchSize); len(result.BatchOffsets) > n {
		result.BatchOffsets = result.BatchOffsets[:n]
	}

	return result, nil
}
